/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package codec encodes and decodes FIX tag=value fields and repeating groups.
//
// Parsing Strategy:
// Inbound messages are decoded from the raw wire string rather than through
// quickfix's dictionary-driven group access. The raw string preserves the
// exact field order sent by the counterparty, which is what group boundary
// detection depends on, and no data dictionary has to be loaded.
//
// Tokenize walks the message once with strings.IndexByte. Field values are
// substrings of the input and share its backing array.
package codec

import (
	"fmt"
	"strconv"
	"strings"

	"fix-md-subscriber/constants"
	"fix-md-subscriber/model"

	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
)

// Field is a single tag=value pair in wire order.
type Field struct {
	Value string
	Tag   quickfix.Tag
}

// NewField is shorthand for building fields in tests and builders.
func NewField(tag quickfix.Tag, value string) Field {
	return Field{Tag: tag, Value: value}
}

// FieldList is an ordered sequence of fields, as they appeared on the wire.
type FieldList []Field

// Tokenize splits a raw FIX message into fields.
// FIX format: TAG=VALUE\x01TAG=VALUE\x01...
// A trailing field without SOH is accepted.
func Tokenize(raw string) (FieldList, error) {
	if raw == "" {
		return nil, nil
	}

	fields := make(FieldList, 0, strings.Count(raw, string(constants.SOH))+1)
	pos := 0
	rawLen := len(raw)

	for pos < rawLen {
		end := strings.IndexByte(raw[pos:], constants.SOH)
		var segment string
		if end == -1 {
			segment = raw[pos:]
			end = rawLen
		} else {
			segment = raw[pos : pos+end]
			end += pos
		}

		eqPos := strings.IndexByte(segment, '=')
		if eqPos <= 0 {
			return nil, fmt.Errorf("%w: field %q at offset %d has no tag", model.ErrMalformedMessage, segment, pos)
		}

		tag, err := strconv.Atoi(segment[:eqPos])
		if err != nil || tag <= 0 {
			return nil, fmt.Errorf("%w: invalid tag %q at offset %d", model.ErrMalformedMessage, segment[:eqPos], pos)
		}

		fields = append(fields, Field{Tag: quickfix.Tag(tag), Value: segment[eqPos+1:]})
		pos = end + 1
	}

	return fields, nil
}

// Get returns the value of the first field with the given tag.
func (fl FieldList) Get(tag quickfix.Tag) (string, bool) {
	if i := fl.index(tag); i >= 0 {
		return fl[i].Value, true
	}
	return "", false
}

// Has reports whether the tag occurs anywhere in the list.
func (fl FieldList) Has(tag quickfix.Tag) bool {
	return fl.index(tag) >= 0
}

// GetInt returns the first value of tag as an int.
func (fl FieldList) GetInt(tag quickfix.Tag) (int, bool) {
	v, ok := fl.Get(tag)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// String renders the list back to wire form.
func (fl FieldList) String() string {
	var b strings.Builder
	for _, f := range fl {
		writeField(&b, f.Tag, f.Value)
	}
	return b.String()
}

func (fl FieldList) index(tag quickfix.Tag) int {
	for i := range fl {
		if fl[i].Tag == tag {
			return i
		}
	}
	return -1
}

// Instance is one entry of a repeating group.
type Instance FieldList

// NewInstance builds an instance from fields in any order.
func NewInstance(fields ...Field) Instance {
	return Instance(fields)
}

// Get returns the value of tag within the instance.
func (in Instance) Get(tag quickfix.Tag) (string, bool) {
	return FieldList(in).Get(tag)
}

// Has reports whether the instance carries tag.
func (in Instance) Has(tag quickfix.Tag) bool {
	return FieldList(in).Has(tag)
}

// Decimal parses tag as an exact decimal. An absent tag yields an invalid
// NullDecimal and no error.
func (in Instance) Decimal(tag quickfix.Tag) (decimal.NullDecimal, error) {
	v, ok := in.Get(tag)
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: tag %d value %q is not a decimal", model.ErrMalformedGroup, tag, v)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}, nil
}

func writeField(b *strings.Builder, tag quickfix.Tag, value string) {
	b.WriteString(strconv.Itoa(int(tag)))
	b.WriteByte('=')
	b.WriteString(value)
	b.WriteByte(constants.SOH)
}
