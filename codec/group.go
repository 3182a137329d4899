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

package codec

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"fix-md-subscriber/model"

	"github.com/quickfixgo/quickfix"
)

// ErrGroupNotFound is returned by Decode when the count tag is absent.
var ErrGroupNotFound = errors.New("repeating group not present")

// GroupSpec describes a repeating group as declared by the data dictionary.
//
// Fields lists every member tag in declared order. Fields[0] is the
// delimiter: each instance starts with it. Required lists member tags every
// instance must carry; the delimiter is always required.
type GroupSpec struct {
	Fields   []quickfix.Tag
	Required []quickfix.Tag
	CountTag quickfix.Tag
}

func (s GroupSpec) delimiter() quickfix.Tag {
	return s.Fields[0]
}

func (s GroupSpec) isMember(tag quickfix.Tag) bool {
	for _, t := range s.Fields {
		if t == tag {
			return true
		}
	}
	return false
}

// Template returns the quickfix template with the declared field order.
func (s GroupSpec) Template() quickfix.GroupTemplate {
	t := make(quickfix.GroupTemplate, 0, len(s.Fields))
	for _, tag := range s.Fields {
		t = append(t, quickfix.GroupElement(tag))
	}
	return t
}

// Encode writes the count field followed by every instance's fields in the
// declared order. The caller's field order inside an instance is ignored.
func (s GroupSpec) Encode(instances []Instance) ([]byte, error) {
	if err := s.validate(instances); err != nil {
		return nil, err
	}

	var b strings.Builder
	writeField(&b, s.CountTag, strconv.Itoa(len(instances)))
	for _, inst := range instances {
		for _, tag := range s.Fields {
			if v, ok := inst.Get(tag); ok {
				writeField(&b, tag, v)
			}
		}
	}
	return []byte(b.String()), nil
}

// Build returns the group as a quickfix.RepeatingGroup ready for
// FieldMap.SetGroup. quickfix writes the instance fields in template order.
func (s GroupSpec) Build(instances []Instance) (*quickfix.RepeatingGroup, error) {
	if err := s.validate(instances); err != nil {
		return nil, err
	}

	group := quickfix.NewRepeatingGroup(s.CountTag, s.Template())
	for _, inst := range instances {
		g := group.Add()
		for _, f := range inst {
			g.SetField(f.Tag, quickfix.FIXString(f.Value))
		}
	}
	return group, nil
}

// Decode extracts the group's instances from a message's fields.
//
// Decoding starts after the first occurrence of CountTag. A delimiter opens a
// new instance, other member tags extend the current one, and the first tag
// that is not a member ends the group. The number of instances found must
// equal the declared count.
func (s GroupSpec) Decode(fields FieldList) ([]Instance, error) {
	start := fields.index(s.CountTag)
	if start < 0 {
		return nil, fmt.Errorf("%w: tag %d", ErrGroupNotFound, s.CountTag)
	}

	countStr := fields[start].Value
	count, err := strconv.Atoi(countStr)
	if err != nil || count < 0 {
		return nil, fmt.Errorf("%w: tag %d has invalid count %q", model.ErrMalformedGroup, s.CountTag, countStr)
	}

	rest := fields[start+1:]
	capacity := count
	if capacity > len(rest) {
		capacity = len(rest)
	}
	instances := make([]Instance, 0, capacity)

	var current Instance
	for _, f := range rest {
		if f.Tag == s.delimiter() {
			if current != nil {
				instances = append(instances, current)
			}
			current = Instance{f}
			continue
		}
		if !s.isMember(f.Tag) {
			break
		}
		if current == nil {
			return nil, fmt.Errorf("%w: tag %d appears before delimiter %d", model.ErrMalformedGroup, f.Tag, s.delimiter())
		}
		if current.Has(f.Tag) {
			return nil, fmt.Errorf("%w: tag %d repeated in instance %d", model.ErrMalformedGroup, f.Tag, len(instances)+1)
		}
		current = append(current, f)
	}
	if current != nil {
		instances = append(instances, current)
	}

	if len(instances) != count {
		return nil, fmt.Errorf("%w: tag %d declares %d instances, found %d", model.ErrMalformedGroup, s.CountTag, count, len(instances))
	}

	for i, inst := range instances {
		if err := s.checkRequired(inst, i); err != nil {
			return nil, err
		}
	}

	return instances, nil
}

func (s GroupSpec) validate(instances []Instance) error {
	for i, inst := range instances {
		seen := make(map[quickfix.Tag]struct{}, len(inst))
		for _, f := range inst {
			if !s.isMember(f.Tag) {
				return fmt.Errorf("%w: tag %d is not a member of group %d", model.ErrMalformedGroup, f.Tag, s.CountTag)
			}
			if _, dup := seen[f.Tag]; dup {
				return fmt.Errorf("%w: tag %d repeated in instance %d", model.ErrMalformedGroup, f.Tag, i+1)
			}
			seen[f.Tag] = struct{}{}
		}
		if err := s.checkRequired(inst, i); err != nil {
			return err
		}
	}
	return nil
}

func (s GroupSpec) checkRequired(inst Instance, index int) error {
	if !inst.Has(s.delimiter()) {
		return fmt.Errorf("%w: instance %d of group %d missing delimiter %d", model.ErrMalformedGroup, index+1, s.CountTag, s.delimiter())
	}
	for _, tag := range s.Required {
		if !inst.Has(tag) {
			return fmt.Errorf("%w: instance %d of group %d missing required tag %d", model.ErrMalformedGroup, index+1, s.CountTag, tag)
		}
	}
	return nil
}
