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
	"strings"
	"testing"

	"fix-md-subscriber/constants"
	"fix-md-subscriber/model"

	"github.com/quickfixgo/quickfix"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests for the repeating-group codec.
// These verify the observable wire contract: count fields, declared field
// order, instance order, and rejection of groups that do not match their count.

func fix(s string) string {
	return strings.ReplaceAll(s, "|", "\x01")
}

func mustTokenize(t *testing.T, raw string) FieldList {
	t.Helper()
	fields, err := Tokenize(fix(raw))
	require.NoError(t, err)
	return fields
}

// TestTokenize_PreservesWireOrder verifies fields come back in the order sent,
// including repeated tags.
func TestTokenize_PreservesWireOrder(t *testing.T) {
	fields := mustTokenize(t, "35=W|55=EURUSD|268=2|269=0|270=1.0801|269=1|270=1.0803|")

	require.Len(t, fields, 7)
	assert.Equal(t, constants.TagMsgType, fields[0].Tag)
	assert.Equal(t, "W", fields[0].Value)
	assert.Equal(t, "1.0803", fields[6].Value)
}

// TestTokenize_AcceptsMissingTrailingSOH mirrors counterparties that omit the
// final delimiter.
func TestTokenize_AcceptsMissingTrailingSOH(t *testing.T) {
	fields := mustTokenize(t, "35=Y|58=Unknown symbol")

	text, ok := fields.Get(constants.TagText)
	require.True(t, ok)
	assert.Equal(t, "Unknown symbol", text)
}

func TestTokenize_RejectsBrokenFields(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"no equals sign", "35=W|garbage|"},
		{"empty tag", "=W|"},
		{"non-numeric tag", "abc=1|"},
		{"zero tag", "0=1|"},
		{"empty field", "35=W||55=X|"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(fix(tt.raw))
			assert.ErrorIs(t, err, model.ErrMalformedMessage)
		})
	}
}

func TestTokenize_EmptyInputYieldsNoFields(t *testing.T) {
	fields, err := Tokenize("")
	require.NoError(t, err)
	assert.Empty(t, fields)
}

// TestEncode_WritesDeclaredOrderNotInsertionOrder verifies instance fields
// follow the dictionary order even when the caller built them differently.
func TestEncode_WritesDeclaredOrderNotInsertionOrder(t *testing.T) {
	instances := []Instance{
		NewInstance(
			NewField(constants.TagMdEntryPx, "1.0801"),
			NewField(constants.TagMdEntryType, "0"),
		),
		NewInstance(
			NewField(constants.TagMdEntrySize, "5"),
			NewField(constants.TagMdEntryPx, "1.0803"),
			NewField(constants.TagMdEntryType, "1"),
		),
	}

	out, err := MDEntriesGroup.Encode(instances)
	require.NoError(t, err)

	assert.Equal(t, fix("268=2|269=0|270=1.0801|269=1|270=1.0803|271=5|"), string(out))
}

// TestEncode_CountMatchesInstances covers the count field, including the
// empty group.
func TestEncode_CountMatchesInstances(t *testing.T) {
	out, err := RelatedSymGroup.Encode(nil)
	require.NoError(t, err)
	assert.Equal(t, fix("146=0|"), string(out))

	out, err = RelatedSymGroup.Encode([]Instance{
		NewInstance(NewField(constants.TagSymbol, "EURUSD")),
		NewInstance(NewField(constants.TagSymbol, "GBPUSD")),
		NewInstance(NewField(constants.TagSymbol, "XAUUSD")),
	})
	require.NoError(t, err)
	assert.Equal(t, fix("146=3|55=EURUSD|55=GBPUSD|55=XAUUSD|"), string(out))
}

func TestEncode_RejectsInvalidInstances(t *testing.T) {
	tests := []struct {
		name     string
		instance Instance
	}{
		{"missing delimiter", NewInstance(NewField(constants.TagMdEntryPx, "1"))},
		{"foreign tag", NewInstance(NewField(constants.TagMdEntryType, "0"), NewField(constants.TagSymbol, "X"))},
		{"repeated tag", NewInstance(NewField(constants.TagMdEntryType, "0"), NewField(constants.TagMdEntryType, "1"))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MDEntriesGroup.Encode([]Instance{tt.instance})
			assert.ErrorIs(t, err, model.ErrMalformedGroup)
		})
	}
}

// TestDecode_PreservesInstanceOrder verifies instances come back in the
// order they were sent and the group ends at the first non-member tag.
func TestDecode_PreservesInstanceOrder(t *testing.T) {
	fields := mustTokenize(t, "35=W|55=EURUSD|268=3|269=1|270=3|269=0|270=1|269=2|270=2|10=123|")

	instances, err := MDEntriesGroup.Decode(fields)
	require.NoError(t, err)
	require.Len(t, instances, 3)

	var types []string
	for _, inst := range instances {
		v, _ := inst.Get(constants.TagMdEntryType)
		types = append(types, v)
	}
	assert.Equal(t, []string{"1", "0", "2"}, types)
}

// TestDecode_ToleratesMemberOrderWithinInstance accepts members in any order
// after the delimiter.
func TestDecode_ToleratesMemberOrderWithinInstance(t *testing.T) {
	fields := mustTokenize(t, "268=1|269=0|271=2.5|270=49999.00|290=1|")

	instances, err := MDEntriesGroup.Decode(fields)
	require.NoError(t, err)
	require.Len(t, instances, 1)

	px, err := instances[0].Decimal(constants.TagMdEntryPx)
	require.NoError(t, err)
	assert.True(t, px.Valid)
	assert.Equal(t, "49999", px.Decimal.String())
}

func TestDecode_MalformedGroups(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"count larger than instances", "268=3|269=0|270=1|269=1|270=2|10=000|"},
		{"count smaller than instances", "268=1|269=0|270=1|269=1|270=2|"},
		{"zero count with instance", "268=0|269=0|"},
		{"member before delimiter", "268=1|270=1|269=0|"},
		{"repeated member in instance", "268=1|269=0|270=1|270=2|"},
		{"non-numeric count", "268=two|269=0|269=1|"},
		{"negative count", "268=-1|"},
		{"instance cut by top-level tag", "268=2|269=0|58=x|269=1|"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := MDEntriesGroup.Decode(mustTokenize(t, tt.raw))
			assert.ErrorIs(t, err, model.ErrMalformedGroup)
		})
	}
}

// TestDecode_MissingRequiredField verifies the Required list is enforced.
func TestDecode_MissingRequiredField(t *testing.T) {
	spec := GroupSpec{
		CountTag: MDEntriesGroup.CountTag,
		Fields:   MDEntriesGroup.Fields,
		Required: []quickfix.Tag{constants.TagMdEntryPx},
	}

	_, err := spec.Decode(mustTokenize(t, "268=2|269=0|270=1|269=1|"))
	assert.ErrorIs(t, err, model.ErrMalformedGroup)
}

func TestDecode_AbsentGroup(t *testing.T) {
	_, err := MDEntriesGroup.Decode(mustTokenize(t, "35=W|55=EURUSD|"))
	assert.ErrorIs(t, err, ErrGroupNotFound)
}

func TestDecode_EmptyGroup(t *testing.T) {
	instances, err := MDEntriesGroup.Decode(mustTokenize(t, "55=EURUSD|268=0|10=000|"))
	require.NoError(t, err)
	assert.Empty(t, instances)
}

// TestEncodeDecode_RoundTrip verifies that any group built by Encode decodes
// back to the same ordered instances.
func TestEncodeDecode_RoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		spec      GroupSpec
		instances []Instance
	}{
		{
			name: "entry types bid then offer",
			spec: MDEntryTypesGroup,
			instances: []Instance{
				NewInstance(NewField(constants.TagMdEntryType, constants.MdEntryTypeBid)),
				NewInstance(NewField(constants.TagMdEntryType, constants.MdEntryTypeOffer)),
			},
		},
		{
			name: "symbols in caller order",
			spec: RelatedSymGroup,
			instances: []Instance{
				NewInstance(NewField(constants.TagSymbol, "GBPUSD")),
				NewInstance(NewField(constants.TagSymbol, "EURUSD")),
			},
		},
		{
			name: "snapshot entries with optional members",
			spec: MDEntriesGroup,
			instances: []Instance{
				NewInstance(NewField(constants.TagMdEntryType, "0"), NewField(constants.TagMdEntryPx, "1.0801"), NewField(constants.TagMdEntryPositionNo, "1")),
				NewInstance(NewField(constants.TagMdEntryType, "B"), NewField(constants.TagMdEntrySize, "12345.67")),
				NewInstance(NewField(constants.TagMdEntryType, "2"), NewField(constants.TagMdEntryPx, "50000.00"), NewField(constants.TagAggressorSide, "1")),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wire, err := tt.spec.Encode(tt.instances)
			require.NoError(t, err)

			fields, err := Tokenize(string(wire))
			require.NoError(t, err)

			decoded, err := tt.spec.Decode(fields)
			require.NoError(t, err)
			assert.Equal(t, tt.instances, decoded)

			again, err := tt.spec.Encode(decoded)
			require.NoError(t, err)
			assert.Equal(t, string(wire), string(again))
		})
	}
}

// TestInstanceDecimal_IsExact guards against binary floating point rounding
// of prices.
func TestInstanceDecimal_IsExact(t *testing.T) {
	inst := NewInstance(NewField(constants.TagMdEntryType, "0"), NewField(constants.TagMdEntryPx, "0.1000000000000000055511151231257827"))

	px, err := inst.Decimal(constants.TagMdEntryPx)
	require.NoError(t, err)
	assert.Equal(t, "0.1000000000000000055511151231257827", px.Decimal.String())

	size, err := inst.Decimal(constants.TagMdEntrySize)
	require.NoError(t, err)
	assert.False(t, size.Valid)

	bad := NewInstance(NewField(constants.TagMdEntryType, "0"), NewField(constants.TagMdEntryPx, "1.0.1"))
	_, err = bad.Decimal(constants.TagMdEntryPx)
	assert.ErrorIs(t, err, model.ErrMalformedGroup)
}
