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

// Package model holds the market-data subscription domain types shared by the
// codec, builder and fixclient packages.
package model

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"fix-md-subscriber/constants"

	"github.com/shopspring/decimal"
)

// Mode is the SubscriptionRequestType (263) of a market data request.
type Mode int

const (
	ModeSnapshotPlusUpdates Mode = iota
	ModeUnsubscribe
)

// WireValue returns the tag 263 value for the mode.
func (m Mode) WireValue() string {
	if m == ModeUnsubscribe {
		return constants.SubscriptionRequestTypeUnsubscribe
	}
	return constants.SubscriptionRequestTypeSubscribe
}

func (m Mode) String() string {
	switch m {
	case ModeSnapshotPlusUpdates:
		return "Snapshot + Updates"
	case ModeUnsubscribe:
		return "Unsubscribe"
	default:
		return "Unknown"
	}
}

// EntryType is the MDEntryType (269) of a market data entry.
type EntryType int

const (
	EntryOther EntryType = iota
	EntryBid
	EntryOffer
	EntryTrade
)

// ParseEntryType maps a tag 269 value to an EntryType. Unknown values map to
// EntryOther so protocol extensions do not fail the message.
func ParseEntryType(value string) EntryType {
	switch value {
	case constants.MdEntryTypeBid:
		return EntryBid
	case constants.MdEntryTypeOffer:
		return EntryOffer
	case constants.MdEntryTypeTrade:
		return EntryTrade
	default:
		return EntryOther
	}
}

// WireValue returns the tag 269 value. EntryOther has no single wire value.
func (t EntryType) WireValue() string {
	switch t {
	case EntryBid:
		return constants.MdEntryTypeBid
	case EntryOffer:
		return constants.MdEntryTypeOffer
	case EntryTrade:
		return constants.MdEntryTypeTrade
	default:
		return ""
	}
}

func (t EntryType) String() string {
	switch t {
	case EntryBid:
		return "Bid"
	case EntryOffer:
		return "Offer"
	case EntryTrade:
		return "Trade"
	default:
		return "Other"
	}
}

// SubscriptionRequest is a typed MarketDataRequest (35=V).
// RequestID is shared by a subscribe and its matching unsubscribe so rejects
// can be correlated with either.
type SubscriptionRequest struct {
	RequestID  string
	Mode       Mode
	Depth      uint
	EntryTypes []EntryType
	Symbols    []string
}

// Validate checks the request before it is built.
func (r SubscriptionRequest) Validate() error {
	if r.RequestID == "" {
		return fmt.Errorf("%w: empty request id", ErrInvalidRequest)
	}
	if r.Mode == ModeSnapshotPlusUpdates && len(r.Symbols) == 0 {
		return ErrNoSymbols
	}
	for _, et := range r.EntryTypes {
		if et.WireValue() == "" {
			return fmt.Errorf("%w: entry type %s has no wire value", ErrInvalidRequest, et)
		}
	}
	return nil
}

// NormalizeSymbols trims blanks and removes duplicates, keeping first-seen order.
func NormalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// MarketDataEntry is one NoMDEntries instance of a snapshot.
// Fields are ordered for memory alignment.
type MarketDataEntry struct {
	Price    decimal.NullDecimal
	Size     decimal.NullDecimal
	RawType  string // tag 269 as received
	Time     string // tag 273
	Position string // tag 290
	Type     EntryType
}

// MarketDataSnapshot is a parsed MarketDataSnapshotFullRefresh (35=W).
// It is never mutated after the parser returns it.
type MarketDataSnapshot struct {
	ReceivedAt time.Time
	RequestID  sql.NullString
	Symbol     string
	Entries    []MarketDataEntry
	SeqNum     int
}

// Best returns the first entry of the given type, if any.
func (s *MarketDataSnapshot) Best(t EntryType) (MarketDataEntry, bool) {
	for _, e := range s.Entries {
		if e.Type == t {
			return e, true
		}
	}
	return MarketDataEntry{}, false
}

// SubscriptionReject is a parsed MarketDataRequestReject (35=Y).
type SubscriptionReject struct {
	RequestID  string
	ReasonCode sql.NullString
	Text       sql.NullString
}

// ReasonDescription maps the MDReqRejReason (281) code to text.
func (r SubscriptionReject) ReasonDescription() string {
	if !r.ReasonCode.Valid {
		return "Not specified"
	}
	switch r.ReasonCode.String {
	case constants.MdReqRejReasonUnknownSymbol:
		return "Unknown symbol"
	case constants.MdReqRejReasonDuplicateMdReqId:
		return "Duplicate MdReqId"
	case constants.MdReqRejReasonInsufficientBandwidth:
		return "Insufficient bandwidth"
	case constants.MdReqRejReasonInsufficientPermission:
		return "Insufficient permission"
	case constants.MdReqRejReasonInvalidSubscriptionReqType:
		return "Invalid SubscriptionRequestType"
	case constants.MdReqRejReasonInvalidMarketDepth:
		return "Invalid MarketDepth"
	case constants.MdReqRejReasonUnsupportedMdUpdateType:
		return "Unsupported MdUpdateType"
	case constants.MdReqRejReasonOther:
		return "Other"
	case constants.MdReqRejReasonUnsupportedMdEntryType:
		return "Unsupported MdEntryType"
	default:
		return "Unknown reason"
	}
}

// SubscriptionState is the lifecycle state of the logical subscription.
type SubscriptionState int

const (
	StateUnsubscribed SubscriptionState = iota
	StatePendingSubscribe
	StateActive
	StatePendingUnsubscribe
)

func (s SubscriptionState) String() string {
	switch s {
	case StateUnsubscribed:
		return "Unsubscribed"
	case StatePendingSubscribe:
		return "PendingSubscribe"
	case StateActive:
		return "Active"
	case StatePendingUnsubscribe:
		return "PendingUnsubscribe"
	default:
		return "Unknown"
	}
}

// Status is a consistent copy of the subscription state for readers outside
// the transport callback goroutine.
type Status struct {
	LastError error
	RequestID string
	Symbols   []string
	State     SubscriptionState
	Armed     bool // resubscribe on next logon
	LoggedOn  bool
	FirstData bool
}
