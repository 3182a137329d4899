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

// Package fixclient implements the market data subscriber on top of a
// quickfix session: inbound parsing, the subscription state machine and the
// quickfix.Application that ties them to the wire.
//
// HOT PATH [3]: This file contains the inbound parsing logic. Every
// application message the session receives passes through ParseInbound.
//
// Parsing Strategy:
// The raw message (msg.String()) is tokenized once by codec.Tokenize and the
// NoMDEntries group is decoded by codec.MDEntriesGroup, so entries come back
// in wire order without loading a data dictionary.
package fixclient

import (
	"database/sql"
	"fmt"
	"time"

	"fix-md-subscriber/codec"
	"fix-md-subscriber/constants"
	"fix-md-subscriber/model"
)

// InboundKind classifies an inbound application message.
type InboundKind int

const (
	InboundUnrecognized InboundKind = iota
	InboundSnapshot
	InboundReject
)

func (k InboundKind) String() string {
	switch k {
	case InboundSnapshot:
		return "snapshot"
	case InboundReject:
		return "reject"
	default:
		return "unrecognized"
	}
}

// Inbound is the typed result of parsing one message. Exactly one of
// Snapshot and Reject is set for the matching Kind.
type Inbound struct {
	Snapshot *model.MarketDataSnapshot
	Reject   *model.SubscriptionReject
	MsgType  string
	Kind     InboundKind
}

// ParseInbound classifies and decodes a raw FIX message.
// HOT PATH [3]: Called once per application message from FromApp.
//
// Unrecognized message types return Kind InboundUnrecognized and no error.
// A structurally broken snapshot returns an error wrapping
// model.ErrMalformedMessage or model.ErrMalformedGroup.
func ParseInbound(raw string) (Inbound, error) {
	return parseInboundAt(raw, time.Now())
}

func parseInboundAt(raw string, now time.Time) (Inbound, error) {
	fields, err := codec.Tokenize(raw)
	if err != nil {
		return Inbound{}, err
	}

	msgType, ok := fields.Get(constants.TagMsgType)
	if !ok {
		return Inbound{}, fmt.Errorf("%w: missing MsgType (35)", model.ErrMalformedMessage)
	}

	switch msgType {
	case constants.MsgTypeMarketDataSnapshot:
		snap, err := parseSnapshot(fields, now)
		if err != nil {
			return Inbound{MsgType: msgType}, err
		}
		return Inbound{Kind: InboundSnapshot, MsgType: msgType, Snapshot: snap}, nil

	case constants.MsgTypeMarketDataReject:
		rej, err := parseReject(fields)
		if err != nil {
			return Inbound{MsgType: msgType}, err
		}
		return Inbound{Kind: InboundReject, MsgType: msgType, Reject: rej}, nil

	default:
		return Inbound{Kind: InboundUnrecognized, MsgType: msgType}, nil
	}
}

// parseSnapshot decodes a MarketDataSnapshotFullRefresh (35=W).
// Symbol (55) and NoMDEntries (268) are required; MDReqID (262) is optional.
func parseSnapshot(fields codec.FieldList, now time.Time) (*model.MarketDataSnapshot, error) {
	symbol, ok := fields.Get(constants.TagSymbol)
	if !ok || symbol == "" {
		return nil, fmt.Errorf("%w: snapshot missing Symbol (55)", model.ErrMalformedMessage)
	}
	if !fields.Has(constants.TagNoMdEntries) {
		return nil, fmt.Errorf("%w: snapshot missing NoMDEntries (268)", model.ErrMalformedMessage)
	}

	instances, err := codec.MDEntriesGroup.Decode(fields)
	if err != nil {
		return nil, err
	}

	snap := &model.MarketDataSnapshot{
		ReceivedAt: now,
		Symbol:     symbol,
		Entries:    make([]model.MarketDataEntry, 0, len(instances)),
	}
	if reqID, ok := fields.Get(constants.TagMdReqId); ok && reqID != "" {
		snap.RequestID = sql.NullString{String: reqID, Valid: true}
	}
	if seq, ok := fields.GetInt(constants.TagMsgSeqNum); ok {
		snap.SeqNum = seq
	}

	for i, inst := range instances {
		entry, err := parseEntry(inst)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i+1, err)
		}
		snap.Entries = append(snap.Entries, entry)
	}

	return snap, nil
}

// parseEntry converts one NoMDEntries instance. Unknown entry types are kept
// as EntryOther with the raw value preserved.
// HOT PATH [3b]: Called once per entry.
func parseEntry(inst codec.Instance) (model.MarketDataEntry, error) {
	rawType, _ := inst.Get(constants.TagMdEntryType)
	entry := model.MarketDataEntry{
		RawType: rawType,
		Type:    model.ParseEntryType(rawType),
	}

	price, err := inst.Decimal(constants.TagMdEntryPx)
	if err != nil {
		return model.MarketDataEntry{}, err
	}
	size, err := inst.Decimal(constants.TagMdEntrySize)
	if err != nil {
		return model.MarketDataEntry{}, err
	}
	entry.Price = price
	entry.Size = size

	entry.Time, _ = inst.Get(constants.TagMdEntryTime)
	entry.Position, _ = inst.Get(constants.TagMdEntryPositionNo)
	return entry, nil
}

// parseReject decodes a MarketDataRequestReject (35=Y). Every field is
// optional on the wire; a reject without MDReqID cannot be correlated and is
// returned with an empty RequestID.
func parseReject(fields codec.FieldList) (*model.SubscriptionReject, error) {
	rej := &model.SubscriptionReject{}
	rej.RequestID, _ = fields.Get(constants.TagMdReqId)
	if code, ok := fields.Get(constants.TagMdReqRejReason); ok && code != "" {
		rej.ReasonCode = sql.NullString{String: code, Valid: true}
	}
	if text, ok := fields.Get(constants.TagText); ok && text != "" {
		rej.Text = sql.NullString{String: text, Valid: true}
	}
	return rej, nil
}
