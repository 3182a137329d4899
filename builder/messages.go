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

package builder

import (
	"fmt"
	"strconv"

	"fix-md-subscriber/codec"
	"fix-md-subscriber/constants"
	"fix-md-subscriber/model"

	"github.com/quickfixgo/quickfix"
)

// FieldSetter abstracts setting fields on FIX message components.
type FieldSetter interface {
	SetField(tag quickfix.Tag, field quickfix.FieldValueWriter) *quickfix.FieldMap
}

func setString(fs FieldSetter, tag quickfix.Tag, value string) {
	fs.SetField(tag, quickfix.FIXString(value))
}

// setStringIfNotEmpty sets a field only if the value is non-empty.
func setStringIfNotEmpty(fs FieldSetter, tag quickfix.Tag, value string) {
	if value != "" {
		fs.SetField(tag, quickfix.FIXString(value))
	}
}

// buildHeader sets the header fields the builder owns. Comp IDs, sequence
// number and SendingTime are filled in by the session on send.
func buildHeader(header *quickfix.Header, msgType string) {
	setString(header, constants.TagBeginString, constants.FixBeginString)
	setString(header, constants.TagMsgType, msgType)
}

// --- Logon Message ---

// ApplyLogonCredentials adds Username (553) and Password (554) to an
// outgoing Logon body. Empty values are left out.
func ApplyLogonCredentials(body *quickfix.Body, username, password string) {
	setStringIfNotEmpty(body, constants.TagUsername, username)
	setStringIfNotEmpty(body, constants.TagPassword, password)
}

// --- Market Data Request ---

// DefaultEntryTypes are requested when a subscribe carries none: Bid then Offer.
var DefaultEntryTypes = []model.EntryType{model.EntryBid, model.EntryOffer}

// BuildMarketDataRequest creates a Market Data Request (V) message.
//
// Subscribe (263=1) carries MarketDepth from the request, MDUpdateType=0,
// the NoMDEntryTypes group and one NoRelatedSym instance per symbol in caller
// order. Unsubscribe (263=2) carries MarketDepth=0 and the symbols only.
// MDReqID is echoed verbatim.
//
// Example:
//
//	req := model.SubscriptionRequest{
//	    RequestID: "md_1", Mode: model.ModeSnapshotPlusUpdates,
//	    Depth: 1, Symbols: []string{"EURUSD", "GBPUSD"},
//	}
//	msg, err := BuildMarketDataRequest(req)
func BuildMarketDataRequest(req model.SubscriptionRequest) (*quickfix.Message, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	m := quickfix.NewMessage()
	buildHeader(&m.Header, constants.MsgTypeMarketDataRequest)

	setString(&m.Body, constants.TagMdReqId, req.RequestID)
	setString(&m.Body, constants.TagSubscriptionRequestType, req.Mode.WireValue())

	if req.Mode == model.ModeUnsubscribe {
		setString(&m.Body, constants.TagMarketDepth, strconv.Itoa(constants.MarketDepthFull))
	} else {
		setString(&m.Body, constants.TagMarketDepth, strconv.FormatUint(uint64(req.Depth), 10))
		setString(&m.Body, constants.TagMdUpdateType, constants.MdUpdateTypeFullRefresh)

		entryTypes := req.EntryTypes
		if len(entryTypes) == 0 {
			entryTypes = DefaultEntryTypes
		}
		entryGroup, err := codec.MDEntryTypesGroup.Build(EntryTypeInstances(entryTypes))
		if err != nil {
			return nil, fmt.Errorf("build entry types group: %w", err)
		}
		m.Body.SetGroup(entryGroup)
	}

	symbolGroup, err := codec.RelatedSymGroup.Build(SymbolInstances(req.Symbols))
	if err != nil {
		return nil, fmt.Errorf("build related symbols group: %w", err)
	}
	m.Body.SetGroup(symbolGroup)

	return m, nil
}

// EntryTypeInstances maps entry types to NoMDEntryTypes instances.
func EntryTypeInstances(types []model.EntryType) []codec.Instance {
	instances := make([]codec.Instance, 0, len(types))
	for _, et := range types {
		instances = append(instances, codec.NewInstance(codec.NewField(constants.TagMdEntryType, et.WireValue())))
	}
	return instances
}

// SymbolInstances maps symbols to NoRelatedSym instances.
func SymbolInstances(symbols []string) []codec.Instance {
	instances := make([]codec.Instance, 0, len(symbols))
	for _, s := range symbols {
		instances = append(instances, codec.NewInstance(codec.NewField(constants.TagSymbol, s)))
	}
	return instances
}
