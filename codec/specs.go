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
	"fix-md-subscriber/constants"

	"github.com/quickfixgo/quickfix"
)

// Group layouts of the FIX 4.4 market data messages.
var (
	// MDEntryTypesGroup is NoMDEntryTypes (267) on MarketDataRequest.
	MDEntryTypesGroup = GroupSpec{
		CountTag: constants.TagNoMdEntryTypes,
		Fields:   []quickfix.Tag{constants.TagMdEntryType},
	}

	// RelatedSymGroup is NoRelatedSym (146) on MarketDataRequest.
	RelatedSymGroup = GroupSpec{
		CountTag: constants.TagNoRelatedSym,
		Fields:   []quickfix.Tag{constants.TagSymbol},
	}

	// MDEntriesGroup is NoMDEntries (268) on MarketDataSnapshotFullRefresh.
	// Members beyond those decoded are listed so they do not end the group early.
	MDEntriesGroup = GroupSpec{
		CountTag: constants.TagNoMdEntries,
		Fields: []quickfix.Tag{
			constants.TagMdEntryType,
			constants.TagMdEntryPx,
			constants.TagMdEntrySize,
			constants.TagMdEntryDate,
			constants.TagMdEntryTime,
			constants.TagQuoteCondition,
			constants.TagTradeCondition,
			constants.TagMdEntryId,
			constants.TagMdEntryOriginator,
			constants.TagMdEntryPositionNo,
			constants.TagNumberOfOrders,
			constants.TagAggressorSide,
		},
	}
)
