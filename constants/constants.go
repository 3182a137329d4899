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

package constants

import "github.com/quickfixgo/quickfix"

// --- Message Types ---
const (
	// Admin Messages
	MsgTypeLogon  = "A" // Logon
	MsgTypeReject = "3" // Session-level Reject

	// Market Data Messages
	MsgTypeMarketDataRequest  = "V" // Market Data Request
	MsgTypeMarketDataSnapshot = "W" // Market Data Snapshot/Full Refresh
	MsgTypeMarketDataReject   = "Y" // Market Data Request Reject
)

// --- Protocol Constants ---
const (
	FixBeginString = "FIX.4.4"
	SOH            = '\x01'
)

// --- Subscription Request Types (Tag 263) ---
const (
	SubscriptionRequestTypeSubscribe   = "1" // Snapshot + Updates
	SubscriptionRequestTypeUnsubscribe = "2" // Disable previous Snapshot + Updates
)

// --- Market Depth (Tag 264) ---
const (
	MarketDepthFull      = 0 // Full book, also used on unsubscribe
	MarketDepthTopOfBook = 1 // Level 1
)

// --- MD Entry Types (Tag 269) ---
const (
	MdEntryTypeBid    = "0" // Bid
	MdEntryTypeOffer  = "1" // Offer/Ask
	MdEntryTypeTrade  = "2" // Trade
	MdEntryTypeOpen   = "4" // Open
	MdEntryTypeClose  = "5" // Close
	MdEntryTypeHigh   = "7" // High
	MdEntryTypeLow    = "8" // Low
	MdEntryTypeVolume = "B" // Volume
)

// --- MD Update Types (Tag 265) ---
const MdUpdateTypeFullRefresh = "0" // Full refresh

// --- Standard FIX Tags ---
var (
	TagBeginString  = quickfix.Tag(8)
	TagMsgSeqNum    = quickfix.Tag(34)
	TagMsgType      = quickfix.Tag(35)
	TagSymbol       = quickfix.Tag(55)
	TagText         = quickfix.Tag(58)
	TagNoRelatedSym = quickfix.Tag(146)

	// Market Data Tags
	TagMdReqId                 = quickfix.Tag(262)
	TagSubscriptionRequestType = quickfix.Tag(263)
	TagMarketDepth             = quickfix.Tag(264)
	TagMdUpdateType            = quickfix.Tag(265)
	TagNoMdEntryTypes          = quickfix.Tag(267)
	TagNoMdEntries             = quickfix.Tag(268)
	TagMdEntryType             = quickfix.Tag(269)
	TagMdEntryPx               = quickfix.Tag(270)
	TagMdEntrySize             = quickfix.Tag(271)
	TagMdEntryDate             = quickfix.Tag(272)
	TagMdEntryTime             = quickfix.Tag(273)
	TagMdReqRejReason          = quickfix.Tag(281)
	TagMdEntryOriginator       = quickfix.Tag(282)
	TagMdEntryPositionNo       = quickfix.Tag(290)
	TagNumberOfOrders          = quickfix.Tag(346)
	TagQuoteCondition          = quickfix.Tag(276)
	TagTradeCondition          = quickfix.Tag(277)
	TagMdEntryId               = quickfix.Tag(278)

	// Logon Tags
	TagUsername = quickfix.Tag(553)
	TagPassword = quickfix.Tag(554)

	// Venue Custom Tags
	TagAggressorSide = quickfix.Tag(2446)
)

// --- MD Rejection Reasons (Tag 281) ---
const (
	MdReqRejReasonUnknownSymbol              = "0"
	MdReqRejReasonDuplicateMdReqId           = "1"
	MdReqRejReasonInsufficientBandwidth      = "2"
	MdReqRejReasonInsufficientPermission     = "3"
	MdReqRejReasonInvalidSubscriptionReqType = "4"
	MdReqRejReasonInvalidMarketDepth         = "5"
	MdReqRejReasonUnsupportedMdUpdateType    = "6"
	MdReqRejReasonOther                      = "7"
	MdReqRejReasonUnsupportedMdEntryType     = "8"
)
