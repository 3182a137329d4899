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

package model

import (
	"errors"
	"fmt"
)

// Parse-time errors. The message is dropped and the subscription is untouched.
var (
	ErrMalformedMessage = errors.New("malformed message")
	ErrMalformedGroup   = errors.New("malformed repeating group")
)

// Caller misuse. Returned synchronously, nothing is sent.
var (
	ErrAlreadySubscribed  = errors.New("already subscribed")
	ErrInvalidTransition  = errors.New("invalid subscription state transition")
	ErrDuplicateRequestID = errors.New("duplicate request id")
	ErrNoSymbols          = errors.New("no symbols to subscribe")
	ErrInvalidRequest     = errors.New("invalid subscription request")
)

// ErrSessionNotFound is reported when the session transport cannot send.
var ErrSessionNotFound = errors.New("session not found")

// ErrSubscriptionRejected marks a counterparty MarketDataRequestReject.
var ErrSubscriptionRejected = errors.New("subscription rejected")

// RejectError carries the reject that terminated a request.
type RejectError struct {
	Reject SubscriptionReject
}

func (e *RejectError) Error() string {
	msg := fmt.Sprintf("%v: reqId=%s reason=%s", ErrSubscriptionRejected, e.Reject.RequestID, e.Reject.ReasonDescription())
	if e.Reject.Text.Valid {
		msg += " text=" + e.Reject.Text.String
	}
	return msg
}

func (e *RejectError) Unwrap() error {
	return ErrSubscriptionRejected
}
