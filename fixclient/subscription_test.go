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

package fixclient

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"fix-md-subscriber/codec"
	"fix-md-subscriber/constants"
	"fix-md-subscriber/model"
	"fix-md-subscriber/notifier"

	"github.com/quickfixgo/quickfix"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Tests for the subscription state machine.
// A recording transport stands in for the quickfix session so every test can
// assert exactly which requests went out on the wire.

type recordingTransport struct {
	mu   sync.Mutex
	sent []*quickfix.Message
	err  error
}

func (r *recordingTransport) Send(msg *quickfix.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func (r *recordingTransport) failWith(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.err = err
}

func (r *recordingTransport) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sent)
}

// request returns the i-th sent message as wire fields.
func (r *recordingTransport) request(t *testing.T, i int) codec.FieldList {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.Greater(t, len(r.sent), i, "message %d was not sent", i)

	fields, err := codec.Tokenize(r.sent[i].String())
	require.NoError(t, err)
	return fields
}

type eventLog struct {
	mu     sync.Mutex
	events []notifier.Event
}

func (l *eventLog) add(ev notifier.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) ofKind(kind notifier.EventKind) []notifier.Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []notifier.Event
	for _, ev := range l.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type harness struct {
	sub       *Subscriber
	transport *recordingTransport
	events    *eventLog
}

func newHarness(t *testing.T, cfg SubscriberConfig) *harness {
	t.Helper()
	n := notifier.New(nil)
	t.Cleanup(n.Close)

	h := &harness{transport: &recordingTransport{}, events: &eventLog{}}
	n.AddListener(h.events.add)
	h.sub = NewSubscriber(cfg, h.transport, n, nil, nil)
	t.Cleanup(h.sub.Close)
	return h
}

func quote(symbol, reqID string) *model.MarketDataSnapshot {
	snap := &model.MarketDataSnapshot{
		Symbol:     symbol,
		ReceivedAt: time.Now(),
		Entries: []model.MarketDataEntry{
			{Type: model.EntryBid, RawType: "0", Price: decimal.NewNullDecimal(decimal.RequireFromString("1.0801"))},
			{Type: model.EntryOffer, RawType: "1", Price: decimal.NewNullDecimal(decimal.RequireFromString("1.0803"))},
		},
	}
	if reqID != "" {
		snap.RequestID.String = reqID
		snap.RequestID.Valid = true
	}
	return snap
}

func rejectFor(reqID, reason, text string) *model.SubscriptionReject {
	rej := &model.SubscriptionReject{RequestID: reqID}
	if reason != "" {
		rej.ReasonCode.String, rej.ReasonCode.Valid = reason, true
	}
	if text != "" {
		rej.Text.String, rej.Text.Valid = text, true
	}
	return rej
}

func field(t *testing.T, fields codec.FieldList, tag quickfix.Tag) string {
	t.Helper()
	v, ok := fields.Get(tag)
	require.True(t, ok, "tag %d missing", tag)
	return v
}

func symbolsOf(t *testing.T, fields codec.FieldList) []string {
	t.Helper()
	instances, err := codec.RelatedSymGroup.Decode(fields)
	require.NoError(t, err)
	out := make([]string, 0, len(instances))
	for _, inst := range instances {
		v, _ := inst.Get(constants.TagSymbol)
		out = append(out, v)
	}
	return out
}

// TestSubscriber_SubscribeSendsRequest verifies the wire request and the
// transition to PendingSubscribe.
func TestSubscriber_SubscribeSendsRequest(t *testing.T) {
	h := newHarness(t, SubscriberConfig{})

	require.NoError(t, h.sub.Subscribe([]string{"EURUSD", " GBPUSD ", "EURUSD"}))

	assert.Equal(t, model.StatePendingSubscribe, h.sub.State())
	require.Equal(t, 1, h.transport.count())

	req := h.transport.request(t, 0)
	assert.Equal(t, constants.MsgTypeMarketDataRequest, field(t, req, constants.TagMsgType))
	assert.Equal(t, constants.SubscriptionRequestTypeSubscribe, field(t, req, constants.TagSubscriptionRequestType))
	assert.Equal(t, "1", field(t, req, constants.TagMarketDepth))
	assert.True(t, strings.HasPrefix(field(t, req, constants.TagMdReqId), DefaultRequestIDPrefix))
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, symbolsOf(t, req))

	status := h.sub.Status()
	assert.Equal(t, field(t, req, constants.TagMdReqId), status.RequestID)
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, status.Symbols)
	assert.True(t, status.Armed)
}

func TestSubscriber_SubscribeRequiresSymbols(t *testing.T) {
	h := newHarness(t, SubscriberConfig{})

	err := h.sub.Subscribe([]string{" ", ""})

	assert.ErrorIs(t, err, model.ErrNoSymbols)
	assert.Equal(t, 0, h.transport.count())
	assert.Equal(t, model.StateUnsubscribed, h.sub.State())
}

// TestSubscriber_AlreadySubscribed verifies a second subscribe while pending
// or active sends nothing.
func TestSubscriber_AlreadySubscribed(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})
	require.NoError(t, h.sub.Subscribe([]string{"EURUSD"}))

	err := h.sub.Subscribe([]string{"GBPUSD"})
	assert.ErrorIs(t, err, model.ErrAlreadySubscribed)

	require.True(t, h.sub.HandleSnapshot(quote("EURUSD", "REQ-1")))
	require.Equal(t, model.StateActive, h.sub.State())

	err = h.sub.Subscribe([]string{"GBPUSD"})
	assert.ErrorIs(t, err, model.ErrAlreadySubscribed)

	assert.Equal(t, 1, h.transport.count())
	assert.Equal(t, []string{"EURUSD"}, h.sub.Status().Symbols)
}

// TestSubscriber_FirstSnapshotActivates verifies the first matching snapshot
// moves to Active and opens the first-data gate exactly once.
func TestSubscriber_FirstSnapshotActivates(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})
	require.NoError(t, h.sub.Subscribe([]string{"EURUSD", "GBPUSD"}))
	assert.False(t, h.sub.WaitForFirstData(0))

	assert.True(t, h.sub.HandleSnapshot(quote("EURUSD", "REQ-1")))
	assert.True(t, h.sub.HandleSnapshot(quote("GBPUSD", "")))
	assert.True(t, h.sub.HandleSnapshot(quote("EURUSD", "REQ-1")))

	assert.Equal(t, model.StateActive, h.sub.State())
	assert.True(t, h.sub.WaitForFirstData(0))
	assert.False(t, h.sub.Notifier().FirstData().Open(), "gate must already be open")

	var activations int
	for _, ev := range h.events.ofKind(notifier.EventStateChanged) {
		if ev.To == model.StateActive {
			activations++
		}
	}
	assert.Equal(t, 1, activations)

	snaps := h.events.ofKind(notifier.EventSnapshot)
	require.Len(t, snaps, 3)
	assert.Equal(t, "EURUSD", snaps[0].Snapshot.Symbol)
	assert.Equal(t, "GBPUSD", snaps[1].Snapshot.Symbol)
	assert.Equal(t, "EURUSD", snaps[2].Snapshot.Symbol)
}

// TestSubscriber_IgnoresForeignSnapshots verifies snapshots outside the
// symbol set or for another MDReqID leave the state untouched.
func TestSubscriber_IgnoresForeignSnapshots(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})

	assert.False(t, h.sub.HandleSnapshot(quote("EURUSD", "REQ-1")), "no subscription yet")

	require.NoError(t, h.sub.Subscribe([]string{"EURUSD"}))
	assert.False(t, h.sub.HandleSnapshot(quote("USDJPY", "REQ-1")))
	assert.False(t, h.sub.HandleSnapshot(quote("EURUSD", "REQ-OTHER")))

	assert.Equal(t, model.StatePendingSubscribe, h.sub.State())
	assert.False(t, h.sub.WaitForFirstData(0))
	assert.Empty(t, h.events.ofKind(notifier.EventSnapshot))
}

// TestSubscriber_RejectWhilePending verifies the unknown symbol scenario: the
// consumer sees the reject text and the subscription is not retried.
func TestSubscriber_RejectWhilePending(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})
	require.NoError(t, h.sub.Subscribe([]string{"XAUUSD"}))

	h.sub.HandleReject(rejectFor("REQ-1", constants.MdReqRejReasonUnknownSymbol, "Unknown symbol"))

	assert.Equal(t, model.StateUnsubscribed, h.sub.State())

	rejects := h.events.ofKind(notifier.EventReject)
	require.Len(t, rejects, 1)
	assert.Equal(t, "Unknown symbol", rejects[0].Reject.Text.String)

	status := h.sub.Status()
	assert.False(t, status.Armed)
	assert.ErrorIs(t, status.LastError, model.ErrSubscriptionRejected)
	var rejErr *model.RejectError
	require.True(t, errors.As(status.LastError, &rejErr))
	assert.Equal(t, "REQ-1", rejErr.Reject.RequestID)

	h.sub.OnLogon()
	assert.Equal(t, 1, h.transport.count(), "a rejected subscription is not retried")
}

// TestSubscriber_IgnoresNonMatchingReject verifies a reject for an unknown
// MDReqID is dropped without a state change or consumer event.
func TestSubscriber_IgnoresNonMatchingReject(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})
	require.NoError(t, h.sub.Subscribe([]string{"EURUSD"}))

	h.sub.HandleReject(rejectFor("REQ-9", "", "nope"))
	h.sub.HandleReject(rejectFor("", "", "uncorrelated"))

	assert.Equal(t, model.StatePendingSubscribe, h.sub.State())
	assert.Empty(t, h.events.ofKind(notifier.EventReject))
}

// TestSubscriber_LogonSubscribesConfiguredSymbols verifies the startup path:
// configured symbols are subscribed on the first logon, and a repeated logon
// while pending sends nothing more.
func TestSubscriber_LogonSubscribesConfiguredSymbols(t *testing.T) {
	h := newHarness(t, SubscriberConfig{Symbols: []string{"GBPUSD"}, RequestID: "REQ-1"})
	assert.True(t, h.sub.Status().Armed)

	h.sub.OnLogon()
	require.Equal(t, 1, h.transport.count())
	assert.Equal(t, []string{"GBPUSD"}, symbolsOf(t, h.transport.request(t, 0)))
	assert.Equal(t, model.StatePendingSubscribe, h.sub.State())

	h.sub.OnLogon()
	assert.Equal(t, 1, h.transport.count())
}

func TestSubscriber_LogonWithoutSymbolsDoesNothing(t *testing.T) {
	h := newHarness(t, SubscriberConfig{})

	h.sub.OnLogon()

	assert.Equal(t, 0, h.transport.count())
	assert.True(t, h.sub.Status().LoggedOn)
}

// TestSubscriber_ResubscribesAfterReconnect verifies logout while Active sends
// no unsubscribe and the next logon resubscribes the remembered set.
func TestSubscriber_ResubscribesAfterReconnect(t *testing.T) {
	h := newHarness(t, SubscriberConfig{})
	h.sub.OnLogon()
	require.NoError(t, h.sub.Subscribe([]string{"XAUUSD"}))
	firstID := h.sub.Status().RequestID
	require.True(t, h.sub.HandleSnapshot(quote("XAUUSD", firstID)))

	h.sub.OnLogout()

	assert.Equal(t, model.StateUnsubscribed, h.sub.State())
	assert.Equal(t, 1, h.transport.count(), "no wire unsubscribe on logout")
	status := h.sub.Status()
	assert.True(t, status.Armed)
	assert.False(t, status.LoggedOn)

	h.sub.OnLogon()

	require.Equal(t, 2, h.transport.count())
	req := h.transport.request(t, 1)
	assert.Equal(t, constants.SubscriptionRequestTypeSubscribe, field(t, req, constants.TagSubscriptionRequestType))
	assert.Equal(t, []string{"XAUUSD"}, symbolsOf(t, req))
	assert.Equal(t, model.StatePendingSubscribe, h.sub.State())
	assert.NotEqual(t, firstID, h.sub.Status().RequestID)
}

// TestSubscriber_Unsubscribe verifies the unsubscribe request reuses the
// MDReqID, omits entry types and carries depth 0.
func TestSubscriber_Unsubscribe(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})
	require.NoError(t, h.sub.Subscribe([]string{"EURUSD", "GBPUSD"}))
	require.True(t, h.sub.HandleSnapshot(quote("EURUSD", "REQ-1")))

	require.NoError(t, h.sub.Unsubscribe())

	assert.Equal(t, model.StatePendingUnsubscribe, h.sub.State())
	req := h.transport.request(t, 1)
	assert.Equal(t, "REQ-1", field(t, req, constants.TagMdReqId))
	assert.Equal(t, constants.SubscriptionRequestTypeUnsubscribe, field(t, req, constants.TagSubscriptionRequestType))
	assert.Equal(t, "0", field(t, req, constants.TagMarketDepth))
	assert.False(t, req.Has(constants.TagNoMdEntryTypes))
	assert.Equal(t, []string{"EURUSD", "GBPUSD"}, symbolsOf(t, req))

	// Snapshots still in flight are delivered.
	assert.True(t, h.sub.HandleSnapshot(quote("GBPUSD", "REQ-1")))

	h.sub.HandleReject(rejectFor("REQ-1", "", ""))
	assert.Equal(t, model.StateUnsubscribed, h.sub.State())

	h.sub.OnLogout()
	h.sub.OnLogon()
	assert.Equal(t, 2, h.transport.count(), "completed unsubscribe is not resubscribed")
}

// TestSubscriber_UnsubscribeInvalidStates verifies unsubscribe is refused
// unless Active.
func TestSubscriber_UnsubscribeInvalidStates(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})

	assert.ErrorIs(t, h.sub.Unsubscribe(), model.ErrInvalidTransition)

	require.NoError(t, h.sub.Subscribe([]string{"EURUSD"}))
	assert.ErrorIs(t, h.sub.Unsubscribe(), model.ErrInvalidTransition)
	assert.Equal(t, model.StatePendingSubscribe, h.sub.State())

	require.True(t, h.sub.HandleSnapshot(quote("EURUSD", "REQ-1")))
	require.NoError(t, h.sub.Unsubscribe())
	assert.ErrorIs(t, h.sub.Unsubscribe(), model.ErrInvalidTransition)

	assert.Equal(t, 2, h.transport.count())
}

// TestSubscriber_UnsubscribeTimeout verifies an unacknowledged unsubscribe
// completes after the timeout and releases the configured request ID.
func TestSubscriber_UnsubscribeTimeout(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1", UnsubscribeTimeout: 20 * time.Millisecond})
	require.NoError(t, h.sub.Subscribe([]string{"EURUSD"}))
	require.True(t, h.sub.HandleSnapshot(quote("EURUSD", "REQ-1")))
	require.NoError(t, h.sub.Unsubscribe())

	require.Eventually(t, func() bool {
		return h.sub.State() == model.StateUnsubscribed
	}, time.Second, 5*time.Millisecond)
	assert.False(t, h.sub.Status().Armed)

	require.NoError(t, h.sub.Subscribe([]string{"EURUSD"}))
	assert.Equal(t, 3, h.transport.count())
	assert.Equal(t, "REQ-1", field(t, h.transport.request(t, 2), constants.TagMdReqId))
	assert.Equal(t, model.StatePendingSubscribe, h.sub.State())
}

// TestSubscriber_UnsubscribeTimeoutKeepsExplicitID verifies a caller-chosen
// ID stays reserved after a timed-out unsubscribe until a late reject
// retires it.
func TestSubscriber_UnsubscribeTimeoutKeepsExplicitID(t *testing.T) {
	h := newHarness(t, SubscriberConfig{UnsubscribeTimeout: 10 * time.Millisecond})
	require.NoError(t, h.sub.SubscribeWithID("CUSTOM-1", []string{"EURUSD"}))
	require.True(t, h.sub.HandleSnapshot(quote("EURUSD", "CUSTOM-1")))
	require.NoError(t, h.sub.Unsubscribe())
	require.Eventually(t, func() bool {
		return h.sub.State() == model.StateUnsubscribed
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, h.sub.SubscribeWithID("CUSTOM-1", []string{"EURUSD"}), model.ErrDuplicateRequestID)

	h.sub.HandleReject(rejectFor("CUSTOM-1", "", "late"))
	assert.Len(t, h.events.ofKind(notifier.EventReject), 1)
	assert.NoError(t, h.sub.SubscribeWithID("CUSTOM-1", []string{"EURUSD"}))
}

func TestSubscriber_LogoutClearsOutstandingIDs(t *testing.T) {
	h := newHarness(t, SubscriberConfig{UnsubscribeTimeout: 10 * time.Millisecond})
	require.NoError(t, h.sub.SubscribeWithID("CUSTOM-1", []string{"EURUSD"}))
	require.True(t, h.sub.HandleSnapshot(quote("EURUSD", "CUSTOM-1")))
	require.NoError(t, h.sub.Unsubscribe())
	require.Eventually(t, func() bool {
		return h.sub.State() == model.StateUnsubscribed
	}, time.Second, 5*time.Millisecond)
	require.ErrorIs(t, h.sub.SubscribeWithID("CUSTOM-1", []string{"EURUSD"}), model.ErrDuplicateRequestID)

	h.sub.OnLogout()

	assert.NoError(t, h.sub.SubscribeWithID("CUSTOM-1", []string{"EURUSD"}))
}

// TestSubscriber_LogoutDuringUnsubscribe verifies logout completes a pending
// unsubscribe without re-arming.
func TestSubscriber_LogoutDuringUnsubscribe(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})
	require.NoError(t, h.sub.Subscribe([]string{"EURUSD"}))
	require.True(t, h.sub.HandleSnapshot(quote("EURUSD", "REQ-1")))
	require.NoError(t, h.sub.Unsubscribe())

	h.sub.OnLogout()
	assert.Equal(t, model.StateUnsubscribed, h.sub.State())
	assert.False(t, h.sub.Status().Armed)

	h.sub.OnLogon()
	assert.Equal(t, 2, h.transport.count())
}

// TestSubscriber_SendFailureRollsBack verifies a failed send leaves the state
// Unsubscribed, surfaces ErrSessionNotFound and keeps the symbols armed for
// the next logon.
func TestSubscriber_SendFailureRollsBack(t *testing.T) {
	h := newHarness(t, SubscriberConfig{})
	h.transport.failWith(errors.New("no session"))

	err := h.sub.Subscribe([]string{"EURUSD"})

	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	assert.Equal(t, model.StateUnsubscribed, h.sub.State())
	status := h.sub.Status()
	assert.ErrorIs(t, status.LastError, model.ErrSessionNotFound)
	assert.True(t, status.Armed)
	assert.Equal(t, []string{"EURUSD"}, status.Symbols)
	assert.Empty(t, status.RequestID)
	assert.Empty(t, h.events.ofKind(notifier.EventStateChanged))

	h.transport.failWith(nil)
	h.sub.OnLogon()

	require.Equal(t, 1, h.transport.count())
	assert.Equal(t, model.StatePendingSubscribe, h.sub.State())
	assert.NoError(t, h.sub.Status().LastError)
}

func TestSubscriber_UnsubscribeSendFailureStaysActive(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})
	require.NoError(t, h.sub.Subscribe([]string{"EURUSD"}))
	require.True(t, h.sub.HandleSnapshot(quote("EURUSD", "REQ-1")))
	h.transport.failWith(model.ErrSessionNotFound)

	err := h.sub.Unsubscribe()

	assert.ErrorIs(t, err, model.ErrSessionNotFound)
	assert.Equal(t, model.StateActive, h.sub.State())
}

// TestSubscriber_DuplicateRequestID verifies an explicit ID cannot be reused
// while the request that used it is still outstanding.
func TestSubscriber_DuplicateRequestID(t *testing.T) {
	h := newHarness(t, SubscriberConfig{UnsubscribeTimeout: 10 * time.Millisecond})
	require.NoError(t, h.sub.SubscribeWithID("CUSTOM-1", []string{"EURUSD"}))
	require.True(t, h.sub.HandleSnapshot(quote("EURUSD", "CUSTOM-1")))
	require.NoError(t, h.sub.Unsubscribe())
	require.Eventually(t, func() bool {
		return h.sub.State() == model.StateUnsubscribed
	}, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, h.sub.SubscribeWithID("CUSTOM-1", []string{"EURUSD"}), model.ErrDuplicateRequestID)
	assert.NoError(t, h.sub.SubscribeWithID("CUSTOM-2", []string{"EURUSD"}))
	assert.ErrorIs(t, h.sub.SubscribeWithID("", []string{"EURUSD"}), model.ErrInvalidRequest)
}

// TestSubscriber_FirstDataScenario is the end-to-end startup path over raw
// wire messages: subscribe, snapshot, and a first-data wait from another
// goroutine.
func TestSubscriber_FirstDataScenario(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})

	waited := make(chan bool, 1)
	go func() { waited <- h.sub.WaitForFirstData(5 * time.Second) }()

	require.NoError(t, h.sub.Subscribe([]string{"EURUSD", "GBPUSD"}))
	require.Equal(t, 1, h.transport.count())

	err := h.sub.HandleInbound(wire("8=FIX.4.4|9=100|35=W|34=2|262=REQ-1|55=EURUSD|268=2|" +
		"269=0|270=1.0801|269=1|270=1.0803|10=000|"))
	require.NoError(t, err)

	select {
	case ok := <-waited:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("first-data wait did not return")
	}
	assert.Equal(t, model.StateActive, h.sub.State())

	snaps := h.events.ofKind(notifier.EventSnapshot)
	require.Len(t, snaps, 1)
	bid, ok := snaps[0].Snapshot.Best(model.EntryBid)
	require.True(t, ok)
	assert.Equal(t, "1.0801", bid.Price.Decimal.String())
	offer, ok := snaps[0].Snapshot.Best(model.EntryOffer)
	require.True(t, ok)
	assert.Equal(t, "1.0803", offer.Price.Decimal.String())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.True(t, h.sub.WaitForFirstDataContext(ctx))
}

func TestSubscriber_WaitForFirstDataTimesOut(t *testing.T) {
	h := newHarness(t, SubscriberConfig{})
	assert.False(t, h.sub.WaitForFirstData(10*time.Millisecond))
}

// TestSubscriber_MalformedInboundLeavesStateAlone verifies parse errors are
// reported without touching the subscription.
func TestSubscriber_MalformedInboundLeavesStateAlone(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})
	require.NoError(t, h.sub.Subscribe([]string{"EURUSD"}))

	err := h.sub.HandleInbound(wire("8=FIX.4.4|35=W|262=REQ-1|55=EURUSD|268=2|269=0|270=1.1|10=000|"))
	assert.ErrorIs(t, err, model.ErrMalformedGroup)

	err = h.sub.HandleInbound(wire("8=FIX.4.4|35=W|262=REQ-1|268=0|10=000|"))
	assert.ErrorIs(t, err, model.ErrMalformedMessage)

	assert.NoError(t, h.sub.HandleInbound(wire("8=FIX.4.4|35=X|262=REQ-1|10=000|")))

	assert.Equal(t, model.StatePendingSubscribe, h.sub.State())
	assert.False(t, h.sub.WaitForFirstData(0))
}

func TestSubscriber_InboundReject(t *testing.T) {
	h := newHarness(t, SubscriberConfig{RequestID: "REQ-1"})
	require.NoError(t, h.sub.Subscribe([]string{"XAUUSD"}))

	require.NoError(t, h.sub.HandleInbound(wire("8=FIX.4.4|35=Y|262=REQ-1|281=0|58=Unknown symbol|10=000|")))

	assert.Equal(t, model.StateUnsubscribed, h.sub.State())
	require.Len(t, h.events.ofKind(notifier.EventReject), 1)
}

// TestSubscriber_ListenerMayCallBack verifies events are published outside
// the lock so listeners can read status or act on the subscriber.
func TestSubscriber_ListenerMayCallBack(t *testing.T) {
	n := notifier.New(nil)
	defer n.Close()
	transport := &recordingTransport{}
	sub := NewSubscriber(SubscriberConfig{RequestID: "REQ-1"}, transport, n, nil, nil)
	defer sub.Close()

	var seen []model.SubscriptionState
	n.AddListener(func(ev notifier.Event) {
		seen = append(seen, sub.Status().State)
		if ev.Kind == notifier.EventSnapshot {
			_ = sub.Unsubscribe()
		}
	})

	require.NoError(t, sub.Subscribe([]string{"EURUSD"}))
	require.True(t, sub.HandleSnapshot(quote("EURUSD", "REQ-1")))

	assert.Equal(t, model.StatePendingUnsubscribe, sub.State())
	assert.NotEmpty(t, seen)
	assert.Equal(t, 2, transport.count())
}

// TestSubscriber_FirstDataOpenBeforeListeners verifies listeners handling the
// activating snapshot already see the first-data gate open.
func TestSubscriber_FirstDataOpenBeforeListeners(t *testing.T) {
	n := notifier.New(nil)
	defer n.Close()
	sub := NewSubscriber(SubscriberConfig{RequestID: "REQ-1"}, &recordingTransport{}, n, nil, nil)
	defer sub.Close()

	var firstData, waited bool
	n.AddListener(func(ev notifier.Event) {
		if ev.Kind == notifier.EventSnapshot {
			firstData = sub.Status().FirstData
			waited = sub.WaitForFirstData(0)
		}
	})

	require.NoError(t, sub.Subscribe([]string{"EURUSD"}))
	require.True(t, sub.HandleSnapshot(quote("EURUSD", "REQ-1")))

	assert.True(t, firstData)
	assert.True(t, waited)
}

// TestSubscriber_EventsKeepTransitionOrder verifies events from different
// goroutines reach consumers in the order the transitions were made, even
// when the goroutine that made the earlier transition is slow to deliver.
func TestSubscriber_EventsKeepTransitionOrder(t *testing.T) {
	n := notifier.New(nil)
	defer n.Close()

	blocked := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	n.AddListener(func(ev notifier.Event) {
		if ev.Kind == notifier.EventStateChanged && ev.From == model.StatePendingUnsubscribe {
			once.Do(func() {
				close(blocked)
				<-release
			})
		}
	})
	recorded := &eventLog{}
	n.AddListener(recorded.add)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stream := n.Stream(ctx)

	sub := NewSubscriber(SubscriberConfig{UnsubscribeTimeout: 20 * time.Millisecond}, &recordingTransport{}, n, nil, nil)
	defer sub.Close()

	require.NoError(t, sub.Subscribe([]string{"EURUSD"}))
	require.True(t, sub.HandleSnapshot(quote("EURUSD", "")))
	require.NoError(t, sub.Unsubscribe())

	select {
	case <-blocked:
	case <-time.After(time.Second):
		t.Fatal("unsubscribe timeout was not delivered")
	}
	// The timer goroutine is still delivering; the state itself has moved on.
	require.Equal(t, model.StateUnsubscribed, sub.State())
	require.NoError(t, sub.Subscribe([]string{"GBPUSD"}))
	close(release)

	want := []string{
		"Unsubscribed->PendingSubscribe",
		"PendingSubscribe->Active",
		"Active->PendingUnsubscribe",
		"PendingUnsubscribe->Unsubscribed",
		"Unsubscribed->PendingSubscribe",
	}
	transitions := func(events []notifier.Event) []string {
		var out []string
		for _, ev := range events {
			out = append(out, ev.From.String()+"->"+ev.To.String())
		}
		return out
	}

	require.Eventually(t, func() bool {
		return len(recorded.ofKind(notifier.EventStateChanged)) == len(want)
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, want, transitions(recorded.ofKind(notifier.EventStateChanged)))

	var streamed []notifier.Event
	for len(streamed) < len(want) {
		select {
		case ev := <-stream:
			if ev.Kind == notifier.EventStateChanged {
				streamed = append(streamed, ev)
			}
		case <-time.After(time.Second):
			t.Fatalf("stream delivered %d of %d transitions", len(streamed), len(want))
		}
	}
	assert.Equal(t, want, transitions(streamed))
}

// TestSubscriber_ConcurrentStatusReads exercises cross-goroutine reads while
// callbacks mutate state. Run with -race.
func TestSubscriber_ConcurrentStatusReads(t *testing.T) {
	h := newHarness(t, SubscriberConfig{Symbols: []string{"EURUSD"}, RequestID: "REQ-1"})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				st := h.sub.Status()
				if st.State != model.StateUnsubscribed {
					assert.Equal(t, "REQ-1", st.RequestID)
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		h.sub.OnLogon()
		h.sub.HandleSnapshot(quote("EURUSD", "REQ-1"))
		h.sub.OnLogout()
	}
	cancel()
	wg.Wait()

	assert.Equal(t, 50, h.transport.count())
	assert.Equal(t, model.StateUnsubscribed, h.sub.State())
}

func TestSubscriber_ClosedRefusesSubscribe(t *testing.T) {
	h := newHarness(t, SubscriberConfig{Symbols: []string{"EURUSD"}})
	h.sub.Close()

	assert.ErrorIs(t, h.sub.Subscribe([]string{"EURUSD"}), model.ErrInvalidTransition)
	h.sub.OnLogon()
	assert.Equal(t, 0, h.transport.count())
}
