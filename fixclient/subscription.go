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
	"fmt"
	"slices"
	"sync"
	"time"

	"fix-md-subscriber/builder"
	"fix-md-subscriber/constants"
	"fix-md-subscriber/metrics"
	"fix-md-subscriber/model"
	"fix-md-subscriber/notifier"

	"github.com/google/uuid"
	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

// DefaultRequestIDPrefix is prepended to generated MDReqIDs.
const DefaultRequestIDPrefix = "md_"

// Transport sends an outbound message on the current session. Send must not
// block on the network; a missing session is reported as
// model.ErrSessionNotFound.
type Transport interface {
	Send(msg *quickfix.Message) error
}

// SubscriberConfig is fixed for the lifetime of a Subscriber.
type SubscriberConfig struct {
	Symbols            []string      // subscribed on the first logon when non-empty
	RequestID          string        // fixed MDReqID; a fresh one is generated per subscribe when empty
	RequestIDPrefix    string        // prefix for generated MDReqIDs
	MarketDepth        uint          // zero selects top of book
	UnsubscribeTimeout time.Duration // zero waits for a reject or logout
}

// Subscriber drives one logical market data subscription through
// Unsubscribed → PendingSubscribe → Active → PendingUnsubscribe → Unsubscribed.
//
// Concurrency Model:
//   - Session callbacks (OnLogon, OnLogout, HandleInbound) and caller methods
//     all take mu; none of them sleep or wait on the network
//   - Events are queued under mu and delivered after it is released, in the
//     order the transitions happened; listeners may call back into Status or
//     Subscribe
//   - Status returns a copy, never a reference into guarded state
type Subscriber struct {
	mu          sync.Mutex
	state       model.SubscriptionState
	requestID   string
	symbols     []string // last-known set, reused on resubscribe
	outstanding map[string]struct{}
	unsubTimer  *time.Timer
	lastErr     error
	armed       bool
	loggedOn    bool
	closed      bool
	outbox      []notifier.Event // delivered in order by the draining caller
	publishing  bool

	cfg       SubscriberConfig
	transport Transport
	notifier  *notifier.Notifier
	metrics   *metrics.Collector
	log       *zap.Logger
	newID     func() string
}

// NewSubscriber creates a Subscriber. n must not be nil; log and m may be.
func NewSubscriber(cfg SubscriberConfig, transport Transport, n *notifier.Notifier, log *zap.Logger, m *metrics.Collector) *Subscriber {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MarketDepth == 0 {
		cfg.MarketDepth = constants.MarketDepthTopOfBook
	}
	if cfg.RequestIDPrefix == "" {
		cfg.RequestIDPrefix = DefaultRequestIDPrefix
	}
	cfg.Symbols = model.NormalizeSymbols(cfg.Symbols)

	s := &Subscriber{
		state:       model.StateUnsubscribed,
		symbols:     slices.Clone(cfg.Symbols),
		outstanding: make(map[string]struct{}),
		armed:       len(cfg.Symbols) > 0,
		cfg:         cfg,
		transport:   transport,
		notifier:    n,
		metrics:     m,
		log:         log,
	}
	s.newID = func() string { return s.cfg.RequestIDPrefix + uuid.NewString() }
	m.SetState(model.StateUnsubscribed)
	return s
}

// Notifier returns the notifier events are published to.
func (s *Subscriber) Notifier() *notifier.Notifier {
	return s.notifier
}

// Subscribe requests snapshot+updates for symbols. It is only valid while
// Unsubscribed. The symbol set is remembered for resubscribe on the next
// logon even if the send fails.
func (s *Subscriber) Subscribe(symbols []string) error {
	return s.subscribe("", symbols)
}

// SubscribeWithID is Subscribe with a caller-chosen MDReqID.
func (s *Subscriber) SubscribeWithID(requestID string, symbols []string) error {
	if requestID == "" {
		return fmt.Errorf("%w: empty request id", model.ErrInvalidRequest)
	}
	return s.subscribe(requestID, symbols)
}

func (s *Subscriber) subscribe(requestID string, symbols []string) error {
	var events []notifier.Event

	s.mu.Lock()
	err := s.subscribeLocked(requestID, model.NormalizeSymbols(symbols), &events)
	s.unlockAndPublish(events)
	return err
}

// subscribeLocked sends a subscribe request. The transition to
// PendingSubscribe is rolled back if the transport cannot send.
func (s *Subscriber) subscribeLocked(requestID string, symbols []string, events *[]notifier.Event) error {
	if s.closed {
		return fmt.Errorf("%w: subscriber closed", model.ErrInvalidTransition)
	}
	if s.state != model.StateUnsubscribed {
		return fmt.Errorf("%w: state is %s (reqId=%s)", model.ErrAlreadySubscribed, s.state, s.requestID)
	}
	if len(symbols) == 0 {
		return model.ErrNoSymbols
	}

	if requestID == "" {
		requestID = s.cfg.RequestID
	}
	if requestID == "" {
		requestID = s.newID()
	}
	if _, dup := s.outstanding[requestID]; dup {
		return fmt.Errorf("%w: %s", model.ErrDuplicateRequestID, requestID)
	}

	req := model.SubscriptionRequest{
		RequestID: requestID,
		Mode:      model.ModeSnapshotPlusUpdates,
		Depth:     s.cfg.MarketDepth,
		Symbols:   symbols,
	}
	msg, err := builder.BuildMarketDataRequest(req)
	if err != nil {
		return err
	}

	// Remembered regardless of the send outcome.
	s.symbols = slices.Clone(symbols)
	s.armed = true

	prevID := s.requestID
	s.requestID = requestID
	s.state = model.StatePendingSubscribe
	s.outstanding[requestID] = struct{}{}

	if err := s.send(msg); err != nil {
		s.state = model.StateUnsubscribed
		s.requestID = prevID
		delete(s.outstanding, requestID)
		s.lastErr = err
		s.log.Warn("subscribe not sent",
			zap.String("req_id", requestID),
			zap.Strings("symbols", symbols),
			zap.Error(err))
		return err
	}

	s.lastErr = nil
	s.metrics.ObserveRequest(model.ModeSnapshotPlusUpdates)
	s.log.Info("subscribe sent",
		zap.String("req_id", requestID),
		zap.Strings("symbols", symbols),
		zap.Uint("depth", s.cfg.MarketDepth))
	s.recordTransitionLocked(model.StateUnsubscribed, model.StatePendingSubscribe, events)
	return nil
}

// Unsubscribe ends an Active subscription, reusing its MDReqID. It is only
// valid from Active; a pending subscribe must resolve first.
func (s *Subscriber) Unsubscribe() error {
	var events []notifier.Event

	s.mu.Lock()
	err := s.unsubscribeLocked(&events)
	s.unlockAndPublish(events)
	return err
}

func (s *Subscriber) unsubscribeLocked(events *[]notifier.Event) error {
	if s.state != model.StateActive {
		return fmt.Errorf("%w: cannot unsubscribe from %s", model.ErrInvalidTransition, s.state)
	}

	req := model.SubscriptionRequest{
		RequestID: s.requestID,
		Mode:      model.ModeUnsubscribe,
		Symbols:   s.symbols,
	}
	msg, err := builder.BuildMarketDataRequest(req)
	if err != nil {
		return err
	}

	s.state = model.StatePendingUnsubscribe
	if err := s.send(msg); err != nil {
		s.state = model.StateActive
		s.lastErr = err
		s.log.Warn("unsubscribe not sent", zap.String("req_id", s.requestID), zap.Error(err))
		return err
	}

	s.metrics.ObserveRequest(model.ModeUnsubscribe)
	s.log.Info("unsubscribe sent", zap.String("req_id", s.requestID), zap.Strings("symbols", s.symbols))
	s.recordTransitionLocked(model.StateActive, model.StatePendingUnsubscribe, events)

	if s.cfg.UnsubscribeTimeout > 0 {
		reqID := s.requestID
		s.unsubTimer = time.AfterFunc(s.cfg.UnsubscribeTimeout, func() {
			s.unsubscribeTimedOut(reqID)
		})
	}
	return nil
}

// unsubscribeTimedOut completes an unacknowledged unsubscribe. The configured
// fixed request ID is released for the next subscribe; any other ID stays
// outstanding until a late reject or logout retires it.
func (s *Subscriber) unsubscribeTimedOut(reqID string) {
	var events []notifier.Event

	s.mu.Lock()
	if s.state == model.StatePendingUnsubscribe && s.requestID == reqID {
		s.unsubTimer = nil
		s.armed = false
		if reqID == s.cfg.RequestID {
			delete(s.outstanding, reqID)
		}
		s.log.Info("unsubscribe completed by timeout",
			zap.String("req_id", reqID),
			zap.Duration("timeout", s.cfg.UnsubscribeTimeout))
		s.transitionLocked(model.StateUnsubscribed, &events)
	}
	s.unlockAndPublish(events)
}

// OnLogon resubscribes the remembered symbol set when Unsubscribed and armed.
// A logon while a subscription is pending or active sends nothing.
func (s *Subscriber) OnLogon() {
	var events []notifier.Event

	s.mu.Lock()
	s.loggedOn = true
	if s.closed || s.state != model.StateUnsubscribed || !s.armed || len(s.symbols) == 0 {
		s.log.Debug("logon: no resubscribe",
			zap.Stringer("state", s.state),
			zap.Bool("armed", s.armed))
		s.mu.Unlock()
		return
	}

	s.log.Info("logon: subscribing", zap.Strings("symbols", s.symbols))
	if err := s.subscribeLocked("", s.symbols, &events); err != nil {
		s.log.Error("logon subscribe failed", zap.Error(err))
	}
	s.unlockAndPublish(events)
}

// OnLogout moves any live subscription to Unsubscribed without sending an
// unsubscribe. A subscribe that was pending or active is re-armed for the
// next logon; one that was being unsubscribed is not.
func (s *Subscriber) OnLogout() {
	var events []notifier.Event

	s.mu.Lock()
	s.loggedOn = false
	s.stopTimerLocked()
	clear(s.outstanding)

	switch s.state {
	case model.StatePendingSubscribe, model.StateActive:
		s.armed = true
		s.transitionLocked(model.StateUnsubscribed, &events)
	case model.StatePendingUnsubscribe:
		s.armed = false
		s.transitionLocked(model.StateUnsubscribed, &events)
	}
	s.log.Info("logout", zap.Bool("resubscribe_armed", s.armed))
	s.unlockAndPublish(events)
}

// HandleInbound parses a raw application message and routes it to the
// snapshot or reject handler. Parse errors leave the subscription untouched
// and are returned for logging only.
// HOT PATH [2]: Called from FromApp for every application message.
func (s *Subscriber) HandleInbound(raw string) error {
	in, err := ParseInbound(raw)
	if err != nil {
		s.metrics.ObserveParseError()
		s.log.Warn("dropping malformed message", zap.String("msg_type", in.MsgType), zap.Error(err))
		return err
	}

	switch in.Kind {
	case InboundSnapshot:
		s.HandleSnapshot(in.Snapshot)
	case InboundReject:
		s.HandleReject(in.Reject)
	default:
		s.metrics.ObserveIgnored("unrecognized")
		s.log.Debug("ignoring application message", zap.String("msg_type", in.MsgType))
	}
	return nil
}

// HandleSnapshot accepts a snapshot for one of the subscribed symbols whose
// MDReqID is absent or matches. The first accepted snapshot moves
// PendingSubscribe to Active and opens the first-data gate. It reports
// whether the snapshot was delivered.
func (s *Subscriber) HandleSnapshot(snap *model.MarketDataSnapshot) bool {
	if snap == nil {
		return false
	}
	var events []notifier.Event

	s.mu.Lock()
	if !s.matchesSnapshotLocked(snap) {
		state, reqID := s.state, s.requestID
		s.mu.Unlock()

		s.metrics.ObserveIgnored("snapshot")
		s.log.Debug("ignoring snapshot",
			zap.String("symbol", snap.Symbol),
			zap.String("snapshot_req_id", snap.RequestID.String),
			zap.String("req_id", reqID),
			zap.Stringer("state", state))
		return false
	}
	if s.state == model.StatePendingSubscribe {
		s.transitionLocked(model.StateActive, &events)
	}
	events = append(events, notifier.SnapshotEvent(snap))
	if s.notifier.FirstData().Open() {
		s.metrics.SetFirstData()
		s.log.Info("first market data received",
			zap.String("symbol", snap.Symbol),
			zap.Int("entries", len(snap.Entries)))
	}
	s.metrics.ObserveSnapshot(snap)
	s.unlockAndPublish(events)
	return true
}

func (s *Subscriber) matchesSnapshotLocked(snap *model.MarketDataSnapshot) bool {
	if s.state == model.StateUnsubscribed {
		return false
	}
	if snap.RequestID.Valid && snap.RequestID.String != s.requestID {
		return false
	}
	return slices.Contains(s.symbols, snap.Symbol)
}

// HandleReject applies a MarketDataRequestReject. A reject for the current
// MDReqID terminates the subscription and is not retried. A reject for an
// earlier, still outstanding MDReqID retires that ID only. Anything else is
// logged and dropped.
func (s *Subscriber) HandleReject(rej *model.SubscriptionReject) {
	if rej == nil {
		return
	}
	var events []notifier.Event

	s.mu.Lock()
	switch {
	case rej.RequestID != "" && rej.RequestID == s.requestID && s.state != model.StateUnsubscribed:
		delete(s.outstanding, rej.RequestID)
		s.stopTimerLocked()
		s.armed = false
		s.lastErr = &model.RejectError{Reject: *rej}
		s.transitionLocked(model.StateUnsubscribed, &events)
		events = append(events, notifier.RejectEvent(rej))
		s.log.Warn("subscription rejected",
			zap.String("req_id", rej.RequestID),
			zap.String("reason", rej.ReasonDescription()),
			zap.String("text", rej.Text.String))

	case rej.RequestID != "" && s.isOutstandingLocked(rej.RequestID):
		delete(s.outstanding, rej.RequestID)
		events = append(events, notifier.RejectEvent(rej))
		s.log.Info("reject retired earlier request",
			zap.String("req_id", rej.RequestID),
			zap.String("reason", rej.ReasonDescription()))

	default:
		s.log.Warn("reject does not match any request",
			zap.String("reject_req_id", rej.RequestID),
			zap.String("req_id", s.requestID),
			zap.String("reason", rej.ReasonDescription()),
			zap.String("text", rej.Text.String))
	}
	if len(events) == 0 {
		s.metrics.ObserveIgnored("reject")
	} else {
		s.metrics.ObserveReject(rej)
	}
	s.unlockAndPublish(events)
}

func (s *Subscriber) isOutstandingLocked(reqID string) bool {
	_, ok := s.outstanding[reqID]
	return ok
}

// Status returns a consistent copy of the subscription state.
func (s *Subscriber) Status() model.Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return model.Status{
		LastError: s.lastErr,
		RequestID: s.requestID,
		Symbols:   slices.Clone(s.symbols),
		State:     s.state,
		Armed:     s.armed,
		LoggedOn:  s.loggedOn,
		FirstData: s.notifier.FirstData().IsOpen(),
	}
}

// State returns the current subscription state.
func (s *Subscriber) State() model.SubscriptionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// WaitForFirstData blocks until the first snapshot is accepted or timeout
// elapses. It may be called from any goroutine, before or after the data
// arrives.
func (s *Subscriber) WaitForFirstData(timeout time.Duration) bool {
	return s.notifier.FirstData().Wait(timeout)
}

// WaitForFirstDataContext is WaitForFirstData bounded by ctx.
func (s *Subscriber) WaitForFirstDataContext(ctx context.Context) bool {
	return s.notifier.FirstData().WaitContext(ctx)
}

// Close stops the unsubscribe timer and refuses further subscribes. It does
// not send anything and does not close the notifier.
func (s *Subscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopTimerLocked()
}

// send hands msg to the transport. Errors are normalized to
// model.ErrSessionNotFound.
func (s *Subscriber) send(msg *quickfix.Message) error {
	if s.transport == nil {
		s.metrics.ObserveSendFailure()
		return fmt.Errorf("%w: no transport", model.ErrSessionNotFound)
	}
	if err := s.transport.Send(msg); err != nil {
		s.metrics.ObserveSendFailure()
		if errors.Is(err, model.ErrSessionNotFound) {
			return err
		}
		return fmt.Errorf("%w: %v", model.ErrSessionNotFound, err)
	}
	return nil
}

func (s *Subscriber) transitionLocked(to model.SubscriptionState, events *[]notifier.Event) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.recordTransitionLocked(from, to, events)
}

func (s *Subscriber) recordTransitionLocked(from, to model.SubscriptionState, events *[]notifier.Event) {
	s.metrics.SetState(to)
	s.log.Info("subscription state changed",
		zap.Stringer("from", from),
		zap.Stringer("to", to),
		zap.String("req_id", s.requestID))
	*events = append(*events, notifier.StateEvent(s.requestID, from, to))
}

func (s *Subscriber) stopTimerLocked() {
	if s.unsubTimer != nil {
		s.unsubTimer.Stop()
		s.unsubTimer = nil
	}
}

// unlockAndPublish queues events and releases mu. The first caller to find
// no delivery in progress drains the queue, so events from concurrent callers
// reach the notifier in the order their transitions were made. Events queued
// by a listener are delivered after it returns.
func (s *Subscriber) unlockAndPublish(events []notifier.Event) {
	s.outbox = append(s.outbox, events...)
	if s.publishing || len(s.outbox) == 0 {
		s.mu.Unlock()
		return
	}

	s.publishing = true
	defer func() {
		s.publishing = false
		s.mu.Unlock()
	}()
	for len(s.outbox) > 0 {
		batch := s.outbox
		s.outbox = nil
		s.mu.Unlock()
		s.notifier.Publish(batch...)
		s.mu.Lock()
	}
}
