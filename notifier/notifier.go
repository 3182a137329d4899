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

package notifier

import (
	"context"
	"sync"

	"fix-md-subscriber/model"

	"go.uber.org/zap"
)

// EventKind identifies the payload of an Event.
type EventKind int

const (
	EventSnapshot EventKind = iota
	EventReject
	EventStateChanged
)

func (k EventKind) String() string {
	switch k {
	case EventSnapshot:
		return "snapshot"
	case EventReject:
		return "reject"
	case EventStateChanged:
		return "state"
	default:
		return "unknown"
	}
}

// Event is a single notification. Exactly one payload is set, matching Kind.
type Event struct {
	Snapshot  *model.MarketDataSnapshot
	Reject    *model.SubscriptionReject
	RequestID string // state events only
	Kind      EventKind
	From      model.SubscriptionState
	To        model.SubscriptionState
}

// SnapshotEvent wraps a snapshot.
func SnapshotEvent(s *model.MarketDataSnapshot) Event {
	return Event{Kind: EventSnapshot, Snapshot: s}
}

// RejectEvent wraps a reject.
func RejectEvent(r *model.SubscriptionReject) Event {
	return Event{Kind: EventReject, Reject: r}
}

// StateEvent records a state transition of the request reqID.
func StateEvent(reqID string, from, to model.SubscriptionState) Event {
	return Event{Kind: EventStateChanged, RequestID: reqID, From: from, To: to}
}

// Listener receives events synchronously on the publishing goroutine and
// must return quickly.
type Listener func(Event)

// Notifier fans events out to listeners and streams, in publish order, and
// owns the first-data gate.
//
// Concurrency Model:
//   - Publish is called from the transport callback goroutine only
//   - Listeners run inline; streams are fed through an unbounded Queue so a
//     slow stream consumer never stalls Publish
type Notifier struct {
	mu        sync.RWMutex
	listeners []Listener
	streams   []*Queue[Event]

	firstData *Gate
	done      chan struct{}
	closeOnce sync.Once
	log       *zap.Logger
}

// New creates a Notifier. A nil logger disables logging.
func New(log *zap.Logger) *Notifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{
		firstData: NewGate(),
		done:      make(chan struct{}),
		log:       log,
	}
}

// FirstData returns the one-shot gate opened by the first accepted snapshot.
func (n *Notifier) FirstData() *Gate {
	return n.firstData
}

// AddListener registers a synchronous listener.
func (n *Notifier) AddListener(l Listener) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listeners = append(n.listeners, l)
}

// Stream returns a channel carrying every event published after the call.
// The channel is closed when ctx is done or the Notifier is closed; events
// already queued at Close are still delivered.
func (n *Notifier) Stream(ctx context.Context) <-chan Event {
	q := NewQueue[Event](64)
	out := make(chan Event)

	n.mu.Lock()
	n.streams = append(n.streams, q)
	n.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-n.done:
		}
		n.removeStream(q)
		q.Close()
	}()

	go func() {
		defer close(out)
		for {
			ev, ok := q.Pop()
			if !ok {
				return
			}
			select {
			case out <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}

// Publish delivers events in order to every listener, then to every stream.
func (n *Notifier) Publish(events ...Event) {
	if len(events) == 0 {
		return
	}

	n.mu.RLock()
	listeners := n.listeners
	streams := n.streams
	n.mu.RUnlock()

	for _, ev := range events {
		for _, l := range listeners {
			n.deliver(l, ev)
		}
		for _, q := range streams {
			q.Push(ev)
		}
	}
}

// Close ends all streams. Listeners stay registered.
func (n *Notifier) Close() {
	n.closeOnce.Do(func() {
		close(n.done)
	})
}

// deliver isolates the publisher from a panicking listener.
func (n *Notifier) deliver(l Listener, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			n.log.Error("listener panicked", zap.Stringer("event", ev.Kind), zap.Any("panic", r))
		}
	}()
	l(ev)
}

func (n *Notifier) removeStream(q *Queue[Event]) {
	n.mu.Lock()
	defer n.mu.Unlock()

	kept := n.streams[:0:0]
	for _, s := range n.streams {
		if s != q {
			kept = append(kept, s)
		}
	}
	n.streams = kept
}
