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
	"time"

	"fix-md-subscriber/model"
	"fix-md-subscriber/notifier"

	"go.uber.org/zap"
)

// EventStore is the persistence the recorder writes to.
// *database.MarketDataDb satisfies it.
type EventStore interface {
	StoreSnapshot(snap *model.MarketDataSnapshot) error
	StoreReject(rej *model.SubscriptionReject, at time.Time) error
	StoreStateChange(reqID string, from, to model.SubscriptionState, at time.Time) error
}

// RecordEvents writes every event from events to store until the channel is
// closed or ctx is done. It runs on its own goroutine, fed by
// Notifier.Stream, so disk latency never reaches the session callbacks.
// Store errors are logged and the event is skipped.
func RecordEvents(ctx context.Context, events <-chan notifier.Event, store EventStore, log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			if err := recordEvent(store, ev, time.Now()); err != nil {
				log.Error("failed to persist event", zap.Stringer("kind", ev.Kind), zap.Error(err))
			}
		}
	}
}

func recordEvent(store EventStore, ev notifier.Event, now time.Time) error {
	switch ev.Kind {
	case notifier.EventSnapshot:
		return store.StoreSnapshot(ev.Snapshot)
	case notifier.EventReject:
		return store.StoreReject(ev.Reject, now)
	case notifier.EventStateChanged:
		return store.StoreStateChange(ev.RequestID, ev.From, ev.To, now)
	default:
		return nil
	}
}
