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
	"sort"
	"sync"
	"time"

	"fix-md-subscriber/model"
	"fix-md-subscriber/notifier"
)

// SymbolStats tracks update activity for one symbol.
// Fields are ordered for memory alignment.
type SymbolStats struct {
	LastUpdate time.Time
	Updates    int64
	Symbol     string
	RequestID  string
	LastSeqNum int
}

// SnapshotStore keeps the latest snapshot per symbol for the REPL and health
// endpoint. No history is retained: each snapshot replaces the previous one.
//
// Concurrency Model:
// - Single writer (notifier listener on the session goroutine)
// - Multiple readers (REPL, HTTP handlers)
// - Snapshots are immutable, so readers share the stored pointer
type SnapshotStore struct {
	mu           sync.RWMutex
	latest       map[string]*model.MarketDataSnapshot
	stats        map[string]*SymbolStats
	totalUpdates int64
}

func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		latest: make(map[string]*model.MarketDataSnapshot),
		stats:  make(map[string]*SymbolStats),
	}
}

// OnEvent is a notifier.Listener that stores every delivered snapshot.
func (ss *SnapshotStore) OnEvent(ev notifier.Event) {
	if ev.Kind == notifier.EventSnapshot {
		ss.Put(ev.Snapshot)
	}
}

// Put replaces the latest snapshot for its symbol.
// HOT PATH [4]: Called once per accepted snapshot; O(1), no allocation
// after the first snapshot of a symbol.
func (ss *SnapshotStore) Put(snap *model.MarketDataSnapshot) {
	if snap == nil {
		return
	}

	ss.mu.Lock()
	defer ss.mu.Unlock()

	ss.latest[snap.Symbol] = snap
	st, ok := ss.stats[snap.Symbol]
	if !ok {
		st = &SymbolStats{Symbol: snap.Symbol}
		ss.stats[snap.Symbol] = st
	}
	st.Updates++
	st.LastUpdate = snap.ReceivedAt
	st.LastSeqNum = snap.SeqNum
	if snap.RequestID.Valid {
		st.RequestID = snap.RequestID.String
	}
	ss.totalUpdates++
}

// Latest returns the most recent snapshot for symbol.
func (ss *SnapshotStore) Latest(symbol string) (*model.MarketDataSnapshot, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	snap, ok := ss.latest[symbol]
	return snap, ok
}

// Symbols returns every symbol with a stored snapshot, sorted.
func (ss *SnapshotStore) Symbols() []string {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	out := make([]string, 0, len(ss.latest))
	for s := range ss.latest {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Stats returns a copy of the counters for symbol.
func (ss *SnapshotStore) Stats(symbol string) (SymbolStats, bool) {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	st, ok := ss.stats[symbol]
	if !ok {
		return SymbolStats{}, false
	}
	return *st, true
}

// AllStats returns copies of all counters, sorted by symbol.
func (ss *SnapshotStore) AllStats() []SymbolStats {
	ss.mu.RLock()
	defer ss.mu.RUnlock()

	out := make([]SymbolStats, 0, len(ss.stats))
	for _, st := range ss.stats {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// TotalUpdates returns the number of snapshots ever stored.
func (ss *SnapshotStore) TotalUpdates() int64 {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return ss.totalUpdates
}
