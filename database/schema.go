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

package database

// Prices and sizes are stored as TEXT so decimals round-trip exactly.
const schema = `
CREATE TABLE IF NOT EXISTS md_snapshots (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	symbol      TEXT NOT NULL,
	md_req_id   TEXT,
	seq_num     INTEGER NOT NULL DEFAULT 0,
	entry_count INTEGER NOT NULL,
	received_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS md_entries (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	snapshot_id INTEGER NOT NULL REFERENCES md_snapshots(id),
	symbol      TEXT NOT NULL,
	entry_index INTEGER NOT NULL,
	entry_type  TEXT NOT NULL,
	price       TEXT,
	size        TEXT,
	entry_time  TEXT,
	position    TEXT
);

CREATE TABLE IF NOT EXISTS md_rejects (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	md_req_id   TEXT NOT NULL,
	reason_code TEXT,
	reason      TEXT NOT NULL,
	text        TEXT,
	received_at TIMESTAMP NOT NULL
);

CREATE TABLE IF NOT EXISTS md_state_changes (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	md_req_id   TEXT,
	from_state  TEXT NOT NULL,
	to_state    TEXT NOT NULL,
	changed_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_md_snapshots_symbol ON md_snapshots(symbol, id);
CREATE INDEX IF NOT EXISTS idx_md_entries_snapshot ON md_entries(snapshot_id);
CREATE INDEX IF NOT EXISTS idx_md_rejects_req ON md_rejects(md_req_id);
`

const (
	insertSnapshotQuery = `INSERT INTO md_snapshots (symbol, md_req_id, seq_num, entry_count, received_at)
		VALUES (?, ?, ?, ?, ?)`

	insertEntryQuery = `INSERT INTO md_entries (snapshot_id, symbol, entry_index, entry_type, price, size, entry_time, position)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

	insertRejectQuery = `INSERT INTO md_rejects (md_req_id, reason_code, reason, text, received_at)
		VALUES (?, ?, ?, ?, ?)`

	insertStateChangeQuery = `INSERT INTO md_state_changes (md_req_id, from_state, to_state, changed_at)
		VALUES (?, ?, ?, ?)`

	latestEntriesQuery = `SELECT e.entry_type, e.price, e.size, e.entry_time, e.position
		FROM md_entries e
		WHERE e.snapshot_id = (SELECT MAX(id) FROM md_snapshots WHERE symbol = ?)
		ORDER BY e.entry_index`

	countSnapshotsQuery = `SELECT COUNT(*) FROM md_snapshots WHERE symbol = ?`

	rejectsByReqIdQuery = `SELECT md_req_id, reason_code, text FROM md_rejects WHERE md_req_id = ? ORDER BY id`
)
