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

// Package database persists market data snapshots, rejects and subscription
// state changes to SQLite.
package database

import (
	"database/sql"
	"fmt"
	"time"

	"fix-md-subscriber/model"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// MarketDataDb provides SQLite storage for market data with prepared statements.
// Prepared statements are initialized once and reused for all batch operations,
// avoiding SQL parsing overhead on each insert.
type MarketDataDb struct {
	db  *sql.DB
	log *zap.Logger

	stmtSnapshot    *sql.Stmt
	stmtEntry       *sql.Stmt
	stmtReject      *sql.Stmt
	stmtStateChange *sql.Stmt
}

// NewMarketDataDb opens (or creates) the database at dbPath and prepares all
// insert statements.
func NewMarketDataDb(dbPath string, log *zap.Logger) (*MarketDataDb, error) {
	if log == nil {
		log = zap.NewNop()
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=1000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	mdb := &MarketDataDb{db: db, log: log}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := mdb.prepare(); err != nil {
		_ = mdb.Close()
		return nil, err
	}

	log.Info("sqlite database initialized", zap.String("path", dbPath))
	return mdb, nil
}

func (mdb *MarketDataDb) prepare() error {
	stmts := []struct {
		dst   **sql.Stmt
		query string
		name  string
	}{
		{&mdb.stmtSnapshot, insertSnapshotQuery, "snapshot"},
		{&mdb.stmtEntry, insertEntryQuery, "entry"},
		{&mdb.stmtReject, insertRejectQuery, "reject"},
		{&mdb.stmtStateChange, insertStateChangeQuery, "state change"},
	}
	for _, s := range stmts {
		stmt, err := mdb.db.Prepare(s.query)
		if err != nil {
			return fmt.Errorf("failed to prepare %s statement: %w", s.name, err)
		}
		*s.dst = stmt
	}
	return nil
}

// Close releases prepared statements and the database handle.
func (mdb *MarketDataDb) Close() error {
	for _, stmt := range []*sql.Stmt{mdb.stmtSnapshot, mdb.stmtEntry, mdb.stmtReject, mdb.stmtStateChange} {
		if stmt != nil {
			_ = stmt.Close()
		}
	}
	return mdb.db.Close()
}

// StoreSnapshot writes a snapshot and all of its entries in one transaction.
// Using tx.Stmt() binds the prepared statements to the transaction context.
func (mdb *MarketDataDb) StoreSnapshot(snap *model.MarketDataSnapshot) (err error) {
	tx, err := mdb.db.Begin()
	if err != nil {
		return fmt.Errorf("begin snapshot transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.Stmt(mdb.stmtSnapshot).Exec(
		snap.Symbol, snap.RequestID, snap.SeqNum, len(snap.Entries), snap.ReceivedAt.UTC())
	if err != nil {
		return fmt.Errorf("insert snapshot %s: %w", snap.Symbol, err)
	}
	snapshotID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("snapshot id: %w", err)
	}

	entryStmt := tx.Stmt(mdb.stmtEntry)
	for i, e := range snap.Entries {
		if _, err = entryStmt.Exec(snapshotID, snap.Symbol, i, e.RawType,
			e.Price, e.Size, nullString(e.Time), nullString(e.Position)); err != nil {
			return fmt.Errorf("insert entry %d of %s: %w", i, snap.Symbol, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit snapshot %s: %w", snap.Symbol, err)
	}
	return nil
}

// StoreReject records a MarketDataRequestReject.
func (mdb *MarketDataDb) StoreReject(rej *model.SubscriptionReject, at time.Time) error {
	_, err := mdb.stmtReject.Exec(rej.RequestID, rej.ReasonCode, rej.ReasonDescription(), rej.Text, at.UTC())
	if err != nil {
		return fmt.Errorf("insert reject %s: %w", rej.RequestID, err)
	}
	return nil
}

// StoreStateChange records a subscription state transition.
func (mdb *MarketDataDb) StoreStateChange(reqID string, from, to model.SubscriptionState, at time.Time) error {
	_, err := mdb.stmtStateChange.Exec(nullString(reqID), from.String(), to.String(), at.UTC())
	if err != nil {
		return fmt.Errorf("insert state change %s->%s: %w", from, to, err)
	}
	return nil
}

// LatestEntries returns the entries of the most recent stored snapshot for
// symbol, in wire order.
func (mdb *MarketDataDb) LatestEntries(symbol string) ([]model.MarketDataEntry, error) {
	rows, err := mdb.db.Query(latestEntriesQuery, symbol)
	if err != nil {
		return nil, fmt.Errorf("query latest entries %s: %w", symbol, err)
	}
	defer rows.Close()

	var entries []model.MarketDataEntry
	for rows.Next() {
		var (
			rawType        string
			price, size    decimal.NullDecimal
			entryTime, pos sql.NullString
		)
		if err := rows.Scan(&rawType, &price, &size, &entryTime, &pos); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entries = append(entries, model.MarketDataEntry{
			Type:     model.ParseEntryType(rawType),
			RawType:  rawType,
			Price:    price,
			Size:     size,
			Time:     entryTime.String,
			Position: pos.String,
		})
	}
	return entries, rows.Err()
}

// CountSnapshots returns how many snapshots were stored for symbol.
func (mdb *MarketDataDb) CountSnapshots(symbol string) (int, error) {
	var n int
	if err := mdb.db.QueryRow(countSnapshotsQuery, symbol).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots %s: %w", symbol, err)
	}
	return n, nil
}

// RejectsFor returns the stored rejects for an MDReqID, oldest first.
func (mdb *MarketDataDb) RejectsFor(reqID string) ([]model.SubscriptionReject, error) {
	rows, err := mdb.db.Query(rejectsByReqIdQuery, reqID)
	if err != nil {
		return nil, fmt.Errorf("query rejects %s: %w", reqID, err)
	}
	defer rows.Close()

	var out []model.SubscriptionReject
	for rows.Next() {
		var r model.SubscriptionReject
		if err := rows.Scan(&r.RequestID, &r.ReasonCode, &r.Text); err != nil {
			return nil, fmt.Errorf("scan reject: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
