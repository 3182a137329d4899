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
	"fmt"
	"io"
	"sync"

	"fix-md-subscriber/constants"
	"fix-md-subscriber/model"
	"fix-md-subscriber/notifier"

	"github.com/shopspring/decimal"
)

// Console renders subscription events as text tables. It is registered as a
// notifier listener and may be shared with the REPL.
type Console struct {
	mu  sync.Mutex
	out io.Writer
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// OnEvent is a notifier.Listener.
func (c *Console) OnEvent(ev notifier.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch ev.Kind {
	case notifier.EventSnapshot:
		c.displaySnapshot(ev.Snapshot)
	case notifier.EventReject:
		c.displayReject(ev.Reject)
	case notifier.EventStateChanged:
		fmt.Fprintf(c.out, "Subscription %s: %s -> %s\n", displayReqID(ev.RequestID), ev.From, ev.To)
	}
}

func (c *Console) displayHelp() {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprint(c.out, `Commands:
  --- Market Data ---
  subscribe <symbol> [symbol...] - Subscribe to top-of-book Bid/Offer
  unsubscribe                    - Stop the active subscription
  status                         - Show subscription status
  latest [symbol]                - Show the last snapshot(s) received
  wait [seconds]                 - Block until the first snapshot arrives

  --- General ---
  help                           - Show this help message
  version, exit

Examples:
  subscribe EUR/USD              - Live L1 book for EUR/USD
  subscribe BTC-USD ETH-USD      - One request covering two symbols
  wait 10                        - Wait up to 10s for first data
`)
}

func (c *Console) displaySnapshot(snap *model.MarketDataSnapshot) {
	if snap == nil {
		return
	}
	fmt.Fprintf(c.out, "\nMarket Data Snapshot for %s (ReqId: %s, Entries: %d, Seq: %d)\n",
		snap.Symbol, displayReqID(snap.RequestID.String), len(snap.Entries), snap.SeqNum)
	if len(snap.Entries) == 0 {
		fmt.Fprintln(c.out, "  (empty book)")
		return
	}

	fmt.Fprintf(c.out, "┌─────┬───────────────┬────────────────┬───────────────┬──────────┐\n")
	fmt.Fprintf(c.out, "│ Pos │ Price         │ Size           │ Time          │ Type     │\n")
	fmt.Fprintf(c.out, "├─────┼───────────────┼────────────────┼───────────────┼──────────┤\n")
	for _, e := range snap.Entries {
		fmt.Fprintf(c.out, "│ %-3s │ %-13s │ %-14s │ %-13s │ %-8s │\n",
			orDash(e.Position), nullDecimalText(e.Price), nullDecimalText(e.Size), orDash(e.Time), entryTypeName(e))
	}
	fmt.Fprintf(c.out, "└─────┴───────────────┴────────────────┴───────────────┴──────────┘\n")
}

func (c *Console) displayReject(rej *model.SubscriptionReject) {
	if rej == nil {
		return
	}
	code := "-"
	if rej.ReasonCode.Valid {
		code = rej.ReasonCode.String
	}
	fmt.Fprintln(c.out, "Market Data Request REJECTED")
	fmt.Fprintf(c.out, "   MdReqId: %s\n", displayReqID(rej.RequestID))
	fmt.Fprintf(c.out, "   Reason: %s (%s)\n", code, rej.ReasonDescription())
	if rej.Text.Valid {
		fmt.Fprintf(c.out, "   Text: %s\n", rej.Text.String)
	}
	if hint := rejectHint(rej.ReasonCode.String); rej.ReasonCode.Valid && hint != "" {
		fmt.Fprintln(c.out, hint)
	}
}

func (c *Console) displayStatus(st model.Status, stats []SymbolStats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	connected := "Disconnected"
	if st.LoggedOn {
		connected = "Connected"
	}
	fmt.Fprintf(c.out, "Session: %s\n", connected)
	fmt.Fprintf(c.out, "State: %s  ReqId: %s  Armed: %t  First data: %t\n",
		st.State, displayReqID(st.RequestID), st.Armed, st.FirstData)
	if st.LastError != nil {
		fmt.Fprintf(c.out, "Last error: %v\n", st.LastError)
	}
	if len(st.Symbols) == 0 {
		fmt.Fprintln(c.out, "No symbols")
		return
	}

	updates := make(map[string]SymbolStats, len(stats))
	for _, s := range stats {
		updates[s.Symbol] = s
	}

	fmt.Fprint(c.out, `
┌─────────────┬─────────────┬──────────────┬──────────────────┐
│ Symbol      │ Updates     │ Last Update  │ ReqId            │
├─────────────┼─────────────┼──────────────┼──────────────────┤
`)
	for _, sym := range st.Symbols {
		s := updates[sym]
		lastUpdate := "Never"
		if !s.LastUpdate.IsZero() {
			lastUpdate = s.LastUpdate.Format("15:04:05")
		}
		fmt.Fprintf(c.out, "│ %-11s │ %-11d │ %-12s │ %-16s │\n",
			sym, s.Updates, lastUpdate, shortReqID(s.RequestID))
	}
	fmt.Fprintln(c.out, "└─────────────┴─────────────┴──────────────┴──────────────────┘")
}

func (c *Console) displayLatest(snaps []*model.MarketDataSnapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(snaps) == 0 {
		fmt.Fprintln(c.out, "No market data received yet")
		return
	}
	for _, snap := range snaps {
		c.displaySnapshot(snap)
	}
}

func (c *Console) println(a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, a...)
}

func (c *Console) printf(format string, a ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, a...)
}

func rejectHint(reasonCode string) string {
	switch reasonCode {
	case "0":
		return "Try a different symbol format (e.g., BTCUSD vs BTC-USD)"
	case "1":
		return "Use a fresh MdReqId or let the client generate one"
	case "3":
		return "Check if your account has market data permissions"
	case "5":
		return "Try MarketDepth=0 (full depth) or MarketDepth=1 (top of book)"
	case "8":
		return "Try different MdEntryType: 0=Bids, 1=Offers, 2=Trades"
	default:
		return ""
	}
}

func entryTypeName(e model.MarketDataEntry) string {
	if e.Type != model.EntryOther {
		return e.Type.String()
	}
	switch e.RawType {
	case constants.MdEntryTypeOpen:
		return "Open"
	case constants.MdEntryTypeClose:
		return "Close"
	case constants.MdEntryTypeHigh:
		return "High"
	case constants.MdEntryTypeLow:
		return "Low"
	case constants.MdEntryTypeVolume:
		return "Volume"
	default:
		return e.RawType
	}
}

func nullDecimalText(d decimal.NullDecimal) string {
	if !d.Valid {
		return "-"
	}
	return d.Decimal.String()
}

func displayReqID(id string) string {
	if id == "" {
		return "-"
	}
	return id
}

// shortReqID truncates long request IDs to fit a table column.
func shortReqID(id string) string {
	if len(id) > 16 {
		return "..." + id[len(id)-13:]
	}
	return displayReqID(id)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
