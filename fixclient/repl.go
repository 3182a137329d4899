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
	"errors"
	"strconv"
	"strings"
	"time"

	"fix-md-subscriber/model"
	"fix-md-subscriber/utils"

	"github.com/chzyer/readline"
)

const defaultWaitTimeout = 5 * time.Second

func Repl(app *FixApp, console *Console) {
	completer := readline.NewPrefixCompleter(
		// Market data commands
		readline.PcItem("subscribe", readline.PcItem("BTC-USD"), readline.PcItem("ETH-USD"), readline.PcItem("EUR/USD")),
		readline.PcItem("unsubscribe"),
		readline.PcItem("latest"),
		readline.PcItem("wait"),

		// General commands
		readline.PcItem("status"),
		readline.PcItem("help"),
		readline.PcItem("version"),
		readline.PcItem("exit"),
	)

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "FIX-MD> ",
		HistoryFile:     "/tmp/fixmd_history",
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
		Stdout:          console.out,
	})
	if err != nil {
		app.log.Error("failed to create readline")
		return
	}
	defer rl.Close()

	for {
		if app.ShouldExit() {
			console.println("Exiting due to authentication failures. Please check your credentials.")
			return
		}

		line, err := rl.Readline()
		if err != nil {
			break
		}

		parts := strings.Fields(strings.TrimSpace(line))
		if len(parts) == 0 {
			continue
		}
		if !app.execute(console, parts) {
			return
		}
	}
}

// execute runs one REPL command and reports whether the loop should go on.
func (a *FixApp) execute(c *Console, parts []string) bool {
	switch strings.ToLower(parts[0]) {
	case "subscribe", "md":
		a.handleSubscribeCommand(c, parts)
	case "unsubscribe":
		a.handleUnsubscribeCommand(c)
	case "latest":
		a.handleLatestCommand(c, parts)
	case "wait":
		a.handleWaitCommand(c, parts)
	case "status":
		if a.ShouldExit() {
			c.println("Exiting due to authentication failures. Please check your credentials.")
			return false
		}
		c.displayStatus(a.Subscriber.Status(), a.Snapshots.AllStats())
	case "help":
		c.displayHelp()
	case "version":
		c.println(utils.FullVersion())
	case "exit", "quit":
		return false
	default:
		c.println("Unknown command. Type 'help' for available commands.")
	}
	return true
}

func (a *FixApp) handleSubscribeCommand(c *Console, parts []string) {
	if len(parts) < 2 {
		c.printf(`Usage: subscribe <symbol> [symbol...]
Examples:
  subscribe EUR/USD
  subscribe BTC-USD ETH-USD
`)
		return
	}

	symbols := make([]string, 0, len(parts)-1)
	for _, p := range parts[1:] {
		symbols = append(symbols, strings.ToUpper(p))
	}

	err := a.Subscriber.Subscribe(symbols)
	switch {
	case err == nil:
		c.printf("Subscribe sent for %s (ReqId: %s)\n", strings.Join(symbols, ", "), a.Subscriber.Status().RequestID)
	case errors.Is(err, model.ErrAlreadySubscribed):
		c.println("Already subscribed. Run 'unsubscribe' first.")
	case errors.Is(err, model.ErrSessionNotFound):
		c.printf("Not connected: %v\n", err)
	default:
		c.printf("Subscribe failed: %v\n", err)
	}
}

func (a *FixApp) handleUnsubscribeCommand(c *Console) {
	reqID := a.Subscriber.Status().RequestID
	if err := a.Subscriber.Unsubscribe(); err != nil {
		if errors.Is(err, model.ErrInvalidTransition) {
			c.printf("Nothing to unsubscribe (state: %s)\n", a.Subscriber.State())
			return
		}
		c.printf("Unsubscribe failed: %v\n", err)
		return
	}
	c.printf("Unsubscribe sent (ReqId: %s)\n", reqID)
}

func (a *FixApp) handleLatestCommand(c *Console, parts []string) {
	var symbols []string
	if len(parts) > 1 {
		symbols = []string{strings.ToUpper(parts[1])}
	} else {
		symbols = a.Snapshots.Symbols()
	}

	snaps := make([]*model.MarketDataSnapshot, 0, len(symbols))
	for _, sym := range symbols {
		if snap, ok := a.Snapshots.Latest(sym); ok {
			snaps = append(snaps, snap)
		}
	}
	c.displayLatest(snaps)
}

func (a *FixApp) handleWaitCommand(c *Console, parts []string) {
	timeout := defaultWaitTimeout
	if len(parts) > 1 {
		secs, err := strconv.ParseFloat(parts[1], 64)
		if err != nil || secs < 0 {
			c.println("Usage: wait [seconds]")
			return
		}
		timeout = time.Duration(secs * float64(time.Second))
	}

	if a.Subscriber.WaitForFirstData(timeout) {
		c.println("First market data received")
		return
	}
	c.printf("No market data within %s\n", timeout)
}
