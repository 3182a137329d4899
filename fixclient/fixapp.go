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

/*
HOT PATH - Market Data Message Processing Flow

┌─────────────────────────────────────────────────────────────────────────────┐
│                           NETWORK LAYER                                     │
│                    (quickfix library handles TCP/FIX protocol)              │
└─────────────────────────────────────────────────────────────────────────────┘
                                     │
                                     ▼
┌─────────────────────────────────────────────────────────────────────────────┐
│ [1] FixApp.FromApp()                                             ENTRY POINT│
│     • Called by quickfix for every application-level message                │
│     • Hands the raw wire string to Subscriber.HandleInbound                 │
└─────────────────────────────────────────────────────────────────────────────┘
                                     │
                                     ▼
┌─────────────────────────────────────────────────────────────────────────────┐
│ [2] Subscriber.HandleInbound() - subscription.go                COORDINATOR │
│     • ParseInbound → snapshot / reject / unrecognized                       │
│     • Snapshot: match symbol + MDReqID, PendingSubscribe → Active           │
│     • Reject: match MDReqID, → Unsubscribed                                 │
└─────────────────────────────────────────────────────────────────────────────┘
                                     │
                                     ▼
┌─────────────────────────────────────────────────────────────────────────────┐
│ [3] ParseInbound() - parser.go                                       PARSER │
│     • codec.Tokenize: one pass over the raw string                          │
│     • codec.MDEntriesGroup.Decode: count + delimiter checked                │
│     • Prices and sizes as exact decimals                                    │
└─────────────────────────────────────────────────────────────────────────────┘
                                     │
                                     ▼
┌─────────────────────────────────────────────────────────────────────────────┐
│ [4] Notifier.Publish() - notifier/notifier.go                      DELIVERY │
│     • Listeners inline: SnapshotStore.OnEvent, Console.OnEvent              │
│     • Streams via unbounded queue: RecordEvents → sqlite (off hot path)     │
│     • First-data gate opened once                                           │
└─────────────────────────────────────────────────────────────────────────────┘
*/

package fixclient

import (
	"fmt"
	"sync"
	"time"

	"fix-md-subscriber/builder"
	"fix-md-subscriber/constants"
	"fix-md-subscriber/model"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

// authFailureWindow is how soon after logon a logout is treated as an
// authentication failure.
const authFailureWindow = 5 * time.Second

// Config holds the Logon credentials injected in ToAdmin.
type Config struct {
	Username string
	Password string
}

func NewConfig(username, password string) *Config {
	return &Config{Username: username, Password: password}
}

// SessionTransport sends messages on the currently logged-on session.
// It is bound in OnLogon and unbound in OnLogout, so nothing is queued by
// quickfix while the session is down.
type SessionTransport struct {
	mu        sync.RWMutex
	sessionID quickfix.SessionID
	bound     bool

	sendToTarget func(m quickfix.Messagable, sessionID quickfix.SessionID) error
}

func NewSessionTransport() *SessionTransport {
	return &SessionTransport{sendToTarget: quickfix.SendToTarget}
}

// Bind makes sid the target of subsequent sends.
func (t *SessionTransport) Bind(sid quickfix.SessionID) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionID = sid
	t.bound = true
}

// Unbind makes subsequent sends fail with model.ErrSessionNotFound.
func (t *SessionTransport) Unbind() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.bound = false
}

// SessionID returns the bound session, if any.
func (t *SessionTransport) SessionID() (quickfix.SessionID, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID, t.bound
}

func (t *SessionTransport) Send(msg *quickfix.Message) error {
	sid, ok := t.SessionID()
	if !ok {
		return model.ErrSessionNotFound
	}
	if err := t.sendToTarget(msg, sid); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrSessionNotFound, sid, err)
	}
	return nil
}

// FixApp implements quickfix.Application and forwards session events to the
// Subscriber.
type FixApp struct {
	Config     *Config
	Subscriber *Subscriber
	Snapshots  *SnapshotStore
	Transport  *SessionTransport

	log *zap.Logger

	mu            sync.Mutex
	shouldExit    bool
	lastLogonTime time.Time
}

func NewFixApp(config *Config, sub *Subscriber, snapshots *SnapshotStore, transport *SessionTransport, log *zap.Logger) *FixApp {
	if config == nil {
		config = &Config{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FixApp{
		Config:     config,
		Subscriber: sub,
		Snapshots:  snapshots,
		Transport:  transport,
		log:        log,
	}
}

func (a *FixApp) OnCreate(sid quickfix.SessionID) {
	a.log.Info("session created", zap.String("session", sid.String()))
}

func (a *FixApp) OnLogon(sid quickfix.SessionID) {
	a.mu.Lock()
	a.lastLogonTime = time.Now()
	a.mu.Unlock()

	a.log.Info("logon", zap.String("session", sid.String()))
	a.Transport.Bind(sid)
	a.Subscriber.OnLogon()
}

func (a *FixApp) OnLogout(sid quickfix.SessionID) {
	a.log.Info("logout", zap.String("session", sid.String()))
	a.Transport.Unbind()
	a.Subscriber.OnLogout()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.lastLogonTime.IsZero() || time.Since(a.lastLogonTime) < authFailureWindow {
		a.log.Error("logout right after logon, treating as authentication failure")
		a.shouldExit = true
	}
}

func (a *FixApp) ToAdmin(msg *quickfix.Message, _ quickfix.SessionID) {
	if t, _ := msg.Header.GetString(constants.TagMsgType); t == constants.MsgTypeLogon {
		builder.ApplyLogonCredentials(&msg.Body, a.Config.Username, a.Config.Password)
	}
}

func (a *FixApp) FromAdmin(msg *quickfix.Message, _ quickfix.SessionID) quickfix.MessageRejectError {
	if t, _ := msg.Header.GetString(constants.TagMsgType); t == constants.MsgTypeReject {
		text, _ := msg.Body.GetString(constants.TagText)
		a.log.Warn("session reject received", zap.String("text", text))
	}
	return nil
}

func (a *FixApp) ToApp(_ *quickfix.Message, _ quickfix.SessionID) error {
	return nil
}

// FromApp is the entry point for all application-level FIX messages.
// HOT PATH [1]: Called by quickfix for every incoming message. Parse errors
// are logged by the Subscriber and never rejected at the session level.
func (a *FixApp) FromApp(msg *quickfix.Message, _ quickfix.SessionID) quickfix.MessageRejectError {
	_ = a.Subscriber.HandleInbound(msg.String())
	return nil
}

// ShouldExit reports whether the session was logged out right after logon,
// which is how the counterparty signals bad credentials.
func (a *FixApp) ShouldExit() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.shouldExit
}
