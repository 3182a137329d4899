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

package logger

import (
	"fmt"
	"strings"

	"github.com/quickfixgo/quickfix"
	"go.uber.org/zap"
)

// QuickfixLogFactory routes quickfix session logs to zap. Wire messages are
// logged at debug with SOH shown as '|'; session events at info.
type QuickfixLogFactory struct {
	log *zap.Logger
}

// NewQuickfixLogFactory returns a quickfix.LogFactory backed by log.
func NewQuickfixLogFactory(log *zap.Logger) *QuickfixLogFactory {
	return &QuickfixLogFactory{log: log.Named("quickfix")}
}

func (f *QuickfixLogFactory) Create() (quickfix.Log, error) {
	return &quickfixLog{log: f.log}, nil
}

func (f *QuickfixLogFactory) CreateSessionLog(sessionID quickfix.SessionID) (quickfix.Log, error) {
	return &quickfixLog{log: f.log.With(zap.String("session", sessionID.String()))}, nil
}

type quickfixLog struct {
	log *zap.Logger
}

func (l *quickfixLog) OnIncoming(msg []byte) {
	l.log.Debug("incoming", zap.String("fix", readable(msg)))
}

func (l *quickfixLog) OnOutgoing(msg []byte) {
	l.log.Debug("outgoing", zap.String("fix", readable(msg)))
}

func (l *quickfixLog) OnEvent(msg string) {
	l.log.Info(msg)
}

func (l *quickfixLog) OnEventf(format string, args ...interface{}) {
	l.log.Info(fmt.Sprintf(format, args...))
}

// readable masks the Password (554) value and replaces SOH with '|'.
func readable(msg []byte) string {
	s := strings.ReplaceAll(string(msg), "\x01", "|")
	if i := strings.Index(s, "|554="); i >= 0 {
		start := i + len("|554=")
		end := strings.IndexByte(s[start:], '|')
		if end < 0 {
			end = len(s) - start
		}
		s = s[:start] + "****" + s[start+end:]
	}
	return s
}
