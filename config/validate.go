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

package config

import (
	"errors"
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Session.SettingsPath == "" {
		return errors.New("session.settings_path is required")
	}
	if c.Session.Password != "" && c.Session.Username == "" {
		return errors.New("session.username is required when session.password is set")
	}

	for i, s := range c.Subscription.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("subscription.symbols[%d] is empty", i)
		}
	}
	if strings.ContainsAny(c.Subscription.RequestID, " \t\x01") {
		return fmt.Errorf("subscription.request_id %q must not contain whitespace or SOH", c.Subscription.RequestID)
	}
	if strings.ContainsAny(c.Subscription.RequestIDPrefix, " \t\x01") {
		return fmt.Errorf("subscription.request_id_prefix %q must not contain whitespace or SOH", c.Subscription.RequestIDPrefix)
	}
	if c.Subscription.MarketDepth < 1 {
		return errors.New("subscription.market_depth must be >= 1")
	}
	if c.Subscription.UnsubscribeTimeout < 0 {
		return errors.New("subscription.unsubscribe_timeout must be >= 0")
	}
	if c.Subscription.FirstDataTimeout < 0 {
		return errors.New("subscription.first_data_timeout must be >= 0")
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}

	return nil
}
