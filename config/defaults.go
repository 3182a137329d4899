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

import "time"

// Default values for optional configuration fields.
const (
	DefaultSettingsPath       = "configs/session.cfg"
	DefaultMarketDepth        = 1
	DefaultRequestIDPrefix    = "md_"
	DefaultUnsubscribeTimeout = 5 * time.Second
	DefaultFirstDataTimeout   = 5 * time.Second
	DefaultLogLevel           = "info"
)

func (c *Config) applyDefaults() {
	if c.Session.SettingsPath == "" {
		c.Session.SettingsPath = DefaultSettingsPath
	}

	if c.Subscription.MarketDepth == 0 {
		c.Subscription.MarketDepth = DefaultMarketDepth
	}
	if c.Subscription.RequestIDPrefix == "" {
		c.Subscription.RequestIDPrefix = DefaultRequestIDPrefix
	}
	if c.Subscription.UnsubscribeTimeout == 0 {
		c.Subscription.UnsubscribeTimeout = DefaultUnsubscribeTimeout
	}
	if c.Subscription.FirstDataTimeout == 0 {
		c.Subscription.FirstDataTimeout = DefaultFirstDataTimeout
	}

	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}
