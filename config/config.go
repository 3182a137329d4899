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

// Package config loads the subscriber's YAML configuration.
//
// Session-level FIX settings (comp IDs, host, port, heartbeat) stay in a
// standard quickfix settings file referenced by session.settings_path.
package config

import "time"

// Config is the top-level configuration file.
type Config struct {
	Session      SessionConfig      `yaml:"session"`
	Subscription SubscriptionConfig `yaml:"subscription"`
	Logging      LoggingConfig      `yaml:"logging"`
	Database     DatabaseConfig     `yaml:"database"`
	HTTP         HTTPConfig         `yaml:"http"`
}

// SessionConfig locates the quickfix settings and holds logon credentials.
type SessionConfig struct {
	SettingsPath string `yaml:"settings_path"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
}

// SubscriptionConfig drives the market data subscription.
type SubscriptionConfig struct {
	Symbols            []string      `yaml:"symbols"`
	RequestID          string        `yaml:"request_id"`
	RequestIDPrefix    string        `yaml:"request_id_prefix"`
	MarketDepth        uint          `yaml:"market_depth"`
	UnsubscribeTimeout time.Duration `yaml:"unsubscribe_timeout"`
	FirstDataTimeout   time.Duration `yaml:"first_data_timeout"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

// DatabaseConfig enables sqlite persistence when Path is set.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// HTTPConfig enables the health and metrics server when Addr is set.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}
