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

// Package utils holds build-time version information.
//
// Variables are set at build time via ldflags:
//
//	go build -ldflags "-X fix-md-subscriber/utils.Version=1.0.0 \
//	                   -X fix-md-subscriber/utils.Commit=$(git rev-parse --short HEAD) \
//	                   -X fix-md-subscriber/utils.BuildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
package utils

import "runtime"

// Build-time variables (set via ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// FullVersion returns a formatted version string.
func FullVersion() string {
	return "fixmd " + Version + " (" + Commit + ") built " + BuildTime + " with " + runtime.Version()
}
