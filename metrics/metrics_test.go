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

package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"fix-md-subscriber/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_NilIsSafe(t *testing.T) {
	var c *Collector

	assert.NotPanics(t, func() {
		c.ObserveRequest(model.ModeSnapshotPlusUpdates)
		c.ObserveSendFailure()
		c.ObserveSnapshot(&model.MarketDataSnapshot{Symbol: "EURUSD"})
		c.ObserveReject(&model.SubscriptionReject{})
		c.ObserveParseError()
		c.ObserveIgnored("snapshot")
		c.SetState(model.StateActive)
		c.SetFirstData()
	})
	assert.Nil(t, c.Registry())
}

func TestCollector_CountsByLabel(t *testing.T) {
	c := New()

	c.ObserveRequest(model.ModeSnapshotPlusUpdates)
	c.ObserveRequest(model.ModeSnapshotPlusUpdates)
	c.ObserveRequest(model.ModeUnsubscribe)
	c.ObserveSnapshot(&model.MarketDataSnapshot{
		Symbol:  "EURUSD",
		Entries: make([]model.MarketDataEntry, 2),
	})
	c.SetState(model.StateActive)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.requests.WithLabelValues("1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.requests.WithLabelValues("2")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.snapshots.WithLabelValues("EURUSD")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.entries))
	assert.Equal(t, float64(model.StateActive), testutil.ToFloat64(c.state))
}

func TestCollector_HandlerServesOwnRegistry(t *testing.T) {
	c := New()
	c.ObserveParseError()

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "fixmd_parse_errors_total 1"), body)
}
