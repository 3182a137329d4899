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

// Package metrics exposes Prometheus counters and gauges for the market data
// subscriber. Every Collector owns its own registry so tests and multiple
// clients in one process do not collide on the default registerer.
package metrics

import (
	"net/http"

	"fix-md-subscriber/model"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fixmd"

// Collector records subscription activity. All methods are safe on a nil
// receiver so components can run without metrics.
type Collector struct {
	registry *prometheus.Registry

	requests     *prometheus.CounterVec
	sendFailures prometheus.Counter
	snapshots    *prometheus.CounterVec
	entries      prometheus.Counter
	rejects      *prometheus.CounterVec
	parseErrors  prometheus.Counter
	ignored      *prometheus.CounterVec
	state        prometheus.Gauge
	firstData    prometheus.Gauge
}

// New creates a Collector with all metrics registered.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_sent_total",
			Help:      "MarketDataRequest messages handed to the session, by mode.",
		}, []string{"mode"}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "MarketDataRequest sends that failed because no session was available.",
		}),
		snapshots: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshots_total",
			Help:      "Accepted MarketDataSnapshotFullRefresh messages, by symbol.",
		}, []string{"symbol"}),
		entries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snapshot_entries_total",
			Help:      "MD entries carried by accepted snapshots.",
		}),
		rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rejects_total",
			Help:      "MarketDataRequestReject messages, by reason.",
		}, []string{"reason"}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Inbound messages dropped because they could not be parsed.",
		}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ignored_messages_total",
			Help:      "Inbound messages that did not match the subscription, by kind.",
		}, []string{"kind"}),
		state: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "subscription_state",
			Help:      "Current subscription state (0=unsubscribed 1=pending_subscribe 2=active 3=pending_unsubscribe).",
		}),
		firstData: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "first_data_received",
			Help:      "1 once the first snapshot has been accepted.",
		}),
	}

	c.registry.MustRegister(
		c.requests,
		c.sendFailures,
		c.snapshots,
		c.entries,
		c.rejects,
		c.parseErrors,
		c.ignored,
		c.state,
		c.firstData,
	)
	return c
}

// Registry returns the registry backing this collector.
func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.registry
}

// Handler serves this collector's metrics in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

func (c *Collector) ObserveRequest(mode model.Mode) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(mode.WireValue()).Inc()
}

func (c *Collector) ObserveSendFailure() {
	if c == nil {
		return
	}
	c.sendFailures.Inc()
}

func (c *Collector) ObserveSnapshot(snap *model.MarketDataSnapshot) {
	if c == nil || snap == nil {
		return
	}
	c.snapshots.WithLabelValues(snap.Symbol).Inc()
	c.entries.Add(float64(len(snap.Entries)))
}

func (c *Collector) ObserveReject(rej *model.SubscriptionReject) {
	if c == nil || rej == nil {
		return
	}
	c.rejects.WithLabelValues(rej.ReasonDescription()).Inc()
}

func (c *Collector) ObserveParseError() {
	if c == nil {
		return
	}
	c.parseErrors.Inc()
}

// ObserveIgnored counts a message dropped for not matching the subscription.
func (c *Collector) ObserveIgnored(kind string) {
	if c == nil {
		return
	}
	c.ignored.WithLabelValues(kind).Inc()
}

func (c *Collector) SetState(s model.SubscriptionState) {
	if c == nil {
		return
	}
	c.state.Set(float64(s))
}

func (c *Collector) SetFirstData() {
	if c == nil {
		return
	}
	c.firstData.Set(1)
}
