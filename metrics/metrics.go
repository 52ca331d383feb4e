// Mgmt
// Copyright (C) 2013-2023+ James Shubin and the project contributors
// Written by James Shubin <james@shubin.ca> and the project contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package metrics exposes the engine's vertex/transition activity as
// Prometheus metrics, the same role the teacher's prometheus package
// plays for managed resources (gauges per kind, counters for
// failures/applies), retargeted at dataflow vertices and statuses.
package metrics

import (
	"context"
	"errors"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultListen is the default bind address for the /metrics endpoint.
const DefaultListen = "127.0.0.1:9234"

// Metrics holds the registered collectors. Run Init before use.
type Metrics struct {
	Listen string

	slices         *prometheus.GaugeVec   // current count by vertex+status kind
	transitions    *prometheus.CounterVec // transitions observed, by message type
	failuresTotal  *prometheus.CounterVec // Incomplete(ExecutionFailed) occurrences, by vertex
	executeSeconds *prometheus.HistogramVec

	server *http.Server
}

// Init registers every collector. Calling it twice without an intervening
// process restart will panic on duplicate registration, matching
// prometheus.MustRegister's own behaviour.
func (m *Metrics) Init() {
	if m.Listen == "" {
		m.Listen = DefaultListen
	}

	m.slices = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "dflow_slices",
		Help: "Number of vertex slices currently in each status kind.",
	}, []string{"vertex", "status"})
	prometheus.MustRegister(m.slices)

	m.transitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dflow_transitions_total",
		Help: "Number of state machine transitions processed, by message kind.",
	}, []string{"message"})
	prometheus.MustRegister(m.transitions)

	m.failuresTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dflow_failures_total",
		Help: "Number of ExecutionFailed transitions, by vertex.",
	}, []string{"vertex"})
	prometheus.MustRegister(m.failuresTotal)

	m.executeSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "dflow_execute_seconds",
		Help: "Wall-clock time of a single Execute/Reproduce action.",
	}, []string{"vertex", "action"})
	prometheus.MustRegister(m.executeSeconds)
}

// Start runs the /metrics HTTP server in a goroutine.
func (m *Metrics) Start() error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	m.server = &http.Server{Addr: m.Listen, Handler: mux}
	go func() {
		_ = m.server.ListenAndServe()
	}()
	return nil
}

// Stop shuts the metrics server down gracefully.
func (m *Metrics) Stop(ctx context.Context) error {
	if m.server == nil {
		return nil
	}
	if err := m.server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ObserveTransition records one processed message.
func (m *Metrics) ObserveTransition(messageKind string) {
	m.transitions.With(prometheus.Labels{"message": messageKind}).Inc()
}

// SetSliceCount sets the current gauge for one (vertex, status) pair.
func (m *Metrics) SetSliceCount(vertex, status string, count float64) {
	m.slices.With(prometheus.Labels{"vertex": vertex, "status": status}).Set(count)
}

// ObserveFailure increments the failure counter for vertex.
func (m *Metrics) ObserveFailure(vertex string) {
	m.failuresTotal.With(prometheus.Labels{"vertex": vertex}).Inc()
}

// ObserveExecuteSeconds records one Execute/Reproduce action's duration.
func (m *Metrics) ObserveExecuteSeconds(vertex, action string, seconds float64) {
	m.executeSeconds.With(prometheus.Labels{"vertex": vertex, "action": action}).Observe(seconds)
}
