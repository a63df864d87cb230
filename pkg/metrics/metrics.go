// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package metrics provides Prometheus instrumentation for the gateway engine.
package metrics

import (
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Frame directions.
const (
	Inbound  = "inbound"
	Outbound = "outbound"
)

// Metrics holds all Prometheus metrics for the gateway.
type Metrics struct {
	// Session metrics
	ActiveSessions  prometheus.Gauge
	SessionsTotal   *prometheus.CounterVec
	SessionDuration prometheus.Histogram
	SessionState    *prometheus.GaugeVec

	// Frame metrics
	FramesTotal    *prometheus.CounterVec
	FramesDropped  *prometheus.CounterVec
	HeartbeatsSent prometheus.Counter

	// Dispatch metrics
	EventsDispatched *prometheus.CounterVec
	HandlerErrors    *prometheus.CounterVec
	HandlerDuration  *prometheus.HistogramVec
	HandlersInFlight prometheus.Gauge

	// REST metrics
	RESTRequests *prometheus.CounterVec
	RESTDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec

	// Resource metrics
	GoroutinesActive prometheus.Gauge
	MemoryAllocated  *prometheus.GaugeVec
}

// New creates a new Metrics instance registered with reg. A nil reg
// registers into a fresh private registry.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "hivegate"
	}
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		ActiveSessions: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_sessions",
				Help:      "Number of gateway sessions currently running",
			},
		),
		SessionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_total",
				Help:      "Total number of gateway sessions by outcome",
			},
			[]string{"outcome"},
		),
		SessionDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "session_duration_seconds",
				Help:      "Gateway session duration in seconds",
				Buckets:   []float64{.1, 1, 10, 60, 300, 900, 3600, 14400, 86400},
			},
		),
		SessionState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "session_state",
				Help:      "Number of sessions in each state",
			},
			[]string{"state"},
		),
		FramesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_total",
				Help:      "Total number of gateway frames",
			},
			[]string{"opcode", "direction"},
		),
		FramesDropped: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "frames_dropped_total",
				Help:      "Total number of inbound frames dropped",
			},
			[]string{"reason"},
		),
		HeartbeatsSent: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "heartbeats_sent_total",
				Help:      "Total number of heartbeats enqueued",
			},
		),
		EventsDispatched: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "events_dispatched_total",
				Help:      "Total number of events dispatched to handlers",
			},
			[]string{"event"},
		),
		HandlerErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "handler_errors_total",
				Help:      "Total number of handler errors and panics",
			},
			[]string{"event"},
		),
		HandlerDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "handler_duration_seconds",
				Help:      "Event handler duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"event"},
		),
		HandlersInFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "handlers_in_flight",
				Help:      "Number of event handlers currently running",
			},
		),
		RESTRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rest_requests_total",
				Help:      "Total number of REST requests",
			},
			[]string{"method", "route", "status"},
		),
		RESTDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rest_duration_seconds",
				Help:      "REST request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		CircuitBreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Circuit breaker state (0=closed, 1=half_open, 2=open)",
			},
			[]string{"backend"},
		),
		CircuitBreakerTrips: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"backend"},
		),
		GoroutinesActive: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "goroutines_active",
				Help:      "Number of goroutines in the process",
			},
		),
		MemoryAllocated: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "memory_allocated_bytes",
				Help:      "Memory allocated in bytes",
			},
			[]string{"type"},
		),
	}
}

// ObserveSession tracks a session lifecycle. The outcome label is derived
// from the error returned by f.
func (m *Metrics) ObserveSession(f func() error) error {
	m.ActiveSessions.Inc()
	defer m.ActiveSessions.Dec()

	start := time.Now()
	err := f()
	m.SessionDuration.Observe(time.Since(start).Seconds())

	outcome := "graceful"
	if err != nil {
		outcome = "error"
	}
	m.SessionsTotal.WithLabelValues(outcome).Inc()

	return err
}

// ObserveREST tracks a REST call. f returns the HTTP status code, or zero
// when no response was received.
func (m *Metrics) ObserveREST(method, route string, f func() (int, error)) error {
	start := time.Now()

	code, err := f()
	duration := time.Since(start).Seconds()

	status := "error"
	if code != 0 {
		status = strconv.Itoa(code)
	}
	m.RESTRequests.WithLabelValues(method, route, status).Inc()
	m.RESTDuration.WithLabelValues(method, route).Observe(duration)

	return err
}

// SetState moves one session from state from to state to. Empty labels are
// skipped, so a new session passes no from and a finished one no to.
func (m *Metrics) SetState(from, to string) {
	if from != "" {
		m.SessionState.WithLabelValues(from).Dec()
	}
	if to != "" {
		m.SessionState.WithLabelValues(to).Inc()
	}
}

// Frame counts a frame with the given opcode name and direction.
func (m *Metrics) Frame(opcode, direction string) {
	m.FramesTotal.WithLabelValues(opcode, direction).Inc()
}

// CollectRuntime samples goroutine and heap statistics.
func (m *Metrics) CollectRuntime() {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	m.GoroutinesActive.Set(float64(runtime.NumGoroutine()))
	m.MemoryAllocated.WithLabelValues("heap").Set(float64(ms.HeapAlloc))
	m.MemoryAllocated.WithLabelValues("sys").Set(float64(ms.Sys))
}
