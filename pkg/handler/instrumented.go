// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"time"

	"github.com/absmach/hivegate/pkg/frame"
	"github.com/absmach/hivegate/pkg/metrics"
)

// InstrumentedHandler wraps a handler with metrics instrumentation.
type InstrumentedHandler struct {
	handler Handler
	metrics *metrics.Metrics
}

var _ Handler = (*InstrumentedHandler)(nil)

// NewInstrumented wraps h so every callback is counted and timed.
func NewInstrumented(h Handler, m *metrics.Metrics) *InstrumentedHandler {
	return &InstrumentedHandler{handler: h, metrics: m}
}

func (h *InstrumentedHandler) observe(event string, f func() error) error {
	start := time.Now()
	h.metrics.EventsDispatched.WithLabelValues(event).Inc()

	err := f()

	h.metrics.HandlerDuration.WithLabelValues(event).Observe(time.Since(start).Seconds())
	if err != nil {
		h.metrics.HandlerErrors.WithLabelValues(event).Inc()
	}

	return err
}

// OnInitState implements Handler with metrics.
func (h *InstrumentedHandler) OnInitState(ctx context.Context, s Session, ev frame.InitState) error {
	return h.observe(ev.EventName(), func() error { return h.handler.OnInitState(ctx, s, ev) })
}

// OnHouseJoin implements Handler with metrics.
func (h *InstrumentedHandler) OnHouseJoin(ctx context.Context, s Session, ev frame.HouseJoin) error {
	return h.observe(ev.EventName(), func() error { return h.handler.OnHouseJoin(ctx, s, ev) })
}

// OnTypingStart implements Handler with metrics.
func (h *InstrumentedHandler) OnTypingStart(ctx context.Context, s Session, ev frame.TypingStart) error {
	return h.observe(ev.EventName(), func() error { return h.handler.OnTypingStart(ctx, s, ev) })
}

// OnMessageCreate implements Handler with metrics.
func (h *InstrumentedHandler) OnMessageCreate(ctx context.Context, s Session, ev frame.MessageCreate) error {
	return h.observe(ev.EventName(), func() error { return h.handler.OnMessageCreate(ctx, s, ev) })
}
