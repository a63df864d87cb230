// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/absmach/hivegate/pkg/frame"
	"github.com/absmach/hivegate/pkg/metrics"
)

// DefaultMaxInFlight bounds concurrently running callbacks.
const DefaultMaxInFlight = 64

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// MaxInFlight bounds concurrently running callbacks. When the bound is
	// reached Dispatch blocks, applying backpressure to the inbound queue.
	MaxInFlight int

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Dispatcher runs callbacks concurrently, one goroutine per event.
type Dispatcher struct {
	handler Handler
	logger  *slog.Logger
	metrics *metrics.Metrics
	sem     chan struct{}
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher for h.
func NewDispatcher(h Handler, cfg DispatcherConfig) *Dispatcher {
	if h == nil {
		h = &NoopHandler{}
	}
	if cfg.MaxInFlight <= 0 {
		cfg.MaxInFlight = DefaultMaxInFlight
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Dispatcher{
		handler: h,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
		sem:     make(chan struct{}, cfg.MaxInFlight),
	}
}

// Dispatch schedules the callback for ev and returns without waiting for it.
// It returns ctx.Err() if ctx ends while waiting for a free slot.
func (d *Dispatcher) Dispatch(ctx context.Context, s Session, ev frame.Event) error {
	select {
	case d.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	d.wg.Add(1)
	if d.metrics != nil {
		d.metrics.HandlersInFlight.Inc()
	}

	go func() {
		defer func() {
			if d.metrics != nil {
				d.metrics.HandlersInFlight.Dec()
			}
			<-d.sem
			d.wg.Done()
		}()

		if err := d.run(ctx, s, ev); err != nil {
			d.logger.Warn("Event handler failed",
				slog.String("session", s.ID()),
				slog.String("event", ev.Name()),
				slog.Any("error", err))
		}
	}()

	return nil
}

func (d *Dispatcher) run(ctx context.Context, s Session, ev frame.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
			if d.metrics != nil {
				d.metrics.HandlerErrors.WithLabelValues(ev.Name()).Inc()
			}
		}
	}()

	return Handle(ctx, d.handler, s, ev)
}

// Wait blocks until every scheduled callback has returned.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
