// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package session implements the gateway handshake and the active-session
// loops.
//
// A Session consumes typed frames from an inbound queue and produces frames
// on an outbound queue. It expects Hello first, answers with Login, then runs
// a heartbeat loop and an event-dispatch loop until either finishes. The first
// loop to finish decides the outcome and fires a shared Token that stops the
// other.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	gwerrors "github.com/absmach/hivegate/pkg/errors"
	"github.com/absmach/hivegate/pkg/frame"
	"github.com/absmach/hivegate/pkg/handler"
	"github.com/absmach/hivegate/pkg/metrics"
	"github.com/google/uuid"
)

// ErrSessionReused is returned when Run is called more than once.
var ErrSessionReused = errors.New("session already started")

// Config configures a Session.
type Config struct {
	// Token is the credential sent in the Login frame.
	Token string

	// HandshakeTimeout bounds the wait for Hello. Zero waits forever.
	HandshakeTimeout time.Duration

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Session drives one gateway connection attempt. It is single-use.
type Session struct {
	id         string
	cfg        Config
	logger     *slog.Logger
	metrics    *metrics.Metrics
	dispatcher *handler.Dispatcher
	token      *Token
	handle     *handle

	state    atomic.Int32
	interval atomic.Int64
	started  atomic.Bool

	mu       sync.RWMutex
	outbound chan<- frame.Outbound
	closed   bool
}

// New creates a session that routes events through d.
func New(cfg Config, d *handler.Dispatcher) *Session {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if d == nil {
		d = handler.NewDispatcher(nil, handler.DispatcherConfig{Logger: cfg.Logger})
	}

	id := uuid.New().String()
	s := &Session{
		id:         id,
		cfg:        cfg,
		logger:     cfg.Logger.With(slog.String("session", id)),
		metrics:    cfg.Metrics,
		dispatcher: d,
		token:      NewToken(),
	}
	s.handle = &handle{s: s}
	if s.metrics != nil {
		s.metrics.SetState("", AwaitingHello.String())
	}

	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

// HeartbeatInterval returns the interval announced by Hello, or zero before
// the handshake.
func (s *Session) HeartbeatInterval() time.Duration {
	return time.Duration(s.interval.Load())
}

// Stop requests shutdown. It is idempotent and safe to call concurrently,
// before, during or after Run.
func (s *Session) Stop() {
	s.token.Cancel()
}

// Done returns a channel closed once shutdown has been requested.
func (s *Session) Done() <-chan struct{} {
	return s.token.Done()
}

// Run executes the session until it ends. It closes outbound on return.
// Graceful endings (inbound queue closed, Stop, ctx cancelled) return nil.
func (s *Session) Run(ctx context.Context, inbound <-chan frame.Frame, outbound chan<- frame.Outbound) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrSessionReused
	}

	s.mu.Lock()
	s.outbound = outbound
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, s.token.Cancel)
	defer stop()
	defer s.close()

	hello, err := s.awaitHello(inbound)
	if err != nil {
		s.logger.Warn("Handshake failed", slog.Any("error", err))
		return gwerrors.New("handshake", s.id, err)
	}
	if hello == nil {
		s.logger.Debug("Session ended before hello")
		return nil
	}

	interval := hello.Interval()
	s.interval.Store(int64(interval))
	s.setState(Authenticating)

	if err := s.send(s.token.Context(), frame.Login{Token: s.cfg.Token}); err != nil {
		return nil
	}

	s.setState(Active)
	s.logger.Info("Session active", slog.Duration("heartbeat_interval", interval))

	if err := s.race(inbound, interval); err != nil {
		s.logger.Warn("Session failed", slog.Any("error", err))
		return gwerrors.New("active", s.id, err)
	}

	return nil
}

func (s *Session) awaitHello(inbound <-chan frame.Frame) (*frame.Hello, error) {
	var timeout <-chan time.Time
	if s.cfg.HandshakeTimeout > 0 {
		t := time.NewTimer(s.cfg.HandshakeTimeout)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case f, ok := <-inbound:
		if !ok {
			return nil, nil
		}
		hello, isHello := f.(frame.Hello)
		if !isHello {
			return nil, gwerrors.Expectation("first frame must be hello, got %s", f.Opcode())
		}
		if hello.HeartbeatInterval == 0 {
			return nil, gwerrors.Expectation("hello announced a zero heartbeat interval")
		}
		return &hello, nil
	case <-timeout:
		return nil, gwerrors.ErrHandshakeTimeout
	case <-s.token.Done():
		return nil, nil
	}
}

// race runs both loops and returns the result of the first one to finish.
// The other loop is stopped through the token and awaited.
func (s *Session) race(inbound <-chan frame.Frame, interval time.Duration) error {
	results := make(chan error, 2)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		results <- s.heartbeat(interval)
		s.token.Cancel()
	}()
	go func() {
		defer wg.Done()
		results <- s.dispatch(inbound)
		s.token.Cancel()
	}()
	wg.Wait()

	return <-results
}

func (s *Session) heartbeat(interval time.Duration) error {
	t := time.NewTimer(interval)
	defer t.Stop()

	for {
		select {
		case <-s.token.Done():
			return nil
		case <-t.C:
		}

		if s.token.Canceled() {
			return nil
		}
		if err := s.send(s.token.Context(), frame.HeartBeat{}); err != nil {
			return nil
		}
		if s.metrics != nil {
			s.metrics.HeartbeatsSent.Inc()
		}
		t.Reset(interval)
	}
}

func (s *Session) dispatch(inbound <-chan frame.Frame) error {
	ctx := s.token.Context()

	for {
		select {
		case <-s.token.Done():
			return nil
		case f, ok := <-inbound:
			if !ok {
				s.logger.Debug("Inbound queue closed")
				return nil
			}
			ev, isEvent := f.(frame.Event)
			if !isEvent {
				return gwerrors.Expectation("unexpected %s frame in active session", f.Opcode())
			}
			if err := s.dispatcher.Dispatch(ctx, s.handle, ev); err != nil {
				return nil
			}
		}
	}
}

// send enqueues f, blocking while the outbound queue is full.
func (s *Session) send(ctx context.Context, f frame.Outbound) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed || s.outbound == nil || s.token.Canceled() {
		return gwerrors.ErrSessionClosed
	}

	select {
	case s.outbound <- f:
		return nil
	case <-s.token.Done():
		return gwerrors.ErrSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Session) close() {
	s.token.Cancel()
	s.dispatcher.Wait()

	s.mu.Lock()
	if !s.closed && s.outbound != nil {
		close(s.outbound)
	}
	s.closed = true
	s.mu.Unlock()

	s.setState(Closed)
	if s.metrics != nil {
		s.metrics.SetState(Closed.String(), "")
	}
}

func (s *Session) setState(to State) {
	from := State(s.state.Swap(int32(to)))
	if from == to {
		return
	}
	if s.metrics != nil {
		s.metrics.SetState(from.String(), to.String())
	}
	s.logger.Debug("Session state changed",
		slog.String("from", from.String()),
		slog.String("to", to.String()))
}

// handle is the capability handed to event callbacks.
type handle struct {
	s *Session
}

var _ handler.Session = (*handle)(nil)

func (h *handle) ID() string { return h.s.id }

func (h *handle) Send(ctx context.Context, f frame.Outbound) error {
	return h.s.send(ctx, f)
}

func (h *handle) Stop() { h.s.Stop() }
