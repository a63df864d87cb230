// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	gwerrors "github.com/absmach/hivegate/pkg/errors"
	"github.com/absmach/hivegate/pkg/frame"
	"github.com/absmach/hivegate/pkg/handler"
	"github.com/absmach/hivegate/pkg/metrics"
	"github.com/absmach/hivegate/pkg/session"
	"github.com/absmach/hivegate/pkg/transport"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultURL is the development gateway endpoint.
	DefaultURL = "wss://swarm-dev.hiven.io/socket"
	// DefaultQueueSize is the capacity of both frame queues.
	DefaultQueueSize = 5
)

// Config holds configuration for a gateway client.
type Config struct {
	URL              string
	Token            string
	Mode             transport.Mode
	QueueSize        int
	HandshakeTimeout time.Duration
	DialTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxInFlight      int
	Dialer           *websocket.Dialer
	Header           http.Header
	Logger           *slog.Logger
	Metrics          *metrics.Metrics
}

// Gateway coordinates the transport pump and the session for one connection.
type Gateway struct {
	cfg     Config
	handler handler.Handler
	logger  *slog.Logger

	mu      sync.Mutex
	current *session.Session
	stopped bool
}

// New creates a gateway client that delivers events to h.
func New(cfg Config, h handler.Handler) *Gateway {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	dialer := *websocket.DefaultDialer
	if cfg.Dialer != nil {
		dialer = *cfg.Dialer
	}
	if cfg.DialTimeout > 0 {
		dialer.HandshakeTimeout = cfg.DialTimeout
	}
	cfg.Dialer = &dialer
	if h == nil {
		h = &handler.NoopHandler{}
	}
	if cfg.Metrics != nil {
		h = handler.NewInstrumented(h, cfg.Metrics)
	}

	return &Gateway{
		cfg:     cfg,
		handler: h,
		logger:  cfg.Logger,
	}
}

// Run dials the gateway and serves the connection until it ends.
func (g *Gateway) Run(ctx context.Context) error {
	if g.isStopped() {
		return nil
	}

	g.logger.Info("Connecting to gateway", slog.String("url", g.cfg.URL))
	conn, resp, err := g.cfg.Dialer.DialContext(ctx, g.cfg.URL, g.cfg.Header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return gwerrors.New("dial", "", err)
	}

	return g.Serve(ctx, conn)
}

// Serve runs a session over an already connected socket. It returns the
// first fatal error of the pump or the session, or nil on a graceful end.
func (g *Gateway) Serve(ctx context.Context, sock transport.Socket) error {
	sess := g.attach()
	if sess == nil {
		sock.Close()
		return nil
	}
	defer g.detach(sess)

	pump := transport.New(sock, transport.Config{
		Mode:         g.cfg.Mode,
		WriteTimeout: g.cfg.WriteTimeout,
		Logger:       g.logger.With(slog.String("session", sess.ID())),
		Metrics:      g.cfg.Metrics,
	})

	inbound := make(chan frame.Frame, g.cfg.QueueSize)
	outbound := make(chan frame.Outbound, g.cfg.QueueSize)

	serve := func() error {
		eg, ctx := errgroup.WithContext(ctx)
		pumpCtx, stopPump := context.WithCancel(ctx)
		defer stopPump()

		eg.Go(func() error {
			defer sess.Stop()
			return pump.Run(pumpCtx, inbound, outbound)
		})
		eg.Go(func() error {
			defer stopPump()
			return sess.Run(ctx, inbound, outbound)
		})

		return eg.Wait()
	}

	var err error
	if g.cfg.Metrics != nil {
		err = g.cfg.Metrics.ObserveSession(serve)
	} else {
		err = serve()
	}
	if err != nil {
		g.logger.Error("Gateway session ended with error",
			slog.String("session", sess.ID()),
			slog.Any("error", err))
		return err
	}

	g.logger.Info("Gateway session ended", slog.String("session", sess.ID()))
	return nil
}

// Stop ends the live session, if any, and makes later calls to Run and
// Serve return immediately. It is idempotent.
func (g *Gateway) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.stopped = true
	if g.current != nil {
		g.current.Stop()
	}
}

// State reports the state of the live session, or Closed when idle.
func (g *Gateway) State() session.State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == nil {
		return session.Closed
	}
	return g.current.State()
}

// attach creates the session for a new connection and makes it the live
// one. It returns nil once the gateway is stopped.
func (g *Gateway) attach() *session.Session {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.stopped {
		return nil
	}

	d := handler.NewDispatcher(g.handler, handler.DispatcherConfig{
		MaxInFlight: g.cfg.MaxInFlight,
		Logger:      g.logger,
		Metrics:     g.cfg.Metrics,
	})
	g.current = session.New(session.Config{
		Token:            g.cfg.Token,
		HandshakeTimeout: g.cfg.HandshakeTimeout,
		Logger:           g.logger,
		Metrics:          g.cfg.Metrics,
	}, d)

	return g.current
}

func (g *Gateway) detach(s *session.Session) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.current == s {
		g.current = nil
	}
}

func (g *Gateway) isStopped() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.stopped
}
