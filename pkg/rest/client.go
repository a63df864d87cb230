// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package rest is a small client for the chat REST API used alongside the
// gateway: sending, editing and deleting messages and triggering the typing
// indicator.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/absmach/hivegate/pkg/breaker"
	"github.com/absmach/hivegate/pkg/data"
	gwerrors "github.com/absmach/hivegate/pkg/errors"
	"github.com/absmach/hivegate/pkg/metrics"
	"github.com/absmach/hivegate/pkg/ratelimit"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.hiven.io/v1"

const maxErrorBody = 4 << 10

// Config configures a Client.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	HTTPClient *http.Client
	Breaker    breaker.Config
	RateLimit  RateLimit
	Logger     *slog.Logger
	Metrics    *metrics.Metrics
}

// RateLimit bounds calls per room. A zero PerSecond disables limiting.
type RateLimit struct {
	Burst     float64
	PerSecond float64
}

// Client issues authenticated REST calls. It is safe for concurrent use.
type Client struct {
	base    *url.URL
	token   string
	http    *http.Client
	breaker *breaker.CircuitBreaker
	limiter *ratelimit.Limiter
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a REST client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url scheme %q", base.Scheme)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Timeout > 0 {
		cfg.Breaker.Timeout = cfg.Timeout
	}
	cfg.Breaker.IsFailure = isFailure

	c := &Client{
		base:    base,
		token:   cfg.Token,
		http:    cfg.HTTPClient,
		breaker: breaker.New(cfg.Breaker),
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	if cfg.RateLimit.PerSecond > 0 {
		burst := cfg.RateLimit.Burst
		if burst < 1 {
			burst = 1
		}
		c.limiter = ratelimit.NewLimiter(burst, cfg.RateLimit.PerSecond, 0)
	}
	if c.metrics != nil {
		c.breaker.OnStateChange(func(from, to breaker.State) {
			c.metrics.CircuitBreakerState.WithLabelValues("rest").Set(float64(to))
			if to == breaker.StateOpen {
				c.metrics.CircuitBreakerTrips.WithLabelValues("rest").Inc()
			}
		})
	}

	return c, nil
}

type content struct {
	Content string `json:"content"`
}

// SendMessage posts a message to a room.
func (c *Client) SendMessage(ctx context.Context, roomID data.ID, text string) error {
	path := fmt.Sprintf("/rooms/%s/messages", roomID)
	return c.do(ctx, roomID, http.MethodPost, "messages", path, content{Content: text})
}

// EditMessage replaces the content of a message.
func (c *Client) EditMessage(ctx context.Context, roomID, messageID data.ID, text string) error {
	path := fmt.Sprintf("/rooms/%s/messages/%s", roomID, messageID)
	return c.do(ctx, roomID, http.MethodPatch, "message", path, content{Content: text})
}

// DeleteMessage removes a message.
func (c *Client) DeleteMessage(ctx context.Context, roomID, messageID data.ID) error {
	path := fmt.Sprintf("/rooms/%s/messages/%s", roomID, messageID)
	return c.do(ctx, roomID, http.MethodDelete, "message", path, nil)
}

// TriggerTyping shows the typing indicator in a room.
func (c *Client) TriggerTyping(ctx context.Context, roomID data.ID) error {
	path := fmt.Sprintf("/rooms/%s/typing", roomID)
	return c.do(ctx, roomID, http.MethodPost, "typing", path, nil)
}

// BreakerState reports the state of the client's circuit breaker.
func (c *Client) BreakerState() breaker.State {
	return c.breaker.State()
}

func (c *Client) do(ctx context.Context, roomID data.ID, method, route, path string, body any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, roomID.String()); err != nil {
			return err
		}
	}

	err := c.breaker.Call(ctx, func(ctx context.Context) error {
		if c.metrics == nil {
			_, err := c.roundTrip(ctx, method, path, body)
			return err
		}
		return c.metrics.ObserveREST(method, route, func() (int, error) {
			return c.roundTrip(ctx, method, path, body)
		})
	})
	if err != nil {
		c.logger.Warn("REST request failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Any("error", err))
	}

	return err
}

// roundTrip performs one request and returns the status code, or zero when
// no response was received.
func (c *Client) roundTrip(ctx context.Context, method, path string, body any) (int, error) {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, r)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &gwerrors.HTTPError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(msg)),
		}
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// isFailure counts transport errors and server errors against the breaker.
// Client errors and caller cancellation do not open the circuit.
func isFailure(err error) bool {
	var he *gwerrors.HTTPError
	if errors.As(err, &he) {
		return he.Temporary()
	}
	return !errors.Is(err, context.Canceled)
}
