// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/absmach/hivegate/pkg/breaker"
	gwerrors "github.com/absmach/hivegate/pkg/errors"
	"github.com/absmach/hivegate/pkg/metrics"
	"github.com/absmach/hivegate/pkg/ratelimit"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type captured struct {
	method      string
	path        string
	auth        string
	contentType string
	body        string
}

type recorder struct {
	mu       sync.Mutex
	requests []captured
	status   int
}

func (r *recorder) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	body, _ := io.ReadAll(req.Body)
	r.mu.Lock()
	r.requests = append(r.requests, captured{
		method:      req.Method,
		path:        req.URL.Path,
		auth:        req.Header.Get("authorization"),
		contentType: req.Header.Get("content-type"),
		body:        string(body),
	})
	status := r.status
	r.mu.Unlock()

	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if status >= 400 {
		_, _ = w.Write([]byte("nope\n"))
	}
}

func (r *recorder) last(t *testing.T) captured {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	require.NotEmpty(t, r.requests)
	return r.requests[len(r.requests)-1]
}

func newClient(t *testing.T, rec *recorder, m *metrics.Metrics) *Client {
	t.Helper()
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL: srv.URL + "/v1/",
		Token:   "bot-token",
		Timeout: time.Second,
		Breaker: breaker.Config{MaxFailures: 2, ResetTimeout: time.Hour},
		Metrics: m,
	})
	require.NoError(t, err)
	return c
}

func TestRequests(t *testing.T) {
	rec := &recorder{}
	c := newClient(t, rec, nil)
	ctx := context.Background()

	cases := []struct {
		name        string
		call        func() error
		method      string
		path        string
		contentType string
		body        string
	}{
		{
			name:        "send message",
			call:        func() error { return c.SendMessage(ctx, 10, "Hello!") },
			method:      http.MethodPost,
			path:        "/v1/rooms/10/messages",
			contentType: "application/json",
			body:        `{"content":"Hello!"}`,
		},
		{
			name:        "edit message",
			call:        func() error { return c.EditMessage(ctx, 10, 77, "edited") },
			method:      http.MethodPatch,
			path:        "/v1/rooms/10/messages/77",
			contentType: "application/json",
			body:        `{"content":"edited"}`,
		},
		{
			name:   "delete message",
			call:   func() error { return c.DeleteMessage(ctx, 10, 77) },
			method: http.MethodDelete,
			path:   "/v1/rooms/10/messages/77",
		},
		{
			name:   "trigger typing",
			call:   func() error { return c.TriggerTyping(ctx, 18446744073709551615) },
			method: http.MethodPost,
			path:   "/v1/rooms/18446744073709551615/typing",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.NoError(t, tc.call())

			got := rec.last(t)
			assert.Equal(t, tc.method, got.method)
			assert.Equal(t, tc.path, got.path)
			assert.Equal(t, "bot-token", got.auth)
			assert.Equal(t, tc.contentType, got.contentType)
			if tc.body == "" {
				assert.Empty(t, got.body)
			} else {
				assert.JSONEq(t, tc.body, got.body)
			}
		})
	}
}

func TestHTTPError(t *testing.T) {
	rec := &recorder{status: http.StatusForbidden}
	m := metrics.New("test", nil)
	c := newClient(t, rec, m)

	err := c.SendMessage(context.Background(), 1, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, gwerrors.ErrHTTP)

	var he *gwerrors.HTTPError
	require.ErrorAs(t, err, &he)
	assert.Equal(t, http.StatusForbidden, he.StatusCode)
	assert.Equal(t, "/rooms/1/messages", he.Path)
	assert.Equal(t, "nope", he.Body)

	// Client errors never open the circuit.
	for i := 0; i < 3; i++ {
		_ = c.SendMessage(context.Background(), 1, "hi")
	}
	assert.Equal(t, breaker.StateClosed, c.BreakerState())
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RESTRequests.WithLabelValues("POST", "messages", "403")))
}

func TestServerErrorsOpenCircuit(t *testing.T) {
	rec := &recorder{status: http.StatusBadGateway}
	c := newClient(t, rec, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		assert.ErrorIs(t, c.TriggerTyping(ctx, 1), gwerrors.ErrHTTP)
	}
	assert.Equal(t, breaker.StateOpen, c.BreakerState())

	err := c.TriggerTyping(ctx, 1)
	assert.ErrorIs(t, err, breaker.ErrCircuitOpen)

	rec.mu.Lock()
	assert.Len(t, rec.requests, 2)
	rec.mu.Unlock()
}

func TestNewValidatesBaseURL(t *testing.T) {
	_, err := New(Config{BaseURL: "ftp://example.com"})
	assert.Error(t, err)

	c, err := New(Config{})
	require.NoError(t, err)
	assert.Equal(t, DefaultBaseURL, c.base.String())
}

func TestRateLimitPerRoom(t *testing.T) {
	rec := &recorder{}
	srv := httptest.NewServer(rec)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:   srv.URL,
		RateLimit: RateLimit{Burst: 1, PerSecond: 0.001},
	})
	require.NoError(t, err)

	require.NoError(t, c.TriggerTyping(context.Background(), 1))
	require.NoError(t, c.TriggerTyping(context.Background(), 2))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.TriggerTyping(ctx, 1), ratelimit.ErrRateLimitExceeded)

	rec.mu.Lock()
	assert.Len(t, rec.requests, 2)
	rec.mu.Unlock()
}
