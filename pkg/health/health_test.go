// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(ctx context.Context) error { return nil }
func failing(ctx context.Context) error { return errors.New("session not active") }

func TestHealthStatus(t *testing.T) {
	cases := []struct {
		name   string
		checks map[string]CheckFunc
		want   Status
	}{
		{"no checks", nil, StatusHealthy},
		{"all pass", map[string]CheckFunc{"gateway": pass, "rest": pass}, StatusHealthy},
		{"some fail", map[string]CheckFunc{"gateway": failing, "rest": pass}, StatusDegraded},
		{"all fail", map[string]CheckFunc{"gateway": failing}, StatusUnhealthy},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewChecker(time.Minute)
			for name, fn := range tc.checks {
				c.Register(name, fn)
			}

			status, checks := c.Health(context.Background())
			assert.Equal(t, tc.want, status)
			assert.Len(t, checks, len(tc.checks))
		})
	}
}

func TestHealthCachesResults(t *testing.T) {
	var calls atomic.Int32
	c := NewChecker(time.Hour)
	c.Register("gateway", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	c.Health(context.Background())
	c.Health(context.Background())
	assert.Equal(t, int32(1), calls.Load())

	// Re-registering invalidates the cached result.
	c.Register("gateway", func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})
	c.Health(context.Background())
	assert.Equal(t, int32(2), calls.Load())
}

func TestHandlers(t *testing.T) {
	c := NewChecker(time.Millisecond)
	c.Register("gateway", failing)
	c.Register("rest", pass)

	cases := []struct {
		name    string
		handler http.HandlerFunc
		code    int
	}{
		{"health tolerates degraded", c.HTTPHandler(), http.StatusOK},
		{"readiness rejects degraded", c.ReadinessHandler(), http.StatusServiceUnavailable},
		{"liveness", LivenessHandler(), http.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tc.code, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Contains(t, body, "status")
		})
	}
}
