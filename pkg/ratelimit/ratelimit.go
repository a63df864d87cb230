// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit provides token bucket rate limiting for outgoing REST
// calls.
package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRateLimitExceeded is returned when a wait would exceed the caller's
// deadline.
var ErrRateLimitExceeded = errors.New("rate limit exceeded")

// TokenBucket implements the token bucket algorithm.
type TokenBucket struct {
	mu         sync.Mutex
	capacity   float64
	tokens     float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	lastUsed   time.Time
}

// NewTokenBucket creates a full bucket holding capacity tokens and refilling
// refillRate tokens per second.
func NewTokenBucket(capacity, refillRate float64) *TokenBucket {
	now := time.Now()
	return &TokenBucket{
		capacity:   capacity,
		tokens:     capacity,
		refillRate: refillRate,
		lastRefill: now,
		lastUsed:   now,
	}
}

// Allow takes one token if available.
func (tb *TokenBucket) Allow() bool {
	return tb.reserve(time.Now()) == 0
}

// Wait blocks until a token is available or ctx is done.
func (tb *TokenBucket) Wait(ctx context.Context) error {
	delay := tb.reserve(time.Now())
	if delay == 0 {
		return nil
	}
	if deadline, ok := ctx.Deadline(); ok && time.Until(deadline) < delay {
		tb.cancel()
		return ErrRateLimitExceeded
	}

	t := time.NewTimer(delay)
	defer t.Stop()

	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		tb.cancel()
		return ctx.Err()
	}
}

// Available returns the number of whole tokens currently available.
func (tb *TokenBucket) Available() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(time.Now())
	if tb.tokens < 0 {
		return 0
	}
	return int(tb.tokens)
}

// reserve takes a token, possibly going into debt, and returns how long the
// caller has to wait before using it.
func (tb *TokenBucket) reserve(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill(now)
	tb.lastUsed = now
	tb.tokens--
	if tb.tokens >= 0 {
		return 0
	}
	if tb.refillRate <= 0 {
		return time.Duration(1<<63 - 1)
	}
	return time.Duration(-tb.tokens / tb.refillRate * float64(time.Second))
}

func (tb *TokenBucket) cancel() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens++
}

func (tb *TokenBucket) refill(now time.Time) {
	elapsed := now.Sub(tb.lastRefill).Seconds()
	if elapsed <= 0 {
		return
	}
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.capacity {
		tb.tokens = tb.capacity
	}
	tb.lastRefill = now
}

func (tb *TokenBucket) idleSince(now time.Time) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return now.Sub(tb.lastUsed)
}

// Limiter keeps one bucket per key, for example per room.
type Limiter struct {
	mu         sync.Mutex
	buckets    map[string]*TokenBucket
	capacity   float64
	refillRate float64
	maxKeys    int
	idle       time.Duration
}

// NewLimiter creates a keyed limiter. When more than maxKeys buckets exist,
// buckets idle for longer than a minute are evicted. A zero maxKeys means
// 10000.
func NewLimiter(capacity, refillRate float64, maxKeys int) *Limiter {
	if maxKeys <= 0 {
		maxKeys = 10000
	}

	return &Limiter{
		buckets:    make(map[string]*TokenBucket),
		capacity:   capacity,
		refillRate: refillRate,
		maxKeys:    maxKeys,
		idle:       time.Minute,
	}
}

// Allow takes a token from the bucket of key if available.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// Wait blocks until the bucket of key yields a token or ctx is done.
func (l *Limiter) Wait(ctx context.Context, key string) error {
	return l.bucket(key).Wait(ctx)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *Limiter) bucket(key string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if tb, ok := l.buckets[key]; ok {
		return tb
	}
	if len(l.buckets) >= l.maxKeys {
		l.evict(time.Now())
	}

	tb := NewTokenBucket(l.capacity, l.refillRate)
	l.buckets[key] = tb
	return tb
}

func (l *Limiter) evict(now time.Time) {
	for key, tb := range l.buckets {
		if tb.idleSince(now) > l.idle {
			delete(l.buckets, key)
		}
	}
}
