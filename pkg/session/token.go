// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

import "context"

// Token is a notify-once cancellation signal. Once fired, every current and
// future waiter observes it. Firing again has no effect.
type Token struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewToken creates an unfired token.
func NewToken() *Token {
	ctx, cancel := context.WithCancel(context.Background())
	return &Token{ctx: ctx, cancel: cancel}
}

// Cancel fires the token.
func (t *Token) Cancel() {
	t.cancel()
}

// Done returns a channel closed when the token fires.
func (t *Token) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Canceled reports whether the token has fired.
func (t *Token) Canceled() bool {
	return t.ctx.Err() != nil
}

// Context returns a context cancelled together with the token.
func (t *Token) Context() context.Context {
	return t.ctx
}
