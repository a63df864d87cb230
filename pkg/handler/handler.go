// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"

	"github.com/absmach/hivegate/pkg/frame"
)

// Session is the capability handed to every callback. It lets application
// code enqueue outbound frames and request shutdown without touching the
// session's internal state.
type Session interface {
	// ID returns the unique session identifier.
	ID() string

	// Send enqueues an outbound frame. It blocks while the outbound queue is
	// full and fails once the session has ended.
	Send(ctx context.Context, f frame.Outbound) error

	// Stop requests session shutdown. It is idempotent.
	Stop()
}

// Handler defines the callbacks invoked for gateway events.
//
// Each callback runs in its own goroutine; no ordering is guaranteed between
// callbacks. A returned error is logged and counted but never ends the
// session. The context is cancelled when the session ends.
type Handler interface {
	// OnInitState is called once after login with the authenticated user
	// and their client settings.
	OnInitState(ctx context.Context, s Session, ev frame.InitState) error

	// OnHouseJoin is called for every house the user belongs to.
	OnHouseJoin(ctx context.Context, s Session, ev frame.HouseJoin) error

	// OnTypingStart is called when a user starts typing in a room.
	OnTypingStart(ctx context.Context, s Session, ev frame.TypingStart) error

	// OnMessageCreate is called when a message is posted in a room.
	OnMessageCreate(ctx context.Context, s Session, ev frame.MessageCreate) error
}

// NoopHandler is a Handler implementation that ignores every event.
// Embed it to override only the callbacks you need.
type NoopHandler struct{}

var _ Handler = (*NoopHandler)(nil)

func (h *NoopHandler) OnInitState(ctx context.Context, s Session, ev frame.InitState) error {
	return nil
}

func (h *NoopHandler) OnHouseJoin(ctx context.Context, s Session, ev frame.HouseJoin) error {
	return nil
}

func (h *NoopHandler) OnTypingStart(ctx context.Context, s Session, ev frame.TypingStart) error {
	return nil
}

func (h *NoopHandler) OnMessageCreate(ctx context.Context, s Session, ev frame.MessageCreate) error {
	return nil
}

// Handle invokes the callback matching the event payload synchronously.
// Events with a nil payload are ignored.
func Handle(ctx context.Context, h Handler, s Session, ev frame.Event) error {
	switch p := ev.Payload.(type) {
	case frame.InitState:
		return h.OnInitState(ctx, s, p)
	case frame.HouseJoin:
		return h.OnHouseJoin(ctx, s, p)
	case frame.TypingStart:
		return h.OnTypingStart(ctx, s, p)
	case frame.MessageCreate:
		return h.OnMessageCreate(ctx, s, p)
	default:
		return nil
	}
}
