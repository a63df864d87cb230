// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package handler provides the interface that links gateway events to
// application logic.
//
// # Architecture Overview
//
// The session's dispatch loop hands every decoded Event to a Dispatcher,
// which runs the matching Handler callback in its own goroutine:
//
//	Socket → Pump (decode) → inbound queue → Session (dispatch loop) → Dispatcher → Handler
//	Handler → Session.Send → outbound queue → Pump (encode) → Socket
//
// # Handler Methods
//
//   - OnInitState: authenticated user and client settings, once per session
//   - OnHouseJoin: one per house the user belongs to
//   - OnTypingStart: a user started typing in a room
//   - OnMessageCreate: a message was posted in a room
//
// # Session Capability
//
// Callbacks receive a Session, not the session orchestrator. It exposes the
// session ID, Send for outbound frames and Stop to end the session.
//
// # Errors
//
// Callback errors and panics are logged and counted. They never end the
// session.
//
// # Example
//
//	type Bot struct {
//		handler.NoopHandler
//	}
//
//	func (b *Bot) OnMessageCreate(ctx context.Context, s handler.Session, ev frame.MessageCreate) error {
//		if ev.Message.Content == "$stop" {
//			s.Stop()
//		}
//		return nil
//	}
package handler
