// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package transport bridges a WebSocket and the session's frame queues.
//
// # Overview
//
// A Pump owns one open socket. Its loop waits concurrently on the next socket
// message and the next outbound frame:
//
//	socket ──text──▶ frame.Decode ──▶ inbound queue  ──▶ session
//	socket ◀──text── frame.Encode ◀── outbound queue ◀── session
//
// # Termination
//
//   - close message from the peer: *errors.SocketClosedError with code and reason
//   - binary, ping or pong message: errors.ErrExpectationFailed
//   - undecodable text: the decode error
//   - outbound queue closed, write after the peer went away, or ctx done: nil
//
// On return the pump closes the inbound queue, sends a normal close frame and
// closes the socket.
//
// # Unknown Events
//
// In ModeLenient (the default) a frame that fails to decode only because its
// event name is unknown is dropped and counted. ModeStrict treats it as a
// decode error like any other.
//
// # Socket
//
// *websocket.Conn from github.com/gorilla/websocket satisfies Socket. Tests
// use an in-memory implementation.
package transport
