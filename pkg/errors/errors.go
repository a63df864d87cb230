// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package errors provides the error taxonomy shared by the gateway engine.
package errors

import (
	"errors"
	"fmt"
)

// Common error types
var (
	// ErrDecode indicates a gateway frame that could not be decoded.
	ErrDecode = errors.New("decode error")

	// ErrSocketClosed indicates the peer closed the WebSocket.
	ErrSocketClosed = errors.New("socket closed")

	// ErrExpectationFailed indicates a protocol-order violation, such as a
	// first frame other than Hello or a non-text socket message.
	ErrExpectationFailed = errors.New("expectation failed")

	// ErrChannelClosed indicates an internal queue closed. It is a graceful
	// end of session and is converted to a nil result where observed.
	ErrChannelClosed = errors.New("channel closed")

	// ErrHTTP indicates a REST request that returned a non-2xx status.
	ErrHTTP = errors.New("http error")

	// ErrSessionClosed indicates an operation on a session that has ended.
	ErrSessionClosed = errors.New("session closed")

	// ErrHandshakeTimeout indicates Hello did not arrive in time.
	ErrHandshakeTimeout = errors.New("handshake timeout")
)

// SocketClosedError carries the close code and reason sent by the peer.
type SocketClosedError struct {
	Code   int
	Reason string
}

// Error implements the error interface.
func (e *SocketClosedError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%v: code %d", ErrSocketClosed, e.Code)
	}
	return fmt.Sprintf("%v: code %d: %s", ErrSocketClosed, e.Code, e.Reason)
}

// Is reports whether target is ErrSocketClosed.
func (e *SocketClosedError) Is(target error) bool {
	return target == ErrSocketClosed
}

// HTTPError describes a REST call that completed with a non-2xx status.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

// Error implements the error interface.
func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: %s %s: status %d", ErrHTTP, e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%v: %s %s: status %d: %s", ErrHTTP, e.Method, e.Path, e.StatusCode, e.Body)
}

// Is reports whether target is ErrHTTP.
func (e *HTTPError) Is(target error) bool {
	return target == ErrHTTP
}

// Temporary reports whether the status indicates a server-side failure.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode >= 500
}

// GatewayError wraps an error with additional context.
type GatewayError struct {
	Op        string // Operation that failed
	SessionID string // Session identifier
	Err       error  // Underlying error
}

// Error implements the error interface.
func (e *GatewayError) Error() string {
	if e.SessionID != "" {
		return fmt.Sprintf("%s [%s]: %v", e.Op, e.SessionID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *GatewayError) Unwrap() error {
	return e.Err
}

// New creates a new GatewayError.
func New(op, sessionID string, err error) error {
	if err == nil {
		return nil
	}
	return &GatewayError{
		Op:        op,
		SessionID: sessionID,
		Err:       err,
	}
}

// Wrap wraps an error with context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Expectation returns an error wrapping ErrExpectationFailed.
func Expectation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrExpectationFailed, fmt.Sprintf(format, args...))
}
