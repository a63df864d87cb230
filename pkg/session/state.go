// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package session

// State is the lifecycle stage of a session.
type State int32

const (
	// AwaitingHello is the initial state: no frame received yet.
	AwaitingHello State = iota
	// Authenticating means Hello was received and Login is being sent.
	Authenticating
	// Active means the heartbeat and dispatch loops are running.
	Active
	// Closed is terminal.
	Closed
)

func (s State) String() string {
	switch s {
	case AwaitingHello:
		return "awaiting_hello"
	case Authenticating:
		return "authenticating"
	case Active:
		return "active"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}
