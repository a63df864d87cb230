// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package gateway provides the client coordinator that wires a WebSocket
// connection, the transport pump and a session together.
//
// # Overview
//
// A Gateway owns one connection at a time:
//  1. Transport pump (socket to typed frames and back)
//  2. Session (handshake, heartbeat and dispatch)
//  3. Handler (application callbacks)
//
// # Architecture
//
//	     Application
//	          ↓
//	┌──────────────────┐
//	│     Gateway      │  (Coordinator)
//	└──────────────────┘
//	    ↓          ↓
//	 inbound    outbound      (bounded queues)
//	    ↓          ↑
//	┌──────────────────┐
//	│     Session      │ → Dispatcher → Handler
//	└──────────────────┘
//
// The pump and the session run side by side. Whichever ends first brings the
// other down: a socket failure stops the session, and a finished session
// closes the outbound queue and cancels the pump.
//
// # Usage
//
//	gw := gateway.New(gateway.Config{
//		Token:  os.Getenv("HIVEN_TOKEN"),
//		Logger: logger,
//	}, myHandler)
//
//	if err := gw.Run(ctx); err != nil {
//		log.Fatal(err)
//	}
//
// Serve runs the same lifecycle over an existing transport.Socket, which is
// how tests drive a gateway without dialing.
package gateway
