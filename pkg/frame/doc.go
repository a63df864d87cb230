// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package frame implements the gateway wire codec.
//
// # Overview
//
// Every message exchanged over the gateway socket is a single JSON object:
//
//	{"op": <uint8>, "d": <payload>, "e": <event name>, "seq": <number>}
//
// The opcode selects the frame variant:
//
//	0  Event      server → client, "e" names the event, "d" is its payload
//	1  Hello      server → client, "d" is {"hbt_int": <milliseconds>}
//	2  Login      client → server, "d" is {"token": "<token>"}
//	3  HeartBeat  client → server, no "d"
//
// # Key Order
//
// Keys may arrive in any order. When "op" (and "e" for events) precede "d",
// the payload is decoded in place. When "d" comes first it is buffered as raw
// JSON and projected once the discriminant is known. Both paths yield the same
// frame.
//
// # Errors
//
// Every decode failure satisfies errors.Is(err, errors.ErrDecode) and carries
// one of the package sentinels describing the cause. ErrUnknownEvent is only
// reported for frames that are otherwise well-formed, so callers may drop such
// frames for forward compatibility:
//
//	f, err := frame.Decode(msg)
//	if errors.Is(err, frame.ErrUnknownEvent) {
//		// newer server, skip
//	}
//
// # Encoding
//
// Only frames a client may send implement Outbound: Login and HeartBeat.
// Hello and Event are server frames, so encoding or sending one is rejected
// by the compiler.
package frame
