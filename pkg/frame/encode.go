// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNilFrame is returned when encoding a nil frame.
var ErrNilFrame = errors.New("nil frame")

type envelope struct {
	Op Opcode `json:"op"`
	D  any    `json:"d,omitempty"`
}

// Encode serializes an outbound frame. HeartBeat encodes as {"op":3}.
func Encode(f Outbound) ([]byte, error) {
	switch f := f.(type) {
	case nil:
		return nil, ErrNilFrame
	case Login:
		return json.Marshal(envelope{Op: OpLogin, D: f})
	case HeartBeat:
		return json.Marshal(envelope{Op: OpHeartBeat})
	default:
		panic(fmt.Sprintf("frame: cannot encode %T", f))
	}
}
