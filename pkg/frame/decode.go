// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/absmach/hivegate/pkg/data"
	gwerrors "github.com/absmach/hivegate/pkg/errors"
)

// Decode failure causes. All are reported inside a *DecodeError.
var (
	ErrMalformed       = errors.New("malformed frame")
	ErrMissingOpcode   = errors.New("missing opcode")
	ErrUnknownOpcode   = errors.New("unknown opcode")
	ErrMissingEvent    = errors.New("missing event name")
	ErrUnexpectedEvent = errors.New("event name on non-event opcode")
	ErrUnknownEvent    = errors.New("unknown event")
	ErrMissingData     = errors.New("missing data")
	ErrUnexpectedData  = errors.New("unexpected data")
	ErrUnknownField    = errors.New("unknown field")
	ErrDuplicateField  = errors.New("duplicate field")
	ErrInvalidPayload  = errors.New("invalid payload")
)

// DecodeError describes why a frame could not be decoded.
type DecodeError struct {
	Kind   error
	Detail string
	Cause  error
}

func (e *DecodeError) Error() string {
	msg := fmt.Sprintf("%v: %v", gwerrors.ErrDecode, e.Kind)
	if e.Detail != "" {
		msg += " " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes ErrDecode, the cause sentinel and the underlying error.
func (e *DecodeError) Unwrap() []error {
	errs := []error{gwerrors.ErrDecode, e.Kind}
	if e.Cause != nil {
		errs = append(errs, e.Cause)
	}
	return errs
}

func decodeError(kind error, detail string, cause error) error {
	return &DecodeError{Kind: kind, Detail: detail, Cause: cause}
}

type kind uint8

const (
	kindHello kind = iota
	kindLogin
	kindHeartBeat
	kindInitState
	kindHouseJoin
	kindTypingStart
	kindMessageCreate
)

var events = map[string]kind{
	EventInitState:     kindInitState,
	EventHouseJoin:     kindHouseJoin,
	EventTypingStart:   kindTypingStart,
	EventMessageCreate: kindMessageCreate,
}

// Decode parses one text message into a Frame. Keys may appear in any order.
func Decode(text []byte) (Frame, error) {
	dec := json.NewDecoder(bytes.NewReader(text))

	tok, err := dec.Token()
	if err != nil {
		return nil, decodeError(ErrMalformed, "", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, decodeError(ErrMalformed, "expected object", nil)
	}

	var (
		op       Opcode
		hasOp    bool
		event    string
		hasEvent bool
		hasData  bool
		raw      json.RawMessage
		decoded  Frame
	)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, decodeError(ErrMalformed, "", err)
		}
		key, _ := tok.(string)

		switch key {
		case "op":
			if hasOp {
				return nil, decodeError(ErrDuplicateField, `"op"`, nil)
			}
			var v *uint64
			if err := dec.Decode(&v); err != nil {
				return nil, decodeError(ErrMalformed, `"op"`, err)
			}
			if v == nil {
				return nil, decodeError(ErrMissingOpcode, "null", nil)
			}
			if *v > uint64(OpHeartBeat) {
				return nil, decodeError(ErrUnknownOpcode, fmt.Sprintf("%d", *v), nil)
			}
			op, hasOp = Opcode(*v), true
		case "e":
			if hasEvent {
				return nil, decodeError(ErrDuplicateField, `"e"`, nil)
			}
			var v *string
			if err := dec.Decode(&v); err != nil {
				return nil, decodeError(ErrMalformed, `"e"`, err)
			}
			if v != nil {
				event, hasEvent = *v, true
			}
		case "seq":
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return nil, decodeError(ErrMalformed, `"seq"`, err)
			}
		case "d":
			if hasData {
				return nil, decodeError(ErrDuplicateField, `"d"`, nil)
			}
			hasData = true
			if hasOp && (op != OpEvent || hasEvent) {
				k, err := resolve(op, event, hasEvent)
				switch {
				case err == nil && k == kindHeartBeat:
					return nil, decodeError(ErrUnexpectedData, "for heartbeat", nil)
				case err == nil:
					if decoded, err = project(k, dec.Decode); err != nil {
						return nil, err
					}
					continue
				case !errors.Is(err, ErrUnknownEvent):
					return nil, err
				}
			}
			if err := dec.Decode(&raw); err != nil {
				return nil, decodeError(ErrMalformed, `"d"`, err)
			}
		default:
			return nil, decodeError(ErrUnknownField, fmt.Sprintf("%q", key), nil)
		}
	}

	if _, err := dec.Token(); err != nil {
		return nil, decodeError(ErrMalformed, "", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, decodeError(ErrMalformed, "trailing data", err)
	}

	if !hasOp {
		return nil, decodeError(ErrMissingOpcode, "", nil)
	}
	if op == OpHeartBeat {
		if hasEvent {
			return nil, decodeError(ErrUnexpectedEvent, op.String(), nil)
		}
		if hasData {
			return nil, decodeError(ErrUnexpectedData, "for heartbeat", nil)
		}
		return HeartBeat{}, nil
	}
	if !hasData {
		return nil, decodeError(ErrMissingData, "for "+op.String(), nil)
	}
	if op == OpEvent && !hasEvent {
		return nil, decodeError(ErrMissingEvent, "", nil)
	}

	k, err := resolve(op, event, hasEvent)
	if err != nil {
		return nil, err
	}
	if decoded != nil {
		return decoded, nil
	}
	return project(k, func(v any) error { return json.Unmarshal(raw, v) })
}

// resolve maps the discriminant to a frame kind.
func resolve(op Opcode, event string, hasEvent bool) (kind, error) {
	if hasEvent && op != OpEvent {
		return 0, decodeError(ErrUnexpectedEvent, op.String(), nil)
	}
	switch op {
	case OpHello:
		return kindHello, nil
	case OpLogin:
		return kindLogin, nil
	case OpHeartBeat:
		return kindHeartBeat, nil
	case OpEvent:
		if !hasEvent {
			return 0, decodeError(ErrMissingEvent, "", nil)
		}
		k, ok := events[event]
		if !ok {
			return 0, decodeError(ErrUnknownEvent, fmt.Sprintf("%q", event), nil)
		}
		return k, nil
	default:
		return 0, decodeError(ErrUnknownOpcode, fmt.Sprintf("%d", uint8(op)), nil)
	}
}

// project decodes the payload for a resolved kind.
func project(k kind, decode func(any) error) (Frame, error) {
	switch k {
	case kindHello:
		return payload(decode, func(h Hello) Frame { return h })
	case kindLogin:
		return payload(decode, func(l Login) Frame { return l })
	case kindInitState:
		return payload(decode, func(p InitState) Frame { return Event{Payload: p} })
	case kindHouseJoin:
		return payload(decode, func(h data.House) Frame { return Event{Payload: HouseJoin{House: h}} })
	case kindTypingStart:
		return payload(decode, func(p TypingStart) Frame { return Event{Payload: p} })
	case kindMessageCreate:
		return payload(decode, func(m data.Message) Frame { return Event{Payload: MessageCreate{Message: m}} })
	default:
		return nil, decodeError(ErrUnexpectedData, fmt.Sprintf("kind %d", k), nil)
	}
}

// payload decodes d into T. A null d counts as missing data.
func payload[T any](decode func(any) error, build func(T) Frame) (Frame, error) {
	var v *T
	if err := decode(&v); err != nil {
		return nil, decodeError(ErrInvalidPayload, "", err)
	}
	if v == nil {
		return nil, decodeError(ErrMissingData, "null", nil)
	}
	return build(*v), nil
}
