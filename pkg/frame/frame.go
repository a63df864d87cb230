// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"fmt"
	"time"

	"github.com/absmach/hivegate/pkg/data"
)

// Opcode is the frame discriminant carried in the "op" key.
type Opcode uint8

// Known opcodes.
const (
	OpEvent     Opcode = 0
	OpHello     Opcode = 1
	OpLogin     Opcode = 2
	OpHeartBeat Opcode = 3
)

func (o Opcode) String() string {
	switch o {
	case OpEvent:
		return "event"
	case OpHello:
		return "hello"
	case OpLogin:
		return "login"
	case OpHeartBeat:
		return "heartbeat"
	default:
		return fmt.Sprintf("op(%d)", uint8(o))
	}
}

// Event names.
const (
	EventInitState     = "INIT_STATE"
	EventHouseJoin     = "HOUSE_JOIN"
	EventTypingStart   = "TYPING_START"
	EventMessageCreate = "MESSAGE_CREATE"
)

// Frame is one discrete message exchanged over the gateway socket.
type Frame interface {
	Opcode() Opcode
	isFrame()
}

// Outbound is a frame a client is allowed to send.
type Outbound interface {
	Frame
	isOutbound()
}

// Hello is the first frame of every session. It announces the heartbeat
// interval in milliseconds.
type Hello struct {
	HeartbeatInterval uint16 `json:"hbt_int"`
}

// Interval returns the heartbeat interval as a duration.
func (h Hello) Interval() time.Duration {
	return time.Duration(h.HeartbeatInterval) * time.Millisecond
}

// Login authenticates the client.
type Login struct {
	Token string `json:"token"`
}

// HeartBeat is the keep-alive frame. It carries no payload.
type HeartBeat struct{}

// Event is a server-pushed domain event.
type Event struct {
	Payload EventPayload
}

// Name returns the event name carried in the "e" key.
func (e Event) Name() string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.EventName()
}

func (Hello) Opcode() Opcode     { return OpHello }
func (Login) Opcode() Opcode     { return OpLogin }
func (HeartBeat) Opcode() Opcode { return OpHeartBeat }
func (Event) Opcode() Opcode     { return OpEvent }

func (Hello) isFrame()     {}
func (Login) isFrame()     {}
func (HeartBeat) isFrame() {}
func (Event) isFrame()     {}

func (Login) isOutbound()     {}
func (HeartBeat) isOutbound() {}

var (
	_ Frame    = Hello{}
	_ Outbound = Login{}
	_ Outbound = HeartBeat{}
	_ Frame    = Event{}
)

// EventPayload is the typed body of an Event.
type EventPayload interface {
	EventName() string
}

// InitState is delivered once after a successful login.
type InitState struct {
	User     data.User           `json:"user"`
	Settings data.ClientSettings `json:"settings"`
}

// HouseJoin reports a house the user is a member of.
type HouseJoin struct {
	House data.House
}

// TypingStart reports a user typing in a room.
type TypingStart struct {
	RoomID data.ID `json:"room_id"`
	UserID data.ID `json:"author_id"`
}

// MessageCreate reports a new message in a room.
type MessageCreate struct {
	Message data.Message
}

func (InitState) EventName() string     { return EventInitState }
func (HouseJoin) EventName() string     { return EventHouseJoin }
func (TypingStart) EventName() string   { return EventTypingStart }
func (MessageCreate) EventName() string { return EventMessageCreate }
