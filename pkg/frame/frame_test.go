// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package frame

import (
	"testing"

	"github.com/absmach/hivegate/pkg/data"
	gwerrors "github.com/absmach/hivegate/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	cases := []struct {
		name  string
		frame Outbound
		want  string
	}{
		{"heartbeat", HeartBeat{}, `{"op":3}`},
		{"login", Login{Token: "secret"}, `{"op":2,"d":{"token":"secret"}}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, err := Encode(tc.frame)
			require.NoError(t, err)
			assert.JSONEq(t, tc.want, string(b))
		})
	}

	_, err := Encode(nil)
	assert.ErrorIs(t, err, ErrNilFrame)
}

func TestServerFramesAreNotOutbound(t *testing.T) {
	for _, f := range []Frame{Hello{HeartbeatInterval: 1}, Event{Payload: InitState{}}} {
		_, ok := f.(Outbound)
		assert.False(t, ok, "%T", f)
	}
}

func TestRoundTrip(t *testing.T) {
	for _, f := range []Outbound{
		Login{Token: "abc.def"},
		HeartBeat{},
	} {
		b, err := Encode(f)
		require.NoError(t, err)

		got, err := Decode(b)
		require.NoError(t, err)
		assert.Equal(t, Frame(f), got)
	}
}

func TestDecodeOrderIndependence(t *testing.T) {
	inputs := []string{
		`{"op":1,"d":{"hbt_int":30000}}`,
		`{"d":{"hbt_int":30000},"op":1}`,
		`{"seq":null,"d":{"hbt_int":30000},"op":1}`,
		`{"op":1,"seq":4,"d":{"hbt_int":30000}}`,
	}

	for _, in := range inputs {
		got, err := Decode([]byte(in))
		require.NoError(t, err, in)
		assert.Equal(t, Hello{HeartbeatInterval: 30000}, got, in)
	}
}

func TestDecodeHeartBeat(t *testing.T) {
	got, err := Decode([]byte(`{"op":3}`))
	require.NoError(t, err)
	assert.Equal(t, HeartBeat{}, got)

	b, err := Encode(HeartBeat{})
	require.NoError(t, err)
	assert.Equal(t, `{"op":3}`, string(b))
}

func TestDecodeEvents(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  EventPayload
	}{
		{
			name:  "typing start, event first",
			input: `{"e":"TYPING_START","op":0,"d":{"room_id":"10","author_id":"20"}}`,
			want:  TypingStart{RoomID: 10, UserID: 20},
		},
		{
			name:  "typing start, data first",
			input: `{"d":{"room_id":"10","author_id":"20"},"seq":1,"e":"TYPING_START","op":0}`,
			want:  TypingStart{RoomID: 10, UserID: 20},
		},
		{
			name:  "message create",
			input: `{"op":0,"e":"MESSAGE_CREATE","d":{"content":"$hello","room_id":"1","author_id":"2"}}`,
			want:  MessageCreate{Message: data.Message{Content: "$hello", RoomID: 1, AuthorID: 2}},
		},
		{
			name:  "house join",
			input: `{"op":0,"e":"HOUSE_JOIN","d":{"name":"Hive","icon":null,"members":[],"rooms":[],"id":"5","owner_id":"6"}}`,
			want:  HouseJoin{House: data.House{Name: "Hive", Members: []data.Member{}, Rooms: []data.Room{}, ID: 5, OwnerID: 6}},
		},
		{
			name:  "init state",
			input: `{"op":0,"e":"INIT_STATE","d":{"user":{"username":"bee","name":"Bee","icon":null,"header":null,"id":"1"},"settings":{}}}`,
			want:  InitState{User: data.User{Username: "bee", Name: "Bee", ID: 1}},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.input))
			require.NoError(t, err)
			ev, ok := got.(Event)
			require.True(t, ok, "expected Event, got %T", got)
			assert.Equal(t, tc.want, ev.Payload)
			assert.Equal(t, tc.want.EventName(), ev.Name())
		})
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		kind  error
	}{
		{"unknown opcode", `{"op":99}`, ErrUnknownOpcode},
		{"unknown opcode with data", `{"d":{},"op":99}`, ErrUnknownOpcode},
		{"missing opcode", `{"d":{"hbt_int":1}}`, ErrMissingOpcode},
		{"empty object", `{}`, ErrMissingOpcode},
		{"not an object", `[1,2]`, ErrMalformed},
		{"truncated", `{"op":1`, ErrMalformed},
		{"truncated payload", `{"op":1,"d":`, ErrInvalidPayload},
		{"trailing data", `{"op":3}{}`, ErrMalformed},
		{"string opcode", `{"op":"1"}`, ErrMalformed},
		{"duplicate op", `{"op":3,"op":3}`, ErrDuplicateField},
		{"duplicate d", `{"op":1,"d":{"hbt_int":1},"d":{"hbt_int":1}}`, ErrDuplicateField},
		{"duplicate d before op", `{"d":{},"d":{},"op":1}`, ErrDuplicateField},
		{"unknown field", `{"op":3,"x":1}`, ErrUnknownField},
		{"heartbeat with data", `{"op":3,"d":{}}`, ErrUnexpectedData},
		{"heartbeat with data first", `{"d":{},"op":3}`, ErrUnexpectedData},
		{"hello without data", `{"op":1}`, ErrMissingData},
		{"login without data", `{"op":2}`, ErrMissingData},
		{"event without data", `{"op":0,"e":"INIT_STATE"}`, ErrMissingData},
		{"event without name", `{"op":0,"d":{}}`, ErrMissingEvent},
		{"event name on hello", `{"op":1,"e":"INIT_STATE","d":{"hbt_int":1}}`, ErrUnexpectedEvent},
		{"event name after hello data", `{"op":1,"d":{"hbt_int":1},"e":"INIT_STATE"}`, ErrUnexpectedEvent},
		{"unknown event", `{"op":0,"e":"ROOM_DELETE","d":{}}`, ErrUnknownEvent},
		{"unknown event, data first", `{"d":{"x":1},"e":"ROOM_DELETE","op":0}`, ErrUnknownEvent},
		{"id as number", `{"op":0,"e":"TYPING_START","d":{"room_id":10,"author_id":"20"}}`, ErrInvalidPayload},
		{"id as number, data first", `{"d":{"room_id":10,"author_id":"20"},"op":0,"e":"TYPING_START"}`, ErrInvalidPayload},
		{"interval out of range", `{"op":1,"d":{"hbt_int":70000}}`, ErrInvalidPayload},
		{"opcode beyond a byte", `{"op":300}`, ErrUnknownOpcode},
		{"negative opcode", `{"op":-1}`, ErrMalformed},
		{"null opcode", `{"op":null,"e":"TYPING_START","d":{"room_id":"1","author_id":"2"}}`, ErrMissingOpcode},
		{"null opcode alone", `{"op":null}`, ErrMissingOpcode},
		{"null login data", `{"op":2,"d":null}`, ErrMissingData},
		{"null hello data first", `{"d":null,"op":1}`, ErrMissingData},
		{"null event data", `{"op":0,"e":"TYPING_START","d":null}`, ErrMissingData},
		{"null event data first", `{"d":null,"e":"MESSAGE_CREATE","op":0}`, ErrMissingData},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Decode([]byte(tc.input))
			assert.Nil(t, got)
			require.Error(t, err)
			assert.ErrorIs(t, err, gwerrors.ErrDecode)
			assert.ErrorIs(t, err, tc.kind)

			var de *DecodeError
			assert.ErrorAs(t, err, &de)
		})
	}
}

func TestUnknownEventIsOtherwiseWellFormed(t *testing.T) {
	// A malformed unknown event must report the malformation, not the name.
	_, err := Decode([]byte(`{"op":0,"e":"ROOM_DELETE","d":{},"bogus":true}`))
	assert.ErrorIs(t, err, ErrUnknownField)
	assert.NotErrorIs(t, err, ErrUnknownEvent)

	_, err = Decode([]byte(`{"op":0,"e":"ROOM_DELETE"}`))
	assert.ErrorIs(t, err, ErrMissingData)
	assert.NotErrorIs(t, err, ErrUnknownEvent)
}

func TestOpcodeString(t *testing.T) {
	assert.Equal(t, "event", OpEvent.String())
	assert.Equal(t, "hello", OpHello.String())
	assert.Equal(t, "login", OpLogin.String())
	assert.Equal(t, "heartbeat", OpHeartBeat.String())
	assert.Equal(t, "op(99)", Opcode(99).String())
}

func TestHelloInterval(t *testing.T) {
	assert.Equal(t, "30s", Hello{HeartbeatInterval: 30000}.Interval().String())
}
