// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package data

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDJSON(t *testing.T) {
	cases := []struct {
		name    string
		input   string
		want    ID
		wantErr bool
	}{
		{"decimal string", `"123"`, 123, false},
		{"max uint64", `"18446744073709551615"`, ID(^uint64(0)), false},
		{"bare number", `123`, 0, true},
		{"negative", `"-1"`, 0, true},
		{"hex", `"0x10"`, 0, true},
		{"empty", `""`, 0, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var id ID
			err := json.Unmarshal([]byte(tc.input), &id)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, id)
		})
	}

	b, err := json.Marshal(ID(42))
	require.NoError(t, err)
	assert.Equal(t, `"42"`, string(b))
}

func TestRoomOptionalLastMessage(t *testing.T) {
	var r Room
	require.NoError(t, json.Unmarshal([]byte(`{"name":"general","description":null,"position":0,"id":"7"}`), &r))
	assert.Nil(t, r.LastMessageID)
	assert.Nil(t, r.Description)
	assert.Equal(t, ID(7), r.ID)

	require.NoError(t, json.Unmarshal([]byte(`{"name":"general","position":1,"last_message_id":"99","id":"7"}`), &r))
	require.NotNil(t, r.LastMessageID)
	assert.Equal(t, ID(99), *r.LastMessageID)
}

func TestHouseDecode(t *testing.T) {
	raw := `{
		"name": "Hive",
		"icon": null,
		"members": [{"user": {"username": "bee", "name": "Bee", "icon": null, "header": null, "id": "1"}, "presence": "online"}],
		"rooms": [{"name": "general", "description": null, "position": 0, "id": "10"}],
		"id": "5",
		"owner_id": "1"
	}`

	var h House
	require.NoError(t, json.Unmarshal([]byte(raw), &h))
	assert.Equal(t, "Hive", h.Name)
	assert.Equal(t, ID(5), h.ID)
	assert.Equal(t, ID(1), h.OwnerID)
	require.Len(t, h.Members, 1)
	assert.Equal(t, PresenceOnline, h.Members[0].Presence)
	assert.Equal(t, "bee", h.Members[0].User.Username)
	require.Len(t, h.Rooms, 1)
	assert.Equal(t, ID(10), h.Rooms[0].ID)
}

func TestClientSettings(t *testing.T) {
	var s ClientSettings
	require.NoError(t, json.Unmarshal([]byte(`{"theme":"dark","enable_desktop_notifications":true}`), &s))
	require.NotNil(t, s.Theme)
	assert.Equal(t, ThemeDark, *s.Theme)
	require.NotNil(t, s.DesktopNotifications)
	assert.True(t, *s.DesktopNotifications)
}
