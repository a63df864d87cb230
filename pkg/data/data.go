// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package data defines the chat entities carried in gateway event payloads
// and REST responses.
package data

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// ID is a 64-bit identifier transmitted as a decimal string.
type ID uint64

// ParseID parses a base-10 identifier.
func ParseID(s string) (ID, error) {
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", s, err)
	}
	return ID(v), nil
}

// String returns the decimal form of the identifier.
func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 10)
}

// MarshalJSON encodes the identifier as a JSON string.
func (id ID) MarshalJSON() ([]byte, error) {
	return []byte(strconv.Quote(id.String())), nil
}

// UnmarshalJSON accepts only a JSON string holding a base-10 uint64.
// A JSON null leaves the value untouched.
func (id *ID) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("id must be a string: %w", err)
	}
	v, err := ParseID(s)
	if err != nil {
		return err
	}
	*id = v
	return nil
}

// Presence is the online status of a house member.
type Presence string

// Known presence values.
const (
	PresenceOffline Presence = "offline"
	PresenceOnline  Presence = "online"
)

// Theme is the client colour theme.
type Theme string

// ThemeDark is the only theme the gateway currently reports.
const ThemeDark Theme = "dark"

// House is a community holding rooms and members.
type House struct {
	Name    string   `json:"name"`
	Icon    *string  `json:"icon"`
	Members []Member `json:"members"`
	Rooms   []Room   `json:"rooms"`
	ID      ID       `json:"id"`
	OwnerID ID       `json:"owner_id"`
}

// Member is a user's membership in a house.
type Member struct {
	User     User     `json:"user"`
	Presence Presence `json:"presence"`
}

// Room is a channel within a house where messages are posted.
type Room struct {
	Name          string  `json:"name"`
	Description   *string `json:"description"`
	Position      int     `json:"position"`
	LastMessageID *ID     `json:"last_message_id,omitempty"`
	ID            ID      `json:"id"`
}

// Message is a chat message posted to a room.
type Message struct {
	ID       ID     `json:"id,omitempty"`
	Content  string `json:"content"`
	RoomID   ID     `json:"room_id"`
	AuthorID ID     `json:"author_id"`
}

// User is an account on the service.
type User struct {
	Username string  `json:"username"`
	Name     string  `json:"name"`
	Icon     *string `json:"icon"`
	Header   *string `json:"header"`
	ID       ID      `json:"id"`
}

// ClientSettings are the per-account client preferences sent at login.
type ClientSettings struct {
	Theme                *Theme `json:"theme"`
	DesktopNotifications *bool  `json:"enable_desktop_notifications"`
}
