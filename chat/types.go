// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import "time"

// RoomID identifies a chat room. Room IDs are assigned by the server;
// client code never fabricates them.
type RoomID int64

// MessageID identifies a message within a room. Message IDs are assigned
// by the server and increase monotonically per room, which makes them the
// ordering key for timelines: live pushes and paged history arrive through
// different paths with arbitrary relative timing, so arrival order means
// nothing.
type MessageID int64

// Room is an immutable snapshot of a chat room. Updates from the server
// replace the whole value; nothing partially mutates a Room in place.
type Room struct {
	ID          RoomID `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Active reports whether the room is open for new messages. Archived
	// rooms keep their history readable but reject sends server-side.
	Active bool `json:"active"`

	// OwnerHandle is the handle of the room's creator. Empty for rooms
	// without a recorded owner (e.g., server-provisioned defaults).
	OwnerHandle string `json:"owner_handle,omitempty"`
}

// Message is a single chat message. Either Text or ImageURL may be empty,
// but never both — the server rejects empty sends and the orchestrator
// never issues one.
type Message struct {
	ID           MessageID `json:"id"`
	RoomID       RoomID    `json:"room_id"`
	Text         string    `json:"text,omitempty"`
	ImageURL     string    `json:"image_url,omitempty"`
	AuthorID     int64     `json:"author_id"`
	AuthorHandle string    `json:"author_handle"`
	CreatedAt    time.Time `json:"created_at"`
}

// Invite is a pending invitation to join a room. Invites exist only until
// accepted or declined; the server removes them afterwards and the engine
// drops them from its held list.
type Invite struct {
	RoomID        RoomID    `json:"room_id"`
	RoomName      string    `json:"room_name"`
	InviterHandle string    `json:"inviter_handle"`
	SentAt        time.Time `json:"sent_at"`
}
