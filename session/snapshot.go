// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"github.com/parley-chat/parley/channel"
	"github.com/parley-chat/parley/chat"
)

// Snapshot is the full observable state handed to the presentation
// layer. It is a value: every field is a copy, safe to read from any
// goroutine after delivery.
type Snapshot struct {
	// Connection is the live-channel state.
	Connection channel.State

	// Rooms is the known room list.
	Rooms []chat.Room

	// Invites is the pending invite list.
	Invites []chat.Invite

	// Error is the last room-list or invite operation failure, empty
	// when the previous operation succeeded. Per-room failures live on
	// Room.Error instead.
	Error string

	// Room is the active room's view, nil when no room is active.
	Room *RoomView
}

// RoomView is the active room's observable state.
type RoomView struct {
	ID chat.RoomID

	// Messages is the merged timeline, ascending by message id.
	Messages []chat.Message

	// TypingUsers is the sorted set of handles currently typing.
	TypingUsers []string

	// Loading is true while a history page fetch is in flight.
	Loading bool

	// HasMore is true until a page fetch comes back short.
	HasMore bool

	// Draft is the preserved input text after a failed send.
	Draft string

	// Error is the last failed operation scoped to this room, cleared
	// by the next success.
	Error string
}
