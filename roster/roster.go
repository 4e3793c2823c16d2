// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package roster tracks which rooms the client intends to be a member
// of. The joined set is the client-side source of truth: it survives
// disconnects, and after every reconnect the tracker replays a join
// signal for each entry so the server's view converges with ours within
// one reconnect cycle.
package roster

import (
	"log/slog"
	"sync"

	"github.com/parley-chat/parley/chat"
)

// Sender emits named events over the live connection. Send reports
// whether the event was written; false while disconnected is expected
// and harmless here, since membership is replayed on reconnect anyway.
type Sender interface {
	Send(name string, payload any) bool
}

// Tracker owns the joined-room set. Safe for concurrent use.
type Tracker struct {
	sender Sender
	logger *slog.Logger

	mu     sync.Mutex
	joined map[chat.RoomID]struct{}
}

// New creates an empty Tracker that signals membership changes through
// sender. A nil logger means slog.Default().
func New(sender Sender, logger *slog.Logger) *Tracker {
	if sender == nil {
		panic("roster: sender is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		sender: sender,
		logger: logger,
		joined: make(map[chat.RoomID]struct{}),
	}
}

// Join records membership intent for roomID and, when connected, tells
// the server. Joining a room already in the set is a no-op.
func (t *Tracker) Join(roomID chat.RoomID) {
	t.mu.Lock()
	if _, ok := t.joined[roomID]; ok {
		t.mu.Unlock()
		return
	}
	t.joined[roomID] = struct{}{}
	t.mu.Unlock()

	if !t.sender.Send(chat.EventNameJoin, chat.JoinPayload{RoomID: roomID}) {
		t.logger.Debug("join signal deferred to reconnect", "room_id", roomID)
	}
}

// Leave removes roomID from the set and, when connected, tells the
// server. Leaving a room not in the set is a no-op.
func (t *Tracker) Leave(roomID chat.RoomID) {
	t.mu.Lock()
	if _, ok := t.joined[roomID]; !ok {
		t.mu.Unlock()
		return
	}
	delete(t.joined, roomID)
	t.mu.Unlock()

	t.sender.Send(chat.EventNameLeave, chat.JoinPayload{RoomID: roomID})
}

// Rejoin replays a join signal for every room currently in the set.
// Registered as the channel's rejoin hook; it runs after each
// successful dial, before Connected is announced. Order is arbitrary,
// the server-side join is idempotent.
func (t *Tracker) Rejoin() {
	t.mu.Lock()
	rooms := make([]chat.RoomID, 0, len(t.joined))
	for roomID := range t.joined {
		rooms = append(rooms, roomID)
	}
	t.mu.Unlock()

	for _, roomID := range rooms {
		t.sender.Send(chat.EventNameJoin, chat.JoinPayload{RoomID: roomID})
	}
	if len(rooms) > 0 {
		t.logger.Info("replayed room membership", "rooms", len(rooms))
	}
}

// Contains reports whether roomID is in the joined set.
func (t *Tracker) Contains(roomID chat.RoomID) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.joined[roomID]
	return ok
}

// Joined returns a copy of the joined set.
func (t *Tracker) Joined() []chat.RoomID {
	t.mu.Lock()
	defer t.mu.Unlock()
	rooms := make([]chat.RoomID, 0, len(t.joined))
	for roomID := range t.joined {
		rooms = append(rooms, roomID)
	}
	return rooms
}
