// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package presence tracks who is typing in each room. Entries are
// transient: every typing signal (re)arms a per-entry expiry timer, so
// a sender that goes silent without an explicit stop disappears on its
// own. An explicit stop removes the entry immediately and cancels the
// pending expiry.
package presence

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/parley-chat/parley/chat"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/pubsub"
)

// DefaultExpiry is how long a typing entry lives without a refresh. It
// sits comfortably above the sender-side auto-stop window, so a healthy
// peer always stops explicitly before we expire it.
const DefaultExpiry = 5 * time.Second

// Coordinator owns the per-room typing sets. Safe for concurrent use.
type Coordinator struct {
	clock  clock.Clock
	logger *slog.Logger
	expiry time.Duration

	mu    sync.Mutex
	rooms map[chat.RoomID]*roomPresence
}

type roomPresence struct {
	typing map[string]*clock.Timer
	feed   *pubsub.Feed[[]string]
}

// Config holds the Coordinator's collaborators and tunables.
type Config struct {
	// Clock schedules expiry timers. If nil, clock.Real().
	Clock clock.Clock

	// Expiry overrides DefaultExpiry when positive.
	Expiry time.Duration

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New creates an empty Coordinator.
func New(config Config) *Coordinator {
	presenceClock := config.Clock
	if presenceClock == nil {
		presenceClock = clock.Real()
	}
	expiry := config.Expiry
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		clock:  presenceClock,
		logger: logger,
		expiry: expiry,
		rooms:  make(map[chat.RoomID]*roomPresence),
	}
}

// HandleTyping records that handle is typing in roomID and (re)arms the
// entry's expiry. Refreshing an existing entry does not re-emit a
// snapshot, the visible set did not change.
func (c *Coordinator) HandleTyping(roomID chat.RoomID, handle string) {
	if handle == "" {
		return
	}
	c.mu.Lock()
	room := c.roomLocked(roomID)
	timer, exists := room.typing[handle]
	if exists {
		timer.Reset(c.expiry)
		c.mu.Unlock()
		return
	}
	room.typing[handle] = c.clock.AfterFunc(c.expiry, func() {
		c.expire(roomID, handle)
	})
	snapshot := room.snapshot()
	feed := room.feed
	c.mu.Unlock()

	feed.Publish(snapshot)
}

// HandleStoppedTyping removes handle from roomID's typing set right
// away, canceling the pending expiry. Unknown entries are ignored.
func (c *Coordinator) HandleStoppedTyping(roomID chat.RoomID, handle string) {
	c.remove(roomID, handle, true)
}

// expire is the timer callback; it must tolerate losing the race with
// an explicit stop that already removed the entry.
func (c *Coordinator) expire(roomID chat.RoomID, handle string) {
	c.remove(roomID, handle, false)
}

func (c *Coordinator) remove(roomID chat.RoomID, handle string, cancelTimer bool) {
	c.mu.Lock()
	room, ok := c.rooms[roomID]
	if !ok {
		c.mu.Unlock()
		return
	}
	timer, exists := room.typing[handle]
	if !exists {
		c.mu.Unlock()
		return
	}
	if cancelTimer {
		timer.Stop()
	}
	delete(room.typing, handle)
	snapshot := room.snapshot()
	feed := room.feed
	c.mu.Unlock()

	feed.Publish(snapshot)
}

// Subscribe returns a subscription carrying the room's sorted typing
// set after every change.
func (c *Coordinator) Subscribe(roomID chat.RoomID) *pubsub.Subscription[[]string] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roomLocked(roomID).feed.Subscribe()
}

// Typing returns the room's current typing handles, sorted.
func (c *Coordinator) Typing(roomID chat.RoomID) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, ok := c.rooms[roomID]
	if !ok {
		return nil
	}
	return room.snapshot()
}

func (c *Coordinator) roomLocked(roomID chat.RoomID) *roomPresence {
	room, ok := c.rooms[roomID]
	if !ok {
		room = &roomPresence{
			typing: make(map[string]*clock.Timer),
			feed:   pubsub.NewFeed[[]string](1),
		}
		c.rooms[roomID] = room
	}
	return room
}

func (r *roomPresence) snapshot() []string {
	handles := make([]string, 0, len(r.typing))
	for handle := range r.typing {
		handles = append(handles, handle)
	}
	sort.Strings(handles)
	return handles
}
