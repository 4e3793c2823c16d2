// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package timeline merges paged message history and live-pushed
// messages into one gap-free sequence per room, ordered ascending by
// server-assigned message id. History pages and live pushes arrive
// through different paths in arbitrary relative order; the merger
// de-duplicates by id so any interleaving converges to the same
// sequence.
package timeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/parley-chat/parley/chat"
	"github.com/parley-chat/parley/lib/pubsub"
	"github.com/parley-chat/parley/rest"
)

// DefaultPageSize is the number of messages requested per history page.
const DefaultPageSize = 50

// Merger owns the per-room message sequences. All access goes through
// its methods; rooms are materialized lazily on first touch. Safe for
// concurrent use.
type Merger struct {
	api      rest.API
	pageSize int
	logger   *slog.Logger

	mu    sync.Mutex
	rooms map[chat.RoomID]*roomTimeline
}

// roomTimeline is one room's ordered sequence plus its snapshot feed.
// The feed has capacity 1: slow subscribers coalesce to the latest
// snapshot instead of queueing stale ones.
type roomTimeline struct {
	messages []chat.Message
	ids      map[chat.MessageID]struct{}
	feed     *pubsub.Feed[[]chat.Message]
}

// Config holds the Merger's collaborators.
type Config struct {
	// API fetches history pages. Required.
	API rest.API

	// PageSize overrides DefaultPageSize when positive.
	PageSize int

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// New creates an empty Merger.
func New(config Config) *Merger {
	if config.API == nil {
		panic("timeline: Config.API is required")
	}
	pageSize := config.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Merger{
		api:      config.API,
		pageSize: pageSize,
		logger:   logger,
		rooms:    make(map[chat.RoomID]*roomTimeline),
	}
}

// PageSize returns the history page size, the boundary callers compare
// LoadPage's count against to detect the end of history.
func (m *Merger) PageSize() int { return m.pageSize }

// LoadPage fetches one page of history older than beforeID (the newest
// page when beforeID is zero) and merges it into the room's sequence.
// It returns the number of messages the server sent; a count below the
// page size means no older history remains. The fetch happens outside
// the merger's lock, so live messages keep flowing while a page is in
// flight.
func (m *Merger) LoadPage(ctx context.Context, roomID chat.RoomID, beforeID chat.MessageID) (int, error) {
	batch, err := m.api.Messages(ctx, roomID, m.pageSize, beforeID)
	if err != nil {
		return 0, fmt.Errorf("timeline: loading page for room %d: %w", roomID, err)
	}

	m.mu.Lock()
	room := m.roomLocked(roomID)
	inserted := 0
	for _, message := range batch {
		if room.insert(message) {
			inserted++
		}
	}
	snapshot := room.snapshot()
	feed := room.feed
	m.mu.Unlock()

	if inserted > 0 {
		feed.Publish(snapshot)
	}
	return len(batch), nil
}

// ApplyLiveMessage inserts a push-delivered message into its room's
// sequence. Duplicate ids are ignored, so redelivery across a reconnect
// is harmless. A live message for a room with no history yet still
// lands; later pages de-duplicate against it.
func (m *Merger) ApplyLiveMessage(message chat.Message) {
	m.mu.Lock()
	room := m.roomLocked(message.RoomID)
	inserted := room.insert(message)
	snapshot := room.snapshot()
	feed := room.feed
	m.mu.Unlock()

	if inserted {
		feed.Publish(snapshot)
	}
}

// Subscribe returns a subscription that receives the room's full
// ordered snapshot after every mutation. Cancel it when the room stops
// being observed.
func (m *Merger) Subscribe(roomID chat.RoomID) *pubsub.Subscription[[]chat.Message] {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roomLocked(roomID).feed.Subscribe()
}

// Messages returns a copy of the room's current ordered sequence.
func (m *Merger) Messages(roomID chat.RoomID) []chat.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	return room.snapshot()
}

// OldestID returns the smallest message id held for the room, the
// boundary for the next older page. ok is false when the room holds no
// messages yet.
func (m *Merger) OldestID(roomID chat.RoomID) (id chat.MessageID, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, exists := m.rooms[roomID]
	if !exists || len(room.messages) == 0 {
		return 0, false
	}
	return room.messages[0].ID, true
}

func (m *Merger) roomLocked(roomID chat.RoomID) *roomTimeline {
	room, ok := m.rooms[roomID]
	if !ok {
		room = &roomTimeline{
			ids:  make(map[chat.MessageID]struct{}),
			feed: pubsub.NewFeed[[]chat.Message](1),
		}
		m.rooms[roomID] = room
	}
	return room
}

// insert places message at its sorted position. Returns false for
// duplicates and for messages without a server-assigned id.
func (r *roomTimeline) insert(message chat.Message) bool {
	if message.ID == 0 {
		return false
	}
	if _, dup := r.ids[message.ID]; dup {
		return false
	}
	index := sort.Search(len(r.messages), func(i int) bool {
		return r.messages[i].ID > message.ID
	})
	r.messages = append(r.messages, chat.Message{})
	copy(r.messages[index+1:], r.messages[index:])
	r.messages[index] = message
	r.ids[message.ID] = struct{}{}
	return true
}

func (r *roomTimeline) snapshot() []chat.Message {
	return append([]chat.Message(nil), r.messages...)
}
