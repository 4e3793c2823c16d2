// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package roster

import (
	"sort"
	"sync"
	"testing"

	"github.com/parley-chat/parley/chat"
)

type recordedSignal struct {
	name   string
	roomID chat.RoomID
}

// recordingSender captures emitted signals and can simulate being
// offline.
type recordingSender struct {
	mu        sync.Mutex
	connected bool
	signals   []recordedSignal
}

func (s *recordingSender) Send(name string, payload any) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.connected {
		return false
	}
	join, ok := payload.(chat.JoinPayload)
	if !ok {
		return false
	}
	s.signals = append(s.signals, recordedSignal{name: name, roomID: join.RoomID})
	return true
}

func (s *recordingSender) recorded() []recordedSignal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedSignal(nil), s.signals...)
}

func TestJoinEmitsOncePerRoom(t *testing.T) {
	sender := &recordingSender{connected: true}
	tracker := New(sender, nil)

	tracker.Join(1)
	tracker.Join(1)
	tracker.Join(2)

	signals := sender.recorded()
	if len(signals) != 2 {
		t.Fatalf("expected 2 join signals, got %v", signals)
	}
	for _, signal := range signals {
		if signal.name != chat.EventNameJoin {
			t.Errorf("unexpected signal name %q", signal.name)
		}
	}
	if !tracker.Contains(1) || !tracker.Contains(2) {
		t.Error("joined rooms missing from the set")
	}
}

func TestLeaveRemovesAndSignals(t *testing.T) {
	sender := &recordingSender{connected: true}
	tracker := New(sender, nil)

	tracker.Join(7)
	tracker.Leave(7)
	tracker.Leave(7) // second leave is a no-op

	signals := sender.recorded()
	if len(signals) != 2 {
		t.Fatalf("expected join then leave, got %v", signals)
	}
	if signals[1].name != chat.EventNameLeave || signals[1].roomID != 7 {
		t.Errorf("unexpected leave signal %v", signals[1])
	}
	if tracker.Contains(7) {
		t.Error("room 7 should be gone from the set")
	}
}

func TestMembershipSurvivesDisconnect(t *testing.T) {
	sender := &recordingSender{connected: false}
	tracker := New(sender, nil)

	// Joins while offline record intent but emit nothing.
	tracker.Join(3)
	tracker.Join(4)
	if got := sender.recorded(); len(got) != 0 {
		t.Fatalf("expected no signals while offline, got %v", got)
	}
	if !tracker.Contains(3) || !tracker.Contains(4) {
		t.Fatal("offline joins must still land in the set")
	}
}

func TestRejoinReplaysExactlyTheJoinedSet(t *testing.T) {
	sender := &recordingSender{connected: true}
	tracker := New(sender, nil)

	tracker.Join(1)
	tracker.Join(2)
	tracker.Join(3)
	tracker.Leave(2)
	sender.mu.Lock()
	sender.signals = nil
	sender.mu.Unlock()

	tracker.Rejoin()

	var rooms []int
	for _, signal := range sender.recorded() {
		if signal.name != chat.EventNameJoin {
			t.Errorf("rejoin emitted %q", signal.name)
		}
		rooms = append(rooms, int(signal.roomID))
	}
	sort.Ints(rooms)
	if len(rooms) != 2 || rooms[0] != 1 || rooms[1] != 3 {
		t.Errorf("expected exactly one rejoin for rooms [1 3], got %v", rooms)
	}
}

func TestJoinedReturnsACopy(t *testing.T) {
	sender := &recordingSender{connected: true}
	tracker := New(sender, nil)
	tracker.Join(9)

	rooms := tracker.Joined()
	rooms[0] = 1000
	if !tracker.Contains(9) {
		t.Error("mutating the returned slice must not touch the set")
	}
}
