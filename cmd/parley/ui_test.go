// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/parley-chat/parley/chat"
	"github.com/parley-chat/parley/lib/pubsub"
	"github.com/parley-chat/parley/session"
)

// recordingEngine counts engine calls so key-handling tests can assert
// what the UI actually asked for.
type recordingEngine struct {
	feed *pubsub.Feed[session.Snapshot]

	snapshot    session.Snapshot
	typingCalls int
	drafts      []string
	selected    []chat.RoomID
	loadMore    int
}

func newRecordingEngine(snapshot session.Snapshot) *recordingEngine {
	return &recordingEngine{feed: pubsub.NewFeed[session.Snapshot](1), snapshot: snapshot}
}

func (e *recordingEngine) Subscribe() *pubsub.Subscription[session.Snapshot] {
	return e.feed.Subscribe()
}
func (e *recordingEngine) Snapshot() session.Snapshot                          { return e.snapshot }
func (e *recordingEngine) SelectRoom(roomID chat.RoomID)                       { e.selected = append(e.selected, roomID) }
func (e *recordingEngine) LoadMoreMessages()                                   { e.loadMore++ }
func (e *recordingEngine) SetDraft(text string)                                { e.drafts = append(e.drafts, text) }
func (e *recordingEngine) NotifyTyping()                                       { e.typingCalls++ }
func (e *recordingEngine) AcceptInvite(context.Context, chat.RoomID)           {}
func (e *recordingEngine) DeclineInvite(context.Context, chat.RoomID)          {}
func (e *recordingEngine) SendMessage(context.Context, string, *session.Image) {}

func newComposerModel(engine chatEngine) model {
	m := newModel(engine)
	m.focus = focusComposer
	m.input.Focus()
	return m
}

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m model, msg tea.Msg) model {
	t.Helper()
	next, _ := m.Update(msg)
	updated, ok := next.(model)
	if !ok {
		t.Fatalf("Update returned %T, not model", next)
	}
	return updated
}

func TestTypingSignalsOnlyOnTextChange(t *testing.T) {
	engine := newRecordingEngine(session.Snapshot{})
	m := newComposerModel(engine)

	m = update(t, m, runeKey('h'))
	m = update(t, m, runeKey('i'))
	if engine.typingCalls != 2 {
		t.Errorf("expected 2 typing signals after 2 inserted runes, got %d", engine.typingCalls)
	}

	// Cursor movement and backspace-on-empty leave the text unchanged
	// and must not signal typing.
	m = update(t, m, tea.KeyMsg{Type: tea.KeyLeft})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyRight})
	if engine.typingCalls != 2 {
		t.Errorf("cursor movement signalled typing: %d calls", engine.typingCalls)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	m = update(t, m, tea.KeyMsg{Type: tea.KeyBackspace})
	// Two deletions change the text; the third hits an empty input.
	if engine.typingCalls != 4 {
		t.Errorf("expected 4 typing signals after deleting to empty, got %d", engine.typingCalls)
	}
	if m.input.Value() != "" {
		t.Errorf("input should be empty, got %q", m.input.Value())
	}
}

func TestDraftTracksTextChanges(t *testing.T) {
	engine := newRecordingEngine(session.Snapshot{})
	m := newComposerModel(engine)

	m = update(t, m, runeKey('a'))
	update(t, m, tea.KeyMsg{Type: tea.KeyLeft})

	want := []string{"a"}
	if len(engine.drafts) != len(want) || engine.drafts[0] != want[0] {
		t.Errorf("unexpected draft updates: %v", engine.drafts)
	}
}

func TestTruncatePreservesEscapeSequences(t *testing.T) {
	styled := "\x1b[1mAlice\x1b[0m says hello world"

	got := truncate(styled, 10)
	if width := ansi.StringWidth(got); width > 10 {
		t.Errorf("truncated width %d exceeds 10: %q", width, got)
	}
	if !strings.HasPrefix(got, "\x1b[1m") {
		t.Errorf("leading escape sequence lost: %q", got)
	}
	if plain := ansi.Strip(got); !strings.HasPrefix(plain, "Alice") {
		t.Errorf("visible text mangled: %q", plain)
	}

	// Short strings pass through untouched, escapes and all.
	if got := truncate(styled, 80); got != styled {
		t.Errorf("short string modified: %q", got)
	}
}

func TestFilterNarrowsAndSelectsRooms(t *testing.T) {
	engine := newRecordingEngine(session.Snapshot{Rooms: []chat.Room{
		{ID: 1, Name: "general"},
		{ID: 2, Name: "engineering"},
		{ID: 3, Name: "random"},
	}})
	m := newModel(engine)
	m.snapshot = engine.Snapshot()

	m = update(t, m, runeKey('/'))
	if !m.filtering {
		t.Fatal("'/' should enter filter mode")
	}
	for _, r := range "rand" {
		m = update(t, m, runeKey(r))
	}

	visible := m.visibleRooms()
	if len(visible) != 1 || visible[0].ID != 3 {
		t.Fatalf("expected only room 3 to match %q, got %+v", m.filter, visible)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if len(engine.selected) != 1 || engine.selected[0] != 3 {
		t.Errorf("expected room 3 selected, got %v", engine.selected)
	}
	if m.filtering {
		t.Error("selection should leave filter mode")
	}
}

func TestFilterEscapeRestoresFullList(t *testing.T) {
	engine := newRecordingEngine(session.Snapshot{Rooms: []chat.Room{
		{ID: 1, Name: "general"},
		{ID: 2, Name: "random"},
	}})
	m := newModel(engine)
	m.snapshot = engine.Snapshot()

	m = update(t, m, runeKey('/'))
	m = update(t, m, runeKey('g'))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEscape})

	if m.filtering {
		t.Error("esc should leave filter mode")
	}
	if got := len(m.visibleRooms()); got != 2 {
		t.Errorf("expected all rooms visible again, got %d", got)
	}
}
