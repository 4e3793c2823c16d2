// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/parley-chat/parley/chat"
	"github.com/parley-chat/parley/lib/pubsub"
	"github.com/parley-chat/parley/session"
)

// chatEngine is the slice of the session orchestrator the UI drives.
// *session.Orchestrator implements it; tests substitute a recorder.
type chatEngine interface {
	Subscribe() *pubsub.Subscription[session.Snapshot]
	Snapshot() session.Snapshot
	SelectRoom(roomID chat.RoomID)
	LoadMoreMessages()
	SendMessage(ctx context.Context, text string, image *session.Image)
	SetDraft(text string)
	NotifyTyping()
	AcceptInvite(ctx context.Context, roomID chat.RoomID)
	DeclineInvite(ctx context.Context, roomID chat.RoomID)
}

var _ chatEngine = (*session.Orchestrator)(nil)

// focusRegion identifies which pane has keyboard focus.
type focusRegion int

const (
	focusRooms focusRegion = iota
	focusComposer
)

var (
	sidebarStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderRight(true).
			PaddingRight(1)
	activeRoomStyle = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.Color("212"))
	cursorStyle  = lipgloss.NewStyle().Reverse(true)
	authorStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle  = lipgloss.NewStyle().Faint(true)
	inviteStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	composeStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.NormalBorder()).
			BorderTop(true)
)

// snapshotMsg delivers an engine snapshot through the bubbletea loop.
type snapshotMsg session.Snapshot

// snapshotClosedMsg means the engine shut down underneath the UI.
type snapshotClosedMsg struct{}

type model struct {
	engine       chatEngine
	subscription *pubsub.Subscription[session.Snapshot]
	snapshot     session.Snapshot

	input  textinput.Model
	focus  focusRegion
	cursor int

	// Fuzzy room filter, active while "/" is being typed in the
	// room list.
	filtering bool
	filter    string

	width  int
	height int
}

func newModel(engine chatEngine) model {
	input := textinput.New()
	input.Placeholder = "message"
	input.CharLimit = 4000

	return model{
		engine:       engine,
		subscription: engine.Subscribe(),
		snapshot:     engine.Snapshot(),
		input:        input,
		focus:        focusRooms,
	}
}

func (m model) Init() tea.Cmd {
	return waitSnapshot(m.subscription)
}

func waitSnapshot(subscription *pubsub.Subscription[session.Snapshot]) tea.Cmd {
	return func() tea.Msg {
		snapshot, ok := <-subscription.C()
		if !ok {
			return snapshotClosedMsg{}
		}
		return snapshotMsg(snapshot)
	}
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.input.Width = msg.Width - 4
		return m, nil

	case snapshotMsg:
		m.snapshot = session.Snapshot(msg)
		if m.cursor >= len(m.snapshot.Rooms) {
			m.cursor = max(0, len(m.snapshot.Rooms)-1)
		}
		// A failed send preserves the text as the room draft; put it
		// back in the composer so the user can retry.
		if room := m.snapshot.Room; room != nil && room.Draft != "" && m.input.Value() == "" {
			m.input.SetValue(room.Draft)
		}
		return m, waitSnapshot(m.subscription)

	case snapshotClosedMsg:
		return m, tea.Quit

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		if m.focus == focusRooms {
			m.focus = focusComposer
			m.input.Focus()
		} else {
			m.focus = focusRooms
			m.input.Blur()
		}
		return m, nil
	case "pgup":
		m.engine.LoadMoreMessages()
		return m, nil
	}

	if m.focus == focusRooms {
		if m.filtering {
			return m.handleFilterKey(msg)
		}
		switch msg.String() {
		case "q":
			return m, tea.Quit
		case "/":
			m.filtering = true
			m.filter = ""
			m.cursor = 0
			return m, nil
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case "down", "j":
			if m.cursor < len(m.visibleRooms())-1 {
				m.cursor++
			}
			return m, nil
		case "enter":
			return m.selectUnderCursor()
		case "a":
			if len(m.snapshot.Invites) > 0 {
				roomID := m.snapshot.Invites[0].RoomID
				return m, func() tea.Msg {
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					m.engine.AcceptInvite(ctx, roomID)
					return nil
				}
			}
			return m, nil
		case "d":
			if len(m.snapshot.Invites) > 0 {
				roomID := m.snapshot.Invites[0].RoomID
				return m, func() tea.Msg {
					ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					m.engine.DeclineInvite(ctx, roomID)
					return nil
				}
			}
			return m, nil
		}
		return m, nil
	}

	// Composer focus.
	switch msg.String() {
	case "enter":
		text := strings.TrimSpace(m.input.Value())
		if text == "" {
			return m, nil
		}
		m.input.Reset()
		return m, func() tea.Msg {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			m.engine.SendMessage(ctx, text, nil)
			return nil
		}
	case "esc":
		m.focus = focusRooms
		m.input.Blur()
		return m, nil
	}

	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	// Cursor movement and other non-edits are not typing; only an
	// actual text change signals the room.
	if value := m.input.Value(); value != before {
		m.engine.NotifyTyping()
		m.engine.SetDraft(value)
	}
	return m, cmd
}

// handleFilterKey routes keys while the fuzzy room filter is active.
func (m model) handleFilterKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.filtering = false
		m.filter = ""
		m.cursor = 0
		return m, nil
	case "enter":
		return m.selectUnderCursor()
	case "backspace":
		if m.filter != "" {
			runes := []rune(m.filter)
			m.filter = string(runes[:len(runes)-1])
			m.cursor = 0
		}
		return m, nil
	case "up":
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	case "down":
		if m.cursor < len(m.visibleRooms())-1 {
			m.cursor++
		}
		return m, nil
	}
	if msg.Type == tea.KeyRunes {
		m.filter += string(msg.Runes)
		m.cursor = 0
	}
	return m, nil
}

// selectUnderCursor opens the room the cursor points at, leaving any
// active filter behind.
func (m model) selectUnderCursor() (tea.Model, tea.Cmd) {
	visible := m.visibleRooms()
	if m.cursor < len(visible) {
		m.engine.SelectRoom(visible[m.cursor].ID)
		m.filtering = false
		m.filter = ""
		m.focus = focusComposer
		m.input.Focus()
	}
	return m, nil
}

// visibleRooms returns the room list as the sidebar shows it: all
// rooms, or the fuzzy-ranked subset while a filter is active.
func (m model) visibleRooms() []chat.Room {
	if !m.filtering || m.filter == "" {
		return m.snapshot.Rooms
	}
	return filterRooms(m.snapshot.Rooms, m.filter)
}

func (m model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	sidebarWidth := min(28, m.width/3)
	timelineWidth := m.width - sidebarWidth - 2
	bodyHeight := m.height - 4

	sidebar := m.renderSidebar(sidebarWidth, bodyHeight)
	timeline := m.renderTimeline(timelineWidth, bodyHeight)
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebarStyle.Width(sidebarWidth).Height(bodyHeight).Render(sidebar),
		lipgloss.NewStyle().Width(timelineWidth).Height(bodyHeight).Render(timeline),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		body,
		composeStyle.Width(m.width).Render(m.input.View()),
		m.renderStatus(),
	)
}

func (m model) renderSidebar(width, height int) string {
	var lines []string
	if m.filtering {
		lines = append(lines, truncate("/"+m.filter, width))
	}
	active := m.snapshot.Room
	for i, room := range m.visibleRooms() {
		name := truncate(room.Name, width-3)
		line := "  " + name
		if active != nil && room.ID == active.ID {
			line = activeRoomStyle.Render("* " + name)
		}
		if m.focus == focusRooms && i == m.cursor {
			line = cursorStyle.Render(line)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, dimStyle.Render("no rooms"))
	}
	for _, invite := range m.snapshot.Invites {
		lines = append(lines, inviteStyle.Render(
			truncate(fmt.Sprintf("! %s (%s)", invite.RoomName, invite.InviterHandle), width)))
	}
	if height > 0 && len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (m model) renderTimeline(width, height int) string {
	room := m.snapshot.Room
	if room == nil {
		return dimStyle.Render("select a room")
	}

	var lines []string
	if room.Loading {
		lines = append(lines, dimStyle.Render("loading..."))
	} else if room.HasMore {
		lines = append(lines, dimStyle.Render("-- pgup for older messages --"))
	}
	for _, message := range room.Messages {
		lines = append(lines, renderMessage(message, width)...)
	}
	if len(room.TypingUsers) > 0 {
		lines = append(lines, dimStyle.Render(typingLine(room.TypingUsers)))
	}
	if room.Error != "" {
		lines = append(lines, errorStyle.Render(truncate(room.Error, width)))
	}

	// Keep the tail visible; the newest message matters most.
	if height > 0 && len(lines) > height {
		lines = lines[len(lines)-height:]
	}
	return strings.Join(lines, "\n")
}

// renderMessage renders one message for the timeline. The body goes
// through the markdown renderer; a single-line result shares the
// author's line, anything longer gets the author as a header.
func renderMessage(message chat.Message, width int) []string {
	header := authorStyle.Render(message.AuthorHandle)
	headerWidth := lipgloss.Width(header) + 1

	body := message.Text
	if message.ImageURL != "" {
		if body != "" {
			body += " "
		}
		body += "[image: " + message.ImageURL + "]"
	}

	rendered := renderMarkdown(body, max(width-headerWidth, 10))
	if rendered == "" {
		return []string{header}
	}
	bodyLines := strings.Split(rendered, "\n")
	if len(bodyLines) == 1 {
		return []string{truncate(header+" "+bodyLines[0], width)}
	}
	lines := make([]string, 0, len(bodyLines)+1)
	lines = append(lines, header)
	for _, line := range bodyLines {
		lines = append(lines, truncate(line, width))
	}
	return lines
}

func typingLine(handles []string) string {
	if len(handles) == 1 {
		return handles[0] + " is typing..."
	}
	return strings.Join(handles, ", ") + " are typing..."
}

func (m model) renderStatus() string {
	parts := []string{m.snapshot.Connection.String()}
	if m.snapshot.Error != "" {
		parts = append(parts, errorStyle.Render(m.snapshot.Error))
	}
	return statusStyle.Render(truncate(strings.Join(parts, "  "), m.width))
}

// truncate cuts s down to the given visible width. ansi.Truncate keeps
// escape sequences intact, so styled strings survive.
func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	return ansi.Truncate(s, width, "…")
}
