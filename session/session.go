// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package session is the engine's single entry point for a presentation
// layer. The Orchestrator enforces at-most-one active room, drives
// pagination and sends, debounces outbound typing, and folds every
// collaborator's state into one observable Snapshot feed.
//
// Failures never propagate as panics or returned errors: REST and
// channel problems become error text in the next Snapshot, and the user
// decides whether to retry. Invalid intents (empty send, selecting the
// room that is already active) are silently ignored.
package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-chat/parley/channel"
	"github.com/parley-chat/parley/chat"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/pubsub"
	"github.com/parley-chat/parley/presence"
	"github.com/parley-chat/parley/rest"
	"github.com/parley-chat/parley/roster"
	"github.com/parley-chat/parley/timeline"
)

// defaultTypingDebounce is the outbound silence window: one typing-start
// goes out, and a stop follows automatically after this much keyboard
// silence unless a send or explicit stop gets there first.
const defaultTypingDebounce = 2 * time.Second

// Link is the live-connection surface the orchestrator drives.
// *channel.Channel implements it; tests substitute fakes.
type Link interface {
	Connect(authToken string)
	Disconnect()
	Send(name string, payload any) bool
	State() channel.State
	SetRejoinHook(hook func())
	SubscribeEvents() *pubsub.Subscription[chat.Event]
	SubscribeState() *pubsub.Subscription[channel.State]
}

// Image is an outgoing image attachment.
type Image struct {
	ContentType string
	Data        io.Reader
}

// Config holds the Orchestrator's collaborators and tunables.
type Config struct {
	// API is the REST transport. Required.
	API rest.API

	// Link is the live connection. Required.
	Link Link

	// Clock drives the typing debounce. If nil, clock.Real().
	Clock clock.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// PageSize overrides the history page size when positive.
	PageSize int

	// TypingDebounce overrides the outbound typing silence window when
	// positive.
	TypingDebounce time.Duration
}

// Orchestrator owns the session state machine. Create one with New,
// bring it up with Connect, and tear it down with Close. Safe for
// concurrent use.
type Orchestrator struct {
	api            rest.API
	link           Link
	clock          clock.Clock
	logger         *slog.Logger
	typingDebounce time.Duration

	roster    *roster.Tracker
	timelines *timeline.Merger
	presence  *presence.Coordinator

	snapshots *pubsub.Feed[Snapshot]

	ctx      context.Context
	cancel   context.CancelFunc
	loopDone chan struct{}

	eventsSub *pubsub.Subscription[chat.Event]
	stateSub  *pubsub.Subscription[channel.State]

	// selectMu serializes selection lifecycle changes (SelectRoom,
	// LeaveRoom, DeleteRoom, Close) so two concurrent switches cannot
	// both install a successor. Never held while o.mu is wanted by a
	// callback path; always acquired before o.mu.
	selectMu sync.Mutex

	mu         sync.Mutex
	closed     bool
	connection channel.State
	rooms      []chat.Room
	invites    []chat.Invite
	errorText  string
	active     *activeRoom
}

// activeRoom is the state owned by one room selection. A fresh value is
// allocated per selection; pointer identity is what lets late page
// results and timer callbacks detect they belong to a superseded
// selection and discard themselves.
type activeRoom struct {
	roomID      chat.RoomID
	done        chan struct{}
	timelineSub *pubsub.Subscription[[]chat.Message]
	typingSub   *pubsub.Subscription[[]string]

	messages    []chat.Message
	typingUsers []string
	loading     bool
	hasMore     bool
	draft       string
	errorText   string

	typingActive bool
	typingTimer  *clock.Timer
}

// New wires up an Orchestrator: it builds the membership tracker, the
// timeline merger, and the presence coordinator around the given
// transports, registers the rejoin hook on the link, and starts the
// inbound event loop. The link stays disconnected until Connect.
func New(config Config) *Orchestrator {
	if config.API == nil {
		panic("session: Config.API is required")
	}
	if config.Link == nil {
		panic("session: Config.Link is required")
	}
	sessionClock := config.Clock
	if sessionClock == nil {
		sessionClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	debounce := config.TypingDebounce
	if debounce <= 0 {
		debounce = defaultTypingDebounce
	}

	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		api:            config.API,
		link:           config.Link,
		clock:          sessionClock,
		logger:         logger,
		typingDebounce: debounce,
		roster:         roster.New(config.Link, logger),
		timelines: timeline.New(timeline.Config{
			API:      config.API,
			PageSize: config.PageSize,
			Logger:   logger,
		}),
		presence:   presence.New(presence.Config{Clock: sessionClock, Logger: logger}),
		snapshots:  pubsub.NewFeed[Snapshot](1),
		ctx:        ctx,
		cancel:     cancel,
		loopDone:   make(chan struct{}),
		connection: config.Link.State(),
	}

	o.link.SetRejoinHook(o.roster.Rejoin)
	o.eventsSub = o.link.SubscribeEvents()
	o.stateSub = o.link.SubscribeState()
	go o.loop()
	return o
}

// Subscribe returns a subscription delivering the latest Snapshot after
// every state change. Capacity-1 semantics: a slow consumer sees the
// newest snapshot, never a backlog of stale ones.
func (o *Orchestrator) Subscribe() *pubsub.Subscription[Snapshot] {
	return o.snapshots.Subscribe()
}

// Snapshot returns the current state.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.snapshotLocked()
}

// Connect brings the live connection up and loads the room and invite
// lists in the background.
func (o *Orchestrator) Connect(authToken string) {
	o.link.Connect(authToken)
	go o.Refresh(o.ctx)
}

// Refresh reloads the room and invite lists. A failure lands in
// Snapshot.Error; a success clears it.
func (o *Orchestrator) Refresh(ctx context.Context) {
	rooms, err := o.api.Rooms(ctx)
	if err != nil {
		o.setError(err.Error())
		return
	}
	invites, err := o.api.Invites(ctx)
	if err != nil {
		o.setError(err.Error())
		return
	}

	o.mu.Lock()
	o.rooms = rooms
	o.invites = invites
	o.errorText = ""
	snapshot := o.snapshotLocked()
	o.mu.Unlock()
	o.snapshots.Publish(snapshot)
}

// SelectRoom makes roomID the active room. The previous room, if any,
// is implicitly left: its pending typing stops, its subscriptions are
// cancelled before the new ones start, and a leave signal goes out.
// Selecting the already-active room is a no-op. The newest history page
// loads in the background; Loading is true on the snapshot until it
// lands.
func (o *Orchestrator) SelectRoom(roomID chat.RoomID) {
	o.selectMu.Lock()
	defer o.selectMu.Unlock()

	o.mu.Lock()
	if o.closed || (o.active != nil && o.active.roomID == roomID) {
		o.mu.Unlock()
		return
	}
	previous := o.active
	o.active = nil
	o.mu.Unlock()

	if previous != nil {
		o.teardownActive(previous, true)
	}

	active := &activeRoom{
		roomID:  roomID,
		done:    make(chan struct{}),
		loading: true,
		hasMore: true,
	}
	active.timelineSub = o.timelines.Subscribe(roomID)
	active.typingSub = o.presence.Subscribe(roomID)
	active.messages = o.timelines.Messages(roomID)
	active.typingUsers = o.presence.Typing(roomID)

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		o.teardownActive(active, false)
		return
	}
	o.active = active
	snapshot := o.snapshotLocked()
	o.mu.Unlock()

	o.roster.Join(roomID)
	go o.forward(active)
	go o.loadPage(active, 0)
	o.snapshots.Publish(snapshot)
}

// LeaveRoom deactivates the current room and leaves it. No-op when no
// room is active.
func (o *Orchestrator) LeaveRoom() {
	o.selectMu.Lock()
	defer o.selectMu.Unlock()

	o.mu.Lock()
	active := o.active
	o.active = nil
	snapshot := o.snapshotLocked()
	o.mu.Unlock()

	if active == nil {
		return
	}
	o.teardownActive(active, true)
	o.snapshots.Publish(snapshot)
}

// LoadMoreMessages fetches the page older than the oldest held message.
// No-op when no room is active, when a fetch is already in flight, or
// when a previous short page showed history is exhausted.
func (o *Orchestrator) LoadMoreMessages() {
	o.mu.Lock()
	active := o.active
	if active == nil || active.loading || !active.hasMore {
		o.mu.Unlock()
		return
	}
	oldest, ok := o.timelines.OldestID(active.roomID)
	if !ok {
		o.mu.Unlock()
		return
	}
	active.loading = true
	snapshot := o.snapshotLocked()
	o.mu.Unlock()

	go o.loadPage(active, oldest)
	o.snapshots.Publish(snapshot)
}

// SendMessage posts text (and optionally an image) to the active room.
// An intent with nothing to send is silently ignored. On success the
// draft and room error clear; on failure the text is preserved as the
// draft and the error surfaces on the snapshot, so the user can retry.
// Sending also counts as the end of typing.
func (o *Orchestrator) SendMessage(ctx context.Context, text string, image *Image) {
	if text == "" && image == nil {
		return
	}

	o.mu.Lock()
	active := o.active
	if active == nil {
		o.mu.Unlock()
		return
	}
	roomID := active.roomID
	o.mu.Unlock()

	o.stopTyping(active)

	var err error
	if image != nil {
		_, err = o.api.UploadImage(ctx, roomID, image.ContentType, image.Data, text)
	} else {
		_, err = o.api.PostMessage(ctx, roomID, text)
	}

	o.mu.Lock()
	if o.active != active {
		o.mu.Unlock()
		return
	}
	if err != nil {
		active.draft = text
		active.errorText = err.Error()
	} else {
		active.draft = ""
		active.errorText = ""
	}
	snapshot := o.snapshotLocked()
	o.mu.Unlock()
	o.snapshots.Publish(snapshot)
}

// SetDraft records the in-progress input text for the active room so it
// survives snapshots and failed sends.
func (o *Orchestrator) SetDraft(text string) {
	o.mu.Lock()
	if o.active == nil {
		o.mu.Unlock()
		return
	}
	o.active.draft = text
	snapshot := o.snapshotLocked()
	o.mu.Unlock()
	o.snapshots.Publish(snapshot)
}

// NotifyTyping records a keystroke in the active room. The first call
// of a burst emits one typing-start; every call re-arms the silence
// timer that auto-emits a stop after the debounce window.
func (o *Orchestrator) NotifyTyping() {
	o.mu.Lock()
	active := o.active
	if active == nil {
		o.mu.Unlock()
		return
	}
	if active.typingActive {
		active.typingTimer.Reset(o.typingDebounce)
		o.mu.Unlock()
		return
	}
	active.typingActive = true
	active.typingTimer = o.clock.AfterFunc(o.typingDebounce, func() {
		o.stopTyping(active)
	})
	roomID := active.roomID
	o.mu.Unlock()

	o.link.Send(chat.EventNameTyping, chat.TypingPayload{RoomID: roomID})
}

// AcceptInvite accepts a pending invite. On success the invite
// disappears and the joined room lands in the room list.
func (o *Orchestrator) AcceptInvite(ctx context.Context, roomID chat.RoomID) {
	room, err := o.api.AcceptInvite(ctx, roomID)
	if err != nil {
		o.setError(err.Error())
		return
	}

	o.mu.Lock()
	o.removeInviteLocked(roomID)
	o.upsertRoomLocked(room)
	o.errorText = ""
	snapshot := o.snapshotLocked()
	o.mu.Unlock()
	o.snapshots.Publish(snapshot)
}

// DeclineInvite declines a pending invite and drops it from the list.
func (o *Orchestrator) DeclineInvite(ctx context.Context, roomID chat.RoomID) {
	if err := o.api.DeclineInvite(ctx, roomID); err != nil {
		o.setError(err.Error())
		return
	}

	o.mu.Lock()
	o.removeInviteLocked(roomID)
	o.errorText = ""
	snapshot := o.snapshotLocked()
	o.mu.Unlock()
	o.snapshots.Publish(snapshot)
}

// CreateRoom creates a room and adds it to the room list.
func (o *Orchestrator) CreateRoom(ctx context.Context, request rest.CreateRoomRequest) {
	room, err := o.api.CreateRoom(ctx, request)
	if err != nil {
		o.setError(err.Error())
		return
	}

	o.mu.Lock()
	o.upsertRoomLocked(room)
	o.errorText = ""
	snapshot := o.snapshotLocked()
	o.mu.Unlock()
	o.snapshots.Publish(snapshot)
}

// UpdateRoom replaces a room's mutable fields.
func (o *Orchestrator) UpdateRoom(ctx context.Context, roomID chat.RoomID, request rest.UpdateRoomRequest) {
	room, err := o.api.UpdateRoom(ctx, roomID, request)
	if err != nil {
		o.setError(err.Error())
		return
	}

	o.mu.Lock()
	o.upsertRoomLocked(room)
	o.errorText = ""
	snapshot := o.snapshotLocked()
	o.mu.Unlock()
	o.snapshots.Publish(snapshot)
}

// DeleteRoom deletes a room. If it was active, the session drops back
// to no-active-room.
func (o *Orchestrator) DeleteRoom(ctx context.Context, roomID chat.RoomID) {
	o.selectMu.Lock()
	defer o.selectMu.Unlock()

	if err := o.api.DeleteRoom(ctx, roomID); err != nil {
		o.setError(err.Error())
		return
	}

	o.mu.Lock()
	for i, room := range o.rooms {
		if room.ID == roomID {
			o.rooms = append(o.rooms[:i], o.rooms[i+1:]...)
			break
		}
	}
	active := o.active
	if active != nil && active.roomID == roomID {
		o.active = nil
	} else {
		active = nil
	}
	o.errorText = ""
	snapshot := o.snapshotLocked()
	o.mu.Unlock()

	if active != nil {
		o.teardownActive(active, true)
	}
	o.snapshots.Publish(snapshot)
}

// Close leaves the active room, disconnects the live connection, and
// stops the event loop. Nothing outlives it: no subscription, timer, or
// goroutine owned by the orchestrator remains after Close returns.
// Idempotent.
func (o *Orchestrator) Close() {
	o.selectMu.Lock()
	defer o.selectMu.Unlock()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return
	}
	o.closed = true
	active := o.active
	o.active = nil
	o.mu.Unlock()

	if active != nil {
		o.teardownActive(active, true)
	}
	o.cancel()
	o.eventsSub.Cancel()
	o.stateSub.Cancel()
	<-o.loopDone
	o.link.Disconnect()
	o.snapshots.Close()
}

// loop is the single inbound dispatcher: typed channel events update
// the timeline merger and presence coordinator, state transitions
// update the snapshot. It exits when both subscriptions are cancelled.
func (o *Orchestrator) loop() {
	defer close(o.loopDone)

	events := o.eventsSub.C()
	states := o.stateSub.C()
	for events != nil || states != nil {
		select {
		case event, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			o.handleEvent(event)
		case state, ok := <-states:
			if !ok {
				states = nil
				continue
			}
			o.mu.Lock()
			o.connection = state
			snapshot := o.snapshotLocked()
			o.mu.Unlock()
			o.snapshots.Publish(snapshot)
		}
	}
}

func (o *Orchestrator) handleEvent(event chat.Event) {
	switch event := event.(type) {
	case chat.MessageEvent:
		o.timelines.ApplyLiveMessage(event.Message)
	case chat.TypingEvent:
		o.presence.HandleTyping(event.RoomID, event.Handle)
	case chat.TypingStoppedEvent:
		o.presence.HandleStoppedTyping(event.RoomID, event.Handle)
	case chat.MemberJoinedEvent:
		o.logger.Debug("member joined", "room_id", event.RoomID, "handle", event.Handle)
	case chat.MemberLeftEvent:
		// A leaving member can no longer be typing.
		o.presence.HandleStoppedTyping(event.RoomID, event.Handle)
	case chat.ServerErrorEvent:
		o.logger.Warn("server error event", "message", event.Message)
	}
}

// forward pumps one selection's timeline and typing snapshots into the
// aggregate snapshot. It exits when the selection is torn down. The
// o.active identity check makes a raced late delivery harmless: state
// from a superseded selection never reaches the snapshot.
func (o *Orchestrator) forward(active *activeRoom) {
	for {
		select {
		case <-active.done:
			return
		case messages, ok := <-active.timelineSub.C():
			if !ok {
				return
			}
			o.mu.Lock()
			if o.active != active {
				o.mu.Unlock()
				return
			}
			active.messages = messages
			snapshot := o.snapshotLocked()
			o.mu.Unlock()
			o.snapshots.Publish(snapshot)
		case typingUsers, ok := <-active.typingSub.C():
			if !ok {
				return
			}
			o.mu.Lock()
			if o.active != active {
				o.mu.Unlock()
				return
			}
			active.typingUsers = typingUsers
			snapshot := o.snapshotLocked()
			o.mu.Unlock()
			o.snapshots.Publish(snapshot)
		}
	}
}

// loadPage runs one history fetch for a selection. A result that
// arrives after the selection was superseded is discarded.
func (o *Orchestrator) loadPage(active *activeRoom, beforeID chat.MessageID) {
	count, err := o.timelines.LoadPage(o.ctx, active.roomID, beforeID)

	o.mu.Lock()
	if o.active != active {
		o.mu.Unlock()
		return
	}
	active.loading = false
	if err != nil {
		active.errorText = err.Error()
	} else {
		active.errorText = ""
		active.hasMore = count >= o.timelines.PageSize()
	}
	snapshot := o.snapshotLocked()
	o.mu.Unlock()
	o.snapshots.Publish(snapshot)
}

// teardownActive ends a selection: pending typing stops, the forwarder
// exits, and the feed subscriptions are cancelled before the caller
// installs any successor. leave controls whether membership is given
// up, which also signals the server.
func (o *Orchestrator) teardownActive(active *activeRoom, leave bool) {
	o.stopTyping(active)
	close(active.done)
	active.timelineSub.Cancel()
	active.typingSub.Cancel()
	if leave {
		o.roster.Leave(active.roomID)
	}
}

// stopTyping emits the debounced typing-stop if a burst is open.
// Doubles as the silence-timer callback, so it tolerates racing an
// explicit stop.
func (o *Orchestrator) stopTyping(active *activeRoom) {
	o.mu.Lock()
	if !active.typingActive {
		o.mu.Unlock()
		return
	}
	active.typingActive = false
	active.typingTimer.Stop()
	roomID := active.roomID
	o.mu.Unlock()

	o.link.Send(chat.EventNameTypingStopped, chat.TypingPayload{RoomID: roomID})
}

func (o *Orchestrator) setError(text string) {
	o.mu.Lock()
	o.errorText = text
	snapshot := o.snapshotLocked()
	o.mu.Unlock()
	o.snapshots.Publish(snapshot)
}

func (o *Orchestrator) removeInviteLocked(roomID chat.RoomID) {
	for i, invite := range o.invites {
		if invite.RoomID == roomID {
			o.invites = append(o.invites[:i], o.invites[i+1:]...)
			return
		}
	}
}

func (o *Orchestrator) upsertRoomLocked(room chat.Room) {
	for i, existing := range o.rooms {
		if existing.ID == room.ID {
			o.rooms[i] = room
			return
		}
	}
	o.rooms = append(o.rooms, room)
}

// snapshotLocked builds a Snapshot from the current state. Callers hold
// o.mu.
func (o *Orchestrator) snapshotLocked() Snapshot {
	snapshot := Snapshot{
		Connection: o.connection,
		Rooms:      append([]chat.Room(nil), o.rooms...),
		Invites:    append([]chat.Invite(nil), o.invites...),
		Error:      o.errorText,
	}
	if o.active != nil {
		snapshot.Room = &RoomView{
			ID:          o.active.roomID,
			Messages:    append([]chat.Message(nil), o.active.messages...),
			TypingUsers: append([]string(nil), o.active.typingUsers...),
			Loading:     o.active.loading,
			HasMore:     o.active.hasMore,
			Draft:       o.active.draft,
			Error:       o.active.errorText,
		}
	}
	return snapshot
}
