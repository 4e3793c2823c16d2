// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"fmt"
)

// Wire names for push events. The server emits and accepts these names on
// the duplex connection; they are the only strings shared between the
// decode path and the outbound emit calls.
const (
	EventNameNewMessage    = "message:new"
	EventNameUserJoined    = "room:user_joined"
	EventNameUserLeft      = "room:user_left"
	EventNameTyping        = "typing:start"
	EventNameTypingStopped = "typing:stop"
	EventNameError         = "error"

	// Outbound-only signals. The server never pushes these back.
	EventNameJoin  = "room:join"
	EventNameLeave = "room:leave"
)

// Event is a typed push event decoded from the duplex connection. The
// concrete types below are the complete set; the interface is sealed so a
// switch over events is exhaustive.
type Event interface {
	eventName() string
}

// MessageEvent carries a newly created message pushed by the server.
type MessageEvent struct {
	Message Message
}

// MemberJoinedEvent reports a user joining a room.
type MemberJoinedEvent struct {
	RoomID RoomID
	Handle string
}

// MemberLeftEvent reports a user leaving a room.
type MemberLeftEvent struct {
	RoomID RoomID
	Handle string
}

// TypingEvent reports a user starting (or continuing) to type in a room.
type TypingEvent struct {
	RoomID RoomID
	Handle string
}

// TypingStoppedEvent reports a user explicitly stopping typing.
type TypingStoppedEvent struct {
	RoomID RoomID
	Handle string
}

// ServerErrorEvent carries an error pushed by the server over the live
// connection (for example, a rejected emit). It is informational: the
// channel stays connected.
type ServerErrorEvent struct {
	Message string
}

func (MessageEvent) eventName() string       { return EventNameNewMessage }
func (MemberJoinedEvent) eventName() string  { return EventNameUserJoined }
func (MemberLeftEvent) eventName() string    { return EventNameUserLeft }
func (TypingEvent) eventName() string        { return EventNameTyping }
func (TypingStoppedEvent) eventName() string { return EventNameTypingStopped }
func (ServerErrorEvent) eventName() string   { return EventNameError }

// roomUserPayload is the wire shape shared by the membership and typing
// events.
type roomUserPayload struct {
	RoomID RoomID `json:"room_id"`
	Handle string `json:"handle"`
}

// errorPayload is the wire shape of server error events.
type errorPayload struct {
	Message string `json:"message"`
}

// JoinPayload is the outbound payload for room join and leave signals.
type JoinPayload struct {
	RoomID RoomID `json:"room_id"`
}

// TypingPayload is the outbound payload for typing start and stop signals.
type TypingPayload struct {
	RoomID RoomID `json:"room_id"`
}

// DecodeEvent converts a raw named event from the duplex connection into a
// typed Event. Unknown names and malformed payloads return an error; the
// channel logs and drops them rather than crashing (a misbehaving server
// must never take the connection down from the client side).
func DecodeEvent(name string, payload json.RawMessage) (Event, error) {
	switch name {
	case EventNameNewMessage:
		var message Message
		if err := json.Unmarshal(payload, &message); err != nil {
			return nil, fmt.Errorf("chat: decoding %s payload: %w", name, err)
		}
		if message.ID == 0 {
			return nil, fmt.Errorf("chat: %s payload missing message id", name)
		}
		return MessageEvent{Message: message}, nil

	case EventNameUserJoined, EventNameUserLeft, EventNameTyping, EventNameTypingStopped:
		var body roomUserPayload
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("chat: decoding %s payload: %w", name, err)
		}
		if body.RoomID == 0 || body.Handle == "" {
			return nil, fmt.Errorf("chat: %s payload missing room id or handle", name)
		}
		switch name {
		case EventNameUserJoined:
			return MemberJoinedEvent{RoomID: body.RoomID, Handle: body.Handle}, nil
		case EventNameUserLeft:
			return MemberLeftEvent{RoomID: body.RoomID, Handle: body.Handle}, nil
		case EventNameTyping:
			return TypingEvent{RoomID: body.RoomID, Handle: body.Handle}, nil
		default:
			return TypingStoppedEvent{RoomID: body.RoomID, Handle: body.Handle}, nil
		}

	case EventNameError:
		var body errorPayload
		if err := json.Unmarshal(payload, &body); err != nil {
			return nil, fmt.Errorf("chat: decoding %s payload: %w", name, err)
		}
		return ServerErrorEvent{Message: body.Message}, nil

	default:
		return nil, fmt.Errorf("chat: unknown push event %q", name)
	}
}

// EventName returns the wire name for a typed event. Useful for logging
// and for tests that assert on emitted frames.
func EventName(event Event) string {
	return event.eventName()
}
