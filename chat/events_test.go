// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package chat

import (
	"encoding/json"
	"testing"
)

func TestDecodeEventMessage(t *testing.T) {
	payload := json.RawMessage(`{
		"id": 42,
		"room_id": 7,
		"text": "hello",
		"author_id": 3,
		"author_handle": "alice"
	}`)

	event, err := DecodeEvent(EventNameNewMessage, payload)
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	messageEvent, ok := event.(MessageEvent)
	if !ok {
		t.Fatalf("expected MessageEvent, got %T", event)
	}
	if messageEvent.Message.ID != 42 || messageEvent.Message.RoomID != 7 {
		t.Errorf("unexpected ids: %+v", messageEvent.Message)
	}
	if messageEvent.Message.AuthorHandle != "alice" {
		t.Errorf("unexpected author: %q", messageEvent.Message.AuthorHandle)
	}
}

func TestDecodeEventRoomUserShapes(t *testing.T) {
	payload := json.RawMessage(`{"room_id": 9, "handle": "bob"}`)

	tests := []struct {
		name string
		want Event
	}{
		{EventNameUserJoined, MemberJoinedEvent{RoomID: 9, Handle: "bob"}},
		{EventNameUserLeft, MemberLeftEvent{RoomID: 9, Handle: "bob"}},
		{EventNameTyping, TypingEvent{RoomID: 9, Handle: "bob"}},
		{EventNameTypingStopped, TypingStoppedEvent{RoomID: 9, Handle: "bob"}},
	}
	for _, test := range tests {
		event, err := DecodeEvent(test.name, payload)
		if err != nil {
			t.Errorf("DecodeEvent(%s): %v", test.name, err)
			continue
		}
		if event != test.want {
			t.Errorf("DecodeEvent(%s) = %#v, want %#v", test.name, event, test.want)
		}
	}
}

func TestDecodeEventServerError(t *testing.T) {
	event, err := DecodeEvent(EventNameError, json.RawMessage(`{"message": "room is full"}`))
	if err != nil {
		t.Fatalf("DecodeEvent: %v", err)
	}
	if got := event.(ServerErrorEvent).Message; got != "room is full" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestDecodeEventRejectsBadInput(t *testing.T) {
	tests := []struct {
		label   string
		event   string
		payload string
	}{
		{"unknown name", "room:exploded", `{}`},
		{"invalid json", EventNameNewMessage, `{not json`},
		{"message without id", EventNameNewMessage, `{"room_id": 1, "text": "x"}`},
		{"joined without handle", EventNameUserJoined, `{"room_id": 1}`},
		{"typing without room", EventNameTyping, `{"handle": "bob"}`},
	}
	for _, test := range tests {
		if _, err := DecodeEvent(test.event, json.RawMessage(test.payload)); err == nil {
			t.Errorf("%s: expected an error", test.label)
		}
	}
}

func TestEventNameRoundTrip(t *testing.T) {
	events := []Event{
		MessageEvent{},
		MemberJoinedEvent{},
		MemberLeftEvent{},
		TypingEvent{},
		TypingStoppedEvent{},
		ServerErrorEvent{},
	}
	seen := make(map[string]bool)
	for _, event := range events {
		name := EventName(event)
		if name == "" {
			t.Errorf("%T has no wire name", event)
		}
		if seen[name] {
			t.Errorf("duplicate wire name %q", name)
		}
		seen[name] = true
	}
}
