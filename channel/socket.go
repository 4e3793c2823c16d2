// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"encoding/json"
)

// RawEvent is a named event as it travels on the wire, before decoding
// into a typed chat.Event.
type RawEvent struct {
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"data,omitempty"`
}

// Socket is one live duplex connection to the server. Implementations
// deliver inbound events on Events and close that channel exactly once
// when the connection dies, whatever the cause. After Events closes the
// socket is dead; the channel dials a fresh one rather than reusing it.
type Socket interface {
	// Emit sends a named event to the server. Fire-and-forget at the
	// protocol level; an error means the connection is unusable.
	Emit(name string, payload any) error

	// Events returns the inbound event stream. Closed when the
	// connection is lost or Close is called.
	Events() <-chan RawEvent

	// Close tears the connection down. Idempotent.
	Close() error
}

// Dialer establishes sockets. The production implementation is
// [WebSocketDialer]; tests inject fakes that script connection outcomes.
type Dialer interface {
	// Dial performs the authentication handshake and returns a live
	// socket. The credential travels with the handshake; a rejected
	// credential is a dial error like any other.
	Dial(ctx context.Context, authToken string) (Socket, error)
}
