// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"context"
	"io"

	"github.com/parley-chat/parley/chat"
)

// API is the REST surface the session engine consumes. Two implementations
// exist: *Client talks HTTP to a real server; tests supply fakes that
// script responses and record calls.
//
// The engine never retries these operations — a failure surfaces in the
// relevant state snapshot and the user re-triggers (or not).
type API interface {
	// Login exchanges user credentials for a bearer token. It is the
	// one operation that works on an unauthenticated client; every
	// other method requires the token it returns (or one provisioned
	// out of band).
	Login(ctx context.Context, request LoginRequest) (LoginResponse, error)

	// Rooms lists all rooms visible to the authenticated user.
	Rooms(ctx context.Context) ([]chat.Room, error)

	// Messages fetches up to limit messages older than beforeID from a
	// room. A zero beforeID means "the newest page". The returned batch
	// order is whatever the server sent; callers merge by message ID.
	Messages(ctx context.Context, roomID chat.RoomID, limit int, beforeID chat.MessageID) ([]chat.Message, error)

	// PostMessage creates a text message and returns the stored message
	// with its server-assigned ID.
	PostMessage(ctx context.Context, roomID chat.RoomID, text string) (chat.Message, error)

	// UploadImage uploads image bytes with an optional caption and
	// returns the stored message.
	UploadImage(ctx context.Context, roomID chat.RoomID, contentType string, image io.Reader, caption string) (chat.Message, error)

	// Invites lists the user's pending room invites.
	Invites(ctx context.Context) ([]chat.Invite, error)

	// AcceptInvite accepts a pending invite and returns the joined room.
	AcceptInvite(ctx context.Context, roomID chat.RoomID) (chat.Room, error)

	// DeclineInvite declines a pending invite.
	DeclineInvite(ctx context.Context, roomID chat.RoomID) error

	// CreateRoom creates a room owned by the authenticated user.
	CreateRoom(ctx context.Context, request CreateRoomRequest) (chat.Room, error)

	// UpdateRoom replaces a room's mutable fields and returns the new
	// snapshot.
	UpdateRoom(ctx context.Context, roomID chat.RoomID, request UpdateRoomRequest) (chat.Room, error)

	// DeleteRoom deletes a room. Only the owner may do this server-side.
	DeleteRoom(ctx context.Context, roomID chat.RoomID) error
}

// LoginRequest carries user credentials.
type LoginRequest struct {
	Handle   string `json:"handle"`
	Password string `json:"password"`
}

// LoginResponse is the server's answer to a successful login.
type LoginResponse struct {
	// Token is the bearer token for all subsequent requests.
	Token string `json:"token"`

	// Handle echoes the authenticated user's handle.
	Handle string `json:"handle"`
}

// CreateRoomRequest holds the parameters for creating a room.
type CreateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// UpdateRoomRequest replaces a room's mutable fields wholesale.
type UpdateRoomRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Active      bool   `json:"active"`
}

// Compile-time check: *Client implements API.
var _ API = (*Client)(nil)
