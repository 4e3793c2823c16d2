// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package rest implements the chat server's HTTP API: room listing and
// management, paginated message history, message and image posting, and
// invite handling. The session engine consumes it through the narrow [API]
// interface so tests can script responses without a server.
package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/parley-chat/parley/chat"
)

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// BaseURL is the server's base URL (e.g., "https://chat.example.com").
	BaseURL string
	// AuthToken is the bearer token attached to every request.
	AuthToken string
	// HTTPClient is used for all requests. If nil, http.DefaultClient.
	HTTPClient *http.Client
	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
}

// Client talks HTTP to the chat server. Clients are lightweight; the
// underlying *http.Client does the connection pooling.
type Client struct {
	baseURL    string
	authToken  string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient validates the configuration and returns a Client.
func NewClient(config ClientConfig) (*Client, error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("rest: BaseURL is required")
	}
	if _, err := url.Parse(config.BaseURL); err != nil {
		return nil, fmt.Errorf("rest: invalid BaseURL %q: %w", config.BaseURL, err)
	}

	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		baseURL:    strings.TrimRight(config.BaseURL, "/"),
		authToken:  config.AuthToken,
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// Login exchanges credentials for a bearer token. It works on a client
// built with an empty AuthToken; callers typically build one client to
// log in, then a second one carrying the returned token.
func (c *Client) Login(ctx context.Context, request LoginRequest) (LoginResponse, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/login", request, nil)
	if err != nil {
		return LoginResponse{}, fmt.Errorf("rest: logging in: %w", err)
	}

	var response LoginResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return LoginResponse{}, fmt.Errorf("rest: parsing login response: %w", err)
	}
	if response.Token == "" {
		return LoginResponse{}, fmt.Errorf("rest: login response carried no token")
	}
	return response, nil
}

// Rooms lists all rooms visible to the authenticated user.
func (c *Client) Rooms(ctx context.Context) ([]chat.Room, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/rooms", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("rest: listing rooms: %w", err)
	}

	var rooms []chat.Room
	if err := json.Unmarshal(body, &rooms); err != nil {
		return nil, fmt.Errorf("rest: parsing rooms response: %w", err)
	}
	return rooms, nil
}

// Messages fetches up to limit messages older than beforeID from a room.
// A zero beforeID fetches the newest page.
func (c *Client) Messages(ctx context.Context, roomID chat.RoomID, limit int, beforeID chat.MessageID) ([]chat.Message, error) {
	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))
	if beforeID > 0 {
		query.Set("before_id", strconv.FormatInt(int64(beforeID), 10))
	}

	path := fmt.Sprintf("/api/rooms/%d/messages", roomID)
	body, err := c.doRequest(ctx, http.MethodGet, path, nil, query)
	if err != nil {
		return nil, fmt.Errorf("rest: fetching messages for room %d: %w", roomID, err)
	}

	var messages []chat.Message
	if err := json.Unmarshal(body, &messages); err != nil {
		return nil, fmt.Errorf("rest: parsing messages response: %w", err)
	}
	return messages, nil
}

// PostMessage creates a text message in a room.
func (c *Client) PostMessage(ctx context.Context, roomID chat.RoomID, text string) (chat.Message, error) {
	path := fmt.Sprintf("/api/rooms/%d/messages", roomID)
	body, err := c.doRequest(ctx, http.MethodPost, path, map[string]string{"text": text}, nil)
	if err != nil {
		return chat.Message{}, fmt.Errorf("rest: posting message to room %d: %w", roomID, err)
	}

	var message chat.Message
	if err := json.Unmarshal(body, &message); err != nil {
		return chat.Message{}, fmt.Errorf("rest: parsing posted message: %w", err)
	}
	return message, nil
}

// UploadImage uploads raw image bytes with an optional caption. The image
// travels as the request body; the caption rides along as a query
// parameter so the body stays a plain byte stream.
func (c *Client) UploadImage(ctx context.Context, roomID chat.RoomID, contentType string, image io.Reader, caption string) (chat.Message, error) {
	path := fmt.Sprintf("/api/rooms/%d/images", roomID)
	if caption != "" {
		path += "?" + url.Values{"caption": []string{caption}}.Encode()
	}

	body, err := c.doRequestRaw(ctx, http.MethodPost, path, contentType, image)
	if err != nil {
		return chat.Message{}, fmt.Errorf("rest: uploading image to room %d: %w", roomID, err)
	}

	var message chat.Message
	if err := json.Unmarshal(body, &message); err != nil {
		return chat.Message{}, fmt.Errorf("rest: parsing uploaded message: %w", err)
	}
	return message, nil
}

// Invites lists the user's pending room invites.
func (c *Client) Invites(ctx context.Context) ([]chat.Invite, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/api/invites", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("rest: listing invites: %w", err)
	}

	var invites []chat.Invite
	if err := json.Unmarshal(body, &invites); err != nil {
		return nil, fmt.Errorf("rest: parsing invites response: %w", err)
	}
	return invites, nil
}

// AcceptInvite accepts a pending invite and returns the joined room.
func (c *Client) AcceptInvite(ctx context.Context, roomID chat.RoomID) (chat.Room, error) {
	path := fmt.Sprintf("/api/invites/%d/accept", roomID)
	body, err := c.doRequest(ctx, http.MethodPost, path, struct{}{}, nil)
	if err != nil {
		return chat.Room{}, fmt.Errorf("rest: accepting invite for room %d: %w", roomID, err)
	}

	var room chat.Room
	if err := json.Unmarshal(body, &room); err != nil {
		return chat.Room{}, fmt.Errorf("rest: parsing accepted room: %w", err)
	}
	return room, nil
}

// DeclineInvite declines a pending invite.
func (c *Client) DeclineInvite(ctx context.Context, roomID chat.RoomID) error {
	path := fmt.Sprintf("/api/invites/%d/decline", roomID)
	if _, err := c.doRequest(ctx, http.MethodPost, path, struct{}{}, nil); err != nil {
		return fmt.Errorf("rest: declining invite for room %d: %w", roomID, err)
	}
	return nil
}

// CreateRoom creates a room owned by the authenticated user.
func (c *Client) CreateRoom(ctx context.Context, request CreateRoomRequest) (chat.Room, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/rooms", request, nil)
	if err != nil {
		return chat.Room{}, fmt.Errorf("rest: creating room: %w", err)
	}

	var room chat.Room
	if err := json.Unmarshal(body, &room); err != nil {
		return chat.Room{}, fmt.Errorf("rest: parsing created room: %w", err)
	}

	c.logger.Info("created room", "room_id", room.ID, "name", room.Name)
	return room, nil
}

// UpdateRoom replaces a room's mutable fields wholesale.
func (c *Client) UpdateRoom(ctx context.Context, roomID chat.RoomID, request UpdateRoomRequest) (chat.Room, error) {
	path := fmt.Sprintf("/api/rooms/%d", roomID)
	body, err := c.doRequest(ctx, http.MethodPut, path, request, nil)
	if err != nil {
		return chat.Room{}, fmt.Errorf("rest: updating room %d: %w", roomID, err)
	}

	var room chat.Room
	if err := json.Unmarshal(body, &room); err != nil {
		return chat.Room{}, fmt.Errorf("rest: parsing updated room: %w", err)
	}
	return room, nil
}

// DeleteRoom deletes a room.
func (c *Client) DeleteRoom(ctx context.Context, roomID chat.RoomID) error {
	path := fmt.Sprintf("/api/rooms/%d", roomID)
	if _, err := c.doRequest(ctx, http.MethodDelete, path, nil, nil); err != nil {
		return fmt.Errorf("rest: deleting room %d: %w", roomID, err)
	}
	return nil
}

// doRequest performs a JSON request against the server. On 2xx it returns
// the response body; on any other status it parses the server's error
// shape into an *APIError.
func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.authToken != "" {
		request.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	return c.send(request, method, path)
}

// doRequestRaw performs a request with a raw body (image upload).
func (c *Client) doRequestRaw(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	request, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		request.Header.Set("Content-Type", contentType)
	}
	if c.authToken != "" {
		request.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	return c.send(request, method, path)
}

func (c *Client) send(request *http.Request, method, path string) ([]byte, error) {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	// All server error responses share one JSON shape. A non-JSON error
	// body means something between us and the server (proxy, load
	// balancer) answered instead — fail loud with the raw body.
	var apiErr APIError
	if jsonErr := json.Unmarshal(responseBody, &apiErr); jsonErr != nil {
		return nil, fmt.Errorf("unexpected %d response from %s %s: %s",
			response.StatusCode, method, path, string(responseBody))
	}
	apiErr.StatusCode = response.StatusCode
	return nil, &apiErr
}
