// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parley-chat/parley/chat"
)

// newTestClient creates a Client pointing at a test server.
func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{BaseURL: server.URL, AuthToken: "test-token"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	return client
}

func assertAuth(t *testing.T, request *http.Request) {
	t.Helper()
	if got := request.Header.Get("Authorization"); got != "Bearer test-token" {
		t.Errorf("unexpected Authorization header: %q", got)
	}
}

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(value)
}

func TestLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost || request.URL.Path != "/api/login" {
			t.Errorf("unexpected request: %s %s", request.Method, request.URL.Path)
		}
		// Login runs before any token exists; the request must not
		// carry a stale or empty Authorization header.
		if got := request.Header.Get("Authorization"); got != "" {
			t.Errorf("login request carried Authorization header %q", got)
		}
		var body LoginRequest
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if body.Handle != "alice" || body.Password != "hunter2" {
			t.Errorf("unexpected credentials: %+v", body)
		}
		writeJSON(writer, LoginResponse{Token: "issued-token", Handle: "alice"})
	}))
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	response, err := client.Login(context.Background(), LoginRequest{Handle: "alice", Password: "hunter2"})
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if response.Token != "issued-token" {
		t.Errorf("unexpected token: %q", response.Token)
	}
}

func TestLoginRejectsEmptyToken(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writeJSON(writer, LoginResponse{Handle: "alice"})
	}))

	if _, err := client.Login(context.Background(), LoginRequest{Handle: "alice", Password: "pw"}); err == nil {
		t.Fatal("expected error for login response without a token")
	}
}

func TestMessagesPagination(t *testing.T) {
	t.Run("newest page omits before_id", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assertAuth(t, request)
			if request.URL.Path != "/api/rooms/7/messages" {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			if got := request.URL.Query().Get("limit"); got != "50" {
				t.Errorf("unexpected limit: %q", got)
			}
			if request.URL.Query().Has("before_id") {
				t.Error("before_id should be absent for the newest page")
			}
			writeJSON(writer, []chat.Message{{ID: 149, RoomID: 7, Text: "latest"}})
		}))

		messages, err := client.Messages(context.Background(), 7, 50, 0)
		if err != nil {
			t.Fatalf("Messages failed: %v", err)
		}
		if len(messages) != 1 || messages[0].ID != 149 {
			t.Errorf("unexpected batch: %+v", messages)
		}
	})

	t.Run("older page carries before_id", func(t *testing.T) {
		client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if got := request.URL.Query().Get("before_id"); got != "100" {
				t.Errorf("unexpected before_id: %q", got)
			}
			writeJSON(writer, []chat.Message{})
		}))

		if _, err := client.Messages(context.Background(), 7, 50, 100); err != nil {
			t.Fatalf("Messages failed: %v", err)
		}
	})
}

func TestPostMessage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request)
		if request.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", request.Method)
		}
		var body map[string]string
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if body["text"] != "hello" {
			t.Errorf("unexpected text: %q", body["text"])
		}
		writeJSON(writer, chat.Message{ID: 150, RoomID: 7, Text: "hello", AuthorHandle: "alice", CreatedAt: time.Now()})
	}))

	message, err := client.PostMessage(context.Background(), 7, "hello")
	if err != nil {
		t.Fatalf("PostMessage failed: %v", err)
	}
	if message.ID != 150 {
		t.Errorf("unexpected message ID: %d", message.ID)
	}
}

func TestUploadImage(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if got := request.Header.Get("Content-Type"); got != "image/png" {
			t.Errorf("unexpected content type: %q", got)
		}
		if got := request.URL.Query().Get("caption"); got != "vacation" {
			t.Errorf("unexpected caption: %q", got)
		}
		payload, _ := io.ReadAll(request.Body)
		if string(payload) != "png-bytes" {
			t.Errorf("unexpected body: %q", payload)
		}
		writeJSON(writer, chat.Message{ID: 151, RoomID: 7, ImageURL: "/media/151.png"})
	}))

	message, err := client.UploadImage(context.Background(), 7, "image/png", strings.NewReader("png-bytes"), "vacation")
	if err != nil {
		t.Fatalf("UploadImage failed: %v", err)
	}
	if message.ImageURL != "/media/151.png" {
		t.Errorf("unexpected image URL: %q", message.ImageURL)
	}
}

func TestAcceptInvite(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if request.URL.Path != "/api/invites/9/accept" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writeJSON(writer, chat.Room{ID: 9, Name: "general", Active: true})
	}))

	room, err := client.AcceptInvite(context.Background(), 9)
	if err != nil {
		t.Fatalf("AcceptInvite failed: %v", err)
	}
	if room.ID != 9 || !room.Active {
		t.Errorf("unexpected room: %+v", room)
	}
}

func TestAPIErrorExtraction(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "application/json")
		writer.WriteHeader(http.StatusNotFound)
		json.NewEncoder(writer).Encode(APIError{Code: "room_not_found", Message: "no such room"})
	}))

	_, err := client.Rooms(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != http.StatusNotFound || apiErr.Code != "room_not_found" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
	if !IsStatus(err, http.StatusNotFound) {
		t.Error("IsStatus should match 404")
	}
}

func TestNonJSONErrorBody(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusBadGateway)
		writer.Write([]byte("<html>bad gateway</html>"))
	}))

	_, err := client.Rooms(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		t.Error("non-JSON body should not produce an APIError")
	}
	if !strings.Contains(err.Error(), "502") {
		t.Errorf("error should carry the status code: %v", err)
	}
}
