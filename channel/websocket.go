// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait is the deadline for a single frame write.
	writeWait = 10 * time.Second
	// pongWait is how long the connection may stay silent before the
	// read side declares it dead. Pings refresh it.
	pongWait = 60 * time.Second
	// pingPeriod is the ping interval. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxFrameSize bounds inbound frames.
	maxFrameSize = 64 * 1024
	// inboundBuffer is the raw event queue between the read pump and
	// the channel's decode loop.
	inboundBuffer = 64
)

// WebSocketDialer dials the server's websocket endpoint. The auth token
// travels as a bearer header on the upgrade request — the handshake is
// the HTTP upgrade itself, so a rejected token fails the dial and never
// produces a half-authenticated socket.
type WebSocketDialer struct {
	// URL is the websocket endpoint (e.g., "wss://chat.example.com/ws").
	URL string
	// Dialer is the underlying gorilla dialer. If nil,
	// websocket.DefaultDialer.
	Dialer *websocket.Dialer
	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger
}

// Dial performs the upgrade handshake and starts the socket's pumps.
func (d *WebSocketDialer) Dial(ctx context.Context, authToken string) (Socket, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+authToken)

	conn, _, err := dialer.DialContext(ctx, d.URL, header)
	if err != nil {
		return nil, fmt.Errorf("channel: dialing %s: %w", d.URL, err)
	}

	socket := &webSocket{
		conn:   conn,
		events: make(chan RawEvent, inboundBuffer),
		logger: logger,
	}
	go socket.readPump()
	go socket.pingLoop()
	return socket, nil
}

// webSocket adapts a gorilla connection to the Socket interface. Frames
// are JSON-encoded RawEvent values in both directions.
type webSocket struct {
	conn   *websocket.Conn
	events chan RawEvent
	logger *slog.Logger

	// writeMu serializes frame writes; gorilla allows one writer at a
	// time and both Emit and the ping loop write.
	writeMu sync.Mutex

	closeOnce sync.Once
}

func (s *webSocket) Events() <-chan RawEvent {
	return s.events
}

func (s *webSocket) Emit(name string, payload any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("channel: encoding %s payload: %w", name, err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := s.conn.WriteJSON(RawEvent{Name: name, Payload: encoded}); err != nil {
		return fmt.Errorf("channel: writing %s frame: %w", name, err)
	}
	return nil
}

func (s *webSocket) Close() error {
	var err error
	s.closeOnce.Do(func() {
		err = s.conn.Close()
	})
	return err
}

// readPump reads frames until the connection dies, forwarding parsed
// RawEvents. When the queue is full the frame is dropped rather than
// stalling the read loop — a stalled read loop would miss pong deadlines
// and kill a healthy connection.
func (s *webSocket) readPump() {
	defer func() {
		s.Close()
		close(s.events)
	}()

	s.conn.SetReadLimit(maxFrameSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		s.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}

		var raw RawEvent
		if err := json.Unmarshal(data, &raw); err != nil {
			s.logger.Warn("dropping unparseable frame", "error", err)
			continue
		}

		select {
		case s.events <- raw:
		default:
			s.logger.Warn("inbound queue full, dropping event", "event", raw.Name)
		}
	}
}

// pingLoop keeps the connection alive. Exits when a write fails, which
// happens shortly after the connection dies.
func (s *webSocket) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for range ticker.C {
		s.writeMu.Lock()
		s.conn.SetWriteDeadline(time.Now().Add(writeWait))
		err := s.conn.WriteMessage(websocket.PingMessage, nil)
		s.writeMu.Unlock()
		if err != nil {
			return
		}
	}
}
