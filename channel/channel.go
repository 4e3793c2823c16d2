// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel owns the live duplex connection to the chat server: the
// connection lifecycle state machine, automatic bounded reconnection, the
// rejoin hook that replays room membership after a reconnect, and the
// decode of raw wire events into typed chat events.
//
// The channel never surfaces failures as returned errors. Connect is
// fire-and-forget; everything the caller needs to know arrives through
// the state and event feeds. Send reports a boolean so callers can tell
// a dropped signal from a delivered one, but a send while disconnected
// is an expected no-op, not an error.
package channel

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/parley-chat/parley/chat"
	"github.com/parley-chat/parley/lib/clock"
	"github.com/parley-chat/parley/lib/pubsub"
)

// State is the connection lifecycle state. Transitions are owned
// exclusively by the Channel; consumers observe them via SubscribeState.
type State int

const (
	// Disconnected is the initial state, and the state after an explicit
	// Disconnect.
	Disconnected State = iota
	// Connecting means the first dial of a Connect cycle is in flight.
	Connecting
	// Connected means the socket is live and sends will go out.
	Connected
	// Reconnecting means the connection dropped and an automatic retry
	// is pending or in flight.
	Reconnecting
	// Errored means the retry budget is exhausted. The channel takes no
	// further automatic action; a fresh Connect starts over.
	Errored
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Reconnecting:
		return "reconnecting"
	case Errored:
		return "errored"
	default:
		return "unknown"
	}
}

const (
	// defaultReconnectDelay is the fixed wait between dial attempts.
	defaultReconnectDelay = time.Second
	// defaultMaxAttempts bounds consecutive failed dials before the
	// channel gives up and parks in Errored.
	defaultMaxAttempts = 5

	// eventBuffer is the per-subscriber buffer for decoded events.
	eventBuffer = 64
	// stateBuffer is the per-subscriber buffer for state transitions.
	stateBuffer = 8
)

// Config holds the collaborators and tunables for a Channel.
type Config struct {
	// Dialer establishes sockets. Required.
	Dialer Dialer

	// Clock schedules reconnect delays. If nil, clock.Real().
	Clock clock.Clock

	// Logger is used for structured logging. If nil, slog.Default().
	Logger *slog.Logger

	// ReconnectDelay is the fixed wait between dial attempts.
	// Zero means the 1-second default.
	ReconnectDelay time.Duration

	// MaxAttempts bounds consecutive failed dials. Zero means the
	// default of 5.
	MaxAttempts int
}

// Channel maintains one logical connection to the server across socket
// failures. Safe for concurrent use.
type Channel struct {
	dialer         Dialer
	clock          clock.Clock
	logger         *slog.Logger
	reconnectDelay time.Duration
	maxAttempts    int

	events *pubsub.Feed[chat.Event]
	states *pubsub.Feed[State]

	mu     sync.Mutex
	state  State
	socket Socket
	cancel context.CancelFunc // cancels the running connect cycle
	done   chan struct{}      // closed when the run loop exits
	rejoin func()             // invoked after each successful dial
}

// New creates a Channel. It starts Disconnected; call Connect to bring
// the connection up.
func New(config Config) *Channel {
	if config.Dialer == nil {
		panic("channel: Config.Dialer is required")
	}
	channelClock := config.Clock
	if channelClock == nil {
		channelClock = clock.Real()
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	delay := config.ReconnectDelay
	if delay == 0 {
		delay = defaultReconnectDelay
	}
	attempts := config.MaxAttempts
	if attempts == 0 {
		attempts = defaultMaxAttempts
	}

	return &Channel{
		dialer:         config.Dialer,
		clock:          channelClock,
		logger:         logger,
		reconnectDelay: delay,
		maxAttempts:    attempts,
		events:         pubsub.NewFeed[chat.Event](eventBuffer),
		states:         pubsub.NewFeed[State](stateBuffer),
		state:          Disconnected,
	}
}

// SetRejoinHook registers the callback invoked after every successful
// dial, before Connected is announced to subscribers. The membership
// tracker uses it to replay join signals; by the time state observers
// see Connected, the server already knows which rooms we are in.
func (c *Channel) SetRejoinHook(hook func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejoin = hook
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SubscribeEvents returns a subscription carrying decoded push events.
// Cancel it when done.
func (c *Channel) SubscribeEvents() *pubsub.Subscription[chat.Event] {
	return c.events.Subscribe()
}

// SubscribeState returns a subscription carrying state transitions.
func (c *Channel) SubscribeState() *pubsub.Subscription[State] {
	return c.states.Subscribe()
}

// Connect brings the connection up. Idempotent: a no-op while a connect
// cycle is already running (Connecting, Connected, or Reconnecting).
// Failures never return to the caller — they surface as state
// transitions and error events.
func (c *Channel) Connect(authToken string) {
	c.mu.Lock()
	if c.state == Connecting || c.state == Connected || c.state == Reconnecting {
		c.mu.Unlock()
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	c.cancel = cancel
	c.done = done
	c.setStateLocked(Connecting)
	c.mu.Unlock()

	go c.run(ctx, authToken, done)
}

// Disconnect tears the connection down: cancels any pending reconnect,
// closes the socket, and forces Disconnected. Idempotent.
func (c *Channel) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	done := c.done
	socket := c.socket
	c.cancel = nil
	c.done = nil
	c.socket = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if socket != nil {
		socket.Close()
	}
	if done != nil {
		<-done
	}

	c.mu.Lock()
	c.setStateLocked(Disconnected)
	c.mu.Unlock()
}

// Send emits a named event to the server. Returns false without side
// effects when not connected — the channel never queues for later
// delivery. A false return is expected during reconnects; callers that
// care surface it, callers that don't ignore it.
func (c *Channel) Send(name string, payload any) bool {
	c.mu.Lock()
	socket := c.socket
	connected := c.state == Connected
	c.mu.Unlock()

	if !connected || socket == nil {
		return false
	}
	if err := socket.Emit(name, payload); err != nil {
		c.logger.Warn("emit failed", "event", name, "error", err)
		return false
	}
	return true
}

// run is the connect cycle: dial, pump events, and on socket death retry
// with a fixed delay until the attempt budget runs out. Exactly one run
// loop exists per Connect cycle; ctx cancellation (Disconnect) ends it.
func (c *Channel) run(ctx context.Context, authToken string, done chan struct{}) {
	defer close(done)

	failures := 0
	for {
		if ctx.Err() != nil {
			return
		}

		socket, err := c.dialer.Dial(ctx, authToken)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			c.logger.Warn("dial failed",
				"attempt", failures,
				"max_attempts", c.maxAttempts,
				"error", err,
			)
			c.events.Publish(chat.ServerErrorEvent{Message: err.Error()})

			if failures >= c.maxAttempts {
				// The cycle is over; release its context before
				// Errored becomes observable so nothing stays pinned
				// until the next Connect.
				c.mu.Lock()
				if c.cancel != nil {
					c.cancel()
					c.cancel = nil
				}
				c.setStateLocked(Errored)
				c.mu.Unlock()
				return
			}

			c.mu.Lock()
			c.setStateLocked(Reconnecting)
			c.mu.Unlock()

			select {
			case <-ctx.Done():
				return
			case <-c.clock.After(c.reconnectDelay):
			}
			continue
		}

		failures = 0

		// Install the socket and mark Connected before running the
		// rejoin hook so the hook's Send calls go through, but publish
		// the transition only afterwards: subscribers must never see
		// Connected before the server has been told our rooms.
		c.mu.Lock()
		if ctx.Err() != nil {
			c.mu.Unlock()
			socket.Close()
			return
		}
		c.socket = socket
		c.state = Connected
		rejoin := c.rejoin
		c.mu.Unlock()

		if rejoin != nil {
			rejoin()
		}
		c.states.Publish(Connected)
		c.logger.Info("connected")

		c.pump(socket)

		// Socket died. If Disconnect already took over, it owns the
		// final state; otherwise go around for a reconnect attempt.
		c.mu.Lock()
		if c.socket == socket {
			c.socket = nil
		}
		if ctx.Err() != nil {
			c.mu.Unlock()
			return
		}
		c.setStateLocked(Reconnecting)
		c.mu.Unlock()

		c.logger.Warn("connection lost, reconnecting")
		select {
		case <-ctx.Done():
			return
		case <-c.clock.After(c.reconnectDelay):
		}
	}
}

// pump decodes inbound raw events until the socket's event channel
// closes. Malformed payloads are logged and dropped; they never
// propagate and never take the connection down.
func (c *Channel) pump(socket Socket) {
	for raw := range socket.Events() {
		event, err := chat.DecodeEvent(raw.Name, raw.Payload)
		if err != nil {
			c.logger.Warn("dropping malformed event", "event", raw.Name, "error", err)
			continue
		}
		c.events.Publish(event)
	}
}

// setStateLocked updates the state and publishes the transition if it
// changed. Callers hold c.mu.
func (c *Channel) setStateLocked(state State) {
	if c.state == state {
		return
	}
	c.state = state
	c.states.Publish(state)
}
