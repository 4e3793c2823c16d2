// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package pubsub provides a small typed fan-out primitive with an explicit
// subscribe/cancel lifecycle. Cancellation is structural: once Cancel
// returns, no further value is delivered on the subscription's channel,
// which is what lets the session orchestrator switch rooms without leaking
// events from the old room into the new subscriber.
//
// Each subscriber owns a bounded buffer. When the buffer is full the
// oldest value is dropped in favor of the newest. With capacity 1 this
// degenerates into latest-value coalescing, the right shape for state
// snapshots where only the current value matters. Larger capacities suit
// discrete event streams where a slow consumer should shed backlog rather
// than stall the publisher.
package pubsub

import "sync"

// Feed fans published values out to all current subscribers. The zero
// value is not usable; create feeds with NewFeed.
type Feed[T any] struct {
	mu          sync.Mutex
	subscribers map[*Subscription[T]]struct{}
	capacity    int
	closed      bool
}

// NewFeed creates a Feed whose subscribers buffer up to capacity values.
// Capacity must be at least 1.
func NewFeed[T any](capacity int) *Feed[T] {
	if capacity < 1 {
		panic("pubsub: feed capacity must be at least 1")
	}
	return &Feed[T]{
		subscribers: make(map[*Subscription[T]]struct{}),
		capacity:    capacity,
	}
}

// Subscribe registers a new subscriber. The subscriber receives values
// published after this call. On a closed Feed the returned subscription's
// channel is already closed.
func (f *Feed[T]) Subscribe() *Subscription[T] {
	f.mu.Lock()
	defer f.mu.Unlock()

	subscription := &Subscription[T]{
		feed:    f,
		channel: make(chan T, f.capacity),
	}
	if f.closed {
		close(subscription.channel)
		subscription.cancelled = true
		return subscription
	}
	f.subscribers[subscription] = struct{}{}
	return subscription
}

// Publish delivers value to every subscriber. Never blocks: a subscriber
// whose buffer is full loses its oldest value.
func (f *Feed[T]) Publish(value T) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	for subscription := range f.subscribers {
		for {
			select {
			case subscription.channel <- value:
			default:
				// Buffer full: shed the oldest value and retry. The
				// consumer may race us for it, in which case the retry
				// succeeds immediately.
				select {
				case <-subscription.channel:
				default:
				}
				continue
			}
			break
		}
	}
}

// Close closes every subscriber channel and rejects future publishes.
// Idempotent.
func (f *Feed[T]) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return
	}
	f.closed = true
	for subscription := range f.subscribers {
		subscription.cancelled = true
		close(subscription.channel)
	}
	f.subscribers = nil
}

// SubscriberCount returns the number of active subscribers.
func (f *Feed[T]) SubscriberCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.subscribers)
}

// Subscription is one subscriber's handle on a Feed.
type Subscription[T any] struct {
	feed      *Feed[T]
	channel   chan T
	cancelled bool
}

// C returns the receive channel. It is closed when the subscription is
// cancelled or the feed is closed.
func (s *Subscription[T]) C() <-chan T {
	return s.channel
}

// Cancel detaches the subscription and closes its channel. After Cancel
// returns no further value is delivered — publishes and cancellation
// serialize on the feed lock. Idempotent.
func (s *Subscription[T]) Cancel() {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()

	if s.cancelled {
		return
	}
	s.cancelled = true
	delete(s.feed.subscribers, s)
	close(s.channel)
}
