// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package pubsub

import (
	"testing"
	"time"

	"github.com/parley-chat/parley/lib/testutil"
)

func TestPublishReachesAllSubscribers(t *testing.T) {
	feed := NewFeed[int](4)
	first := feed.Subscribe()
	second := feed.Subscribe()

	feed.Publish(42)

	if got := testutil.RequireReceive(t, first.C(), time.Second, "first subscriber"); got != 42 {
		t.Errorf("first subscriber got %d", got)
	}
	if got := testutil.RequireReceive(t, second.C(), time.Second, "second subscriber"); got != 42 {
		t.Errorf("second subscriber got %d", got)
	}
}

func TestCapacityOneCoalescesToLatest(t *testing.T) {
	feed := NewFeed[int](1)
	subscription := feed.Subscribe()

	feed.Publish(1)
	feed.Publish(2)
	feed.Publish(3)

	if got := testutil.RequireReceive(t, subscription.C(), time.Second, "coalesced value"); got != 3 {
		t.Errorf("expected latest value 3, got %d", got)
	}
	select {
	case extra := <-subscription.C():
		t.Errorf("unexpected extra value %d", extra)
	default:
	}
}

func TestOverflowDropsOldest(t *testing.T) {
	feed := NewFeed[int](2)
	subscription := feed.Subscribe()

	feed.Publish(1)
	feed.Publish(2)
	feed.Publish(3)

	if got := testutil.RequireReceive(t, subscription.C(), time.Second, "first kept value"); got != 2 {
		t.Errorf("expected 2, got %d", got)
	}
	if got := testutil.RequireReceive(t, subscription.C(), time.Second, "second kept value"); got != 3 {
		t.Errorf("expected 3, got %d", got)
	}
}

func TestCancelStopsDelivery(t *testing.T) {
	feed := NewFeed[int](4)
	subscription := feed.Subscribe()

	subscription.Cancel()
	feed.Publish(7)

	if _, ok := <-subscription.C(); ok {
		t.Error("received a value on a cancelled subscription")
	}
	if feed.SubscriberCount() != 0 {
		t.Errorf("expected 0 subscribers, got %d", feed.SubscriberCount())
	}
}

func TestCancelIsIdempotent(t *testing.T) {
	feed := NewFeed[int](1)
	subscription := feed.Subscribe()
	subscription.Cancel()
	subscription.Cancel()
}

func TestCloseClosesSubscribers(t *testing.T) {
	feed := NewFeed[int](1)
	subscription := feed.Subscribe()

	feed.Close()
	if _, ok := <-subscription.C(); ok {
		t.Error("expected closed channel after feed Close")
	}

	// Publishing and subscribing after Close must not panic.
	feed.Publish(1)
	late := feed.Subscribe()
	if _, ok := <-late.C(); ok {
		t.Error("late subscriber should see a closed channel")
	}
}
