// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestFakeAfterFiresOnAdvance(t *testing.T) {
	fake := Fake(time.Unix(0, 0))
	ch := fake.After(5 * time.Second)

	select {
	case <-ch:
		t.Fatal("timer fired before Advance")
	default:
	}

	fake.Advance(5 * time.Second)
	select {
	case fired := <-ch:
		if !fired.Equal(time.Unix(5, 0)) {
			t.Errorf("unexpected fire time: %v", fired)
		}
	default:
		t.Fatal("timer did not fire after Advance")
	}
}

func TestFakeAfterFuncStopPreventsFiring(t *testing.T) {
	fake := Fake(time.Unix(0, 0))
	var fired atomic.Bool
	timer := fake.AfterFunc(time.Second, func() { fired.Store(true) })

	if !timer.Stop() {
		t.Fatal("Stop on a pending timer should return true")
	}
	fake.Advance(2 * time.Second)
	if fired.Load() {
		t.Error("stopped timer fired")
	}
	if timer.Stop() {
		t.Error("second Stop should return false")
	}
}

func TestFakeAfterFuncResetExtendsDeadline(t *testing.T) {
	fake := Fake(time.Unix(0, 0))
	var count atomic.Int64
	timer := fake.AfterFunc(2*time.Second, func() { count.Add(1) })

	fake.Advance(time.Second)
	if !timer.Reset(2 * time.Second) {
		t.Fatal("Reset on a pending timer should return true")
	}
	fake.Advance(time.Second)
	if count.Load() != 0 {
		t.Fatal("timer fired before the reset deadline")
	}
	fake.Advance(time.Second)
	if count.Load() != 1 {
		t.Fatalf("expected exactly one fire, got %d", count.Load())
	}
}

func TestFakeAdvanceFiresInDeadlineOrder(t *testing.T) {
	fake := Fake(time.Unix(0, 0))
	var order []int
	fake.AfterFunc(3*time.Second, func() { order = append(order, 3) })
	fake.AfterFunc(time.Second, func() { order = append(order, 1) })
	fake.AfterFunc(2*time.Second, func() { order = append(order, 2) })

	fake.Advance(5 * time.Second)
	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("timers fired out of order: %v", order)
	}
}

func TestFakeWaitForTimers(t *testing.T) {
	fake := Fake(time.Unix(0, 0))
	go fake.AfterFunc(time.Second, func() {})
	fake.WaitForTimers(1)
	if fake.PendingCount() != 1 {
		t.Errorf("expected 1 pending timer, got %d", fake.PendingCount())
	}
}
