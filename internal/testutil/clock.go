package testutil

import (
	"testing"
	"time"

	clocktesting "k8s.io/utils/clock/testing"
)

// Epoch is the time fake clocks start at.
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// NewFakeClock returns a fake clock set to Epoch.
//
// Fake clocks only move when stepped, so tests control exactly when
// timers fire and what reception times are stamped.
func NewFakeClock() *clocktesting.FakeClock {
	return clocktesting.NewFakeClock(Epoch)
}

// WaitForWaiter blocks until a timer or sleeper is waiting on clk.
//
// Call it before stepping the clock on behalf of a goroutine that is about
// to block, otherwise the step can happen before the timer is armed and
// the goroutine waits forever. Fails the test after 5 seconds.
func WaitForWaiter(t testing.TB, clk *clocktesting.FakeClock) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !clk.HasWaiters() {
		if time.Now().After(deadline) {
			t.Fatal("nothing is waiting on the fake clock")
		}
		time.Sleep(time.Millisecond)
	}
}
