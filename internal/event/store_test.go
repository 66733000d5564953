package event

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/roach88/evtrace/internal/value"
)

func note(source, attr string, v any) Notification {
	return Notification{SourceID: source, AttributeID: attr, Value: value.MustOf(v)}
}

// waitForWaiter blocks until something is waiting on the fake clock.
func waitForWaiter(clk *clocktesting.FakeClock) {
	for !clk.HasWaiters() {
		time.Sleep(time.Millisecond)
	}
}

func TestStore_AppendStampsSeqAndTime(t *testing.T) {
	clk := clocktesting.NewFakeClock(t0)
	s := NewStore(clk)

	r1 := s.Append(note("d1", "state", 0))
	clk.Step(time.Second)
	r2 := s.Append(note("d1", "state", 1))

	assert.Equal(t, int64(1), r1.Seq)
	assert.Equal(t, int64(2), r2.Seq)
	assert.Equal(t, t0, r1.ReceivedAt)
	assert.Equal(t, t0.Add(time.Second), r2.ReceivedAt)
	assert.Equal(t, 2, s.Len())
}

func TestStore_AppendNilValueIsNull(t *testing.T) {
	s := NewStore(clocktesting.NewFakeClock(t0))
	r := s.Append(Notification{SourceID: "d1", AttributeID: "a", Quality: QualityError})
	assert.Equal(t, value.Null{}, r.Value)
	assert.True(t, r.IsError())
}

func TestStore_ReceivedAtNeverDecreases(t *testing.T) {
	clk := clocktesting.NewFakeClock(t0)
	s := NewStore(clk)

	s.Append(note("d1", "state", 0))
	clk.SetTime(t0.Add(-time.Minute))
	r := s.Append(note("d1", "state", 1))

	assert.Equal(t, t0, r.ReceivedAt)
}

func TestStore_SnapshotIsStable(t *testing.T) {
	s := NewStore(clocktesting.NewFakeClock(t0))
	s.Append(note("d1", "state", 0))

	snap := s.Snapshot()
	s.Append(note("d1", "state", 1))

	require.Len(t, snap, 1)
	assert.Len(t, s.Snapshot(), 2)

	// Appending to a snapshot must not leak into the store.
	grown := append(snap, Record{Seq: 100})
	assert.Equal(t, int64(100), grown[1].Seq)
	assert.Equal(t, int64(2), s.Snapshot()[1].Seq)
}

func TestStore_WatchWakesOnAppend(t *testing.T) {
	s := NewStore(nil)
	h, updated := s.Watch()
	assert.Empty(t, h)

	select {
	case <-updated:
		t.Fatal("channel closed before any append")
	default:
	}

	s.Append(note("d1", "state", 0))

	select {
	case <-updated:
	case <-time.After(time.Second):
		t.Fatal("append did not close the watch channel")
	}

	h, next := s.Watch()
	assert.Len(t, h, 1)
	assert.NotEqual(t, updated, next)
}

func TestStore_WaitForUpdate(t *testing.T) {
	clk := clocktesting.NewFakeClock(t0)
	s := NewStore(clk)

	done := make(chan bool)
	go func() {
		done <- s.WaitForUpdate(context.Background(), clk, 5*time.Second)
	}()

	waitForWaiter(clk)
	s.Append(note("d1", "state", 0))

	assert.True(t, <-done)
}

func TestStore_WaitForUpdate_Timeout(t *testing.T) {
	clk := clocktesting.NewFakeClock(t0)
	s := NewStore(clk)

	done := make(chan bool)
	go func() {
		done <- s.WaitForUpdate(context.Background(), clk, 5*time.Second)
	}()

	waitForWaiter(clk)
	clk.Step(5 * time.Second)

	assert.False(t, <-done)
}

func TestStore_WaitForUpdate_ZeroTimeoutNeverBlocks(t *testing.T) {
	s := NewStore(nil)
	assert.False(t, s.WaitForUpdate(context.Background(), nil, 0))
}

func TestStore_WaitForUpdate_ContextCancelled(t *testing.T) {
	clk := clocktesting.NewFakeClock(t0)
	s := NewStore(clk)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan bool)
	go func() {
		done <- s.WaitForUpdate(ctx, clk, time.Hour)
	}()

	waitForWaiter(clk)
	cancel()

	assert.False(t, <-done)
}

func TestStore_Clear(t *testing.T) {
	s := NewStore(nil)
	s.Append(note("d1", "state", 0))
	s.Append(note("d1", "state", 1))
	before := s.Snapshot()

	_, updated := s.Watch()
	s.Clear()

	select {
	case <-updated:
	default:
		t.Fatal("clear did not wake waiters")
	}

	assert.Equal(t, 0, s.Len())
	assert.Len(t, before, 2, "earlier snapshots survive a clear")

	r := s.Append(note("d1", "state", 2))
	assert.Equal(t, int64(3), r.Seq, "sequence numbers are never reused")
	assert.Equal(t, int64(1), before[0].Seq)
}

func TestStore_AddReportsSize(t *testing.T) {
	s := NewStore(nil)
	_, n := s.Add(note("d1", "state", 0))
	assert.Equal(t, 1, n)

	s.Clear()
	r, n := s.Add(note("d1", "state", 1))
	assert.Equal(t, 1, n, "size counts records kept after a clear")
	assert.Equal(t, int64(2), r.Seq)
}

func TestStore_ConcurrentAppendsAreNeverLost(t *testing.T) {
	s := NewStore(nil)

	const writers = 8
	const perWriter = 200

	var wg sync.WaitGroup
	stop := make(chan struct{})

	// Readers check snapshot ordering while writers run.
	var readErr error
	var readMu sync.Mutex
	var readers sync.WaitGroup
	for range 4 {
		readers.Add(1)
		go func() {
			defer readers.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				h := s.Snapshot()
				for i := 1; i < len(h); i++ {
					if h[i].Seq <= h[i-1].Seq || h[i].ReceivedAt.Before(h[i-1].ReceivedAt) {
						readMu.Lock()
						readErr = fmt.Errorf("out of order at %d: %d then %d", i, h[i-1].Seq, h[i].Seq)
						readMu.Unlock()
						return
					}
				}
			}
		}()
	}

	for w := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWriter {
				s.Append(note(fmt.Sprintf("d%d", w), "counter", i))
			}
		}()
	}
	wg.Wait()
	close(stop)
	readers.Wait()

	require.NoError(t, readErr)

	h := s.Snapshot()
	require.Len(t, h, writers*perWriter)

	// Per-writer order is preserved.
	next := make(map[string]int64)
	for i, r := range h {
		assert.Equal(t, int64(i+1), r.Seq)
		n, _ := value.AsInt(r.Value)
		assert.Equal(t, next[r.SourceID], n, "source %s", r.SourceID)
		next[r.SourceID] = n + 1
	}
}
