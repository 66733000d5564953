package event

import (
	"context"
	"sync"
	"time"

	"k8s.io/utils/clock"
)

// Store is the append-only, concurrency-safe log of observed records.
//
// Thread-safety model:
//   - Append(), Clear(): safe from any goroutine; serialized by the store lock
//   - Snapshot(), Watch(), Len(): safe from any goroutine, never block on
//     readers and hold the lock only to read the slice header
//   - WaitForUpdate(): blocks the caller only, never the appender
//
// INVARIANTS:
//   - Seq is strictly increasing in store order and never reused
//   - ReceivedAt is non-decreasing in store order (stamped under the lock)
//   - an element below a published snapshot's length is never written again
type Store struct {
	mu      sync.Mutex
	clock   clock.PassiveClock
	records []Record
	seq     int64
	updated chan struct{} // Closed on the next Append or Clear, then replaced
}

// NewStore creates an empty store stamping reception times with clk.
// A nil clock means the real clock.
func NewStore(clk clock.PassiveClock) *Store {
	if clk == nil {
		clk = clock.RealClock{}
	}
	return &Store{
		clock:   clk,
		records: make([]Record, 0, 64), // Pre-allocate for typical test sessions
		updated: make(chan struct{}),
	}
}

// Append stamps n with the next sequence number and the current time, adds it
// to the end of the log and wakes every waiter. It returns the stored record.
func (s *Store) Append(n Notification) Record {
	r, _ := s.Add(n)
	return r
}

// Add is Append that also reports the number of stored records right after
// the append.
func (s *Store) Add(n Notification) (Record, int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	r := Record{
		Seq:         s.seq,
		SourceID:    n.SourceID,
		AttributeID: n.AttributeID,
		Value:       valueOrNull(n.Value),
		Quality:     n.Quality,
		ReceivedAt:  s.clock.Now(),
	}
	if len(s.records) > 0 {
		// Wall clocks can step backwards; reception order is authoritative.
		if last := s.records[len(s.records)-1].ReceivedAt; r.ReceivedAt.Before(last) {
			r.ReceivedAt = last
		}
	}

	s.records = append(s.records, r)
	s.broadcastLocked()
	return r, len(s.records)
}

// Snapshot returns every record appended before the call, in store order.
func (s *Store) Snapshot() History {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Watch returns the current snapshot together with a channel that is closed
// by the first Append or Clear after the snapshot was taken.
//
// Both are read under one lock acquisition: if the snapshot does not satisfy
// the caller, blocking on the channel cannot miss an intervening append.
//
//	for {
//	    h, updated := s.Watch()
//	    if done(h) {
//	        return
//	    }
//	    select {
//	    case <-ctx.Done():
//	        return
//	    case <-updated:
//	    }
//	}
func (s *Store) Watch() (History, <-chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked(), s.updated
}

// Updated returns a channel closed by the next Append or Clear.
func (s *Store) Updated() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updated
}

// WaitForUpdate blocks until an Append or Clear happens after the call began,
// the timeout elapses or ctx is done. It reports whether an update occurred.
// A timeout <= 0 never blocks.
func (s *Store) WaitForUpdate(ctx context.Context, clk clock.Clock, timeout time.Duration) bool {
	updated := s.Updated()
	if timeout <= 0 {
		select {
		case <-updated:
			return true
		default:
			return false
		}
	}
	if clk == nil {
		clk = clock.RealClock{}
	}

	timer := clk.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-updated:
		return true
	case <-timer.C():
		return false
	case <-ctx.Done():
		return false
	}
}

// Clear drops every record and wakes every waiter. Sequence numbers keep
// increasing after a clear.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Allocate a fresh array: published snapshots still reference the old one.
	s.records = make([]Record, 0, 64)
	s.broadcastLocked()
}

// Len returns the number of stored records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

func (s *Store) snapshotLocked() History {
	n := len(s.records)
	// Cap capacity at length so a reader's append can never write into
	// slots the store will fill later.
	return History(s.records[:n:n])
}

func (s *Store) broadcastLocked() {
	close(s.updated)
	s.updated = make(chan struct{})
}
