package query

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/value"
)

func attrIs(name string) Predicate {
	return Named("attribute is '"+name+"'", Func(func(r event.Record) bool {
		return r.HasAttribute(name)
	}))
}

func valueIs(v any) Predicate {
	want := value.MustOf(v)
	return Func(func(r event.Record) bool { return value.Equal(r.Value, want) })
}

// countingSource counts Watch calls. The first spurious calls return an
// already-closed channel, forcing wake-ups with no new records.
type countingSource struct {
	store    *event.Store
	spurious int64
	watches  atomic.Int64
}

func (s *countingSource) Watch() (event.History, <-chan struct{}) {
	n := s.watches.Add(1)
	h, updated := s.store.Watch()
	if n <= s.spurious {
		closed := make(chan struct{})
		close(closed)
		return h, closed
	}
	return h, updated
}

// evalAsync runs Evaluate on a goroutine and returns its error channel.
func evalAsync(src Source, q Query, d *Deadline, opts ...Option) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- Evaluate(context.Background(), src, q, d, opts...)
	}()
	return done
}

func await(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		require.FailNow(t, "evaluation did not return")
		return nil
	}
}

func assertPending(t *testing.T, done <-chan error) {
	t.Helper()
	select {
	case err := <-done:
		require.FailNow(t, "evaluation returned early", "err=%v", err)
	case <-time.After(20 * time.Millisecond):
	}
}
