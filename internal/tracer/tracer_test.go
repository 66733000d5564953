package tracer

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/query"
	"github.com/roach88/evtrace/internal/testutil"
	"github.com/roach88/evtrace/internal/value"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestTracer(t *testing.T, opts ...Option) (*Tracer, *clocktesting.FakeClock, *Metrics) {
	t.Helper()
	clk := testutil.NewFakeClock()
	m := NewMetrics(prometheus.NewRegistry())
	base := []Option{
		WithClock(clk),
		WithLogger(discardLogger()),
		WithMetrics(m),
		WithIDGenerator(NewSequenceGenerator("q")),
	}
	return New(append(base, opts...)...), clk, m
}

func TestTracer_QueryExistingEvent(t *testing.T) {
	tr, _, _ := newTestTracer(t)
	rec := tr.Notify(testutil.Note("d1", "state", "ON"))

	matched, err := tr.Query(context.Background(), query.Func(func(r event.Record) bool {
		return value.Equal(r.Value, value.String("ON"))
	}), 0, 1)

	require.NoError(t, err)
	assert.Equal(t, []event.Record{rec}, matched)
}

func TestTracer_QueryWaitsForNotify(t *testing.T) {
	tr, clk, _ := newTestTracer(t)

	type result struct {
		matched []event.Record
		err     error
	}
	done := make(chan result, 1)
	go func() {
		m, err := tr.Query(context.Background(), query.Func(func(r event.Record) bool {
			return r.HasAttribute("x")
		}), 2*time.Second, 1)
		done <- result{m, err}
	}()

	testutil.WaitForWaiter(t, clk)
	clk.Step(500 * time.Millisecond)
	rec := tr.Notify(testutil.Note("d1", "x", 1))

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, []event.Record{rec}, res.matched)
		assert.Equal(t, testutil.Epoch.Add(500*time.Millisecond), res.matched[0].ReceivedAt)
	case <-time.After(5 * time.Second):
		t.Fatal("query did not return")
	}
}

func TestTracer_QueryTimesOut(t *testing.T) {
	tr, clk, m := newTestTracer(t)

	done := make(chan []event.Record, 1)
	go func() {
		matched, _ := tr.Query(context.Background(), query.Func(func(r event.Record) bool {
			return r.HasAttribute("x")
		}), time.Second, 1)
		done <- matched
	}()

	testutil.WaitForWaiter(t, clk)
	clk.Step(time.Second)

	select {
	case matched := <-done:
		assert.Empty(t, matched)
	case <-time.After(5 * time.Second):
		t.Fatal("query did not time out")
	}
	assert.Equal(t, float64(1), promtest.ToFloat64(m.queries.WithLabelValues("timed_out")))
}

func TestTracer_EvaluateQuery(t *testing.T) {
	tr, _, m := newTestTracer(t)
	tr.Notify(testutil.Note("d1", "state", 1))
	tr.Notify(testutil.Note("d1", "state", 0))

	q := &query.StateChange{SourceID: "d1", AttributeID: "State", Value: value.Int(0), Previous: value.Int(1)}
	status, err := tr.EvaluateQuery(context.Background(), q, nil)

	require.NoError(t, err)
	assert.Equal(t, query.Succeeded, status)
	assert.Equal(t, "q-1", q.ID())
	assert.Contains(t, tr.Describe(q), "value: ON")
	assert.Equal(t, float64(1), promtest.ToFloat64(m.queries.WithLabelValues("succeeded")))

	_, err = tr.EvaluateQuery(context.Background(), q, nil)
	assert.True(t, query.IsAlreadyEvaluated(err))
	assert.Equal(t, float64(1), promtest.ToFloat64(m.queries.WithLabelValues("succeeded")),
		"rejected evaluations are not counted")
}

func TestTracer_EvaluateQuery_PredicateError(t *testing.T) {
	var buf bytes.Buffer
	tr, _, m := newTestTracer(t, WithLogger(slog.New(slog.NewTextHandler(&buf, nil))))
	tr.Notify(testutil.Note("d1", "state", 0))

	q := query.NewMatchN(query.CheckFunc(func(event.Record, event.History) (bool, error) {
		return false, errors.New("boom")
	}), 1)
	status, err := tr.EvaluateQuery(context.Background(), q, tr.NewDeadline(time.Hour))

	assert.True(t, query.IsPredicateError(err))
	assert.Equal(t, query.Failed, status)
	assert.Contains(t, buf.String(), "query failed")
	assert.Equal(t, float64(1), promtest.ToFloat64(m.queries.WithLabelValues("failed")))
}

func TestTracer_EvaluateQuery_Invalid(t *testing.T) {
	tests := []struct {
		name string
		q    query.Query
	}{
		{name: "nil query", q: nil},
		{name: "abort without wrapped query", q: query.WithAbort(nil, query.Func(func(event.Record) bool { return true }))},
		{name: "abort with nil predicate", q: query.WithAbort(query.NewMatchN(query.Func(func(event.Record) bool { return true }), 1), nil)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, _, m := newTestTracer(t)
			tr.Notify(testutil.Note("d1", "state", 0))

			var (
				status query.Status
				err    error
			)
			require.NotPanics(t, func() {
				status, err = tr.EvaluateQuery(context.Background(), tt.q, tr.NewDeadline(time.Second))
			})
			assert.True(t, query.IsInvalidQuery(err), "got %v", err)
			assert.Equal(t, query.NotStarted, status)
			for _, s := range []string{"succeeded", "timed_out", "aborted", "failed"} {
				assert.Zero(t, promtest.ToFloat64(m.queries.WithLabelValues(s)), s)
			}
		})
	}
}

func TestTracer_SharedDeadline(t *testing.T) {
	tr, clk, _ := newTestTracer(t)
	d := tr.NewDeadline(time.Second)

	tr.Notify(testutil.Note("d1", "a", 1))
	first := query.NewMatchN(query.Func(func(r event.Record) bool { return r.HasAttribute("a") }), 1)
	_, err := tr.EvaluateQuery(context.Background(), first, d)
	require.NoError(t, err)

	clk.Step(2 * time.Second)

	second := query.NewMatchN(query.Func(func(r event.Record) bool { return r.HasAttribute("b") }), 1)
	status, err := tr.EvaluateQuery(context.Background(), second, d)
	require.NoError(t, err)
	assert.Equal(t, query.TimedOut, status, "budget already spent")
	assert.False(t, clk.HasWaiters())
}

func TestTracer_EventsAndClear(t *testing.T) {
	tr, _, m := newTestTracer(t)
	tr.Notify(testutil.Note("d1", "state", 0))
	tr.Notify(testutil.Note("d1", "state", 1))

	assert.Len(t, tr.Events(), 2)
	assert.Equal(t, float64(2), promtest.ToFloat64(m.eventsReceived))
	assert.Equal(t, float64(2), promtest.ToFloat64(m.storeEvents))

	tr.Clear()
	assert.Empty(t, tr.Events())
	assert.Equal(t, float64(0), promtest.ToFloat64(m.storeEvents))

	r := tr.Notify(testutil.Note("d1", "state", 2))
	assert.Equal(t, int64(3), r.Seq)
}

func TestTracer_StoreGaugeTracksClears(t *testing.T) {
	tr, _, m := newTestTracer(t)

	var wg sync.WaitGroup
	for w := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				tr.Notify(testutil.Note("d1", "counter", w*1000+i))
				if i%25 == 0 {
					tr.Clear()
				}
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, float64(tr.Store().Len()), promtest.ToFloat64(m.storeEvents))
	assert.Equal(t, float64(800), promtest.ToFloat64(m.eventsReceived))
}

func TestTracer_Defaults(t *testing.T) {
	tr := New(WithLogger(discardLogger()), WithMetrics(NewMetrics(nil)))

	label, ok := tr.Labels().Label("State", value.Int(8))
	assert.True(t, ok)
	assert.Equal(t, "FAULT", label)

	assert.Len(t, tr.ids.Generate(), 36)
	assert.NotNil(t, tr.Clock())
	assert.NotNil(t, tr.Store())
}

func TestTracer_ConcurrentNotifyAndQuery(t *testing.T) {
	tr := New(WithLogger(discardLogger()), WithMetrics(NewMetrics(nil)))

	const n = 100
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := range n {
			tr.Notify(testutil.Note("d1", "counter", i))
		}
	}()

	matched, err := tr.Query(context.Background(), query.Func(func(r event.Record) bool {
		return r.HasAttribute("counter")
	}), 5*time.Second, n)
	wg.Wait()

	require.NoError(t, err)
	require.Len(t, matched, n)
	for i, r := range matched {
		got, _ := value.AsInt(r.Value)
		assert.Equal(t, int64(i), got)
	}
}
