package tracer

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/query"
)

// Tracer collects events and answers queries about them.
type Tracer struct {
	store   *event.Store
	clock   clock.Clock
	logger  *slog.Logger
	labels  event.Labels
	metrics *Metrics
	ids     IDGenerator
	subs    *registry

	mu sync.Mutex // Orders store writes with their gauge updates
}

// Option configures a Tracer.
type Option func(*Tracer)

// WithClock sets the clock used for reception stamps and deadlines.
// Default: the real clock.
func WithClock(clk clock.Clock) Option {
	return func(t *Tracer) {
		t.clock = clk
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(t *Tracer) {
		t.logger = logger
	}
}

// WithLabels sets the value label table used when rendering records and
// query descriptions. Default: event.DefaultLabels().
func WithLabels(labels event.Labels) Option {
	return func(t *Tracer) {
		t.labels = labels
	}
}

// WithMetrics sets the prometheus collectors. Default: collectors
// registered with the default registry.
func WithMetrics(m *Metrics) Option {
	return func(t *Tracer) {
		t.metrics = m
	}
}

// WithIDGenerator sets the query id generator. Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(t *Tracer) {
		t.ids = g
	}
}

// WithSubscriber sets the adapter Subscribe delegates to.
func WithSubscriber(s Subscriber) Option {
	return func(t *Tracer) {
		t.subs.subscriber = s
	}
}

// New creates a Tracer with an empty store.
func New(opts ...Option) *Tracer {
	t := &Tracer{
		clock:   clock.RealClock{},
		logger:  slog.Default(),
		labels:  event.DefaultLabels(),
		metrics: defaultMetrics,
		ids:     UUIDv7Generator{},
		subs:    newRegistry(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.store = event.NewStore(t.clock)
	return t
}

// Notify appends a notification to the store, stamping it with the next
// sequence number and the current time, and wakes every pending query.
func (t *Tracer) Notify(n event.Notification) event.Record {
	t.mu.Lock()
	r, size := t.store.Add(n)
	t.metrics.received(size)
	t.mu.Unlock()

	t.logger.Debug("event received",
		"seq", r.Seq,
		"source", r.SourceID,
		"attribute", r.AttributeID,
		"value", t.labels.Format(r.AttributeID, r.Value),
	)
	return r
}

// Query waits up to timeout for n records matching pred and returns the
// matches in store order. Running out of time is not an error: the result
// then holds fewer than n records. A timeout <= 0 checks the current
// events only.
func (t *Tracer) Query(ctx context.Context, pred query.Predicate, timeout time.Duration, n int) ([]event.Record, error) {
	q := query.NewMatchN(pred, n)
	_, err := t.EvaluateQuery(ctx, q, t.NewDeadline(timeout))
	return q.Matched(), err
}

// EvaluateQuery runs a caller-built query against the store and returns its
// terminal status. Pass one deadline to several calls to share a timeout
// budget between them. A nil deadline checks the current events only.
func (t *Tracer) EvaluateQuery(ctx context.Context, q query.Query, d *query.Deadline) (query.Status, error) {
	if d == nil {
		d = t.NewDeadline(0)
	}
	id := t.ids.Generate()
	if q == nil {
		return query.NotStarted, query.NewInvalidQueryError(id, "nil query")
	}
	t.logger.Debug("query started", "query_id", id, "timeout", d.Remaining())

	err := query.Evaluate(ctx, t.store, q, d, query.WithID(id))
	if query.IsInvalidQuery(err) {
		return query.NotStarted, err
	}

	s := query.StateOf(q)
	if query.IsAlreadyEvaluated(err) {
		return s.Status(), err
	}
	t.metrics.evaluated(s)

	attrs := []any{
		"query_id", id,
		"status", s.Status().String(),
		"matched", len(s.Matched()),
		"duration", s.Duration(),
	}
	if err != nil {
		t.logger.Error("query failed", append(attrs, "error", err)...)
		return s.Status(), err
	}
	t.logger.Info("query completed", attrs...)
	return s.Status(), nil
}

// NewDeadline creates a deadline on the tracer's clock.
func (t *Tracer) NewDeadline(timeout time.Duration) *query.Deadline {
	return query.NewDeadline(timeout, t.clock)
}

// Describe renders q with the tracer's labels.
func (t *Tracer) Describe(q query.Query) string {
	return query.Describe(q, t.labels)
}

// Events returns the records received so far, in store order.
func (t *Tracer) Events() event.History {
	return t.store.Snapshot()
}

// Clear drops every stored record. Subscriptions stay active.
func (t *Tracer) Clear() {
	t.mu.Lock()
	t.store.Clear()
	t.metrics.cleared()
	t.mu.Unlock()
	t.logger.Debug("events cleared")
}

// Labels returns the value label table.
func (t *Tracer) Labels() event.Labels {
	return t.labels
}

// Store returns the underlying event store.
func (t *Tracer) Store() *event.Store {
	return t.store
}

// Clock returns the tracer's clock.
func (t *Tracer) Clock() clock.Clock {
	return t.clock
}
