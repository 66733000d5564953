package tracer

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/evtrace/internal/query"
)

const statusLabel = "status"

// Metrics are the prometheus collectors a Tracer updates.
type Metrics struct {
	eventsReceived prometheus.Counter
	storeEvents    prometheus.Gauge
	queries        *prometheus.CounterVec
	queryDuration  prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		eventsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "evtrace_events_received_total",
			Help: "Number of notifications appended to the event store",
		}),
		storeEvents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "evtrace_store_events",
			Help: "Number of records currently held by the event store",
		}),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "evtrace_queries_total",
			Help: "Number of evaluated queries by terminal status",
		}, []string{statusLabel}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "evtrace_query_duration_seconds",
			Help:    "Time spent evaluating queries, including waits",
			Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.eventsReceived, m.storeEvents, m.queries, m.queryDuration)
	}
	return m
}

// defaultMetrics is shared by every Tracer built without WithMetrics.
var defaultMetrics = NewMetrics(nil)

func init() {
	prometheus.MustRegister(
		defaultMetrics.eventsReceived,
		defaultMetrics.storeEvents,
		defaultMetrics.queries,
		defaultMetrics.queryDuration,
	)
}

func (m *Metrics) received(storeLen int) {
	m.eventsReceived.Inc()
	m.storeEvents.Set(float64(storeLen))
}

func (m *Metrics) cleared() {
	m.storeEvents.Set(0)
}

func (m *Metrics) evaluated(s *query.State) {
	m.queries.With(prometheus.Labels{statusLabel: s.Status().String()}).Inc()
	m.queryDuration.Observe(s.Duration().Seconds())
}
