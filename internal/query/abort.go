package query

import (
	"errors"

	"github.com/roach88/evtrace/internal/event"
)

// Aborting wraps a query with early-stop predicates. Any of them matching
// a record stops the evaluation with status Aborted.
type Aborting struct {
	Query
	stops []Predicate

	orphan State // Reported when there is no wrapped query
}

// WithAbort adds abort predicates to q. Wrapping an Aborting query extends
// its list; conditions are combined with OR and none is ever dropped.
//
// The returned query shares q's State: inspect either for the outcome.
func WithAbort(q Query, stops ...Predicate) *Aborting {
	if a, ok := q.(*Aborting); ok {
		combined := make([]Predicate, 0, len(a.stops)+len(stops))
		combined = append(combined, a.stops...)
		return &Aborting{Query: a.Query, stops: append(combined, stops...)}
	}
	return &Aborting{Query: q, stops: stops}
}

// Abort reports whether r triggers the wrapped query's own abort condition
// or any of the added predicates.
func (q *Aborting) Abort(r event.Record, h event.History) (bool, error) {
	if inner, ok := q.Query.(Aborter); ok {
		stop, err := inner.Abort(r, h)
		if err != nil || stop {
			return stop, err
		}
	}
	for _, p := range q.stops {
		stop, err := p.Match(r, h)
		if err != nil || stop {
			return stop, err
		}
	}
	return false, nil
}

// Target forwards to the wrapped query.
func (q *Aborting) Target() int { return target(q.Query) }

// Satisfied forwards to the wrapped query.
func (q *Aborting) Satisfied(matched []event.Record) bool {
	return satisfied(q.Query, matched)
}

// Criteria lists the wrapped query's criteria followed by the abort
// conditions.
func (q *Aborting) Criteria(labels event.Labels) []string {
	lines := criteria(q.Query, labels)
	for _, p := range q.stops {
		lines = append(lines, "abort on: "+predicateName(p))
	}
	return lines
}

func (q *Aborting) state() *State {
	if q.Query == nil {
		return &q.orphan
	}
	return q.Query.state()
}

// Unwrap returns the wrapped query.
func (q *Aborting) Unwrap() Query { return q.Query }

func (q *Aborting) validate() error {
	if q.Query == nil {
		return errors.New("nil wrapped query")
	}
	for _, p := range q.stops {
		if p == nil {
			return errors.New("nil abort predicate")
		}
	}
	if v, ok := q.Query.(validator); ok {
		return v.validate()
	}
	return nil
}
