package query

import (
	"fmt"

	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/value"
)

// StateChange matches attribute changes by source, attribute, new value
// and previous value. Zero-valued criteria match anything; use value.Null{}
// to require a null value.
//
// The previous value of a record is the value of the most recent earlier
// record in the snapshot with the same source and attribute. A record with
// no earlier record never satisfies a previous-value criterion.
type StateChange struct {
	State

	SourceID    string
	AttributeID string // Case-insensitive
	Value       value.Value
	Previous    value.Value

	// AnyPrevious requires an earlier record to exist, whatever its value.
	AnyPrevious bool

	// Custom is an extra predicate checked after all other criteria.
	Custom Predicate

	// N is the number of matching changes to wait for; 0 means 1.
	N int
}

// Match implements Predicate.
func (q *StateChange) Match(r event.Record, h event.History) (bool, error) {
	if q.SourceID != "" && !r.HasSource(q.SourceID) {
		return false, nil
	}
	if q.AttributeID != "" && !r.HasAttribute(q.AttributeID) {
		return false, nil
	}
	if q.Value != nil && !value.Equal(r.Value, q.Value) {
		return false, nil
	}
	if q.Previous != nil || q.AnyPrevious {
		prev, ok := h.Previous(r)
		if !ok {
			return false, nil
		}
		if q.Previous != nil && !value.Equal(prev.Value, q.Previous) {
			return false, nil
		}
	}
	if q.Custom != nil {
		return q.Custom.Match(r, h)
	}
	return true, nil
}

// Target returns N.
func (q *StateChange) Target() int { return q.N }

// Criteria implements Describer. Values are rendered with labels.
func (q *StateChange) Criteria(labels event.Labels) []string {
	var lines []string
	if q.SourceID != "" {
		lines = append(lines, fmt.Sprintf("source: '%s'", q.SourceID))
	}
	if q.AttributeID != "" {
		lines = append(lines, fmt.Sprintf("attribute: '%s'", q.AttributeID))
	}
	if q.Value != nil {
		lines = append(lines, "value: "+labels.Format(q.AttributeID, q.Value))
	}
	switch {
	case q.Previous != nil:
		lines = append(lines, "previous value: "+labels.Format(q.AttributeID, q.Previous))
	case q.AnyPrevious:
		lines = append(lines, "previous value: any")
	}
	if q.Custom != nil {
		lines = append(lines, "custom matcher: "+predicateName(q.Custom))
	}
	return append(lines, "target: "+plural(target(q), "event"))
}
