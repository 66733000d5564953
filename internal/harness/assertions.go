package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/query"
	"github.com/roach88/evtrace/internal/tracer"
	"github.com/roach88/evtrace/internal/value"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Query    string         // Query description (status, criteria, results)
	Events   []event.Record // Full event snapshot for debugging context
	Labels   event.Labels   // Labels used to render values
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	// Header with assertion type
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)

	// Expected vs Actual (most important info)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Query != "" {
		fmt.Fprintf(&buf, "\n%s\n", e.Query)
	}

	// Full snapshot for context
	fmt.Fprintf(&buf, "\nFull trace:\n")
	if len(e.Events) == 0 {
		buf.WriteString("  (no events)\n")
	}
	for i, r := range e.Events {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, r.Format(e.Labels))
	}

	return buf.String()
}

// toValue converts a YAML value, resolving labels of labelled attributes.
func toValue(labels event.Labels, attr string, raw any) (value.Value, error) {
	if raw == nil {
		return nil, nil
	}
	if s, ok := raw.(string); ok {
		if v, ok := labels.Resolve(attr, s); ok {
			return v, nil
		}
	}
	return value.Of(raw)
}

// stateChange builds the query for the assertion.
func (a *Assertion) stateChange(labels event.Labels) (*query.StateChange, error) {
	v, err := toValue(labels, a.Attribute, a.Value)
	if err != nil {
		return nil, fmt.Errorf("value: %w", err)
	}
	prev, err := toValue(labels, a.Attribute, a.Previous)
	if err != nil {
		return nil, fmt.Errorf("previous: %w", err)
	}
	return &query.StateChange{
		SourceID:    a.Source,
		AttributeID: a.Attribute,
		Value:       v,
		Previous:    prev,
		AnyPrevious: a.AnyPrevious,
		N:           a.MinCount,
	}, nil
}

// query builds the full query, abort conditions included.
func (a *Assertion) query(labels event.Labels) (query.Query, *query.StateChange, error) {
	sc, err := a.stateChange(labels)
	if err != nil {
		return nil, nil, err
	}
	if len(a.AbortOn) == 0 {
		return sc, sc, nil
	}

	stops := make([]query.Predicate, len(a.AbortOn))
	for i, m := range a.AbortOn {
		v, err := toValue(labels, m.Attribute, m.Value)
		if err != nil {
			return nil, nil, fmt.Errorf("abort_on[%d]: %w", i, err)
		}
		stop := &query.StateChange{SourceID: m.Source, AttributeID: m.Attribute, Value: v}
		stops[i] = query.Named(describeMatch(stop, labels), stop)
	}
	return query.WithAbort(sc, stops...), sc, nil
}

// describeMatch renders the criteria of a state change on one line.
func describeMatch(sc *query.StateChange, labels event.Labels) string {
	var parts []string
	for _, line := range sc.Criteria(labels) {
		if strings.HasPrefix(line, "target:") {
			continue
		}
		parts = append(parts, line)
	}
	if len(parts) == 0 {
		return "any event"
	}
	return strings.Join(parts, ", ")
}

// evaluateAssertion runs one assertion against the tracer, consuming the
// shared deadline. A failed assertion is reported as *AssertionError.
func evaluateAssertion(ctx context.Context, tr *tracer.Tracer, index int, a Assertion, d *query.Deadline) (AssertionResult, error) {
	labels := tr.Labels()
	q, sc, err := a.query(labels)
	if err != nil {
		return AssertionResult{}, fmt.Errorf("assertions[%d]: %w", index, err)
	}

	status, err := tr.EvaluateQuery(ctx, q, d)
	if err != nil {
		return AssertionResult{}, fmt.Errorf("assertions[%d]: %w", index, err)
	}

	state := query.StateOf(q)
	result := AssertionResult{
		Index:  index,
		Type:   a.Type,
		Status: status,
	}
	for _, r := range state.Matched() {
		result.Matched = append(result.Matched, r.Seq)
	}

	var actual string
	switch a.Type {
	case AssertHasNoEvent:
		result.Pass = status == query.TimedOut && len(result.Matched) == 0
		if matched := state.Matched(); len(matched) > 0 {
			actual = "found " + matched[0].Format(labels)
		} else if !result.Pass {
			actual = outcome(state, labels)
		}
	default:
		result.Pass = status == query.Succeeded
		if !result.Pass {
			actual = outcome(state, labels)
		}
	}

	if !result.Pass {
		expected := describeMatch(sc, labels)
		if a.Type == AssertHasNoEvent {
			expected = "no event with " + expected
		} else if n := sc.Target(); n > 1 {
			expected = fmt.Sprintf("%d events with %s", n, expected)
		}
		result.Failure = &AssertionError{
			Type:     a.Type,
			Expected: expected,
			Actual:   actual,
			Query:    tr.Describe(q),
			Events:   tr.Events(),
			Labels:   labels,
		}
	}
	return result, nil
}

func outcome(s *query.State, labels event.Labels) string {
	switch s.Status() {
	case query.Aborted:
		if r, ok := s.AbortedBy(); ok {
			return "stopped early by " + r.Format(labels)
		}
		return "stopped early"
	case query.TimedOut:
		var within string
		if d := s.Deadline(); d != nil {
			within = d.Initial().String()
		}
		return fmt.Sprintf("%d matching event(s) within %s", len(s.Matched()), within)
	default:
		return s.Status().String()
	}
}
