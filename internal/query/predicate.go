package query

import (
	"fmt"
	"strings"

	"github.com/roach88/evtrace/internal/event"
)

// Predicate decides whether a record matches. h is the snapshot the record
// was taken from, for predicates that look at other records. A returned
// error fails the whole evaluation.
//
// Predicates run on the evaluating goroutine without any store lock held.
// They must not block.
type Predicate interface {
	Match(r event.Record, h event.History) (bool, error)
}

// Func adapts a plain record test to a Predicate.
type Func func(r event.Record) bool

func (f Func) Match(r event.Record, _ event.History) (bool, error) {
	return f(r), nil
}

// HistoryFunc adapts a record test that needs the snapshot.
type HistoryFunc func(r event.Record, h event.History) bool

func (f HistoryFunc) Match(r event.Record, h event.History) (bool, error) {
	return f(r, h), nil
}

// CheckFunc adapts a record test that can fail.
type CheckFunc func(r event.Record, h event.History) (bool, error)

func (f CheckFunc) Match(r event.Record, h event.History) (bool, error) {
	return f(r, h)
}

type named struct {
	name string
	Predicate
}

func (n named) String() string { return n.name }

// Named attaches a description to p, shown by Describe.
func Named(name string, p Predicate) Predicate {
	return named{name: name, Predicate: p}
}

type allOf []Predicate

func (ps allOf) Match(r event.Record, h event.History) (bool, error) {
	for _, p := range ps {
		ok, err := p.Match(r, h)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

func (ps allOf) String() string { return joinNames(ps, " and ") }

type anyOf []Predicate

func (ps anyOf) Match(r event.Record, h event.History) (bool, error) {
	for _, p := range ps {
		ok, err := p.Match(r, h)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (ps anyOf) String() string { return joinNames(ps, " or ") }

// All matches when every predicate matches. All() matches everything.
func All(ps ...Predicate) Predicate { return allOf(ps) }

// Any matches when at least one predicate matches. Any() matches nothing.
func Any(ps ...Predicate) Predicate { return anyOf(ps) }

// predicateName labels p in Describe output.
func predicateName(p Predicate) string {
	if s, ok := p.(fmt.Stringer); ok {
		return s.String()
	}
	return "custom predicate"
}

func joinNames(ps []Predicate, sep string) string {
	names := make([]string, len(ps))
	for i, p := range ps {
		names[i] = predicateName(p)
	}
	return "(" + strings.Join(names, sep) + ")"
}
