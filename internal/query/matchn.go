package query

import (
	"errors"
	"fmt"

	"github.com/roach88/evtrace/internal/event"
)

// MatchN waits for N records matching a predicate.
type MatchN struct {
	State
	pred Predicate
	n    int
}

// NewMatchN creates a query satisfied by n records matching pred.
// n < 1 is treated as 1.
func NewMatchN(pred Predicate, n int) *MatchN {
	if n < 1 {
		n = 1
	}
	return &MatchN{pred: pred, n: n}
}

// Match delegates to the predicate.
func (q *MatchN) Match(r event.Record, h event.History) (bool, error) {
	return q.pred.Match(r, h)
}

// Target returns N.
func (q *MatchN) Target() int { return q.n }

// Criteria implements Describer.
func (q *MatchN) Criteria(event.Labels) []string {
	return []string{
		"predicate: " + predicateName(q.pred),
		"target: " + plural(q.n, "event"),
	}
}

func (q *MatchN) validate() error {
	if q.pred == nil {
		return errors.New("nil predicate")
	}
	return nil
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}
