package query

import (
	"context"
	"fmt"

	"k8s.io/utils/clock"

	"github.com/roach88/evtrace/internal/event"
)

// Source is a store that can be watched. *event.Store implements it.
type Source interface {
	// Watch returns the current snapshot and a channel closed by the next
	// change, read atomically with respect to each other.
	Watch() (event.History, <-chan struct{})
}

// Option configures a single evaluation.
type Option func(*evalConfig)

type evalConfig struct {
	id string
}

// WithID tags the evaluation with an identifier used in errors and
// descriptions.
func WithID(id string) Option {
	return func(c *evalConfig) {
		c.id = id
	}
}

// Evaluate runs q against src until it is satisfied, aborted, out of time or
// ctx is done. A nil deadline evaluates the current snapshot once without
// waiting.
//
// Each pass scans the whole snapshot in store order. For every record the
// abort condition is checked first, then the match predicate; records already
// counted are not counted again, so repeated passes over an unchanged store
// leave the result unchanged. The query is satisfied as soon as enough
// matches are counted: with a target of N the matches are the first N in
// store order, whatever arrives afterwards.
//
// The returned error is nil for Succeeded, TimedOut and Aborted. Predicate
// failures and cancellation end the evaluation with status Failed or
// Cancelled and are returned.
func Evaluate(ctx context.Context, src Source, q Query, d *Deadline, opts ...Option) error {
	var cfg evalConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if q == nil {
		return NewInvalidQueryError(cfg.id, "nil query")
	}
	if d == nil {
		d = NoWait()
	}

	if src == nil {
		return NewInvalidQueryError(cfg.id, "nil source")
	}
	if v, ok := q.(validator); ok {
		if err := v.validate(); err != nil {
			return NewInvalidQueryError(cfg.id, err.Error())
		}
	}

	s := q.state()
	if err := s.begin(cfg.id, d); err != nil {
		return err
	}

	var timer clock.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	expired := false
	for {
		h, updated := src.Watch()

		status, err := scan(q, s, h)
		if err != nil {
			s.finish(Failed, err)
			return err
		}
		if status != InProgress {
			s.finish(status, nil)
			return nil
		}

		remaining := d.Remaining()
		if expired || remaining <= 0 {
			s.finish(TimedOut, nil)
			return nil
		}

		// The deadline is absolute, so one timer covers every wait.
		if timer == nil {
			timer = d.Clock().NewTimer(remaining)
		}

		select {
		case <-updated:
		case <-timer.C():
			expired = true
		case <-ctx.Done():
			err := fmt.Errorf("query cancelled: %w", ctx.Err())
			s.finish(Cancelled, err)
			return err
		}
	}
}

// scan makes one pass over h. It returns InProgress when the query needs
// more records.
func scan(q Query, s *State, h event.History) (Status, error) {
	aborter, _ := q.(Aborter)

	for _, r := range h {
		if aborter != nil {
			stop, err := aborter.Abort(r, h)
			if err != nil {
				return Failed, NewPredicateError(s.ID(), r, err)
			}
			if stop {
				s.abort(r)
				return Aborted, nil
			}
		}

		if s.isCounted(r.Seq) {
			continue
		}
		ok, err := q.Match(r, h)
		if err != nil {
			return Failed, NewPredicateError(s.ID(), r, err)
		}
		if ok && s.count(r) && satisfied(q, s.matchedSnapshot()) {
			return Succeeded, nil
		}
	}

	if satisfied(q, s.matchedSnapshot()) {
		return Succeeded, nil
	}
	return InProgress, nil
}
