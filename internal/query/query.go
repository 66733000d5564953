package query

import (
	"sync"
	"time"

	"github.com/roach88/evtrace/internal/event"
)

// Query is the protocol Evaluate drives. Implementations embed State,
// which supplies the unexported state accessor:
//
//	type firstSeen struct {
//	    query.State
//	}
//
//	func (firstSeen) Match(r event.Record, h event.History) (bool, error) {
//	    return h.First(r), nil
//	}
type Query interface {
	Predicate
	state() *State
}

// Targeter reports how many matches satisfy a query.
type Targeter interface {
	Target() int
}

// Satisfier replaces the match-count rule with an aggregate condition.
type Satisfier interface {
	Satisfied(matched []event.Record) bool
}

// Aborter stops a query early. An offending record ends the evaluation
// with status Aborted, even when time remains and even when later records
// would match.
type Aborter interface {
	Abort(r event.Record, h event.History) (bool, error)
}

// Describer lists the query's criteria for Describe.
type Describer interface {
	Criteria(labels event.Labels) []string
}

type validator interface {
	validate() error
}

// target returns the match count that satisfies q.
func target(q Query) int {
	if t, ok := q.(Targeter); ok && t.Target() > 1 {
		return t.Target()
	}
	return 1
}

func satisfied(q Query, matched []event.Record) bool {
	if s, ok := q.(Satisfier); ok {
		return s.Satisfied(matched)
	}
	return len(matched) >= target(q)
}

// State is the evaluation state every query carries. Its zero value is a
// query that has not started. Accessors are safe to call from any
// goroutine, including while the query is being evaluated.
type State struct {
	mu        sync.Mutex
	id        string
	status    Status
	deadline  *Deadline
	matched   []event.Record
	counted   map[int64]struct{} // Seq of each matched record
	abortedBy *event.Record
	err       error
	remaining time.Duration // Deadline budget left when the query ended
	started   time.Time
	ended     time.Time
}

func (s *State) state() *State { return s }

// StateOf returns the evaluation state of q, including wrapped queries such
// as those returned by WithAbort.
func StateOf(q Query) *State { return q.state() }

// ID returns the identifier assigned at evaluation, if any.
func (s *State) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Status returns the current lifecycle state.
func (s *State) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Matched returns the matching records in store order.
func (s *State) Matched() []event.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]event.Record, len(s.matched))
	copy(out, s.matched)
	return out
}

// AbortedBy returns the record that stopped the query early.
func (s *State) AbortedBy() (event.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.abortedBy == nil {
		return event.Record{}, false
	}
	return *s.abortedBy, true
}

// Err returns the error that ended the evaluation, if any.
func (s *State) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Deadline returns the deadline the query was evaluated against.
func (s *State) Deadline() *Deadline {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deadline
}

// Started returns when evaluation began.
func (s *State) Started() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.started
}

// Ended returns when evaluation reached a terminal status.
func (s *State) Ended() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// Duration returns how long evaluation took. It is zero until the query
// ends.
func (s *State) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ended.IsZero() {
		return 0
	}
	return s.ended.Sub(s.started)
}

// Remaining returns the deadline budget left when the query ended.
func (s *State) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.remaining
}

// Succeeded reports whether the query ended with status Succeeded.
func (s *State) Succeeded() bool {
	return s.Status() == Succeeded
}

// begin moves the query to InProgress. A query leaves NotStarted once.
func (s *State) begin(id string, d *Deadline) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != NotStarted {
		return NewAlreadyEvaluatedError(s.id, s.status)
	}
	s.id = id
	s.deadline = d
	s.status = InProgress
	s.counted = make(map[int64]struct{})
	// A shared deadline may have started long before this query.
	d.Start()
	s.started = d.Clock().Now()
	return nil
}

// count records r as a match unless it was counted before.
func (s *State) count(r event.Record) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.counted[r.Seq]; ok {
		return false
	}
	s.counted[r.Seq] = struct{}{}
	s.matched = append(s.matched, r)
	return true
}

func (s *State) isCounted(seq int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.counted[seq]
	return ok
}

func (s *State) matchedSnapshot() []event.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matched[:len(s.matched):len(s.matched)]
}

func (s *State) abort(r event.Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.abortedBy = &r
}

func (s *State) finish(status Status, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.err = err
	s.ended = s.deadline.Clock().Now()
	s.remaining = s.deadline.Remaining()
}
