package harness

import (
	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/query"
)

// AssertionResult is the outcome of one assertion.
type AssertionResult struct {
	Index  int          `json:"index"`
	Type   string       `json:"type"`
	Status query.Status `json:"status"`
	Pass   bool         `json:"pass"`

	// Matched lists the sequence numbers of the matching events.
	Matched []int64 `json:"matched"`

	// Failure holds the rendered failure when Pass is false.
	Failure *AssertionError `json:"-"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	// True if every assertion passed.
	Pass bool `json:"pass"`

	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// Assertions holds one result per assertion, in order.
	Assertions []AssertionResult `json:"assertions"`

	// Events contains every traced event in store order.
	Events event.History `json:"events"`

	// Errors contains failure messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for scenario execution.
func NewResult(name string) *Result {
	return &Result{
		Pass:       true,
		Scenario:   name,
		Assertions: []AssertionResult{},
		Events:     event.History{},
		Errors:     []string{},
	}
}

// AddAssertion records an assertion outcome, failing the result if the
// assertion failed.
func (r *Result) AddAssertion(ar AssertionResult) {
	r.Assertions = append(r.Assertions, ar)
	if !ar.Pass {
		r.AddError(ar.Failure.Error())
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Failures returns the failed assertions' errors.
func (r *Result) Failures() []*AssertionError {
	var out []*AssertionError
	for _, ar := range r.Assertions {
		if ar.Failure != nil {
			out = append(out, ar.Failure)
		}
	}
	return out
}
