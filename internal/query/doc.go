// Package query implements predicate queries over an event store.
//
// A Query decides which records match. Evaluate runs it against a Source:
// it scans the current snapshot, and when the query is not yet satisfied and
// its Deadline has time left, it sleeps until the store changes or the
// deadline passes, then scans again.
//
// Every query embeds State, which records the lifecycle:
//
//	NotStarted -> InProgress -> Succeeded | TimedOut | Aborted | Cancelled | Failed
//
// A query is evaluated at most once. Timeouts and aborts are terminal
// statuses, not errors; only predicate failures, context cancellation and
// misuse are returned as errors.
//
// Optional capabilities refine the default behaviour:
//
//	Targeter   Target() int                   how many matches satisfy the query (default 1)
//	Satisfier  Satisfied([]event.Record) bool  replaces the count rule
//	Aborter    Abort(record, history)         stops the query early
//	Describer  Criteria(labels) []string      lines for Describe
package query
