package query

import (
	"errors"
	"fmt"

	"github.com/roach88/evtrace/internal/event"
)

// Error represents a failure while evaluating a query.
//
// Errors include:
//   - Predicate failed: a predicate returned an error for a record
//   - Already evaluated: Evaluate was called twice on the same query
//   - Invalid query: the query cannot be evaluated (missing predicate, nil source)
//
// Timeouts and aborts are not errors; they are reported through Status.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// QueryID identifies the affected query, when it has one.
	QueryID string

	// Record is the record being evaluated when a predicate failed.
	Record *event.Record

	// Err is the underlying cause.
	Err error
}

// ErrorCode categorizes query errors.
type ErrorCode string

const (
	// ErrCodePredicateFailed indicates a predicate returned an error.
	ErrCodePredicateFailed ErrorCode = "PREDICATE_FAILED"

	// ErrCodeAlreadyEvaluated indicates the query was evaluated before.
	ErrCodeAlreadyEvaluated ErrorCode = "ALREADY_EVALUATED"

	// ErrCodeInvalidQuery indicates the query or its source is malformed.
	ErrCodeInvalidQuery ErrorCode = "INVALID_QUERY"
)

// Error implements the error interface.
func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.QueryID != "" {
		msg = fmt.Sprintf("%s (query=%s)", msg, e.QueryID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// IsPredicateError returns true if err is a predicate failure.
// Uses errors.As to handle wrapped errors.
func IsPredicateError(err error) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == ErrCodePredicateFailed
	}
	return false
}

// IsAlreadyEvaluated returns true if err reports a second evaluation.
func IsAlreadyEvaluated(err error) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeAlreadyEvaluated
	}
	return false
}

// IsInvalidQuery returns true if err reports a malformed query.
func IsInvalidQuery(err error) bool {
	var qe *Error
	if errors.As(err, &qe) {
		return qe.Code == ErrCodeInvalidQuery
	}
	return false
}

// NewPredicateError creates an Error for a predicate that failed on r.
func NewPredicateError(queryID string, r event.Record, cause error) *Error {
	return &Error{
		Code:    ErrCodePredicateFailed,
		Message: fmt.Sprintf("predicate failed on record seq=%d", r.Seq),
		QueryID: queryID,
		Record:  &r,
		Err:     cause,
	}
}

// NewAlreadyEvaluatedError creates an Error for a repeated evaluation.
func NewAlreadyEvaluatedError(queryID string, status Status) *Error {
	return &Error{
		Code:    ErrCodeAlreadyEvaluated,
		Message: fmt.Sprintf("query already evaluated (status=%s)", status),
		QueryID: queryID,
	}
}

// NewInvalidQueryError creates an Error for a malformed query.
func NewInvalidQueryError(queryID, reason string) *Error {
	return &Error{
		Code:    ErrCodeInvalidQuery,
		Message: reason,
		QueryID: queryID,
	}
}
