package query

import "fmt"

// Status is the lifecycle state of a query.
type Status int

const (
	NotStarted Status = iota
	InProgress
	Succeeded
	TimedOut
	Aborted
	Cancelled
	Failed
)

var statusNames = [...]string{
	NotStarted: "not_started",
	InProgress: "in_progress",
	Succeeded:  "succeeded",
	TimedOut:   "timed_out",
	Aborted:    "aborted",
	Cancelled:  "cancelled",
	Failed:     "failed",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

// MarshalText renders the status name, so statuses read naturally in JSON.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a status name.
func (s *Status) UnmarshalText(text []byte) error {
	for i, name := range statusNames {
		if name == string(text) {
			*s = Status(i)
			return nil
		}
	}
	return fmt.Errorf("unknown query status %q", text)
}

// Terminal reports whether no further transition can happen.
func (s Status) Terminal() bool {
	return s >= Succeeded
}

// OK reports whether the query found what it was looking for.
func (s Status) OK() bool {
	return s == Succeeded
}
