package query

import (
	"fmt"
	"strings"
	"time"

	"github.com/roach88/evtrace/internal/event"
)

const timeLayout = "15:04:05.000000"

// Describe renders q for humans in three sections: STATUS, CRITERIA and
// RESULTS. Values are shown with their labels.
func Describe(q Query, labels event.Labels) string {
	s := q.state()
	var b strings.Builder

	b.WriteString("QUERY")
	if id := s.ID(); id != "" {
		b.WriteString(" " + id)
	}
	b.WriteString("\n")

	status := s.Status()
	fmt.Fprintf(&b, "STATUS: %s\n", status)
	if status != NotStarted {
		describeTiming(&b, s, status)
		if reason := failReason(q, s, status, labels); reason != "" {
			fmt.Fprintf(&b, "  reason: %s\n", reason)
		}
	}

	b.WriteString("CRITERIA:\n")
	for _, line := range criteria(q, labels) {
		fmt.Fprintf(&b, "  %s\n", line)
	}

	b.WriteString("RESULTS:\n")
	matched := s.Matched()
	switch {
	case status == NotStarted:
		b.WriteString("  not evaluated\n")
	case len(matched) == 0:
		b.WriteString("  no matching events\n")
	default:
		fmt.Fprintf(&b, "  matched %d of %s:\n", len(matched), plural(target(q), "event"))
		for _, r := range matched {
			fmt.Fprintf(&b, "    %s\n", r.Format(labels))
		}
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func describeTiming(b *strings.Builder, s *State, status Status) {
	fmt.Fprintf(b, "  started: %s\n", s.Started().Format(timeLayout))
	if status.Terminal() {
		fmt.Fprintf(b, "  ended: %s (took %s)\n", s.Ended().Format(timeLayout), s.Duration())
	}
	if d := s.Deadline(); d != nil {
		remaining := s.Remaining()
		if !status.Terminal() {
			remaining = d.Remaining()
		}
		fmt.Fprintf(b, "  timeout: %s (remaining %s)\n", d.Initial(), remaining)
	}
}

func failReason(q Query, s *State, status Status, labels event.Labels) string {
	switch status {
	case TimedOut:
		var within time.Duration
		if d := s.Deadline(); d != nil {
			within = d.Initial()
		}
		return fmt.Sprintf("timed out after %s with %d of %s matched",
			within, len(s.Matched()), plural(target(q), "event"))
	case Aborted:
		if r, ok := s.AbortedBy(); ok {
			return "early stop on " + r.Format(labels)
		}
		return "early stop"
	case Failed, Cancelled:
		if err := s.Err(); err != nil {
			return err.Error()
		}
	}
	return ""
}

func criteria(q Query, labels event.Labels) []string {
	if d, ok := q.(Describer); ok {
		return d.Criteria(labels)
	}
	return []string{fmt.Sprintf("custom query %T", q), "target: " + plural(target(q), "event")}
}
