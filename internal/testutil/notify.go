package testutil

import (
	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/value"
)

// Note builds a notification. v is converted with value.MustOf, so
// unsupported types panic.
func Note(source, attribute string, v any) event.Notification {
	return event.Notification{SourceID: source, AttributeID: attribute, Value: value.MustOf(v)}
}

// NoteWithQuality builds a notification carrying a quality tag.
func NoteWithQuality(source, attribute string, v any, q event.Quality) event.Notification {
	n := Note(source, attribute, v)
	n.Quality = q
	return n
}

// Populate appends notifications to s in order and returns the records.
func Populate(s *event.Store, notes ...event.Notification) []event.Record {
	records := make([]event.Record, len(notes))
	for i, n := range notes {
		records[i] = s.Append(n)
	}
	return records
}
