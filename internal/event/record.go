package event

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"

	"github.com/roach88/evtrace/internal/value"
)

// Quality tags the reading attached to a notification.
// The zero value means the source reported no quality.
type Quality string

const (
	QualityNone     Quality = ""
	QualityValid    Quality = "valid"
	QualityInvalid  Quality = "invalid"
	QualityAlarm    Quality = "alarm"
	QualityChanging Quality = "changing"
	QualityWarning  Quality = "warning"

	// QualityError marks an error notification: the source failed to read
	// the attribute and the value is usually Null.
	QualityError Quality = "error"
)

// Notification is a raw change as delivered by a subscription adapter.
// The tracer turns it into a Record by stamping sequence and reception time.
type Notification struct {
	SourceID    string
	AttributeID string
	Value       value.Value
	Quality     Quality
}

// Record is one observed attribute change. Records are immutable once
// appended to a Store.
type Record struct {
	// Seq is the store position, starting at 1. Never reused, not even
	// across Store.Clear.
	Seq int64

	SourceID    string
	AttributeID string
	Value       value.Value
	Quality     Quality

	// ReceivedAt is stamped by the store at append time.
	ReceivedAt time.Time
}

// FoldAttribute returns the case-folded form of an attribute name.
// Attribute identity is case-insensitive: "State" and "state" are the same
// attribute.
func FoldAttribute(name string) string {
	// A Caser is stateful and must not be shared between goroutines.
	return cases.Fold().String(name)
}

// SameAttribute reports whether two attribute names identify the same attribute.
func SameAttribute(a, b string) bool {
	return a == b || FoldAttribute(a) == FoldAttribute(b)
}

// HasSource reports whether the record comes from the given source.
// Source ids are compared exactly.
func (r Record) HasSource(sourceID string) bool {
	return r.SourceID == sourceID
}

// HasAttribute reports whether the record concerns the given attribute,
// ignoring case.
func (r Record) HasAttribute(attributeID string) bool {
	return SameAttribute(r.AttributeID, attributeID)
}

// SameStream reports whether two records come from the same source and attribute.
func (r Record) SameStream(other Record) bool {
	return r.HasSource(other.SourceID) && r.HasAttribute(other.AttributeID)
}

// IsError reports whether the record is an error notification.
func (r Record) IsError() bool {
	return r.Quality == QualityError
}

// Age returns how long ago the record was received, relative to now.
func (r Record) Age(now time.Time) time.Duration {
	return now.Sub(r.ReceivedAt)
}

// String renders the record without value labels.
func (r Record) String() string {
	return r.Format(Labels{})
}

// Format renders the record, replacing the value with its label when the
// attribute has one in labels.
func (r Record) Format(labels Labels) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Record(source='%s', attribute='%s', value=%s",
		r.SourceID, r.AttributeID, labels.Format(r.AttributeID, r.Value))
	if r.Quality != QualityNone {
		fmt.Fprintf(&b, ", quality=%s", r.Quality)
	}
	fmt.Fprintf(&b, ", received=%s)", r.ReceivedAt.Format("15:04:05.000000"))
	return b.String()
}

// MarshalJSON renders the record as canonical JSON.
func (r Record) MarshalJSON() ([]byte, error) {
	obj := map[string]any{
		"seq":         r.Seq,
		"source":      r.SourceID,
		"attribute":   r.AttributeID,
		"value":       valueOrNull(r.Value),
		"received_at": r.ReceivedAt.UTC().Format(time.RFC3339Nano),
	}
	if r.Quality != QualityNone {
		obj["quality"] = string(r.Quality)
	}
	return value.MarshalCanonical(obj)
}

func valueOrNull(v value.Value) value.Value {
	if v == nil {
		return value.Null{}
	}
	return v
}
