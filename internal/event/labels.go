package event

import (
	"maps"

	"github.com/roach88/evtrace/internal/value"
)

// Labels maps attribute names to the display labels of their enumerated
// values (e.g. state 0 -> "ON"). The table is fixed at construction and safe
// for concurrent use. The zero value has no labels.
type Labels struct {
	byAttr map[string]map[int64]string // folded attribute -> ordinal -> label
}

// NewLabels builds a label table. Attribute names are case-insensitive; when
// two names fold to the same attribute their ordinals are merged and later
// entries win. The input is copied.
func NewLabels(table map[string]map[int64]string) Labels {
	byAttr := make(map[string]map[int64]string, len(table))
	for attr, names := range table {
		key := FoldAttribute(attr)
		if byAttr[key] == nil {
			byAttr[key] = make(map[int64]string, len(names))
		}
		maps.Copy(byAttr[key], names)
	}
	return Labels{byAttr: byAttr}
}

// Enum builds an ordinal -> label map from names in ordinal order starting at 0.
func Enum(names ...string) map[int64]string {
	m := make(map[int64]string, len(names))
	for i, n := range names {
		m[int64(i)] = n
	}
	return m
}

// DevStateNames are the device state labels in ordinal order.
var DevStateNames = []string{
	"ON", "OFF", "CLOSE", "OPEN", "INSERT", "EXTRACT", "MOVING",
	"STANDBY", "FAULT", "INIT", "RUNNING", "ALARM", "DISABLE", "UNKNOWN",
}

// DefaultLabels labels the "state" attribute with DevStateNames.
func DefaultLabels() Labels {
	return NewLabels(map[string]map[int64]string{
		"state": Enum(DevStateNames...),
	})
}

// With returns a new table with extra entries merged over l.
func (l Labels) With(table map[string]map[int64]string) Labels {
	merged := make(map[string]map[int64]string, len(l.byAttr)+len(table))
	for attr, names := range l.byAttr {
		merged[attr] = names
	}
	for attr, names := range table {
		key := FoldAttribute(attr)
		combined := make(map[int64]string, len(merged[key])+len(names))
		maps.Copy(combined, merged[key])
		maps.Copy(combined, names)
		merged[key] = combined
	}
	return Labels{byAttr: merged}
}

// Label returns the label for v on the given attribute. Only integral values
// have labels.
func (l Labels) Label(attributeID string, v value.Value) (string, bool) {
	if len(l.byAttr) == 0 {
		return "", false
	}
	names, ok := l.byAttr[FoldAttribute(attributeID)]
	if !ok {
		return "", false
	}
	n, ok := value.AsInt(v)
	if !ok {
		return "", false
	}
	label, ok := names[n]
	return label, ok
}

// Has reports whether the attribute has a label table.
func (l Labels) Has(attributeID string) bool {
	_, ok := l.byAttr[FoldAttribute(attributeID)]
	return ok
}

// Format renders v using its label when one exists.
func (l Labels) Format(attributeID string, v value.Value) string {
	if label, ok := l.Label(attributeID, v); ok {
		return label
	}
	if v == nil {
		return value.Null{}.String()
	}
	if s, ok := v.(value.String); ok {
		return "'" + string(s) + "'"
	}
	return v.String()
}

// Resolve turns a label back into its ordinal for the attribute. Scenario
// files may write `value: ON` for a labelled attribute.
func (l Labels) Resolve(attributeID, label string) (value.Value, bool) {
	names, ok := l.byAttr[FoldAttribute(attributeID)]
	if !ok {
		return nil, false
	}
	for n, name := range names {
		if name == label {
			return value.Int(n), true
		}
	}
	return nil, false
}
