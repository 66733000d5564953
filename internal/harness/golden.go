package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/value"
)

// TraceSnapshot captures the outcome of a scenario execution.
// Reception times are left out so snapshots are stable across runs.
type TraceSnapshot struct {
	ScenarioName string
	Pass         bool
	Assertions   []AssertionResult
	Events       event.History
	Labels       event.Labels
}

// toCanonicalMap converts a TraceSnapshot to a map[string]any for canonical
// JSON serialization. Labelled values are written as their labels.
func (s *TraceSnapshot) toCanonicalMap() map[string]any {
	events := make([]any, len(s.Events))
	for i, r := range s.Events {
		eventMap := map[string]any{
			"seq":       r.Seq,
			"source":    r.SourceID,
			"attribute": r.AttributeID,
			"value":     r.Value,
		}
		if label, ok := s.Labels.Label(r.AttributeID, r.Value); ok {
			eventMap["value"] = label
		}
		if r.Quality != event.QualityNone {
			eventMap["quality"] = string(r.Quality)
		}
		events[i] = eventMap
	}

	assertions := make([]any, len(s.Assertions))
	for i, a := range s.Assertions {
		matched := make([]any, len(a.Matched))
		for j, seq := range a.Matched {
			matched[j] = seq
		}
		assertions[i] = map[string]any{
			"index":   a.Index,
			"type":    a.Type,
			"status":  a.Status.String(),
			"pass":    a.Pass,
			"matched": matched,
		}
	}

	return map[string]any{
		"scenario_name": s.ScenarioName,
		"pass":          s.Pass,
		"assertions":    assertions,
		"events":        events,
	}
}

// RunWithGolden executes a scenario and compares the outcome against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the outcome doesn't match the golden file.
func RunWithGolden(t *testing.T, scenario *Scenario, opts ...RunOption) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), scenario, opts...)
	if err != nil {
		return nil, err
	}
	return result, AssertGolden(t, scenario.Name, result, scenario.LabelTable())
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, name string, result *Result, labels event.Labels) error {
	t.Helper()

	data, err := Snapshot(name, result, labels)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)

	return nil
}

// Snapshot renders a result as canonical JSON, the format of golden files.
func Snapshot(name string, result *Result, labels event.Labels) ([]byte, error) {
	snapshot := TraceSnapshot{
		ScenarioName: name,
		Pass:         result.Pass,
		Assertions:   result.Assertions,
		Events:       result.Events,
		Labels:       labels,
	}
	return value.MarshalCanonical(snapshot.toCanonicalMap())
}
