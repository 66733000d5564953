package harness

import (
	"bytes"
	"cmp"
	"fmt"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/feed"
)

// Scenario defines an event tracing scenario: a scripted feed, the
// attributes to subscribe to, and assertions about the events the feed
// produces.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Labels adds value label tables: attribute -> names in ordinal order.
	// The state attribute is always labelled with the device states.
	Labels map[string][]string `yaml:"labels,omitempty"`

	// Subscribe lists the attributes to trace. If empty, every attribute
	// the feed mentions is traced.
	Subscribe []Stream `yaml:"subscribe,omitempty"`

	// Feed is the scripted notification source.
	Feed feed.Script `yaml:"feed"`

	// Within is the timeout shared by all assertions: they must all be
	// decided within this budget, counted from the first assertion.
	Within time.Duration `yaml:"within"`

	// Assertions are evaluated in order while the feed plays.
	// Supported types: has_event, has_no_event, state_change
	Assertions []Assertion `yaml:"assertions"`
}

// Stream names one attribute of one source.
type Stream struct {
	Source    string `yaml:"source"`
	Attribute string `yaml:"attribute"`
}

// Assertion is a question about the traced events.
type Assertion struct {
	// Type specifies the assertion type:
	// - "has_event": a matching event happens (min_count times)
	// - "has_no_event": no matching event happens before the budget runs out
	// - "state_change": like has_event, with a previous or any_previous criterion
	Type string `yaml:"type"`

	Source    string `yaml:"source,omitempty"`
	Attribute string `yaml:"attribute,omitempty"`

	// Value is the expected new value. Labels are accepted for labelled
	// attributes (e.g. ON for state).
	Value any `yaml:"value,omitempty"`

	// Previous is the expected value of the preceding event of the same
	// source and attribute.
	Previous any `yaml:"previous,omitempty"`

	// AnyPrevious requires a preceding event with any value.
	AnyPrevious bool `yaml:"any_previous,omitempty"`

	// MinCount is the number of matching events required (default 1).
	MinCount int `yaml:"min_count,omitempty"`

	// AbortOn fails the assertion as soon as a matching event is seen.
	AbortOn []Match `yaml:"abort_on,omitempty"`
}

// Match selects events by source, attribute and value. Empty fields match
// anything.
type Match struct {
	Source    string `yaml:"source,omitempty"`
	Attribute string `yaml:"attribute,omitempty"`
	Value     any    `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertHasEvent    = "has_event"
	AssertHasNoEvent  = "has_no_event"
	AssertStateChange = "state_change"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	// Strict decoding catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if len(s.Feed.Initial) == 0 && len(s.Feed.Steps) == 0 {
		return fmt.Errorf("feed must have initial values or steps")
	}

	if err := s.Feed.Validate(); err != nil {
		return fmt.Errorf("feed: %w", err)
	}

	if s.Within < 0 {
		return fmt.Errorf("within must not be negative")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, stream := range s.Subscribe {
		if stream.Source == "" || stream.Attribute == "" {
			return fmt.Errorf("subscribe[%d]: source and attribute are required", i)
		}
	}

	labels := s.LabelTable()
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion, labels); err != nil {
			return err
		}
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion, labels event.Labels) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertHasEvent:
	case AssertHasNoEvent:
		if a.MinCount != 0 {
			return fmt.Errorf("assertions[%d]: min_count is not allowed for has_no_event", index)
		}
		if len(a.AbortOn) > 0 {
			return fmt.Errorf("assertions[%d]: abort_on is not allowed for has_no_event", index)
		}
	case AssertStateChange:
		if a.Previous == nil && !a.AnyPrevious {
			return fmt.Errorf("assertions[%d]: previous or any_previous is required for state_change", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}

	if a.MinCount < 0 {
		return fmt.Errorf("assertions[%d]: min_count must not be negative", index)
	}

	if _, err := a.stateChange(labels); err != nil {
		return fmt.Errorf("assertions[%d]: %w", index, err)
	}

	return nil
}

// LabelTable returns the default labels merged with the scenario's own.
func (s *Scenario) LabelTable() event.Labels {
	table := make(map[string]map[int64]string, len(s.Labels))
	for attr, names := range s.Labels {
		table[attr] = event.Enum(names...)
	}
	return event.DefaultLabels().With(table)
}

// Streams returns the attributes to subscribe to: the explicit list, or
// every attribute in the feed, sorted.
func (s *Scenario) Streams() []Stream {
	if len(s.Subscribe) > 0 {
		return s.Subscribe
	}

	seen := make(map[[2]string]bool)
	var streams []Stream
	for _, step := range slices.Concat(s.Feed.Initial, s.Feed.Steps) {
		key := [2]string{step.Source, event.FoldAttribute(step.Attribute)}
		if seen[key] {
			continue
		}
		seen[key] = true
		streams = append(streams, Stream{Source: step.Source, Attribute: step.Attribute})
	}
	slices.SortFunc(streams, func(a, b Stream) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.Attribute, b.Attribute))
	})
	return streams
}
