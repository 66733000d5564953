package feed

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/value"
)

// Script describes a simulated notification source: the attribute values
// present before playback and the changes played afterwards.
//
//	initial:
//	  - {source: sys/dish/1, attribute: state, value: STANDBY}
//	steps:
//	  - {at: 200ms, source: sys/dish/1, attribute: state, value: MOVING}
//	  - {at: 1s, source: sys/dish/1, attribute: state, value: ON}
type Script struct {
	// Initial values are delivered to subscribers as the current value.
	// Their At is ignored.
	Initial []Step `yaml:"initial,omitempty"`

	// Steps are played in At order. Steps with the same At keep their file
	// order, across sources too.
	Steps []Step `yaml:"steps"`
}

// Step is one attribute change.
type Step struct {
	// At is the offset from the start of playback (e.g. "500ms").
	At time.Duration `yaml:"at,omitempty"`

	Source    string `yaml:"source"`
	Attribute string `yaml:"attribute"`

	// Value is any YAML scalar, list or map. For labelled attributes a
	// label such as ON is turned into its ordinal at playback.
	Value any `yaml:"value"`

	// Quality is optional; "error" marks a read failure.
	Quality event.Quality `yaml:"quality,omitempty"`
}

// Notification converts the step into a notification.
func (s Step) Notification() (event.Notification, error) {
	v, err := value.Of(s.Value)
	if err != nil {
		return event.Notification{}, fmt.Errorf("%s/%s: %w", s.Source, s.Attribute, err)
	}
	return event.Notification{
		SourceID:    s.Source,
		AttributeID: s.Attribute,
		Value:       v,
		Quality:     s.Quality,
	}, nil
}

// LoadScript reads and parses a script YAML file.
func LoadScript(path string) (*Script, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script file: %w", err)
	}
	return ParseScript(data)
}

// ParseScript parses a script, rejecting unknown fields and invalid steps.
func ParseScript(data []byte) (*Script, error) {
	var script Script
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&script); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if err := script.Validate(); err != nil {
		return nil, fmt.Errorf("invalid script: %w", err)
	}
	return &script, nil
}

var knownQualities = map[event.Quality]bool{
	event.QualityNone:     true,
	event.QualityValid:    true,
	event.QualityInvalid:  true,
	event.QualityAlarm:    true,
	event.QualityChanging: true,
	event.QualityWarning:  true,
	event.QualityError:    true,
}

// Validate checks that every step names a source and attribute, has a
// convertible value, a known quality and a non-negative offset.
func (s *Script) Validate() error {
	for i, step := range s.Initial {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("initial[%d]: %w", i, err)
		}
	}
	for i, step := range s.Steps {
		if err := validateStep(step); err != nil {
			return fmt.Errorf("steps[%d]: %w", i, err)
		}
		if step.At < 0 {
			return fmt.Errorf("steps[%d]: at must not be negative", i)
		}
	}
	return nil
}

func validateStep(step Step) error {
	if step.Source == "" {
		return fmt.Errorf("source is required")
	}
	if step.Attribute == "" {
		return fmt.Errorf("attribute is required")
	}
	if !knownQualities[step.Quality] {
		return fmt.Errorf("unknown quality %q", step.Quality)
	}
	if _, err := step.Notification(); err != nil {
		return err
	}
	return nil
}

// Duration returns the offset of the last step.
func (s *Script) Duration() time.Duration {
	var d time.Duration
	for _, step := range s.Steps {
		d = max(d, step.At)
	}
	return d
}
