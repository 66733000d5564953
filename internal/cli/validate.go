package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/evtrace/internal/feed"
	"github.com/roach88/evtrace/internal/harness"
	"github.com/roach88/evtrace/internal/value"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// FileValidation is the outcome for one scenario file.
type FileValidation struct {
	File  string `json:"file"`
	Name  string `json:"name,omitempty"`
	Error string `json:"error,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario-file-or-dir>...",
		Short: "Validate scenarios without running them",
		Long: `Validate scenario files without playing their feeds.

Checks YAML syntax, required fields, assertion types and that every
labelled value in the feed and assertions resolves. Faster than run
for development feedback.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)

	files, err := collectScenarioFiles(paths, "")
	if err != nil {
		return err
	}
	if len(files) == 0 {
		_ = formatter.Error(ErrCodeNoScenarios, "no scenario files found", paths)
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		fv := validateFile(file)
		if fv.Error != "" {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if formatter.JSON() {
		if result.Valid {
			if err := formatter.Success(result); err != nil {
				return err
			}
		} else if err := formatter.Error(ErrCodeInvalidFile, "validation failed", result); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter.Writer, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}

// validateFile parses a scenario and resolves its feed against its labels.
func validateFile(file string) FileValidation {
	fv := FileValidation{File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		fv.Error = err.Error()
		return fv
	}
	fv.Name = scenario.Name

	if err := checkFeedLabels(scenario); err != nil {
		fv.Error = fmt.Sprintf("invalid scenario: feed: %v", err)
	}
	return fv
}

// checkFeedLabels rejects string values on labelled attributes that are
// not one of the attribute's labels. Playback would deliver them as plain
// strings, which never compare equal to the enumerated values.
func checkFeedLabels(scenario *harness.Scenario) error {
	labels := scenario.LabelTable()
	check := func(kind string, steps []feed.Step) error {
		for i, step := range steps {
			if !labels.Has(step.Attribute) {
				continue
			}
			n, err := step.Notification()
			if err != nil {
				return fmt.Errorf("%s[%d]: %w", kind, i, err)
			}
			label, ok := n.Value.(value.String)
			if !ok {
				continue
			}
			if _, ok := labels.Resolve(step.Attribute, string(label)); !ok {
				return fmt.Errorf("%s[%d]: %q is not a label of %s", kind, i, string(label), step.Attribute)
			}
		}
		return nil
	}
	if err := check("initial", scenario.Feed.Initial); err != nil {
		return err
	}
	return check("steps", scenario.Feed.Steps)
}

func outputValidateText(w io.Writer, result ValidationResult) {
	for _, fv := range result.Files {
		if fv.Error != "" {
			fmt.Fprintf(w, "✗ %s\n", fv.File)
			fmt.Fprintf(w, "  %s\n", fv.Error)
			continue
		}
		fmt.Fprintf(w, "✓ %s (%s)\n", fv.File, fv.Name)
	}
	if result.Valid {
		fmt.Fprintln(w, "All scenarios valid")
	}
}
