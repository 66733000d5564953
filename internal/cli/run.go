package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/evtrace/internal/harness"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Update bool          // regenerate golden files
	Filter string        // scenario filter (glob pattern)
	Within time.Duration // overrides every scenario's time budget when set
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name       string                    `json:"name"`
	File       string                    `json:"file"`
	Pass       bool                      `json:"pass"`
	Assertions []harness.AssertionResult `json:"assertions,omitempty"`
	Events     int                       `json:"events"`
	Errors     []string                  `json:"errors,omitempty"`
}

// RunResult holds the overall result.
type RunResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file-or-dir>...",
		Short: "Run scenarios and check their assertions",
		Long: `Run scenario files, playing each feed into a fresh tracer and
evaluating its assertions within the scenario's time budget.

Directories are searched recursively for .yaml and .yml files.
When a golden file exists next to a scenario (golden/<name>.golden),
the trace must also match it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  evtrace run ./scenarios
  evtrace run ./scenarios --filter "dish-*"
  evtrace run ./scenarios/dish_startup.yaml --within 2s
  evtrace run ./scenarios --update
  evtrace run ./scenarios --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().DurationVar(&opts.Within, "within", 0, "override the time budget of every scenario")

	return cmd
}

func runScenarios(opts *RunOptions, paths []string, cmd *cobra.Command) error {
	files, err := collectScenarioFiles(paths, opts.Filter)
	if err != nil {
		return err
	}

	formatter := newFormatter(opts.RootOptions, cmd)

	if len(files) == 0 {
		if formatter.JSON() {
			return formatter.Success(RunResult{Scenarios: []ScenarioResult{}})
		}
		return formatter.Success("No scenarios found.")
	}

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result := RunResult{
		Scenarios: make([]ScenarioResult, 0, len(files)),
		Total:     len(files),
	}

	for _, file := range files {
		formatter.VerboseLog("Running %s", file)
		scenResult := runScenario(ctx, file, opts, formatter)
		result.Scenarios = append(result.Scenarios, scenResult)

		if scenResult.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
		if ctx.Err() != nil {
			return WrapExitError(ExitCommandError, "run interrupted", ctx.Err())
		}
	}

	if formatter.JSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputRunText(formatter.Writer, result)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// collectScenarioFiles expands the given paths into scenario files.
// Files named explicitly are always included; directories are filtered.
func collectScenarioFiles(paths []string, filter string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if errors.Is(err, os.ErrNotExist) {
			return nil, NewExitError(ExitCommandError, fmt.Sprintf("path not found: %s", p))
		}
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to read path", err)
		}

		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		found, err := findScenarioFiles(p, filter)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}
	return files, nil
}

// findScenarioFiles finds all YAML scenario files in a directory.
func findScenarioFiles(dir string, filter string) ([]string, error) {
	var files []string

	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return nil
		}

		// Only process .yaml and .yml files
		ext := filepath.Ext(path)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}

		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(path), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}

		files = append(files, path)
		return nil
	})

	return files, err
}

// runScenario executes a single scenario and returns the result.
func runScenario(ctx context.Context, file string, opts *RunOptions, formatter *OutputFormatter) ScenarioResult {
	failed := func(name string, errs ...string) ScenarioResult {
		return ScenarioResult{Name: name, File: file, Pass: false, Errors: errs}
	}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return failed(filepath.Base(file), fmt.Sprintf("failed to load scenario: %v", err))
	}
	if opts.Within > 0 {
		scenario.Within = opts.Within
	}

	result, err := harness.Run(ctx, scenario,
		harness.WithLogger(newLogger(opts.RootOptions, formatter.GetErrWriter())),
	)
	if err != nil {
		return failed(scenario.Name, fmt.Sprintf("execution failed: %v", err))
	}

	scenResult := ScenarioResult{
		Name:       scenario.Name,
		File:       file,
		Pass:       result.Pass,
		Assertions: result.Assertions,
		Events:     len(result.Events),
		Errors:     result.Errors,
	}

	snapshot, err := harness.Snapshot(scenario.Name, result, scenario.LabelTable())
	if err != nil {
		scenResult.Pass = false
		scenResult.Errors = append(scenResult.Errors, fmt.Sprintf("failed to render trace: %v", err))
		return scenResult
	}

	goldenPath := goldenFilePath(file)
	if opts.Update {
		if err := updateGoldenFile(goldenPath, snapshot); err != nil {
			scenResult.Pass = false
			scenResult.Errors = append(scenResult.Errors, fmt.Sprintf("failed to update golden file: %v", err))
			return scenResult
		}
		formatter.VerboseLog("Updated %s", goldenPath)
		return scenResult
	}

	golden, err := os.ReadFile(goldenPath)
	if errors.Is(err, os.ErrNotExist) {
		// No golden file: assertions alone decide
		return scenResult
	}
	if err != nil {
		scenResult.Pass = false
		scenResult.Errors = append(scenResult.Errors, fmt.Sprintf("golden comparison failed: %v", err))
		return scenResult
	}
	if !bytes.Equal(bytes.TrimSpace(golden), bytes.TrimSpace(snapshot)) {
		scenResult.Pass = false
		scenResult.Errors = append(scenResult.Errors, "trace does not match golden file (run with --update to regenerate)")
	}
	return scenResult
}

// goldenFilePath returns the path to the golden file for a scenario.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// updateGoldenFile writes the current trace as the golden file.
func updateGoldenFile(goldenPath string, snapshot []byte) error {
	if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
		return fmt.Errorf("failed to create golden directory: %w", err)
	}
	if err := os.WriteFile(goldenPath, snapshot, 0644); err != nil {
		return fmt.Errorf("failed to write golden file: %w", err)
	}
	return nil
}

// commandContext returns the command's context, or a background context
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// outputRunText outputs one line per scenario, failures indented below.
func outputRunText(w io.Writer, result RunResult) {
	for _, s := range result.Scenarios {
		if s.Pass {
			fmt.Fprintf(w, "✓ %s\n", s.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintln(w, indent(e, "  "))
		}
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}

// indent prefixes every non-empty line of s.
func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, line := range lines {
		if line != "" {
			lines[i] = prefix + line
		}
	}
	return strings.Join(lines, "\n")
}
