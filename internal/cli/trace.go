package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/feed"
	"github.com/roach88/evtrace/internal/harness"
	"github.com/roach88/evtrace/internal/tracer"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Source    string // optional - filter to one source
	Attribute string // optional - filter to one attribute
}

// TraceEvent is a single event in the trace timeline.
type TraceEvent struct {
	Seq       int64         `json:"seq"`
	Offset    time.Duration `json:"offset_ns"`
	Source    string        `json:"source"`
	Attribute string        `json:"attribute"`
	Value     string        `json:"value"`
	Quality   string        `json:"quality,omitempty"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	Scenario string       `json:"scenario"`
	Timeline []TraceEvent `json:"timeline"`
	Stats    TraceStats   `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int `json:"total_events"`
	Shown       int `json:"shown"`
	Streams     int `json:"streams"`
	Errors      int `json:"errors"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace <scenario-file>",
		Short: "Play a scenario's feed and print the event timeline",
		Long: `Play the feed of a scenario into a tracer and print every
event received, in order, with enumerated values shown as labels.

Assertions are not evaluated.

Examples:
  evtrace trace ./scenarios/dish_startup.yaml
  evtrace trace ./scenarios/dish_startup.yaml --attribute state
  evtrace trace ./scenarios/dish_startup.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Source, "source", "", "filter to a single source")
	cmd.Flags().StringVar(&opts.Attribute, "attribute", "", "filter to a single attribute (case-insensitive)")

	return cmd
}

func runTrace(opts *TraceOptions, file string, cmd *cobra.Command) error {
	scenario, err := harness.LoadScenario(file)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())
	events, err := playFeed(commandContext(cmd), scenario, logger)
	if err != nil {
		return WrapExitError(ExitFailure, "failed to play feed", err)
	}

	result := buildTraceResult(scenario, events, opts.Source, opts.Attribute)

	formatter := newFormatter(opts.RootOptions, cmd)
	if formatter.JSON() {
		return formatter.Success(result)
	}
	outputTraceText(formatter.Writer, result)
	return nil
}

// playFeed subscribes a fresh tracer to the scenario's streams and plays
// the whole feed into it.
func playFeed(ctx context.Context, scenario *harness.Scenario, logger *slog.Logger) (event.History, error) {
	labels := scenario.LabelTable()
	player, err := feed.NewPlayer(&scenario.Feed,
		feed.WithLogger(logger),
		feed.WithLabels(labels),
	)
	if err != nil {
		return nil, err
	}

	tr := tracer.New(
		tracer.WithLogger(logger),
		tracer.WithLabels(labels),
		tracer.WithSubscriber(player),
	)
	defer func() {
		if err := tr.UnsubscribeAll(); err != nil {
			logger.Warn("cleanup failed", "error", err)
		}
	}()

	for _, s := range scenario.Streams() {
		if err := tr.Subscribe(ctx, s.Source, s.Attribute); err != nil {
			return nil, err
		}
	}
	if err := player.Play(ctx); err != nil {
		return nil, err
	}
	return tr.Events(), nil
}

// buildTraceResult converts records to timeline events, keeping those
// that match the optional filters.
func buildTraceResult(scenario *harness.Scenario, events event.History, source, attribute string) TraceResult {
	labels := scenario.LabelTable()
	shown := events.Filter(func(r event.Record) bool {
		return (source == "" || r.HasSource(source)) &&
			(attribute == "" || r.HasAttribute(attribute))
	})

	streams := make(map[string]bool)
	result := TraceResult{
		Scenario: scenario.Name,
		Timeline: make([]TraceEvent, 0, len(shown)),
		Stats:    TraceStats{TotalEvents: len(events), Shown: len(shown)},
	}
	for _, r := range events {
		streams[r.SourceID+"/"+event.FoldAttribute(r.AttributeID)] = true
		if r.IsError() {
			result.Stats.Errors++
		}
	}
	result.Stats.Streams = len(streams)

	var start time.Time
	if len(events) > 0 {
		start = events[0].ReceivedAt
	}
	for _, r := range shown {
		result.Timeline = append(result.Timeline, TraceEvent{
			Seq:       r.Seq,
			Offset:    r.ReceivedAt.Sub(start),
			Source:    r.SourceID,
			Attribute: r.AttributeID,
			Value:     labels.Format(r.AttributeID, r.Value),
			Quality:   string(r.Quality),
		})
	}
	return result
}

// outputTraceText outputs the trace result as text.
func outputTraceText(w io.Writer, result TraceResult) {
	fmt.Fprintf(w, "Trace for Scenario: %s\n", result.Scenario)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	}
	for _, ev := range result.Timeline {
		line := fmt.Sprintf("  [%d] +%s %s/%s = %s", ev.Seq, ev.Offset.Round(time.Millisecond), ev.Source, ev.Attribute, ev.Value)
		if ev.Quality != "" {
			line += fmt.Sprintf(" (%s)", ev.Quality)
		}
		fmt.Fprintln(w, line)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Shown:        %d\n", result.Stats.Shown)
	fmt.Fprintf(w, "  Streams:      %d\n", result.Stats.Streams)
	fmt.Fprintf(w, "  Errors:       %d\n", result.Stats.Errors)
}
