package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"k8s.io/utils/clock"

	"github.com/roach88/evtrace/internal/feed"
	"github.com/roach88/evtrace/internal/tracer"
)

// RunOption configures a scenario run.
type RunOption func(*runConfig)

type runConfig struct {
	clock  clock.Clock
	logger *slog.Logger
}

// WithClock sets the clock for playback, reception stamps and deadlines.
func WithClock(clk clock.Clock) RunOption {
	return func(c *runConfig) {
		c.clock = clk
	}
}

// WithLogger sets the logger. Default: logs are discarded.
func WithLogger(logger *slog.Logger) RunOption {
	return func(c *runConfig) {
		c.logger = logger
	}
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh tracer for isolation, with
// deterministic query ids.
//
// Execution flow:
// 1. Build the feed player and the tracer
// 2. Subscribe to the scenario's attributes (initial values arrive here)
// 3. Play the feed and, concurrently, evaluate assertions in order under
// one shared deadline
// 4. Wait for the feed to finish, unsubscribe, and return the result
//
// A failing assertion is not an error: it is recorded in the result.
// Errors are reserved for scenarios that cannot run.
func Run(ctx context.Context, scenario *Scenario, opts ...RunOption) (*Result, error) {
	cfg := runConfig{
		clock:  clock.RealClock{},
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	labels := scenario.LabelTable()
	player, err := feed.NewPlayer(&scenario.Feed,
		feed.WithClock(cfg.clock),
		feed.WithLogger(cfg.logger),
		feed.WithLabels(labels),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load feed: %w", err)
	}

	tr := tracer.New(
		tracer.WithClock(cfg.clock),
		tracer.WithLogger(cfg.logger),
		tracer.WithLabels(labels),
		tracer.WithMetrics(tracer.NewMetrics(nil)),
		tracer.WithIDGenerator(tracer.NewSequenceGenerator("q")),
		tracer.WithSubscriber(player),
	)

	for _, s := range scenario.Streams() {
		if err := tr.Subscribe(ctx, s.Source, s.Attribute); err != nil {
			_ = tr.UnsubscribeAll()
			return nil, fmt.Errorf("failed to subscribe: %w", err)
		}
	}
	defer func() {
		if err := tr.UnsubscribeAll(); err != nil {
			cfg.logger.Warn("cleanup failed", "scenario", scenario.Name, "error", err)
		}
	}()

	result := NewResult(scenario.Name)
	deadline := tr.NewDeadline(scenario.Within)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return player.Play(gctx)
	})
	g.Go(func() error {
		for i, a := range scenario.Assertions {
			ar, err := evaluateAssertion(gctx, tr, i, a, deadline)
			if err != nil {
				return err
			}
			result.AddAssertion(ar)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to run scenario %s: %w", scenario.Name, err)
	}

	result.Events = tr.Events()
	return result, nil
}
