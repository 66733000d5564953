package feed

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/roach88/evtrace/internal/event"
	"github.com/roach88/evtrace/internal/tracer"
	"github.com/roach88/evtrace/internal/value"
)

// Player replays a Script as a subscription source. It implements
// tracer.Subscriber: subscribers receive the current value of the attribute
// first, then every change Play emits for it.
//
// Thread-safety model:
//   - Subscribe(), Unsubscribe: safe from any goroutine
//   - Play(): a single goroutine; deliveries follow script order, with
//     ties on offset kept in file order
type Player struct {
	clock  clock.Clock
	logger *slog.Logger
	labels event.Labels

	initial []event.Notification
	steps   []timedNotification
	known   map[streamKey]bool

	mu      sync.Mutex
	current map[streamKey]event.Notification
	sinks   map[streamKey][]*sink
}

type timedNotification struct {
	at time.Duration
	n  event.Notification
}

type streamKey struct {
	source string
	attr   string // folded
}

func keyOf(sourceID, attributeID string) streamKey {
	return streamKey{source: sourceID, attr: event.FoldAttribute(attributeID)}
}

type sink struct {
	deliver func(event.Notification)
}

// Option configures a Player.
type Option func(*Player)

// WithClock sets the clock that paces playback. Default: the real clock.
func WithClock(clk clock.Clock) Option {
	return func(p *Player) {
		p.clock = clk
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Player) {
		p.logger = logger
	}
}

// WithLabels sets the label table used to turn labels in the script into
// ordinals.
func WithLabels(labels event.Labels) Option {
	return func(p *Player) {
		p.labels = labels
	}
}

// NewPlayer prepares a script for playback. The script must be valid.
func NewPlayer(script *Script, opts ...Option) (*Player, error) {
	p := &Player{
		clock:   clock.RealClock{},
		logger:  slog.Default(),
		known:   make(map[streamKey]bool),
		current: make(map[streamKey]event.Notification),
		sinks:   make(map[streamKey][]*sink),
	}
	for _, opt := range opts {
		opt(p)
	}

	for i, step := range script.Initial {
		n, err := p.resolve(step)
		if err != nil {
			return nil, fmt.Errorf("initial[%d]: %w", i, err)
		}
		p.initial = append(p.initial, n)
		p.current[keyOf(n.SourceID, n.AttributeID)] = n
	}
	for i, step := range script.Steps {
		n, err := p.resolve(step)
		if err != nil {
			return nil, fmt.Errorf("steps[%d]: %w", i, err)
		}
		p.steps = append(p.steps, timedNotification{at: step.At, n: n})
	}
	slices.SortStableFunc(p.steps, func(a, b timedNotification) int {
		return cmp.Compare(a.at, b.at)
	})
	return p, nil
}

func (p *Player) resolve(step Step) (event.Notification, error) {
	n, err := step.Notification()
	if err != nil {
		return n, err
	}
	if label, ok := n.Value.(value.String); ok {
		if v, ok := p.labels.Resolve(n.AttributeID, string(label)); ok {
			n.Value = v
		}
	}
	p.known[keyOf(n.SourceID, n.AttributeID)] = true
	return n, nil
}

// Subscribe implements tracer.Subscriber. Subscribing to an attribute the
// script never mentions fails, like subscribing to a missing device.
func (p *Player) Subscribe(_ context.Context, sourceID, attributeID string, deliver func(event.Notification)) (tracer.Subscription, error) {
	key := keyOf(sourceID, attributeID)
	if !p.known[key] {
		return nil, fmt.Errorf("unknown attribute %s/%s", sourceID, attributeID)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	s := &sink{deliver: deliver}
	p.sinks[key] = append(p.sinks[key], s)
	if n, ok := p.current[key]; ok {
		s.deliver(n)
	}
	return &subscription{player: p, key: key, sink: s}, nil
}

type subscription struct {
	player *Player
	key    streamKey
	sink   *sink
	once   sync.Once
}

// Unsubscribe stops deliveries. It is safe to call more than once.
func (s *subscription) Unsubscribe() error {
	s.once.Do(func() {
		p := s.player
		p.mu.Lock()
		defer p.mu.Unlock()
		p.sinks[s.key] = slices.DeleteFunc(p.sinks[s.key], func(other *sink) bool {
			return other == s.sink
		})
	})
	return nil
}

// Play emits every step at its offset from now, in script order. Steps
// sharing an offset are delivered in the order they appear in the script,
// across sources too. It returns when all steps are delivered or ctx is
// done.
func (p *Player) Play(ctx context.Context) error {
	sources := make(map[string]struct{})
	for _, step := range p.steps {
		sources[step.n.SourceID] = struct{}{}
	}

	start := p.clock.Now()
	p.logger.Debug("playback started", "steps", len(p.steps), "sources", len(sources))

	for _, step := range p.steps {
		if err := p.sleepUntil(ctx, start.Add(step.at)); err != nil {
			return fmt.Errorf("playback interrupted: %w", err)
		}
		p.emit(step.n)
	}
	p.logger.Debug("playback finished")
	return nil
}

func (p *Player) sleepUntil(ctx context.Context, at time.Time) error {
	wait := at.Sub(p.clock.Now())
	if wait <= 0 {
		return ctx.Err()
	}
	timer := p.clock.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Player) emit(n event.Notification) {
	key := keyOf(n.SourceID, n.AttributeID)

	p.mu.Lock()
	defer p.mu.Unlock()

	p.current[key] = n
	for _, s := range p.sinks[key] {
		s.deliver(n)
	}
}

// Current returns the last value played for the attribute, or its initial
// value.
func (p *Player) Current(sourceID, attributeID string) (event.Notification, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, ok := p.current[keyOf(sourceID, attributeID)]
	return n, ok
}
