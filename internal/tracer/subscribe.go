package tracer

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/evtrace/internal/event"
)

// ErrNoSubscriber is returned by Subscribe when no adapter is configured.
var ErrNoSubscriber = errors.New("no subscriber configured")

// Subscriber connects to the external notification source. Implementations
// call deliver for every change of the attribute, starting with its current
// value, from any goroutine, until the subscription is cancelled.
type Subscriber interface {
	Subscribe(ctx context.Context, sourceID, attributeID string, deliver func(event.Notification)) (Subscription, error)
}

// Subscription is a live feed that can be cancelled.
type Subscription interface {
	Unsubscribe() error
}

type subKey struct {
	source string
	attr   string // folded
}

type activeSub struct {
	sourceID    string
	attributeID string
	sub         Subscription
}

type registry struct {
	mu         sync.Mutex
	subscriber Subscriber
	active     map[subKey]activeSub
}

func newRegistry() *registry {
	return &registry{active: make(map[subKey]activeSub)}
}

// Subscribe starts delivering changes of the attribute to the tracer.
// Subscribing twice to the same source and attribute (compared
// case-insensitively) is a no-op.
func (t *Tracer) Subscribe(ctx context.Context, sourceID, attributeID string) error {
	t.subs.mu.Lock()
	defer t.subs.mu.Unlock()

	if t.subs.subscriber == nil {
		return ErrNoSubscriber
	}
	key := subKey{source: sourceID, attr: event.FoldAttribute(attributeID)}
	if _, ok := t.subs.active[key]; ok {
		t.logger.Debug("already subscribed", "source", sourceID, "attribute", attributeID)
		return nil
	}

	sub, err := t.subs.subscriber.Subscribe(ctx, sourceID, attributeID, func(n event.Notification) {
		t.Notify(n)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s/%s: %w", sourceID, attributeID, err)
	}
	t.subs.active[key] = activeSub{sourceID: sourceID, attributeID: attributeID, sub: sub}
	t.logger.Debug("subscribed", "source", sourceID, "attribute", attributeID)
	return nil
}

// Subscribed reports whether the attribute has an active subscription.
func (t *Tracer) Subscribed(sourceID, attributeID string) bool {
	t.subs.mu.Lock()
	defer t.subs.mu.Unlock()
	_, ok := t.subs.active[subKey{source: sourceID, attr: event.FoldAttribute(attributeID)}]
	return ok
}

// Subscriptions lists active subscriptions as "source/attribute", sorted.
func (t *Tracer) Subscriptions() []string {
	t.subs.mu.Lock()
	defer t.subs.mu.Unlock()
	out := make([]string, 0, len(t.subs.active))
	for _, s := range t.subs.active {
		out = append(out, s.sourceID+"/"+s.attributeID)
	}
	slices.Sort(out)
	return out
}

// UnsubscribeAll cancels every subscription. Every subscription is removed
// even when cancelling it fails; failures are logged and returned joined.
// Stored events are kept.
func (t *Tracer) UnsubscribeAll() error {
	t.subs.mu.Lock()
	subs := make([]activeSub, 0, len(t.subs.active))
	for _, s := range t.subs.active {
		subs = append(subs, s)
	}
	clear(t.subs.active)
	t.subs.mu.Unlock()

	slices.SortFunc(subs, func(a, b activeSub) int {
		return cmp.Or(cmp.Compare(a.sourceID, b.sourceID), cmp.Compare(a.attributeID, b.attributeID))
	})

	var errs []error
	for _, s := range subs {
		if err := s.sub.Unsubscribe(); err != nil {
			t.logger.Warn("unsubscribe failed",
				"source", s.sourceID,
				"attribute", s.attributeID,
				"error", err,
			)
			errs = append(errs, fmt.Errorf("unsubscribe %s/%s: %w", s.sourceID, s.attributeID, err))
			continue
		}
		t.logger.Debug("unsubscribed", "source", s.sourceID, "attribute", s.attributeID)
	}
	return errors.Join(errs...)
}
