package coalescer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aws-greengrass/mqttclient/internal/apperr"
	"github.com/aws-greengrass/mqttclient/internal/topic"
	"github.com/google/uuid"
)

type localSubscriber struct {
	handle SubscriberHandle
	cb     Callback
	mode   ReceiveMode
	source string
}

type subscription struct {
	filter      string
	qos         byte
	subscribers map[uuid.UUID]*localSubscriber
}

// Coalescer is the set of distinct cloud subscriptions keyed by filter
// (spec §4.E), deduplicated by the topic superset relation.
type Coalescer struct {
	mu     sync.RWMutex
	subs   map[string]*subscription // filter -> subscription
	byHand map[uuid.UUID]string     // handle -> owning filter

	cloud  CloudSubscriber
	logger *slog.Logger
}

// New constructs an empty Coalescer backed by cloud for cloud-level
// subscribe/unsubscribe calls.
func New(cloud CloudSubscriber, logger *slog.Logger) *Coalescer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coalescer{
		subs:   make(map[string]*subscription),
		byHand: make(map[uuid.UUID]string),
		cloud:  cloud,
		logger: logger,
	}
}

// Subscribe registers cb against filter/qos (spec §4.E step 1-2): if an
// existing cloud subscription's filter already covers filter (equal or
// a superset), cb is attached to it with no new cloud round trip.
// Otherwise a new cloud subscription is issued, and any existing
// subscriptions whose filter is a strict subset of the new one are
// reparented onto it and unsubscribed from the cloud.
func (c *Coalescer) Subscribe(ctx context.Context, filter string, qos byte, cb Callback, mode ReceiveMode, source string) (SubscriberHandle, error) {
	if err := topic.ValidateSubscribe(filter); err != nil {
		return SubscriberHandle{}, apperr.Wrap(apperr.InvalidArguments, "invalid subscribe filter", err)
	}

	handle := newSubscriberHandle()
	sub := &localSubscriber{handle: handle, cb: cb, mode: mode, source: source}

	c.mu.Lock()
	for existingFilter, existing := range c.subs {
		if existingFilter == filter || topic.IsSuperset(existingFilter, filter) {
			existing.subscribers[handle.id] = sub
			c.byHand[handle.id] = existingFilter
			c.mu.Unlock()
			return handle, nil
		}
	}
	c.mu.Unlock()

	if _, err := c.cloud.Subscribe(ctx, filter, qos); err != nil {
		return SubscriberHandle{}, err
	}

	c.mu.Lock()
	newSub := &subscription{
		filter:      filter,
		qos:         qos,
		subscribers: map[uuid.UUID]*localSubscriber{handle.id: sub},
	}
	c.subs[filter] = newSub
	c.byHand[handle.id] = filter

	var subsumed []string
	for existingFilter, existing := range c.subs {
		if existingFilter == filter {
			continue
		}
		if topic.IsSuperset(filter, existingFilter) {
			for id, s := range existing.subscribers {
				newSub.subscribers[id] = s
				c.byHand[id] = filter
			}
			subsumed = append(subsumed, existingFilter)
			delete(c.subs, existingFilter)
		}
	}
	c.mu.Unlock()

	for _, subsumedFilter := range subsumed {
		if err := c.cloud.Unsubscribe(ctx, subsumedFilter); err != nil {
			c.logger.Warn("cloud unsubscribe of subsumed filter failed", "filter", subsumedFilter, "error", err)
		}
	}

	return handle, nil
}

// Unsubscribe removes handle's registration. If its owning
// subscription becomes empty, the cloud subscription is retracted.
func (c *Coalescer) Unsubscribe(ctx context.Context, handle SubscriberHandle) error {
	c.mu.Lock()
	filter, ok := c.byHand[handle.id]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(c.byHand, handle.id)

	sub, ok := c.subs[filter]
	if !ok {
		c.mu.Unlock()
		return nil
	}
	delete(sub.subscribers, handle.id)

	empty := len(sub.subscribers) == 0
	if empty {
		delete(c.subs, filter)
	}
	c.mu.Unlock()

	if empty {
		return c.cloud.Unsubscribe(ctx, filter)
	}
	return nil
}

// Dispatch delivers an incoming message with concrete topic t to every
// local subscriber whose filter matches, honoring each subscriber's
// ReceiveMode (spec §4.E "Fan-out"). Each callback runs in its own
// goroutine so a panicking or slow callback never blocks or prevents
// delivery to the others, mirroring the teacher's per-handler delivery
// isolation in framework/event/memory.go.
func (c *Coalescer) Dispatch(t string, payload []byte, retain bool, source string) {
	c.mu.RLock()
	var targets []*localSubscriber
	for filter, sub := range c.subs {
		if !topic.Match(filter, t) {
			continue
		}
		for _, s := range sub.subscribers {
			if s.mode == ReceiveFromOthers && s.source == source {
				continue
			}
			targets = append(targets, s)
		}
	}
	c.mu.RUnlock()

	for _, s := range targets {
		go c.deliver(s, t, payload, retain)
	}
}

func (c *Coalescer) deliver(s *localSubscriber, t string, payload []byte, retain bool) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("subscriber callback panicked", "topic", t, "recover", r)
		}
	}()
	s.cb(t, payload, retain)
}

// Authorized implements spec §4.E's superset authorization rule: T is
// authorized against resources if some resource R is "*", a superset of
// T, or an exact-matching filter.
func Authorized(resources []string, t string) bool {
	for _, r := range resources {
		if r == "*" || topic.IsSuperset(r, t) || topic.Match(r, t) {
			return true
		}
	}
	return false
}

// Count returns the number of distinct cloud subscriptions currently
// held, for tests and diagnostics.
func (c *Coalescer) Count() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.subs)
}
