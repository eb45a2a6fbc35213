package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aws-greengrass/mqttclient/internal/apperr"
	"github.com/aws-greengrass/mqttclient/internal/topic"
	"github.com/google/uuid"
)

type subscriber struct {
	handle SubscriberHandle
	filter string
	cb     Callback
	mode   ReceiveMode
	source string
}

// Bus is the in-process pub/sub surface (spec §4.G).
type Bus struct {
	mu   sync.RWMutex
	subs map[uuid.UUID]*subscriber

	executor *Executor
	logger   *slog.Logger
}

// DefaultExecutorCapacity bounds how many pending deliveries a single
// topic's queue holds before Publish's Submit call applies backpressure.
const DefaultExecutorCapacity = 64

// New constructs a Bus with its own ordered per-topic executor.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		subs:     make(map[uuid.UUID]*subscriber),
		executor: NewExecutor(DefaultExecutorCapacity),
		logger:   logger,
	}
}

// Subscribe registers cb for messages on filter from source, honoring
// mode (spec §4.G). Overlapping filters simply each get their own
// registration: unlike the cloud coalescer, there's no per-filter wire
// cost to deduplicate against.
func (b *Bus) Subscribe(filter string, cb Callback, source string, mode ReceiveMode) (SubscriberHandle, error) {
	if err := topic.ValidateSubscribe(filter); err != nil {
		return SubscriberHandle{}, apperr.Wrap(apperr.InvalidArguments, "invalid subscribe filter", err)
	}

	handle := newSubscriberHandle()
	b.mu.Lock()
	b.subs[handle.id] = &subscriber{handle: handle, filter: filter, cb: cb, mode: mode, source: source}
	b.mu.Unlock()

	return handle, nil
}

// Unsubscribe removes handle's registration. Unknown handles are a
// no-op.
func (b *Bus) Unsubscribe(handle SubscriberHandle) {
	b.mu.Lock()
	delete(b.subs, handle.id)
	b.mu.Unlock()
}

// Publish validates topicName synchronously, then submits one ordered
// delivery job per matching topic queue so arrival order is preserved
// per topic (spec §4.G, §5 ordering guarantee (b)). It returns once the
// job is enqueued, not once delivery completes.
func (b *Bus) Publish(ctx context.Context, topicName string, payload []byte, source string) error {
	if err := topic.ValidatePublish(topicName); err != nil {
		return apperr.Wrap(apperr.InvalidArguments, "invalid publish topic", err)
	}

	b.mu.RLock()
	targets := make([]*subscriber, 0, len(b.subs))
	for _, s := range b.subs {
		if !topic.Match(s.filter, topicName) {
			continue
		}
		if s.mode == ReceiveFromOthers && s.source == source {
			continue
		}
		targets = append(targets, s)
	}
	b.mu.RUnlock()

	return b.executor.Submit(ctx, topicName, func() {
		for _, s := range targets {
			b.deliver(s, topicName, payload, source)
		}
	})
}

func (b *Bus) deliver(s *subscriber, topicName string, payload []byte, source string) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("bus subscriber callback panicked", "topic", topicName, "recover", r)
		}
	}()
	s.cb(topicName, payload, source)
}
