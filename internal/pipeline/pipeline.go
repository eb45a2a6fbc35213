package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/aws-greengrass/mqttclient/internal/apperr"
	"github.com/aws-greengrass/mqttclient/internal/link"
	"github.com/aws-greengrass/mqttclient/internal/spool"
	"github.com/aws-greengrass/mqttclient/internal/topic"
)

// DefaultMaxPayloadBytes is spec §4.F's "configured max (default
// ~128 KiB)".
const DefaultMaxPayloadBytes = 128 * 1024

// Publisher is the narrow surface the pump needs from the connection
// manager: hand a record to whichever link should carry it.
type Publisher interface {
	Publish(ctx context.Context, rec link.Record) (link.Ack, error)
}

// Config configures a Pipeline.
type Config struct {
	MaxRetries      uint32
	MaxPayloadBytes int
}

// Pipeline is the publish path from an application call down to the
// cloud: validate, admit to the spool, and drain via a single pump
// goroutine (spec §4.F).
type Pipeline struct {
	spool     *spool.Spool
	publisher Publisher
	cfg       Config
	logger    *slog.Logger

	mu      sync.Mutex
	futures map[uint64]*Future

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Pipeline over sp, draining onto publisher.
func New(sp *spool.Spool, publisher Publisher, cfg Config, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxPayloadBytes <= 0 {
		cfg.MaxPayloadBytes = DefaultMaxPayloadBytes
	}

	return &Pipeline{
		spool:     sp,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		futures:   make(map[uint64]*Future),
	}
}

// Start launches the pump goroutine. It must be called once before any
// Publish future is expected to resolve.
func (p *Pipeline) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.pump(ctx)
	}()
}

// Stop cancels the pump and waits for it to exit.
func (p *Pipeline) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

// Publish validates request, admits it to the spool, and returns a
// Future bound to the record's id (spec §4.F steps 1-2). Validation or
// admission failures (Full, TooLarge, Offline, Closed, InvalidArguments)
// are returned directly; no future is created for them.
func (p *Pipeline) Publish(topicName string, payload []byte, qos spool.QoS, retain bool) (*Future, error) {
	if err := topic.ValidatePublish(topicName); err != nil {
		return nil, apperr.Wrap(apperr.InvalidArguments, "invalid publish topic", err)
	}
	if len(payload) > p.cfg.MaxPayloadBytes {
		return nil, apperr.New(apperr.TooLarge, "payload exceeds configured maximum").
			With("payload_bytes", len(payload)).With("max_bytes", p.cfg.MaxPayloadBytes)
	}

	rec := spool.NewRecord(topicName, payload, qos, retain)
	id, err := p.spool.Admit(rec)
	if err != nil {
		return nil, err
	}

	future := newFuture(id)
	p.mu.Lock()
	p.futures[id] = future
	p.mu.Unlock()

	return future, nil
}

func (p *Pipeline) completeFuture(id uint64, ack link.Ack, err error) {
	p.mu.Lock()
	future, ok := p.futures[id]
	if ok {
		delete(p.futures, id)
	}
	p.mu.Unlock()

	if ok {
		future.complete(ack, err)
	}
}

// pump repeatedly pops the next spooled id, publishes it through a
// link selected by the connection manager, and resolves outcomes per
// spec §4.F step 3.
func (p *Pipeline) pump(ctx context.Context) {
	for {
		id, err := p.spool.PopNextID(ctx)
		if err != nil {
			return
		}

		rec, ok := p.spool.Get(id)
		if !ok {
			continue
		}

		ack, pubErr := p.publisher.Publish(ctx, link.Record{
			ID:      rec.ID,
			Topic:   rec.Topic,
			Payload: rec.Payload,
			QoS:     byte(rec.QoS),
			Retain:  rec.Retain,
		})

		switch {
		case pubErr == nil:
			_ = p.spool.Remove(id)
			p.completeFuture(id, ack, nil)

		case isRetryable(pubErr) && rec.Attempts < p.cfg.MaxRetries:
			if err := p.spool.Requeue(id); err != nil {
				p.logger.Error("requeue failed", "id", id, "error", err)
			}

		case isRetryable(pubErr):
			// Retry budget exhausted: no further attempts will help, so
			// the caller sees a terminal failure rather than one that
			// nominally invites another retry.
			_ = p.spool.Remove(id)
			p.completeFuture(id, ack, apperr.Wrap(apperr.NonRetryable, "retry budget exhausted", pubErr))

		default:
			_ = p.spool.Remove(id)
			p.completeFuture(id, ack, pubErr)
		}
	}
}

// OnLinkInterrupted implements spec §4.F step 4's connectivity
// transition: when the spool is configured to drop QoS0 work while
// offline, every dropped record's pending future fails with Offline.
func (p *Pipeline) OnLinkInterrupted() {
	for _, rec := range p.spool.DropQoS0OnDisconnect() {
		p.completeFuture(rec.ID, link.Ack{}, apperr.New(apperr.Offline, "qos0 publish dropped on disconnect").With("topic", rec.Topic))
	}
}

func isRetryable(err error) bool {
	code, ok := apperr.CodeOf(err)
	return ok && code == apperr.Retryable
}
