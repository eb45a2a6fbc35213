package mqttclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/aws-greengrass/mqttclient/internal/bus"
	"github.com/aws-greengrass/mqttclient/internal/coalescer"
	"github.com/aws-greengrass/mqttclient/internal/link"
	"github.com/aws-greengrass/mqttclient/internal/manager"
	"github.com/aws-greengrass/mqttclient/internal/pipeline"
	"github.com/aws-greengrass/mqttclient/internal/spool"
)

var (
	ErrAlreadyStarted = errors.New("mqttclient: session already started")
	ErrNotStarted     = errors.New("mqttclient: session not started")
)

// cloudSource is the source identity attached to messages the
// coalescer dispatches on behalf of an inbound cloud PUBLISH. It never
// collides with a local component's own source string, so a
// ReceiveFromOthers subscriber always sees cloud-origin deliveries.
const cloudSource = "cloud"

// Session is the single entry point wiring the durable spool,
// connection manager, cloud subscription coalescer, publish pipeline
// and local bus into one lifecycle (spec §0, §1). Construct one with
// New, call Start, then use Publish/Subscribe/BusPublish/BusSubscribe
// until Close.
type Session struct {
	opts Options

	mu      sync.Mutex
	started bool

	logger *slog.Logger
	spool  *spool.Spool
	mgr    *manager.Manager
	coal   *coalescer.Coalescer
	pipe   *pipeline.Pipeline
	bus    *bus.Bus
}

// New constructs a Session from opts. Nothing is opened or connected
// until Start.
func New(opts Options) *Session {
	return &Session{opts: opts}
}

func (s *Session) isStarted() bool {
	return s.started
}

// IsStarted reports whether Start has succeeded and Close has not yet
// been called.
func (s *Session) IsStarted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isStarted()
}

// Start opens the durable spool, builds the connection manager,
// coalescer, pipeline and bus, and launches the pipeline's pump. It is
// not idempotent: calling Start twice without an intervening Close
// returns ErrAlreadyStarted.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()

	if s.isStarted() {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}

	s.opts = s.opts.withDefaults()
	s.logger = s.opts.Logger

	if h, ok := s.opts.Observer.(BeforeStart); ok {
		h.BeforeStart()
	}

	s.logger.Info("session starting", "server_urls", s.opts.ServerURLs)

	sp, err := spool.New(s.opts.SpoolConfig)
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("mqttclient: opening spool: %w", err)
	}
	s.spool = sp

	s.bus = bus.New(s.logger)
	s.mgr = manager.New(s.newLink, s.opts.ManagerOptions, s.logger)
	s.coal = coalescer.New(s.mgr, s.logger)
	s.pipe = pipeline.New(sp, s.mgr, s.opts.PipelineConfig, s.logger)
	s.pipe.Start(ctx)

	s.started = true
	s.logger.Info("session started")

	if h, ok := s.opts.Observer.(AfterStart); ok {
		h.AfterStart()
	}

	s.mu.Unlock()
	return nil
}

// newLink is the manager.NewLinkFunc backing this session's pool: it
// builds a real ClientTransport over autopaho, wires inbound PUBLISH
// delivery to the coalescer, and connects the resulting Link.
func (s *Session) newLink(ctx context.Context, id uint64) (*link.Link, error) {
	clientID := fmt.Sprintf("%s-%d", s.opts.ClientIDPrefix, id)

	t, err := link.NewClientTransport(ctx, link.ClientTransportOptions{
		ServerURLs: s.opts.ServerURLs,
		ClientID:   clientID,
		Username:   s.opts.Username,
		Password:   s.opts.Password,
		KeepAlive:  s.opts.KeepAlive,
		CleanStart: s.opts.CleanStart,
		OnPublishReceived: func(topic string, payload []byte, _ byte, retain bool) {
			s.coal.Dispatch(topic, payload, retain, cloudSource)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("mqttclient: building transport for link %d: %w", id, err)
	}

	l := link.New(id, clientID, t, s.opts.LinkOptions, s.logger)
	if err := l.Connect(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

// Close shuts the pipeline pump down, disconnects and releases every
// link, and closes the spool. Calling Close without a prior successful
// Start returns ErrNotStarted.
func (s *Session) Close(ctx context.Context) error {
	s.mu.Lock()

	if !s.isStarted() {
		s.mu.Unlock()
		return ErrNotStarted
	}

	if h, ok := s.opts.Observer.(BeforeShutdown); ok {
		h.BeforeShutdown()
	}

	s.logger.Info("session shutting down")

	ctx, cancel := context.WithTimeout(ctx, s.opts.ShutdownTimeout)
	defer cancel()

	s.pipe.Stop()

	var errs []error
	if err := s.mgr.CloseAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := s.spool.Close(); err != nil {
		errs = append(errs, err)
	}

	s.started = false
	s.logger.Info("session shut down")

	if h, ok := s.opts.Observer.(AfterShutdown); ok {
		h.AfterShutdown()
	}

	s.mu.Unlock()
	return errors.Join(errs...)
}

// Publish admits payload for topicName into the durable pipeline,
// returning a Future that resolves once the broker acknowledges (or
// terminally fails) the publish (spec §4.F).
func (s *Session) Publish(topicName string, payload []byte, qos byte, retain bool) (*pipeline.Future, error) {
	pipe, err := s.runningPipeline()
	if err != nil {
		return nil, err
	}
	return pipe.Publish(topicName, payload, spool.QoS(qos), retain)
}

// Subscribe registers cb against filter through the cloud subscription
// coalescer (spec §4.E).
func (s *Session) Subscribe(ctx context.Context, filter string, qos byte, cb coalescer.Callback, mode coalescer.ReceiveMode, source string) (coalescer.SubscriberHandle, error) {
	coal, err := s.runningCoalescer()
	if err != nil {
		return coalescer.SubscriberHandle{}, err
	}
	return coal.Subscribe(ctx, filter, qos, cb, mode, source)
}

// Unsubscribe removes handle's coalesced cloud subscription.
func (s *Session) Unsubscribe(ctx context.Context, handle coalescer.SubscriberHandle) error {
	coal, err := s.runningCoalescer()
	if err != nil {
		return err
	}
	return coal.Unsubscribe(ctx, handle)
}

// BusSubscribe registers cb against filter on the in-process local bus
// (spec §4.G).
func (s *Session) BusSubscribe(filter string, cb bus.Callback, source string, mode bus.ReceiveMode) (bus.SubscriberHandle, error) {
	b, err := s.runningBus()
	if err != nil {
		return bus.SubscriberHandle{}, err
	}
	return b.Subscribe(filter, cb, source, mode)
}

// BusUnsubscribe removes handle's local bus registration.
func (s *Session) BusUnsubscribe(handle bus.SubscriberHandle) {
	s.mu.Lock()
	b := s.bus
	s.mu.Unlock()
	if b != nil {
		b.Unsubscribe(handle)
	}
}

// BusPublish publishes payload to every matching local subscriber
// through the ordered per-topic bus executor (spec §4.G).
func (s *Session) BusPublish(ctx context.Context, topicName string, payload []byte, source string) error {
	b, err := s.runningBus()
	if err != nil {
		return err
	}
	return b.Publish(ctx, topicName, payload, source)
}

// ConfigurationChanged notifies the connection manager that keys
// changed, triggering a jittered reconnect of every link when any key
// is connection-affecting (spec §4.D).
func (s *Session) ConfigurationChanged(ctx context.Context, keys []string) {
	s.mu.Lock()
	mgr := s.mgr
	s.mu.Unlock()
	if mgr != nil {
		mgr.ConfigurationChanged(ctx, keys)
	}
}

func (s *Session) runningPipeline() (*pipeline.Pipeline, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.pipe, nil
}

func (s *Session) runningCoalescer() (*coalescer.Coalescer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.coal, nil
}

func (s *Session) runningBus() (*bus.Bus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.isStarted() {
		return nil, ErrNotStarted
	}
	return s.bus, nil
}
