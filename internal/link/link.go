package link

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/aws-greengrass/mqttclient/internal/apperr"
	"golang.org/x/time/rate"
)

// Record is the narrow view of a spooled publish a Link needs: enough
// to build the wire request, nothing about queueing or persistence.
type Record struct {
	ID      uint64
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// Ack is the outcome of a publish, subscribe or unsubscribe operation.
type Ack struct {
	ReasonCode ReasonCode
}

// Link owns one MQTT session to the cloud broker (spec §4.C): its
// lifecycle, rate-limited publish/subscribe, and resubscription on
// session resumption. All state is guarded by mu; I/O against the
// transport happens without holding it, per the teacher's convention
// of a single mutex guarding in-memory bookkeeping only.
type Link struct {
	ID       uint64
	ClientID string

	opts      Options
	transport transport
	logger    *slog.Logger

	mu                 sync.Mutex
	state              State
	subscriptions      map[string]byte // filter -> qos
	inFlightSubscribes int
	sessionPresent     bool

	publishLimiter   *rate.Limiter
	subscribeLimiter *rate.Limiter
	resub            *resubscribeTracker
}

// New constructs a Link bound to transport t. t.Connect is not called
// until Connect is invoked.
func New(id uint64, clientID string, t transport, opts Options, logger *slog.Logger) *Link {
	if logger == nil {
		logger = slog.Default()
	}

	return &Link{
		ID:               id,
		ClientID:         clientID,
		opts:             opts,
		transport:        t,
		logger:           logger.With("link_id", id),
		state:            StateDisconnected,
		subscriptions:    make(map[string]byte),
		publishLimiter:   newLimiter(opts.PublishRatePerSecond),
		subscribeLimiter: newLimiter(opts.SubscribeRatePerSecond),
		resub:            newResubscribeTracker(),
	}
}

func newLimiter(ratePerSecond float64) *rate.Limiter {
	if ratePerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := int(ratePerSecond)
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(ratePerSecond), burst)
}

// State returns the link's current lifecycle state.
func (l *Link) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Connect is idempotent: it transitions DISCONNECTED -> CONNECTING ->
// CONNECTED, rejecting the call outright if the link is CLOSED. On
// fresh resumption it resubscribes every filter in the local map; on
// session_present resumption it only retries filters that previously
// failed.
func (l *Link) Connect(ctx context.Context) error {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return apperr.New(apperr.Closed, "link is closed")
	}
	if l.state == StateConnected {
		l.mu.Unlock()
		return nil
	}
	l.state = StateConnecting
	l.mu.Unlock()

	res, err := l.transport.Connect(ctx)
	if err != nil {
		l.mu.Lock()
		l.state = StateDisconnected
		l.mu.Unlock()
		return apperr.Wrap(apperr.Retryable, "link connect failed", err)
	}

	l.mu.Lock()
	l.state = StateConnected
	l.sessionPresent = res.SessionPresent
	filters := make([]string, 0, len(l.subscriptions))
	for f := range l.subscriptions {
		if !res.SessionPresent || l.resub.hasEverFailed(f) {
			filters = append(filters, f)
		}
	}
	qosByFilter := make(map[string]byte, len(filters))
	for _, f := range filters {
		qosByFilter[f] = l.subscriptions[f]
	}
	l.mu.Unlock()

	for _, f := range filters {
		go l.resubscribeWithBackoff(context.Background(), f, qosByFilter[f])
	}

	return nil
}

// resubscribeWithBackoff retries a single filter's subscribe until it
// succeeds or the link closes, honoring the configured base/max delay
// and per-filter attempt counter described in spec §4.C.
func (l *Link) resubscribeWithBackoff(ctx context.Context, filter string, qos byte) {
	for {
		l.mu.Lock()
		closed := l.state == StateClosed
		var attempt int
		if !closed {
			attempt = l.resub.recordAttempt(filter)
		}
		l.mu.Unlock()
		if closed {
			return
		}

		opCtx, cancel := context.WithTimeout(ctx, l.opts.OperationTimeout)
		_, err := l.subscribeOnce(opCtx, filter, qos)
		cancel()

		if err == nil {
			l.mu.Lock()
			l.resub.recordSuccess(filter)
			l.mu.Unlock()
			return
		}

		l.mu.Lock()
		l.resub.recordFailure(filter)
		l.mu.Unlock()
		l.logger.Warn("resubscribe attempt failed", "filter", filter, "attempt", attempt, "error", err)

		delay := backoffDelay(l.opts.ResubscribeBaseDelay, l.opts.ResubscribeMaxDelay, attempt)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return
		}
	}
}

// Subscribe queues filter/qos behind the subscribe rate limiter; on
// success it's inserted into the local subscriptions map.
func (l *Link) Subscribe(ctx context.Context, filter string, qos byte) (Ack, error) {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return Ack{}, apperr.New(apperr.Closed, "link is closed")
	}
	l.inFlightSubscribes++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.inFlightSubscribes--
		l.mu.Unlock()
	}()

	return l.subscribeOnce(ctx, filter, qos)
}

func (l *Link) subscribeOnce(ctx context.Context, filter string, qos byte) (Ack, error) {
	if err := l.subscribeLimiter.Wait(ctx); err != nil {
		return Ack{}, apperr.Wrap(apperr.Timeout, "subscribe rate limit wait canceled", err)
	}

	res, err := l.transport.Subscribe(ctx, filter, qos)
	if err != nil {
		return Ack{}, apperr.Wrap(apperr.Retryable, "subscribe failed", err)
	}

	if !res.ReasonCode.Ok() {
		return Ack{ReasonCode: res.ReasonCode}, classifyAckError(res.ReasonCode, "subscribe rejected")
	}

	l.mu.Lock()
	l.subscriptions[filter] = qos
	l.mu.Unlock()

	return Ack{ReasonCode: res.ReasonCode}, nil
}

// Unsubscribe removes filter from the local map immediately; the cloud
// unsubscribe is best-effort, matching spec §4.C.
func (l *Link) Unsubscribe(ctx context.Context, filter string) (Ack, error) {
	l.mu.Lock()
	delete(l.subscriptions, filter)
	l.resub.forget(filter)
	closed := l.state == StateClosed
	l.mu.Unlock()

	if closed {
		return Ack{}, apperr.New(apperr.Closed, "link is closed")
	}

	if err := l.subscribeLimiter.Wait(ctx); err != nil {
		return Ack{}, apperr.Wrap(apperr.Timeout, "unsubscribe rate limit wait canceled", err)
	}

	res, err := l.transport.Unsubscribe(ctx, filter)
	if err != nil {
		l.logger.Warn("cloud unsubscribe failed (best effort)", "filter", filter, "error", err)
		return Ack{}, nil
	}

	return Ack{ReasonCode: res.ReasonCode}, nil
}

// Publish is rate-limited; for QoS >= 1 it awaits the broker's
// PUBACK/PUBREC before returning.
func (l *Link) Publish(ctx context.Context, rec Record) (Ack, error) {
	l.mu.Lock()
	closed := l.state == StateClosed
	l.mu.Unlock()
	if closed {
		return Ack{}, apperr.New(apperr.Closed, "link is closed")
	}

	if err := l.publishLimiter.Wait(ctx); err != nil {
		return Ack{}, apperr.Wrap(apperr.Timeout, "publish rate limit wait canceled", err)
	}

	res, err := l.transport.Publish(ctx, PublishRequest{
		Topic:   rec.Topic,
		Payload: rec.Payload,
		QoS:     rec.QoS,
		Retain:  rec.Retain,
	})
	if err != nil {
		return Ack{}, apperr.Wrap(apperr.Retryable, "publish failed", err)
	}

	if !res.ReasonCode.Ok() {
		return Ack{ReasonCode: res.ReasonCode}, classifyAckError(res.ReasonCode, "publish rejected")
	}

	return Ack{ReasonCode: res.ReasonCode}, nil
}

// classifyAckError turns a non-success reason code into an apperr
// carrying the Retryable or NonRetryable classification callers switch
// on (spec §4.C "MQTT-5 specifics").
func classifyAckError(code ReasonCode, msg string) error {
	if code.Retryable() {
		return apperr.New(apperr.Retryable, msg).With("reason_code", byte(code))
	}
	return apperr.New(apperr.NonRetryable, msg).With("reason_code", byte(code))
}

// Reconnect forces a disconnect-then-connect cycle after delay,
// preserving the subscription set for replay per the resubscribe
// policy.
func (l *Link) Reconnect(ctx context.Context, delay time.Duration) error {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return apperr.New(apperr.Closed, "link is closed")
	}
	l.state = StateInterrupted
	l.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	_ = l.transport.Disconnect(ctx)

	l.mu.Lock()
	l.state = StateDisconnected
	l.mu.Unlock()

	return l.Connect(ctx)
}

// Close is terminal: it cancels pending operations by transitioning
// the link to CLOSED, then disconnects the transport.
func (l *Link) Close(ctx context.Context) error {
	l.mu.Lock()
	if l.state == StateClosed {
		l.mu.Unlock()
		return nil
	}
	l.state = StateClosed
	l.mu.Unlock()

	return l.transport.Disconnect(ctx)
}

// IsClosable reports whether the link has no subscriptions and no
// in-flight subscribe operations (spec §4.C).
func (l *Link) IsClosable() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subscriptions) == 0 && l.inFlightSubscribes == 0
}

// SubscriptionCount returns the number of filters currently tracked by
// this link, used by the connection manager's placement algorithm.
func (l *Link) SubscriptionCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.subscriptions)
}
