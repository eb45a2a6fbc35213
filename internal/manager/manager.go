package manager

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/aws-greengrass/mqttclient/internal/apperr"
	"github.com/aws-greengrass/mqttclient/internal/link"
)

// NewLinkFunc constructs and connects a new link with the given id.
// The manager calls it only when link placement finds no existing link
// able to accept a new subscription.
type NewLinkFunc func(ctx context.Context, id uint64) (*link.Link, error)

// Manager owns the pool of links forming one logical cloud session
// (spec §4.D). Its mutex guards bookkeeping only: placement decisions
// and the filter-to-link routing table. Link I/O itself happens
// outside the lock, since each link already serializes its own writes.
type Manager struct {
	mu           sync.Mutex
	links        map[uint64]*link.Link
	filterLinks  map[string]uint64
	newLink      NewLinkFunc
	opts         Options
	logger       *slog.Logger
}

// New constructs a Manager with no links; they're created lazily by
// placement.
func New(newLink NewLinkFunc, opts Options, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.MaxSubscriptionsPerLink <= 0 {
		opts.MaxSubscriptionsPerLink = defaultMaxSubscriptionsPerLink
	}

	return &Manager{
		links:       make(map[uint64]*link.Link),
		filterLinks: make(map[string]uint64),
		newLink:     newLink,
		opts:        opts,
		logger:      logger,
	}
}

// nextAvailableIDLocked returns the smallest id not currently in use,
// reusing holes left by closed links (spec §4.D "smallest currently-
// unused id (reusing holes)").
func (m *Manager) nextAvailableIDLocked() uint64 {
	var id uint64 = 1
	for {
		if _, exists := m.links[id]; !exists {
			return id
		}
		id++
	}
}

// place returns a link able to accept a new subscription, creating one
// if none can. It releases m.mu while constructing a new link since
// that may involve network I/O, then re-validates under lock before
// committing: if another caller stored a link under the same id in the
// meantime, the new link is closed and the stored one is returned.
func (m *Manager) place(ctx context.Context) (*link.Link, error) {
	m.mu.Lock()
	ids := make([]uint64, 0, len(m.links))
	for id := range m.links {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		l := m.links[id]
		if l.SubscriptionCount() < m.opts.MaxSubscriptionsPerLink {
			m.mu.Unlock()
			return l, nil
		}
	}
	newID := m.nextAvailableIDLocked()
	m.mu.Unlock()

	l, err := m.newLink(ctx, newID)
	if err != nil {
		return nil, apperr.Wrap(apperr.Retryable, "failed to create new link", err)
	}

	m.mu.Lock()
	if existing, taken := m.links[newID]; taken {
		m.mu.Unlock()
		_ = l.Close(ctx)
		return existing, nil
	}
	m.links[newID] = l
	m.mu.Unlock()

	return l, nil
}

// closeIdle closes every is_closable() link, keeping at least one alive
// so publishes always have a link (spec §4.D's placement
// post-condition). No particular link is privileged: any closable link
// may go, as long as one survives.
func (m *Manager) closeIdle(ctx context.Context) {
	m.mu.Lock()
	ids := make([]uint64, 0, len(m.links))
	for id := range m.links {
		ids = append(ids, id)
	}
	aliveCount := len(ids)
	m.mu.Unlock()

	for _, id := range ids {
		if aliveCount <= 1 {
			break
		}

		m.mu.Lock()
		l, ok := m.links[id]
		m.mu.Unlock()
		if !ok {
			continue
		}
		if !l.IsClosable() {
			continue
		}

		if err := l.Close(ctx); err != nil {
			m.logger.Warn("idle link close failed", "link_id", id, "error", err)
			continue
		}

		m.mu.Lock()
		delete(m.links, id)
		m.mu.Unlock()
		aliveCount--
	}
}

// Subscribe places filter/qos on a link per the placement algorithm
// and records which link now owns it for later Unsubscribe routing.
func (m *Manager) Subscribe(ctx context.Context, filter string, qos byte) (link.Ack, error) {
	l, err := m.place(ctx)
	if err != nil {
		return link.Ack{}, err
	}

	ack, err := l.Subscribe(ctx, filter, qos)
	if err != nil {
		return ack, err
	}

	m.mu.Lock()
	m.filterLinks[filter] = l.ID
	m.mu.Unlock()

	m.closeIdle(ctx)

	return ack, nil
}

// Unsubscribe routes to whichever link currently owns filter. Calling
// it for an unknown filter is a no-op.
func (m *Manager) Unsubscribe(ctx context.Context, filter string) error {
	m.mu.Lock()
	id, ok := m.filterLinks[filter]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	l := m.links[id]
	delete(m.filterLinks, filter)
	m.mu.Unlock()

	if l == nil {
		return nil
	}

	_, err := l.Unsubscribe(ctx, filter)
	m.closeIdle(ctx)
	return err
}

// Publish routes rec to the lowest-id link that still has spare
// subscription capacity, creating a new link via placement when none
// has room (including when the pool is empty). Publish doesn't need a
// subscription-specific link: any connected link in the pool can carry
// it, so the same placement entry point is reused to pick (or lazily
// create) one.
func (m *Manager) Publish(ctx context.Context, rec link.Record) (link.Ack, error) {
	l, err := m.place(ctx)
	if err != nil {
		return link.Ack{}, err
	}
	return l.Publish(ctx, rec)
}

// ConfigurationChanged triggers a jittered reconnect of every link when
// any key in keys is one of the predefined connection-affecting keys
// (spec §4.D); unrelated key changes are ignored.
func (m *Manager) ConfigurationChanged(ctx context.Context, keys []string) {
	relevant := false
	for _, k := range keys {
		if ReconnectKeys[k] {
			relevant = true
			break
		}
	}
	if !relevant {
		return
	}

	m.mu.Lock()
	links := make([]*link.Link, 0, len(m.links))
	for _, l := range m.links {
		links = append(links, l)
	}
	m.mu.Unlock()

	for _, l := range links {
		delay := m.opts.ReconnectBaseDelay
		if m.opts.ReconnectJitter > 0 {
			delay += time.Duration(rand.Int63n(int64(m.opts.ReconnectJitter)))
		}
		go func(l *link.Link, delay time.Duration) {
			if err := l.Reconnect(ctx, delay); err != nil {
				m.logger.Warn("configuration-driven reconnect failed", "link_id", l.ID, "error", err)
			}
		}(l, delay)
	}
}

// CloseAll disconnects and releases every link in the pool.
func (m *Manager) CloseAll(ctx context.Context) error {
	m.mu.Lock()
	links := make([]*link.Link, 0, len(m.links))
	for _, l := range m.links {
		links = append(links, l)
	}
	m.links = make(map[uint64]*link.Link)
	m.filterLinks = make(map[string]uint64)
	m.mu.Unlock()

	var errs []error
	for _, l := range links {
		if err := l.Close(ctx); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// LinkCount returns the number of live links, for tests and
// diagnostics.
func (m *Manager) LinkCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.links)
}
