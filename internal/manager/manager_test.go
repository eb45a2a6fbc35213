package manager

import (
	"context"
	"fmt"
	"testing"

	"github.com/aws-greengrass/mqttclient/internal/link"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTransport is a minimal transport double sufficient for exercising
// manager placement and routing; it never fails, and each link connects
// once before it holds any subscription, so link-level resubscribe
// logic never engages.
type stubTransport struct{}

func (stubTransport) Connect(ctx context.Context) (link.ConnectResult, error) {
	return link.ConnectResult{}, nil
}
func (stubTransport) Publish(ctx context.Context, req link.PublishRequest) (link.PublishResult, error) {
	return link.PublishResult{ReasonCode: link.ReasonSuccess}, nil
}
func (stubTransport) Subscribe(ctx context.Context, filter string, qos byte) (link.SubscribeResult, error) {
	return link.SubscribeResult{ReasonCode: link.ReasonSuccess}, nil
}
func (stubTransport) Unsubscribe(ctx context.Context, filter string) (link.UnsubscribeResult, error) {
	return link.UnsubscribeResult{ReasonCode: link.ReasonSuccess}, nil
}
func (stubTransport) Disconnect(ctx context.Context) error { return nil }

func testNewLink(ctx context.Context, id uint64) (*link.Link, error) {
	l := link.New(id, fmt.Sprintf("client-%d", id), stubTransport{}, link.DefaultOptions(), nil)
	if err := l.Connect(ctx); err != nil {
		return nil, err
	}
	return l, nil
}

func TestPlacementFillsExistingLinkBeforeCreatingNew(t *testing.T) {
	m := New(testNewLink, Options{MaxSubscriptionsPerLink: 2}, nil)
	ctx := context.Background()

	_, err := m.Subscribe(ctx, "a", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, m.LinkCount())

	_, err = m.Subscribe(ctx, "b", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, m.LinkCount(), "second subscription should fill the same link (cap=2)")

	_, err = m.Subscribe(ctx, "c", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, m.LinkCount(), "third subscription exceeds the cap, so a new link is created")
}

func TestUnsubscribeRoutesToOwningLinkAndClosesIdle(t *testing.T) {
	m := New(testNewLink, Options{MaxSubscriptionsPerLink: 1}, nil)
	ctx := context.Background()

	_, err := m.Subscribe(ctx, "a", 1)
	require.NoError(t, err)
	_, err = m.Subscribe(ctx, "b", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, m.LinkCount())

	require.NoError(t, m.Unsubscribe(ctx, "a"))
	assert.Equal(t, 1, m.LinkCount(), "the now-closable link for 'a' should be closed, keeping the other alive")
}

func TestUnsubscribeUnknownFilterIsNoop(t *testing.T) {
	m := New(testNewLink, DefaultOptions(), nil)
	require.NoError(t, m.Unsubscribe(context.Background(), "never-subscribed"))
}

func TestPublishCreatesLinkWhenPoolEmpty(t *testing.T) {
	m := New(testNewLink, DefaultOptions(), nil)
	ctx := context.Background()

	_, err := m.Publish(ctx, link.Record{Topic: "t", Payload: []byte("x"), QoS: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, m.LinkCount())
}

func TestConfigurationChangedIgnoresUnrelatedKeys(t *testing.T) {
	m := New(testNewLink, DefaultOptions(), nil)
	ctx := context.Background()
	_, err := m.Subscribe(ctx, "a", 1)
	require.NoError(t, err)

	// Should not panic or alter link count; there's no direct
	// observable effect for an ignored key beyond "nothing happens".
	m.ConfigurationChanged(ctx, []string{"unrelated.key"})
	assert.Equal(t, 1, m.LinkCount())
}

func TestCloseAllReleasesLinks(t *testing.T) {
	m := New(testNewLink, Options{MaxSubscriptionsPerLink: 1}, nil)
	ctx := context.Background()
	_, err := m.Subscribe(ctx, "a", 1)
	require.NoError(t, err)
	_, err = m.Subscribe(ctx, "b", 1)
	require.NoError(t, err)

	require.NoError(t, m.CloseAll(ctx))
	assert.Equal(t, 0, m.LinkCount())
}
