package link

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws-greengrass/mqttclient/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTransport struct {
	mu              sync.Mutex
	sessionPresent  bool
	subscribeCounts map[string]int
	failRemaining   map[string]int
	publishReason   ReasonCode
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		subscribeCounts: make(map[string]int),
		failRemaining:   make(map[string]int),
		publishReason:   ReasonSuccess,
	}
}

func (f *fakeTransport) Connect(ctx context.Context) (ConnectResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return ConnectResult{SessionPresent: f.sessionPresent}, nil
}

func (f *fakeTransport) Subscribe(ctx context.Context, filter string, qos byte) (SubscribeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.subscribeCounts[filter]++
	if f.failRemaining[filter] > 0 {
		f.failRemaining[filter]--
		return SubscribeResult{}, assert.AnError
	}
	return SubscribeResult{ReasonCode: ReasonSuccess}, nil
}

func (f *fakeTransport) Unsubscribe(ctx context.Context, filter string) (UnsubscribeResult, error) {
	return UnsubscribeResult{ReasonCode: ReasonSuccess}, nil
}

func (f *fakeTransport) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return PublishResult{ReasonCode: f.publishReason}, nil
}

func (f *fakeTransport) Disconnect(ctx context.Context) error {
	return nil
}

func (f *fakeTransport) subscribeCount(filter string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribeCounts[filter]
}

func testOptions() Options {
	return Options{
		OperationTimeout:     time.Second,
		ResubscribeBaseDelay: time.Millisecond,
		ResubscribeMaxDelay:  5 * time.Millisecond,
	}
}

// TestResubscribeOnSessionResumption implements the spec's fresh-vs-
// resumed-session resubscribe scenario: interrupting with
// session_present=false re-issues every filter; interrupting again with
// session_present=true only retries filters that failed at some point
// in the link's history.
func TestResubscribeOnSessionResumption(t *testing.T) {
	ft := newFakeTransport()
	l := New(1, "client-1", ft, testOptions(), nil)

	ctx := context.Background()
	require.NoError(t, l.Connect(ctx))

	for _, filter := range []string{"A", "B", "C"} {
		_, err := l.Subscribe(ctx, filter, 1)
		require.NoError(t, err)
	}
	assert.Equal(t, 1, ft.subscribeCount("A"))
	assert.Equal(t, 1, ft.subscribeCount("B"))
	assert.Equal(t, 1, ft.subscribeCount("C"))

	ft.mu.Lock()
	ft.failRemaining["B"] = 1
	ft.failRemaining["C"] = 1
	ft.sessionPresent = false
	ft.mu.Unlock()

	l.mu.Lock()
	l.state = StateDisconnected
	l.mu.Unlock()
	require.NoError(t, l.Connect(ctx))

	require.Eventually(t, func() bool {
		return ft.subscribeCount("A") == 2 && ft.subscribeCount("B") == 3 && ft.subscribeCount("C") == 3
	}, time.Second, time.Millisecond, "fresh-session resubscribe counts: A=%d B=%d C=%d",
		ft.subscribeCount("A"), ft.subscribeCount("B"), ft.subscribeCount("C"))

	ft.mu.Lock()
	ft.sessionPresent = true
	ft.mu.Unlock()

	l.mu.Lock()
	l.state = StateDisconnected
	l.mu.Unlock()
	require.NoError(t, l.Connect(ctx))

	require.Eventually(t, func() bool {
		return ft.subscribeCount("A") == 2 && ft.subscribeCount("B") == 4 && ft.subscribeCount("C") == 4
	}, time.Second, time.Millisecond, "resumed-session resubscribe counts: A=%d B=%d C=%d",
		ft.subscribeCount("A"), ft.subscribeCount("B"), ft.subscribeCount("C"))
}

func TestIsClosableTracksSubscriptionsAndInFlight(t *testing.T) {
	ft := newFakeTransport()
	l := New(1, "client-1", ft, testOptions(), nil)
	ctx := context.Background()
	require.NoError(t, l.Connect(ctx))

	assert.True(t, l.IsClosable())

	_, err := l.Subscribe(ctx, "A", 1)
	require.NoError(t, err)
	assert.False(t, l.IsClosable())

	_, err = l.Unsubscribe(ctx, "A")
	require.NoError(t, err)
	assert.True(t, l.IsClosable())
}

func TestPublishClassifiesReasonCodes(t *testing.T) {
	ft := newFakeTransport()
	l := New(1, "client-1", ft, testOptions(), nil)
	ctx := context.Background()
	require.NoError(t, l.Connect(ctx))

	ft.mu.Lock()
	ft.publishReason = ReasonQuotaExceeded
	ft.mu.Unlock()

	_, err := l.Publish(ctx, Record{Topic: "t", Payload: []byte("x"), QoS: 1})
	require.Error(t, err)
	code, ok := apperr.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Retryable, code)

	ft.mu.Lock()
	ft.publishReason = ReasonNotAuthorized
	ft.mu.Unlock()

	_, err = l.Publish(ctx, Record{Topic: "t", Payload: []byte("x"), QoS: 1})
	require.Error(t, err)
	code, ok = apperr.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.NonRetryable, code)
}

func TestPublishRateLimiterThrottles(t *testing.T) {
	ft := newFakeTransport()
	opts := testOptions()
	opts.PublishRatePerSecond = 2
	l := New(1, "client-1", ft, opts, nil)
	ctx := context.Background()
	require.NoError(t, l.Connect(ctx))

	start := time.Now()
	for i := 0; i < 4; i++ {
		_, err := l.Publish(ctx, Record{Topic: "t", Payload: []byte("x"), QoS: 0})
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.Greater(t, elapsed, 500*time.Millisecond, "4 publishes at 2/s should take over half a second")
}

func TestCloseRejectsFurtherOperations(t *testing.T) {
	ft := newFakeTransport()
	l := New(1, "client-1", ft, testOptions(), nil)
	ctx := context.Background()
	require.NoError(t, l.Connect(ctx))
	require.NoError(t, l.Close(ctx))

	err := l.Connect(ctx)
	require.Error(t, err)
	code, ok := apperr.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.Closed, code)

	_, err = l.Subscribe(ctx, "A", 1)
	require.Error(t, err)
}
