package bus

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aws-greengrass/mqttclient/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOrderedPerTopicDispatchScenarioS5 implements spec's S5 scenario:
// publishing messages 0..9 on one topic with two subscribers, each
// subscriber must observe them in order.
func TestOrderedPerTopicDispatchScenarioS5(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	var mu1, mu2 sync.Mutex
	var got1, got2 []byte

	_, err := b.Subscribe("t/x", func(_ string, payload []byte, _ string) {
		mu1.Lock()
		got1 = append(got1, payload...)
		mu1.Unlock()
	}, "sub-1", ReceiveAll)
	require.NoError(t, err)

	_, err = b.Subscribe("t/x", func(_ string, payload []byte, _ string) {
		mu2.Lock()
		got2 = append(got2, payload...)
		mu2.Unlock()
	}, "sub-2", ReceiveAll)
	require.NoError(t, err)

	for i := byte(0); i < 10; i++ {
		require.NoError(t, b.Publish(ctx, "t/x", []byte{i}, "pub"))
	}

	require.Eventually(t, func() bool {
		mu1.Lock()
		defer mu1.Unlock()
		mu2.Lock()
		defer mu2.Unlock()
		return len(got1) == 10 && len(got2) == 10
	}, time.Second, time.Millisecond)

	mu1.Lock()
	defer mu1.Unlock()
	mu2.Lock()
	defer mu2.Unlock()

	want := []byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	assert.Equal(t, want, got1)
	assert.Equal(t, want, got2)
}

func TestReceiveModeFromOthers(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	var mu sync.Mutex
	var received bool

	_, err := b.Subscribe("t/x", func(string, []byte, string) {
		mu.Lock()
		received = true
		mu.Unlock()
	}, "comp-1", ReceiveFromOthers)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "t/x", []byte("hi"), "comp-1"))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, received, "FROM_OTHERS subscriber must not receive its own source's publish")
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	b := New(nil)
	ctx := context.Background()

	var mu sync.Mutex
	var count int

	handle, err := b.Subscribe("t/x", func(string, []byte, string) {
		mu.Lock()
		count++
		mu.Unlock()
	}, "comp-1", ReceiveAll)
	require.NoError(t, err)

	require.NoError(t, b.Publish(ctx, "t/x", []byte("hi"), "pub"))
	time.Sleep(20 * time.Millisecond)

	b.Unsubscribe(handle)

	require.NoError(t, b.Publish(ctx, "t/x", []byte("hi"), "pub"))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count)
}

func TestPublishRejectsInvalidTopicSynchronously(t *testing.T) {
	b := New(nil)
	err := b.Publish(context.Background(), "a/+/b", []byte("x"), "pub")
	require.Error(t, err)
	code, ok := apperr.CodeOf(err)
	require.True(t, ok)
	assert.Equal(t, apperr.InvalidArguments, code)
}

func TestSubscribeRejectsMalformedFilter(t *testing.T) {
	b := New(nil)
	_, err := b.Subscribe("$share/group1", func(string, []byte, string) {}, "comp-1", ReceiveAll)
	require.Error(t, err)
}
