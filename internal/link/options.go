package link

import "time"

// Options configures a Link's rate limits and retry pacing. A zero
// value yields unlimited publish/subscribe rates. New applies no
// defaults to the timeout and delay fields: a zero OperationTimeout
// makes every resubscribe attempt expire at once, and zero delays
// retry without pause. DefaultOptions supplies working values.
type Options struct {
	// PublishRatePerSecond and SubscribeRatePerSecond bound the token
	// rate for outbound PUBLISH and SUBSCRIBE/UNSUBSCRIBE operations
	// respectively. Zero or negative means unlimited.
	PublishRatePerSecond   float64
	SubscribeRatePerSecond float64

	// OperationTimeout bounds each resubscribe attempt a Link makes
	// after reconnecting. Publish, Subscribe and Unsubscribe do not
	// apply it; they run under the caller's context only.
	OperationTimeout time.Duration

	// ResubscribeBaseDelay and ResubscribeMaxDelay bound the
	// exponential backoff applied between resubscribe attempts for a
	// single filter.
	ResubscribeBaseDelay time.Duration
	ResubscribeMaxDelay  time.Duration
}

// DefaultOptions returns the Options a Link uses when none are given.
func DefaultOptions() Options {
	return Options{
		OperationTimeout:     30 * time.Second,
		ResubscribeBaseDelay: 500 * time.Millisecond,
		ResubscribeMaxDelay:  30 * time.Second,
	}
}
