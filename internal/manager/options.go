package manager

import "time"

// defaultMaxSubscriptionsPerLink is spec §4.D's "usually 50" per-link
// subscription cap.
const defaultMaxSubscriptionsPerLink = 50

// ReconnectKeys is the predefined set of configuration keys whose
// change triggers a jittered reconnect of every link (spec §4.D
// "Configuration-driven reconnects"). Any other key is ignored.
var ReconnectKeys = map[string]bool{
	"mqtt.namespace_root": true,
	"mqtt.endpoint":       true,
	"mqtt.thing_name":     true,
	"mqtt.private_key":    true,
	"mqtt.certificate":    true,
	"mqtt.root_ca":        true,
	"mqtt.proxy.region":   true,
}

// Options configures a Manager.
type Options struct {
	// MaxSubscriptionsPerLink bounds how many filters a single link may
	// carry before placement moves on to the next link or creates one.
	MaxSubscriptionsPerLink int

	// ReconnectBaseDelay and ReconnectJitter bound the jittered delay
	// applied to every link on a configuration-driven reconnect.
	ReconnectBaseDelay time.Duration
	ReconnectJitter    time.Duration
}

// DefaultOptions returns the Options a Manager uses when none are
// given.
func DefaultOptions() Options {
	return Options{
		MaxSubscriptionsPerLink: defaultMaxSubscriptionsPerLink,
		ReconnectBaseDelay:      time.Second,
		ReconnectJitter:         time.Second,
	}
}
