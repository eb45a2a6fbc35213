package coalescer

// ReceiveMode controls whether a subscriber receives messages
// originating from its own source component (spec §4.E).
type ReceiveMode int

const (
	// ReceiveAll delivers every matching message regardless of source.
	ReceiveAll ReceiveMode = iota
	// ReceiveFromOthers delivers only messages whose source differs
	// from the subscriber's own source.
	ReceiveFromOthers
)

// Callback receives a delivered message. It runs independently of
// other subscribers' callbacks: a panicking callback never prevents
// delivery to the rest (spec §4.E "Delivery to each callback is
// independent").
type Callback func(topic string, payload []byte, retain bool)
