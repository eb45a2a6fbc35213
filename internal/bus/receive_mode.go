package bus

// ReceiveMode mirrors internal/coalescer's semantics (spec §4.G "Mode
// semantics match §4.E"), kept as its own type since the local bus has
// no cloud-subscription dependency on that package.
type ReceiveMode int

const (
	ReceiveAll ReceiveMode = iota
	ReceiveFromOthers
)

// Callback receives one delivered local message.
type Callback func(topic string, payload []byte, source string)
