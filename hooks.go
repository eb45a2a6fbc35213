package mqttclient

// BeforeStart, AfterStart, BeforeShutdown and AfterShutdown are
// optional hooks a Session's Options.Observer may implement. Each is
// detected via type assertion at the matching point in Start/Close, so
// an Observer only needs to implement the ones it cares about.
type BeforeStart interface {
	BeforeStart()
}

type AfterStart interface {
	AfterStart()
}

type BeforeShutdown interface {
	BeforeShutdown()
}

type AfterShutdown interface {
	AfterShutdown()
}
