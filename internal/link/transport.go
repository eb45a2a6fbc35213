package link

import "context"

// PublishRequest is the wire-level shape of an outbound PUBLISH,
// deliberately narrower than spool.Record: the transport doesn't need
// to know about spooling concerns like attempts or enqueue time.
type PublishRequest struct {
	Topic   string
	Payload []byte
	QoS     byte
	Retain  bool
}

// PublishResult carries the broker's PUBACK/PUBREC outcome.
type PublishResult struct {
	ReasonCode ReasonCode
}

// SubscribeResult carries one filter's SUBACK outcome.
type SubscribeResult struct {
	ReasonCode ReasonCode
}

// UnsubscribeResult carries one filter's UNSUBACK outcome.
type UnsubscribeResult struct {
	ReasonCode ReasonCode
}

// ConnectResult reports whether the broker resumed a prior session
// (spec §4.C "session_present").
type ConnectResult struct {
	SessionPresent bool
}

// transport is the narrow surface Link needs from an MQTT wire client.
// It exists so the Link state machine can be exercised with a fake in
// tests instead of a live broker; ClientTransport is the only production
// implementation.
type transport interface {
	Connect(ctx context.Context) (ConnectResult, error)
	Publish(ctx context.Context, req PublishRequest) (PublishResult, error)
	Subscribe(ctx context.Context, filter string, qos byte) (SubscribeResult, error)
	Unsubscribe(ctx context.Context, filter string) (UnsubscribeResult, error)
	Disconnect(ctx context.Context) error
}
