package link

import (
	"context"
	"fmt"
	"net/url"
	"sync/atomic"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/paho"
)

// ClientTransportOptions configures a ClientTransport. It mirrors the
// shape of the teacher broker's MQTTBrokerOptions, extended with the
// client id and clean-start control this package's resubscribe policy
// needs to observe.
type ClientTransportOptions struct {
	ServerURLs []string
	ClientID   string
	Username   string
	Password   string
	KeepAlive  uint16

	// CleanStart requests a fresh session on the transport's initial
	// connection only; later reconnections made by autopaho do not set
	// it. When the broker resumes a prior session,
	// ConnectResult.SessionPresent is true and the Link skips
	// resubscribing filters it already believes are active.
	CleanStart bool

	// OnPublishReceived is invoked for every inbound PUBLISH; the Link
	// layer doesn't interpret message payloads itself, so callers wire
	// this to their inbound fan-out (Session wires it to the
	// coalescer's Dispatch).
	OnPublishReceived func(topic string, payload []byte, qos byte, retain bool)
}

const defaultKeepAlive = 30

// ClientTransport adapts github.com/eclipse/paho.golang's autopaho
// connection manager to the transport interface, grounded on the
// teacher framework's own MQTTBroker construction and call shapes in
// framework/event/mqtt.go.
type ClientTransport struct {
	cm             *autopaho.ConnectionManager
	sessionPresent atomic.Bool
}

// NewClientTransport builds and starts an autopaho connection manager
// for opts. The connection attempt itself happens asynchronously;
// Connect waits for the first successful handshake.
func NewClientTransport(ctx context.Context, opts ClientTransportOptions) (*ClientTransport, error) {
	keepAlive := opts.KeepAlive
	if keepAlive == 0 {
		keepAlive = defaultKeepAlive
	}

	urls := make([]*url.URL, len(opts.ServerURLs))
	for i, raw := range opts.ServerURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("link: invalid server url %q: %w", raw, err)
		}
		urls[i] = u
	}

	t := &ClientTransport{}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    urls,
		KeepAlive:                     keepAlive,
		CleanStartOnInitialConnection: opts.CleanStart,
		SessionExpiryInterval:         0,
		OnConnectionUp: func(_ *autopaho.ConnectionManager, connAck *paho.Connack) {
			t.sessionPresent.Store(connAck.SessionPresent)
		},
		ClientConfig: paho.ClientConfig{
			ClientID: opts.ClientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					if opts.OnPublishReceived != nil {
						retain := pr.Packet.Retain
						opts.OnPublishReceived(pr.Packet.Topic, pr.Packet.Payload, pr.Packet.QoS, retain)
					}
					return true, nil
				},
			},
		},
	}

	if opts.Username != "" {
		cfg.ConnectUsername = opts.Username
		cfg.ConnectPassword = []byte(opts.Password)
	}

	cm, err := autopaho.NewConnection(ctx, cfg)
	if err != nil {
		return nil, err
	}

	t.cm = cm
	return t, nil
}

func (t *ClientTransport) Connect(ctx context.Context) (ConnectResult, error) {
	if err := t.cm.AwaitConnection(ctx); err != nil {
		return ConnectResult{}, err
	}
	return ConnectResult{SessionPresent: t.sessionPresent.Load()}, nil
}

func (t *ClientTransport) Publish(ctx context.Context, req PublishRequest) (PublishResult, error) {
	resp, err := t.cm.Publish(ctx, &paho.Publish{
		Topic:   req.Topic,
		QoS:     req.QoS,
		Retain:  req.Retain,
		Payload: req.Payload,
	})
	if err != nil {
		return PublishResult{}, err
	}

	if resp == nil {
		return PublishResult{ReasonCode: ReasonSuccess}, nil
	}
	return PublishResult{ReasonCode: ReasonCode(resp.ReasonCode)}, nil
}

func (t *ClientTransport) Subscribe(ctx context.Context, filter string, qos byte) (SubscribeResult, error) {
	ack, err := t.cm.Subscribe(ctx, &paho.Subscribe{
		Subscriptions: []paho.SubscribeOptions{
			{Topic: filter, QoS: qos},
		},
	})
	if err != nil {
		return SubscribeResult{}, err
	}

	if ack == nil || len(ack.Reasons) == 0 {
		return SubscribeResult{ReasonCode: ReasonSuccess}, nil
	}
	return SubscribeResult{ReasonCode: ReasonCode(ack.Reasons[0])}, nil
}

func (t *ClientTransport) Unsubscribe(ctx context.Context, filter string) (UnsubscribeResult, error) {
	ack, err := t.cm.Unsubscribe(ctx, &paho.Unsubscribe{
		Topics: []string{filter},
	})
	if err != nil {
		return UnsubscribeResult{}, err
	}

	if ack == nil || len(ack.Reasons) == 0 {
		return UnsubscribeResult{ReasonCode: ReasonSuccess}, nil
	}
	return UnsubscribeResult{ReasonCode: ReasonCode(ack.Reasons[0])}, nil
}

func (t *ClientTransport) Disconnect(ctx context.Context) error {
	return t.cm.Disconnect(ctx)
}
