package coalescer

import (
	"context"

	"github.com/aws-greengrass/mqttclient/internal/link"
)

// CloudSubscriber is the narrow surface the coalescer needs from the
// connection manager: issue and retract the one cloud subscription
// backing a coalesced filter. internal/manager.Manager satisfies this.
type CloudSubscriber interface {
	Subscribe(ctx context.Context, filter string, qos byte) (link.Ack, error)
	Unsubscribe(ctx context.Context, filter string) error
}
