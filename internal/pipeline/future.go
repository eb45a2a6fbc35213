package pipeline

import (
	"context"

	"github.com/aws-greengrass/mqttclient/internal/link"
)

// Future resolves once the pipeline has either delivered or
// permanently failed the publish it was bound to at admission time.
type Future struct {
	id   uint64
	done chan struct{}
	ack  link.Ack
	err  error
}

func newFuture(id uint64) *Future {
	return &Future{id: id, done: make(chan struct{})}
}

func (f *Future) complete(ack link.Ack, err error) {
	f.ack = ack
	f.err = err
	close(f.done)
}

// Wait blocks until the future resolves or ctx is done.
func (f *Future) Wait(ctx context.Context) (link.Ack, error) {
	select {
	case <-f.done:
		return f.ack, f.err
	case <-ctx.Done():
		return link.Ack{}, ctx.Err()
	}
}

// ID returns the spool record id this future is bound to.
func (f *Future) ID() uint64 {
	return f.id
}
