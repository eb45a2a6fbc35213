package coalescer

import "github.com/google/uuid"

// SubscriberHandle identifies one local subscriber registration,
// returned by Subscribe and required by Unsubscribe. It's a minted
// uuid.UUID rather than the callback value itself, since Go function
// values aren't comparable and the spec's "callback identity" needs a
// stable, comparable key (DESIGN NOTES §9).
type SubscriberHandle struct {
	id uuid.UUID
}

func newSubscriberHandle() SubscriberHandle {
	return SubscriberHandle{id: uuid.New()}
}

func (h SubscriberHandle) String() string {
	return h.id.String()
}
