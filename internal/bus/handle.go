package bus

import "github.com/google/uuid"

// SubscriberHandle identifies one local bus registration.
type SubscriberHandle struct {
	id uuid.UUID
}

func newSubscriberHandle() SubscriberHandle {
	return SubscriberHandle{id: uuid.New()}
}

func (h SubscriberHandle) String() string {
	return h.id.String()
}
