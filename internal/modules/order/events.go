// README: Broadcast event payloads and the outbound ports the service publishes through.
package order

import (
	"context"

	"fastdelivery/internal/types"
)

// Event names mirror what the front-ends already listen for.
const (
	EventNew           = "order:new"
	EventPendingAdmin  = "order:pending_admin"
	EventPriceReady    = "order:price_ready"
	EventStatusChanged = "order:status_changed"
	EventAssigned      = "order:assigned"
	EventCancelled     = "order:cancelled"
	EventCompleted     = "order:completed"
	EventRejectedStore = "order:rejected_store"
	EventDriverAccept  = "driver:accepted"
	EventDriverReject  = "driver:rejected"
)

// Event is a single order broadcast. The routing fields (StoreID, DriverID,
// CustomerPhone) describe the post-transition snapshot, so a driver cleared
// by a rejection is already absent from that event's audience.
type Event struct {
	Name          string
	OrderID       types.ID
	OrderNumber   string
	NewStatus     Status
	StoreID       types.ID
	DriverID      *types.ID
	CustomerPhone string
	Data          map[string]any
}

// Broadcaster fans an event out to every live connection in the audience.
// Called synchronously after the commit; implementations must not block on
// slow consumers. Delivery failures stay inside the implementation.
type Broadcaster interface {
	Publish(ctx context.Context, evt Event)
}

// Notifier is the push-notification fallback for the customer. Invoked
// fire-and-forget after the live broadcast; its outcome is never surfaced
// to the transition caller.
type Notifier interface {
	StatusChanged(ctx context.Context, o *Order)
}
