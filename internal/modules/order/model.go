// README: Order aggregate, status definitions, and the transition table.
package order

import (
	"time"

	"fastdelivery/internal/types"
)

type Status string

// Status strings are the wire contract consumed by every front-end.
// Renaming any of them is a breaking change.
const (
	StatusPendingStore   Status = "pending_store"
	StatusPricing        Status = "pricing"
	StatusPendingAdmin   Status = "pending_admin"
	StatusPendingConfirm Status = "pending_customer_confirm"
	StatusConfirmed      Status = "confirmed"
	StatusAssigned       Status = "assigned"
	StatusAcceptedDriver Status = "accepted_driver"
	StatusPreparing      Status = "preparing"
	StatusInDelivery     Status = "in_delivery"
	StatusCompleted      Status = "completed"
	StatusCancelled      Status = "cancelled"
	StatusRejectedStore  Status = "rejected_store"
	StatusRejectedDriver Status = "rejected_driver"
)

// Actor identifies which role performed a transition.
type Actor string

const (
	ActorCustomer Actor = "customer"
	ActorStore    Actor = "store"
	ActorDriver   Actor = "driver"
	ActorAdmin    Actor = "admin"
	ActorSystem   Actor = "system"
)

// ContentKind distinguishes typed orders from recorded voice orders.
type ContentKind string

const (
	ContentText  ContentKind = "text"
	ContentVoice ContentKind = "voice"
)

// Customer is the snapshot captured at creation, not a live reference.
type Customer struct {
	Name    string
	Phone   string
	Address string
}

// HistoryEntry is one immutable ledger record; entries are appended on each
// accepted transition and never reordered or deleted.
type HistoryEntry struct {
	Status Status
	Actor  Actor
	At     time.Time
}

type Order struct {
	ID               types.ID
	OrderNumber      string
	Customer         Customer
	DeliveryLocation types.Point
	Kind             ContentKind
	Content          string
	VoiceURL         *string
	StoreID          types.ID
	StoreName        string
	ProductPrice     types.Money
	DeliveryFee      types.Money
	TotalPrice       types.Money
	DriverID         *types.ID
	DriverName       *string
	Status           Status
	StatusVersion    int
	History          []HistoryEntry
	CreatedAt        time.Time
	ConfirmedAt      *time.Time
	CompletedAt      *time.Time
}

// AllowedTransitions represents the order lifecycle as code. Admin
// cancellation of any non-terminal order is handled by CanCancel rather than
// edges here, so the cancelled entries below are the customer-facing ones.
var AllowedTransitions = map[Status][]Status{
	StatusPendingStore:   {StatusPricing, StatusRejectedStore},
	StatusPricing:        {StatusPendingAdmin},
	StatusPendingAdmin:   {StatusPendingConfirm},
	StatusPendingConfirm: {StatusConfirmed, StatusCancelled},
	StatusConfirmed:      {StatusAssigned},
	StatusAssigned:       {StatusAcceptedDriver, StatusRejectedDriver},
	StatusAcceptedDriver: {StatusPreparing},
	StatusPreparing:      {StatusInDelivery},
	StatusInDelivery:     {StatusCompleted},
	StatusRejectedDriver: {StatusAssigned},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status has no outgoing edge.
func IsTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusRejectedStore
}

// CanCancel reports whether the actor may cancel an order in the given
// status. Admins may cancel any non-terminal order; customers only while the
// order awaits their price confirmation.
func CanCancel(actor Actor, from Status) bool {
	switch actor {
	case ActorAdmin:
		return !IsTerminal(from)
	case ActorCustomer:
		return from == StatusPendingConfirm
	default:
		return false
	}
}

// edge identifies a single transition in the table.
type edge struct {
	from, to Status
}

// edgeActors maps each non-cancel edge to the sole role allowed to trigger it.
var edgeActors = map[edge]Actor{
	{StatusPendingStore, StatusPricing}:        ActorStore,
	{StatusPendingStore, StatusRejectedStore}:  ActorStore,
	{StatusPricing, StatusPendingAdmin}:        ActorStore,
	{StatusPendingAdmin, StatusPendingConfirm}: ActorAdmin,
	{StatusPendingConfirm, StatusConfirmed}:    ActorCustomer,
	{StatusConfirmed, StatusAssigned}:          ActorAdmin,
	{StatusRejectedDriver, StatusAssigned}:     ActorAdmin,
	{StatusAssigned, StatusAcceptedDriver}:     ActorDriver,
	{StatusAssigned, StatusRejectedDriver}:     ActorDriver,
	{StatusAcceptedDriver, StatusPreparing}:    ActorStore,
	{StatusPreparing, StatusInDelivery}:        ActorDriver,
	{StatusInDelivery, StatusCompleted}:        ActorDriver,
}

// AllowedActor returns the role entitled to drive the given edge.
func AllowedActor(from, to Status) (Actor, bool) {
	a, ok := edgeActors[edge{from, to}]
	return a, ok
}
