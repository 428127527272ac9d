// README: Order service: validates transitions, commits them, and fans out events.
package order

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"fastdelivery/internal/types"
)

const currency = "EUR"

var (
	ErrNotFound          = errors.New("order not found")
	ErrConflict          = errors.New("order state conflict")
	ErrInvalidTransition = errors.New("invalid state transition")
	ErrForbidden         = errors.New("actor not allowed for this transition")
	ErrBadRequest        = errors.New("bad request")
)

// DriverGuard enforces the one-active-order-per-driver invariant.
// Implementations return ErrNotFound for unknown drivers and ErrConflict
// when the driver cannot take (or no longer holds) the order.
type DriverGuard interface {
	// Candidate checks the driver is approved, online, and idle, and
	// returns the driver's display name for denormalization.
	Candidate(ctx context.Context, driverID types.ID) (string, error)
	// Claim sets the driver's current order from empty to orderID.
	Claim(ctx context.Context, driverID, orderID types.ID) error
	// Release clears the driver's current order if it equals orderID.
	Release(ctx context.Context, driverID, orderID types.ID) error
}

// Geocoder resolves a street address to coordinates. Best-effort: creation
// proceeds without coordinates when it fails.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (types.Point, error)
}

// Deps carries the service's outbound ports. Broadcast, Notify, Geo, and Log
// may be nil (tests, partial wiring); Seq and Guard are required in
// production.
type Deps struct {
	Seq       Sequencer
	Guard     DriverGuard
	Geo       Geocoder
	Broadcast Broadcaster
	Notify    Notifier
	Log       *slog.Logger
}

type Service struct {
	store Store
	deps  Deps
}

func NewService(store Store, deps Deps) *Service {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Service{store: store, deps: deps}
}

type CreateCommand struct {
	Customer Customer
	StoreID  types.ID
	Kind     ContentKind
	Content  string
	VoiceURL *string
}

// Create registers a new order in pending_store and announces it to the
// store and the admins. The store name is denormalized by the caller, which
// has already validated the store exists and is approved.
func (s *Service) Create(ctx context.Context, cmd CreateCommand, storeName string) (*Order, error) {
	if cmd.Customer.Name == "" || cmd.Customer.Address == "" || !validPhone(cmd.Customer.Phone) {
		return nil, ErrBadRequest
	}
	if cmd.StoreID == "" || storeName == "" {
		return nil, ErrBadRequest
	}
	kind := cmd.Kind
	if kind == "" {
		kind = ContentText
	}
	if kind != ContentText && kind != ContentVoice {
		return nil, ErrBadRequest
	}

	now := time.Now()
	num, err := s.deps.Seq.Next(ctx, now.Format("20060102"))
	if err != nil {
		return nil, err
	}

	loc := types.Point{}
	if s.deps.Geo != nil {
		if p, err := s.deps.Geo.Geocode(ctx, cmd.Customer.Address); err == nil {
			loc = p
		} else {
			s.deps.Log.Warn("geocode failed, creating order without coordinates",
				"order_number", FormatOrderNumber(now, num), "err", err)
		}
	}

	o := &Order{
		ID:               types.ID(uuid.NewString()),
		OrderNumber:      FormatOrderNumber(now, num),
		Customer:         cmd.Customer,
		DeliveryLocation: loc,
		Kind:             kind,
		Content:          cmd.Content,
		VoiceURL:         cmd.VoiceURL,
		StoreID:          cmd.StoreID,
		StoreName:        storeName,
		ProductPrice:     types.Money{Currency: currency},
		DeliveryFee:      types.Money{Currency: currency},
		TotalPrice:       types.Money{Currency: currency},
		Status:           StatusPendingStore,
		StatusVersion:    0,
		History:          []HistoryEntry{{Status: StatusPendingStore, Actor: ActorSystem, At: now}},
		CreatedAt:        now,
	}
	if err := s.store.Create(ctx, o); err != nil {
		return nil, err
	}

	s.publish(ctx, o, EventNew, map[string]any{
		"storeName":    o.StoreName,
		"customer":     map[string]string{"name": o.Customer.Name, "phone": o.Customer.Phone, "address": o.Customer.Address},
		"orderType":    string(o.Kind),
		"orderContent": o.Content,
	})
	return o, nil
}

// StoreAccept moves pending_store to pricing.
func (s *Service) StoreAccept(ctx context.Context, orderID, storeID types.ID) error {
	o, err := s.ownedByStore(ctx, orderID, storeID)
	if err != nil {
		return err
	}
	if err := s.apply(ctx, o, StatusPricing, ActorStore, StatusUpdate{}); err != nil {
		return err
	}
	s.publish(ctx, o, EventStatusChanged, nil)
	return nil
}

// StoreReject moves pending_store to the terminal rejected_store.
func (s *Service) StoreReject(ctx context.Context, orderID, storeID types.ID) error {
	o, err := s.ownedByStore(ctx, orderID, storeID)
	if err != nil {
		return err
	}
	if err := s.apply(ctx, o, StatusRejectedStore, ActorStore, StatusUpdate{}); err != nil {
		return err
	}
	s.publish(ctx, o, EventRejectedStore, nil)
	s.notifyAsync(o)
	return nil
}

// SetProductPrice records the store's product price and hands the order to
// the admin for the delivery fee.
func (s *Service) SetProductPrice(ctx context.Context, orderID, storeID types.ID, price types.Money) error {
	if price.Amount <= 0 {
		return ErrBadRequest
	}
	o, err := s.ownedByStore(ctx, orderID, storeID)
	if err != nil {
		return err
	}
	price.Currency = currency
	if err := s.apply(ctx, o, StatusPendingAdmin, ActorStore, StatusUpdate{ProductPrice: &price}); err != nil {
		return err
	}
	o.ProductPrice = price
	s.publish(ctx, o, EventPendingAdmin, map[string]any{"productPrice": price.Amount})
	return nil
}

// SetDeliveryFee fixes the total price and asks the customer to confirm.
// totalPrice is derived here and never independently mutated afterwards.
func (s *Service) SetDeliveryFee(ctx context.Context, orderID types.ID, fee types.Money) error {
	if fee.Amount < 0 {
		return ErrBadRequest
	}
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	fee.Currency = currency
	total := o.ProductPrice.Add(fee)
	upd := StatusUpdate{DeliveryFee: &fee, TotalPrice: &total}
	if err := s.apply(ctx, o, StatusPendingConfirm, ActorAdmin, upd); err != nil {
		return err
	}
	o.DeliveryFee = fee
	o.TotalPrice = total
	s.publish(ctx, o, EventPriceReady, map[string]any{
		"productPrice": o.ProductPrice.Amount,
		"deliveryFee":  o.DeliveryFee.Amount,
		"totalPrice":   o.TotalPrice.Amount,
	})
	s.notifyAsync(o)
	return nil
}

// ConfirmPrice is the customer's answer to the quoted total: confirm moves
// the order to confirmed, decline cancels it. The requester must present the
// phone the order was created with.
func (s *Service) ConfirmPrice(ctx context.Context, orderID types.ID, phone string, confirm bool) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if o.Customer.Phone != phone {
		return ErrForbidden
	}
	if confirm {
		if err := s.apply(ctx, o, StatusConfirmed, ActorCustomer, StatusUpdate{SetConfirmedAt: true}); err != nil {
			return err
		}
		s.publish(ctx, o, EventStatusChanged, map[string]any{"totalPrice": o.TotalPrice.Amount})
		s.notifyAsync(o)
		return nil
	}
	if err := s.apply(ctx, o, StatusCancelled, ActorCustomer, StatusUpdate{}); err != nil {
		return err
	}
	s.publish(ctx, o, EventCancelled, nil)
	s.notifyAsync(o)
	return nil
}

// AssignDriver hands a confirmed (or driver-rejected) order to an approved,
// online, idle driver. The driver's current order is not claimed here; that
// happens when the driver accepts.
func (s *Service) AssignDriver(ctx context.Context, orderID, driverID types.ID) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	name, err := s.deps.Guard.Candidate(ctx, driverID)
	if err != nil {
		return err
	}
	ref := DriverRef{ID: driverID, Name: name}
	if err := s.apply(ctx, o, StatusAssigned, ActorAdmin, StatusUpdate{SetDriver: &ref}); err != nil {
		return err
	}
	o.DriverID = &ref.ID
	o.DriverName = &ref.Name
	s.publish(ctx, o, EventAssigned, map[string]any{
		"driverName":  ref.Name,
		"pickup":      map[string]string{"storeName": o.StoreName},
		"delivery":    o.Customer.Address,
		"totalPrice":  o.TotalPrice.Amount,
		"deliveryFee": o.DeliveryFee.Amount,
	})
	return nil
}

// DriverAccept claims the driver's single active slot, then commits the
// transition. If the order write loses a race, the claim is released again
// (compensating step), so the slot never leaks.
func (s *Service) DriverAccept(ctx context.Context, orderID, driverID types.ID) error {
	o, err := s.assignedToDriver(ctx, orderID, driverID)
	if err != nil {
		return err
	}
	if err := s.deps.Guard.Claim(ctx, driverID, orderID); err != nil {
		return err
	}
	if err := s.apply(ctx, o, StatusAcceptedDriver, ActorDriver, StatusUpdate{}); err != nil {
		if rerr := s.deps.Guard.Release(ctx, driverID, orderID); rerr != nil {
			s.deps.Log.Error("release after failed accept", "order_id", o.ID, "driver_id", driverID, "err", rerr)
		}
		return err
	}
	s.publish(ctx, o, EventDriverAccept, map[string]any{"driverName": deref(o.DriverName)})
	return nil
}

// DriverReject clears the assignment and returns the order to the admin.
// The rejecting driver never held the order, so there is nothing to release.
func (s *Service) DriverReject(ctx context.Context, orderID, driverID types.ID) error {
	o, err := s.assignedToDriver(ctx, orderID, driverID)
	if err != nil {
		return err
	}
	rejectedName := deref(o.DriverName)
	if err := s.apply(ctx, o, StatusRejectedDriver, ActorDriver, StatusUpdate{ClearDriver: true}); err != nil {
		return err
	}
	o.DriverID = nil
	o.DriverName = nil
	s.publish(ctx, o, EventDriverReject, map[string]any{"driverName": rejectedName})
	return nil
}

// MarkPreparing is the store's acknowledgement that it started preparing.
func (s *Service) MarkPreparing(ctx context.Context, orderID, storeID types.ID) error {
	o, err := s.ownedByStore(ctx, orderID, storeID)
	if err != nil {
		return err
	}
	if err := s.apply(ctx, o, StatusPreparing, ActorStore, StatusUpdate{}); err != nil {
		return err
	}
	s.publish(ctx, o, EventStatusChanged, nil)
	return nil
}

// StartDelivery moves preparing to in_delivery.
func (s *Service) StartDelivery(ctx context.Context, orderID, driverID types.ID) error {
	o, err := s.assignedToDriver(ctx, orderID, driverID)
	if err != nil {
		return err
	}
	if err := s.apply(ctx, o, StatusInDelivery, ActorDriver, StatusUpdate{}); err != nil {
		return err
	}
	s.publish(ctx, o, EventStatusChanged, nil)
	s.notifyAsync(o)
	return nil
}

// Complete finishes the delivery and frees the driver's active slot.
func (s *Service) Complete(ctx context.Context, orderID, driverID types.ID) error {
	o, err := s.assignedToDriver(ctx, orderID, driverID)
	if err != nil {
		return err
	}
	if err := s.apply(ctx, o, StatusCompleted, ActorDriver, StatusUpdate{SetCompletedAt: true}); err != nil {
		return err
	}
	if err := s.deps.Guard.Release(ctx, driverID, orderID); err != nil {
		s.deps.Log.Error("release driver on completion", "order_id", o.ID, "driver_id", driverID, "err", err)
	}
	// Completion goes out twice: clients follow the generic status feed and
	// the completion event as separate subscriptions.
	s.publish(ctx, o, EventStatusChanged, nil)
	s.publish(ctx, o, EventCompleted, nil)
	s.notifyAsync(o)
	return nil
}

// AdminCancel cancels any non-terminal order. The order keeps its driver
// fields for the record, but an assigned driver's active slot is freed.
func (s *Service) AdminCancel(ctx context.Context, orderID types.ID, reason string) error {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if err := s.apply(ctx, o, StatusCancelled, ActorAdmin, StatusUpdate{}); err != nil {
		return err
	}
	if o.DriverID != nil {
		if err := s.deps.Guard.Release(ctx, *o.DriverID, orderID); err != nil {
			s.deps.Log.Error("release driver on cancel", "order_id", o.ID, "driver_id", *o.DriverID, "err", err)
		}
	}
	s.publish(ctx, o, EventCancelled, map[string]any{"reason": reason})
	s.notifyAsync(o)
	return nil
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Order, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	return s.store.GetByNumber(ctx, orderNumber)
}

func (s *Service) ActiveByPhone(ctx context.Context, phone string) (*Order, error) {
	return s.store.ActiveByPhone(ctx, phone)
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]*Order, error) {
	return s.store.List(ctx, f)
}

// apply validates the edge and the acting role, then performs the optimistic
// commit together with the ledger append. On success the in-memory snapshot
// is advanced so callers can publish from it.
func (s *Service) apply(ctx context.Context, o *Order, to Status, actor Actor, upd StatusUpdate) error {
	if err := checkTransition(o.Status, to, actor); err != nil {
		return err
	}
	upd.OrderID = o.ID
	upd.From = o.Status
	upd.To = to
	upd.Version = o.StatusVersion
	entry := HistoryEntry{Status: to, Actor: actor, At: time.Now()}

	ok, err := s.store.Apply(ctx, upd, entry)
	if err != nil {
		return err
	}
	if !ok {
		return ErrConflict
	}
	o.Status = to
	o.StatusVersion++
	o.History = append(o.History, entry)
	if upd.SetConfirmedAt {
		o.ConfirmedAt = &entry.At
	}
	if upd.SetCompletedAt {
		o.CompletedAt = &entry.At
	}
	return nil
}

// checkTransition is the pure edge + role gate. Admin cancellation is legal
// from any non-terminal status; every other edge must be in the table and
// driven by its designated role.
func checkTransition(from, to Status, actor Actor) error {
	if to == StatusCancelled {
		if IsTerminal(from) {
			return ErrInvalidTransition
		}
		if !CanCancel(actor, from) {
			return ErrForbidden
		}
		return nil
	}
	if !CanTransition(from, to) {
		return ErrInvalidTransition
	}
	if a, ok := AllowedActor(from, to); !ok || a != actor {
		return ErrForbidden
	}
	return nil
}

func (s *Service) publish(ctx context.Context, o *Order, name string, data map[string]any) {
	if s.deps.Broadcast == nil {
		return
	}
	s.deps.Broadcast.Publish(ctx, Event{
		Name:          name,
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		NewStatus:     o.Status,
		StoreID:       o.StoreID,
		DriverID:      o.DriverID,
		CustomerPhone: o.Customer.Phone,
		Data:          data,
	})
}

// notifyAsync dispatches the push fallback after the response path, on a
// fresh context so request cancellation cannot reach it.
func (s *Service) notifyAsync(o *Order) {
	if s.deps.Notify == nil {
		return
	}
	snapshot := *o
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.deps.Notify.StatusChanged(ctx, &snapshot)
	}()
}

func (s *Service) ownedByStore(ctx context.Context, orderID, storeID types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.StoreID != storeID {
		return nil, ErrForbidden
	}
	return o, nil
}

func (s *Service) assignedToDriver(ctx context.Context, orderID, driverID types.ID) (*Order, error) {
	o, err := s.store.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o.DriverID == nil || *o.DriverID != driverID {
		return nil, ErrForbidden
	}
	return o, nil
}

func validPhone(phone string) bool {
	if len(phone) != 10 {
		return false
	}
	for _, c := range phone {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
