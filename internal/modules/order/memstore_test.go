// README: In-memory test doubles for the order service.
package order

import (
	"context"
	"sync"

	"fastdelivery/internal/types"
)

// memStore is an in-memory Store with the same optimistic-concurrency
// semantics as the PostgreSQL implementation.
type memStore struct {
	mu     sync.Mutex
	orders map[types.ID]*Order
}

func newMemStore() *memStore {
	return &memStore{orders: make(map[types.ID]*Order)}
}

func (m *memStore) Create(ctx context.Context, o *Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := cloneOrder(o)
	m.orders[o.ID] = cp
	return nil
}

func (m *memStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneOrder(o), nil
}

func (m *memStore) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.OrderNumber == orderNumber {
			return cloneOrder(o), nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) Apply(ctx context.Context, upd StatusUpdate, entry HistoryEntry) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[upd.OrderID]
	if !ok {
		return false, ErrNotFound
	}
	if o.Status != upd.From || o.StatusVersion != upd.Version {
		return false, nil
	}
	o.Status = upd.To
	o.StatusVersion++
	if upd.ProductPrice != nil {
		o.ProductPrice = *upd.ProductPrice
	}
	if upd.DeliveryFee != nil {
		o.DeliveryFee = *upd.DeliveryFee
	}
	if upd.TotalPrice != nil {
		o.TotalPrice = *upd.TotalPrice
	}
	if upd.ClearDriver {
		o.DriverID = nil
		o.DriverName = nil
	} else if upd.SetDriver != nil {
		id, name := upd.SetDriver.ID, upd.SetDriver.Name
		o.DriverID = &id
		o.DriverName = &name
	}
	if upd.SetConfirmedAt {
		at := entry.At
		o.ConfirmedAt = &at
	}
	if upd.SetCompletedAt {
		at := entry.At
		o.CompletedAt = &at
	}
	o.History = append(o.History, entry)
	return true, nil
}

func (m *memStore) History(ctx context.Context, id types.ID) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]HistoryEntry, len(o.History))
	copy(out, o.History)
	return out, nil
}

func (m *memStore) ActiveByPhone(ctx context.Context, phone string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var latest *Order
	for _, o := range m.orders {
		if o.Customer.Phone != phone || IsTerminal(o.Status) || o.Status == StatusRejectedDriver {
			continue
		}
		if latest == nil || o.CreatedAt.After(latest.CreatedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return cloneOrder(latest), nil
}

func (m *memStore) List(ctx context.Context, f ListFilter) ([]*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*Order
	for _, o := range m.orders {
		if f.StoreID != nil && o.StoreID != *f.StoreID {
			continue
		}
		if f.DriverID != nil && (o.DriverID == nil || *o.DriverID != *f.DriverID) {
			continue
		}
		if f.Status != nil && o.Status != *f.Status {
			continue
		}
		out = append(out, cloneOrder(o))
	}
	return out, nil
}

func cloneOrder(o *Order) *Order {
	cp := *o
	cp.History = make([]HistoryEntry, len(o.History))
	copy(cp.History, o.History)
	return &cp
}

// seqStub hands out sequence numbers without Redis.
type seqStub struct {
	mu sync.Mutex
	n  int64
}

func (s *seqStub) Next(ctx context.Context, day string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return s.n, nil
}

// guardStub mimics the driver allocation guard: a named set of drivers,
// each with a single conditionally-written active slot.
type guardStub struct {
	mu    sync.Mutex
	names map[types.ID]string
	slots map[types.ID]types.ID
}

func newGuardStub(driverIDs ...types.ID) *guardStub {
	g := &guardStub{
		names: make(map[types.ID]string),
		slots: make(map[types.ID]types.ID),
	}
	for _, id := range driverIDs {
		g.names[id] = "Driver " + string(id)
	}
	return g
}

func (g *guardStub) Candidate(ctx context.Context, driverID types.ID) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	name, ok := g.names[driverID]
	if !ok {
		return "", ErrNotFound
	}
	if _, busy := g.slots[driverID]; busy {
		return "", ErrConflict
	}
	return name, nil
}

func (g *guardStub) Claim(ctx context.Context, driverID, orderID types.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.names[driverID]; !ok {
		return ErrNotFound
	}
	if _, busy := g.slots[driverID]; busy {
		return ErrConflict
	}
	g.slots[driverID] = orderID
	return nil
}

func (g *guardStub) Release(ctx context.Context, driverID, orderID types.ID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.slots[driverID] == orderID {
		delete(g.slots, driverID)
	}
	return nil
}

func (g *guardStub) holding(driverID types.ID) (types.ID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.slots[driverID]
	return id, ok
}

// eventSink records published events in order.
type eventSink struct {
	mu     sync.Mutex
	events []Event
}

func (e *eventSink) Publish(ctx context.Context, evt Event) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, evt)
}

func (e *eventSink) names() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]string, 0, len(e.events))
	for _, evt := range e.events {
		out = append(out, evt.Name)
	}
	return out
}
