// README: Driver service: availability, profile, and the allocation guard.
package driver

import (
	"context"
	"errors"

	"fastdelivery/internal/types"
)

var (
	ErrNotFound    = errors.New("driver not found")
	ErrNotApproved = errors.New("driver not approved")
	ErrOffline     = errors.New("driver offline")
	ErrBusy        = errors.New("driver has an active order")
)

// AdminFeed receives driver presence changes for the admin dashboard.
type AdminFeed interface {
	DriverAvailability(ctx context.Context, d *Driver)
}

type Service struct {
	store Store
	feed  AdminFeed
}

func NewService(store Store, feed AdminFeed) *Service {
	return &Service{store: store, feed: feed}
}

func (s *Service) Get(ctx context.Context, id types.ID) (*Driver, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, onlineOnly bool) ([]*Driver, error) {
	return s.store.List(ctx, onlineOnly)
}

// SetAvailability flips the driver online/offline and tells the admins.
func (s *Service) SetAvailability(ctx context.Context, id types.ID, online bool) error {
	if err := s.store.SetOnline(ctx, id, online); err != nil {
		return err
	}
	if s.feed != nil {
		d, err := s.store.Get(ctx, id)
		if err == nil {
			s.feed.DriverAvailability(ctx, d)
		}
	}
	return nil
}

func (s *Service) UpdateProfile(ctx context.Context, id types.ID, upd ProfileUpdate) error {
	return s.store.UpdateProfile(ctx, id, upd)
}

// Candidate validates an assignment target: approved, online, idle.
func (s *Service) Candidate(ctx context.Context, id types.ID) (string, error) {
	d, err := s.store.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !d.IsApproved {
		return "", ErrNotApproved
	}
	if !d.IsOnline {
		return "", ErrOffline
	}
	if d.CurrentOrder != nil {
		return "", ErrBusy
	}
	return d.Name, nil
}

// Claim takes the driver's single active slot for orderID. ErrBusy when the
// slot is already held, however briefly; the caller decides whether to
// compensate.
func (s *Service) Claim(ctx context.Context, id, orderID types.ID) error {
	ok, err := s.store.Claim(ctx, id, orderID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrBusy
	}
	return nil
}

// Release frees the slot if this order holds it. Releasing a slot the order
// does not hold is a no-op, which makes compensation and double-release safe.
func (s *Service) Release(ctx context.Context, id, orderID types.ID) error {
	_, err := s.store.Release(ctx, id, orderID)
	return err
}
