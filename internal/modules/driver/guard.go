// README: Adapter exposing the driver service as the order module's allocation guard.
package driver

import (
	"context"
	"errors"

	"fastdelivery/internal/modules/order"
	"fastdelivery/internal/types"
)

// Guard wraps Service with the order module's error taxonomy: unknown driver
// maps to not-found, every eligibility or slot failure to a conflict the
// caller can surface as a retryable 409.
type Guard struct {
	svc *Service
}

func NewGuard(svc *Service) Guard {
	return Guard{svc: svc}
}

func (g Guard) Candidate(ctx context.Context, driverID types.ID) (string, error) {
	name, err := g.svc.Candidate(ctx, driverID)
	return name, translate(err)
}

func (g Guard) Claim(ctx context.Context, driverID, orderID types.ID) error {
	return translate(g.svc.Claim(ctx, driverID, orderID))
}

func (g Guard) Release(ctx context.Context, driverID, orderID types.ID) error {
	return translate(g.svc.Release(ctx, driverID, orderID))
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return order.ErrNotFound
	case errors.Is(err, ErrNotApproved), errors.Is(err, ErrOffline), errors.Is(err, ErrBusy):
		return order.ErrConflict
	default:
		return err
	}
}
