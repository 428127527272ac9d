// README: Driver persistence port and its PostgreSQL implementation.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fastdelivery/internal/types"
)

// Store is the persistence port. Claim and Release are conditional writes:
// they only succeed when current_order holds the expected value, which is
// what makes the single-active-order invariant hold under races.
type Store interface {
	Get(ctx context.Context, id types.ID) (*Driver, error)
	List(ctx context.Context, onlineOnly bool) ([]*Driver, error)
	SetOnline(ctx context.Context, id types.ID, online bool) error
	UpdateProfile(ctx context.Context, id types.ID, upd ProfileUpdate) error
	Claim(ctx context.Context, id, orderID types.ID) (bool, error)
	Release(ctx context.Context, id, orderID types.ID) (bool, error)
}

type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const driverColumns = `id, name, phone, vehicle, is_online, is_approved, current_order, push_token, created_at`

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id))
	return scanDriver(row)
}

func (s *PgStore) List(ctx context.Context, onlineOnly bool) ([]*Driver, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+driverColumns+`
		FROM drivers
		WHERE NOT $1 OR is_online
		ORDER BY name`, onlineOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Driver
	for rows.Next() {
		d, err := scanDriver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *PgStore) SetOnline(ctx context.Context, id types.ID, online bool) error {
	tag, err := s.db.Exec(ctx, `UPDATE drivers SET is_online = $2 WHERE id = $1`, string(id), online)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) UpdateProfile(ctx context.Context, id types.ID, upd ProfileUpdate) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET name = COALESCE($2, name),
		    phone = COALESCE($3, phone),
		    vehicle = COALESCE($4, vehicle),
		    push_token = COALESCE($5, push_token)
		WHERE id = $1`,
		string(id), upd.Name, upd.Phone, upd.Vehicle, upd.PushToken)
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return ErrNotFound
	}
	return nil
}

func (s *PgStore) Claim(ctx context.Context, id, orderID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET current_order = $2
		WHERE id = $1 AND current_order IS NULL`,
		string(id), string(orderID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (s *PgStore) Release(ctx context.Context, id, orderID types.ID) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET current_order = NULL
		WHERE id = $1 AND current_order = $2`,
		string(id), string(orderID))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	var currentOrder, pushToken *string
	var createdAt time.Time
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.Vehicle, &d.IsOnline, &d.IsApproved, &currentOrder, &pushToken, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if currentOrder != nil {
		id := types.ID(*currentOrder)
		d.CurrentOrder = &id
	}
	d.PushToken = pushToken
	d.CreatedAt = createdAt
	return &d, nil
}
