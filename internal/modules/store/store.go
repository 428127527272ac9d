// README: Merchant persistence and lookups.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fastdelivery/internal/types"
)

var ErrNotFound = errors.New("store not found")

// Repo is the persistence port for merchants.
type Repo interface {
	Get(ctx context.Context, id types.ID) (*Store, error)
	ListApproved(ctx context.Context) ([]*Store, error)
}

type PgRepo struct {
	db *pgxpool.Pool
}

func NewPgRepo(db *pgxpool.Pool) *PgRepo {
	return &PgRepo{db: db}
}

func (r *PgRepo) Get(ctx context.Context, id types.ID) (*Store, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, business_name, phone, address, is_approved, created_at
		FROM stores WHERE id = $1`, string(id))
	return scan(row)
}

func (r *PgRepo) ListApproved(ctx context.Context) ([]*Store, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, business_name, phone, address, is_approved, created_at
		FROM stores
		WHERE is_approved
		ORDER BY business_name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Store
	for rows.Next() {
		s, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func scan(row pgx.Row) (*Store, error) {
	var s Store
	var createdAt time.Time
	err := row.Scan(&s.ID, &s.BusinessName, &s.Phone, &s.Address, &s.IsApproved, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.CreatedAt = createdAt
	return &s, nil
}
