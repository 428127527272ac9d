// README: Order persistence port and its PostgreSQL implementation.
package order

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"fastdelivery/internal/types"
)

// DriverRef is the denormalized driver pair written on assignment and
// cleared together on rejection.
type DriverRef struct {
	ID   types.ID
	Name string
}

// StatusUpdate is a conditional transition write. The write succeeds only if
// the order still has the expected status and version; otherwise the caller
// sees a conflict and must re-read.
type StatusUpdate struct {
	OrderID        types.ID
	From           Status
	To             Status
	Version        int
	ProductPrice   *types.Money
	DeliveryFee    *types.Money
	TotalPrice     *types.Money
	SetDriver      *DriverRef
	ClearDriver    bool
	SetConfirmedAt bool
	SetCompletedAt bool
}

// ListFilter narrows admin/store/driver order listings.
type ListFilter struct {
	StoreID  *types.ID
	DriverID *types.ID
	Status   *Status
	Limit    int
	Offset   int
}

// Store is the persistence port. Apply performs the optimistic status write
// and the history append in one transaction; there is no way to update or
// delete a history entry through this interface.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id types.ID) (*Order, error)
	GetByNumber(ctx context.Context, orderNumber string) (*Order, error)
	Apply(ctx context.Context, upd StatusUpdate, entry HistoryEntry) (bool, error)
	History(ctx context.Context, id types.ID) ([]HistoryEntry, error)
	ActiveByPhone(ctx context.Context, phone string) (*Order, error)
	List(ctx context.Context, f ListFilter) ([]*Order, error)
}

// PgStore is the production Store backed by pgxpool.
type PgStore struct {
	db *pgxpool.Pool
}

func NewPgStore(db *pgxpool.Pool) *PgStore {
	return &PgStore{db: db}
}

const orderColumns = `
	id, order_number,
	customer_name, customer_phone, customer_address,
	delivery_lat, delivery_lng,
	content_kind, content, voice_url,
	store_id, store_name,
	product_price, delivery_fee, total_price,
	driver_id, driver_name,
	status, status_version,
	created_at, confirmed_at, completed_at`

func (s *PgStore) Create(ctx context.Context, o *Order) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO orders (
			id, order_number,
			customer_name, customer_phone, customer_address,
			delivery_lat, delivery_lng,
			content_kind, content, voice_url,
			store_id, store_name,
			product_price, delivery_fee, total_price,
			driver_id, driver_name,
			status, status_version, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16, $17, $18, $19, $20
		)`,
		string(o.ID), o.OrderNumber,
		o.Customer.Name, o.Customer.Phone, o.Customer.Address,
		o.DeliveryLocation.Lat, o.DeliveryLocation.Lng,
		string(o.Kind), o.Content, o.VoiceURL,
		string(o.StoreID), o.StoreName,
		o.ProductPrice.Amount, o.DeliveryFee.Amount, o.TotalPrice.Amount,
		toStringPtr(o.DriverID), o.DriverName,
		string(o.Status), o.StatusVersion, o.CreatedAt,
	)
	if err != nil {
		return err
	}
	for _, e := range o.History {
		if err := appendHistory(ctx, tx, o.ID, e); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PgStore) Get(ctx context.Context, id types.ID) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, string(id))
	return s.scanWithHistory(ctx, row)
}

func (s *PgStore) GetByNumber(ctx context.Context, orderNumber string) (*Order, error) {
	row := s.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE order_number = $1`, orderNumber)
	return s.scanWithHistory(ctx, row)
}

// Apply writes the transition and its ledger entry in one transaction.
// Returns false without writing anything when the optimistic check fails.
func (s *PgStore) Apply(ctx context.Context, upd StatusUpdate, entry HistoryEntry) (bool, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var driverID, driverName *string
	if upd.SetDriver != nil {
		id := string(upd.SetDriver.ID)
		driverID, driverName = &id, &upd.SetDriver.Name
	}
	tag, err := tx.Exec(ctx, `
		UPDATE orders
		SET status = $1,
		    status_version = status_version + 1,
		    product_price = COALESCE($2, product_price),
		    delivery_fee = COALESCE($3, delivery_fee),
		    total_price = COALESCE($4, total_price),
		    driver_id = CASE WHEN $5 THEN NULL ELSE COALESCE($6, driver_id) END,
		    driver_name = CASE WHEN $5 THEN NULL ELSE COALESCE($7, driver_name) END,
		    confirmed_at = CASE WHEN $8 THEN NOW() ELSE confirmed_at END,
		    completed_at = CASE WHEN $9 THEN NOW() ELSE completed_at END
		WHERE id = $10 AND status = $11 AND status_version = $12`,
		string(upd.To),
		moneyPtr(upd.ProductPrice), moneyPtr(upd.DeliveryFee), moneyPtr(upd.TotalPrice),
		upd.ClearDriver, driverID, driverName,
		upd.SetConfirmedAt, upd.SetCompletedAt,
		string(upd.OrderID), string(upd.From), upd.Version,
	)
	if err != nil {
		return false, err
	}
	if tag.RowsAffected() != 1 {
		return false, nil
	}
	if err := appendHistory(ctx, tx, upd.OrderID, entry); err != nil {
		return false, err
	}
	return true, tx.Commit(ctx)
}

func (s *PgStore) History(ctx context.Context, id types.ID) ([]HistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
		SELECT status, actor, recorded_at
		FROM order_status_history
		WHERE order_id = $1
		ORDER BY seq`, string(id))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.Status, &e.Actor, &e.At); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PgStore) ActiveByPhone(ctx context.Context, phone string) (*Order, error) {
	row := s.db.QueryRow(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE customer_phone = $1
		  AND status NOT IN ('completed','cancelled','rejected_store','rejected_driver')
		ORDER BY created_at DESC
		LIMIT 1`, phone)
	return s.scanWithHistory(ctx, row)
}

func (s *PgStore) List(ctx context.Context, f ListFilter) ([]*Order, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE ($1::text IS NULL OR store_id = $1)
		  AND ($2::text IS NULL OR driver_id = $2)
		  AND ($3::text IS NULL OR status = $3)
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5`,
		toStringPtr(f.StoreID), toStringPtr(f.DriverID), statusPtr(f.Status), limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *PgStore) scanWithHistory(ctx context.Context, row pgx.Row) (*Order, error) {
	o, err := scanOrder(row)
	if err != nil {
		return nil, err
	}
	o.History, err = s.History(ctx, o.ID)
	if err != nil {
		return nil, err
	}
	return o, nil
}

func scanOrder(row pgx.Row) (*Order, error) {
	var o Order
	var driverID, driverName *string
	var confirmedAt, completedAt *time.Time

	err := row.Scan(
		&o.ID, &o.OrderNumber,
		&o.Customer.Name, &o.Customer.Phone, &o.Customer.Address,
		&o.DeliveryLocation.Lat, &o.DeliveryLocation.Lng,
		&o.Kind, &o.Content, &o.VoiceURL,
		&o.StoreID, &o.StoreName,
		&o.ProductPrice.Amount, &o.DeliveryFee.Amount, &o.TotalPrice.Amount,
		&driverID, &driverName,
		&o.Status, &o.StatusVersion,
		&o.CreatedAt, &confirmedAt, &completedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if driverID != nil {
		d := types.ID(*driverID)
		o.DriverID = &d
		o.DriverName = driverName
	}
	o.ConfirmedAt = confirmedAt
	o.CompletedAt = completedAt
	o.ProductPrice.Currency = currency
	o.DeliveryFee.Currency = currency
	o.TotalPrice.Currency = currency
	return &o, nil
}

func appendHistory(ctx context.Context, tx pgx.Tx, orderID types.ID, e HistoryEntry) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO order_status_history (order_id, status, actor, recorded_at)
		VALUES ($1, $2, $3, $4)`,
		string(orderID), string(e.Status), string(e.Actor), e.At,
	)
	return err
}

func toStringPtr(v *types.ID) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func moneyPtr(v *types.Money) *int64 {
	if v == nil {
		return nil
	}
	n := v.Amount
	return &n
}

func statusPtr(v *Status) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}
