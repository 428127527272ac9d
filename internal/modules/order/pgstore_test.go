// README: PostgreSQL store tests; skipped unless a test database is configured.
package order

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"fastdelivery/internal/types"
)

func setupPgStore(t *testing.T) *PgStore {
	t.Helper()

	dsn := os.Getenv("DELIVERY_TEST_DSN")
	if dsn == "" {
		t.Skip("DELIVERY_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	require.NoError(t, err, "connect db")
	t.Cleanup(func() { db.Close() })

	require.NoError(t, applyMigration(ctx, db), "apply migration")

	_, err = db.Exec(ctx, "TRUNCATE TABLE order_status_history, orders, drivers, stores CASCADE")
	require.NoError(t, err, "truncate tables")

	_, err = db.Exec(ctx, `
		INSERT INTO stores (id, business_name, phone, address, is_approved)
		VALUES ('s1', 'Napoli Pizza', '5550001111', '1 Main St', TRUE)`)
	require.NoError(t, err, "seed store")

	return NewPgStore(db)
}

func seedOrder(t *testing.T, store *PgStore) *Order {
	t.Helper()
	now := time.Now().UTC().Truncate(time.Millisecond)
	o := &Order{
		ID:           types.ID(uuid.NewString()),
		OrderNumber:  FormatOrderNumber(now, 1),
		Customer:     Customer{Name: "Maria", Phone: "5551112222", Address: "12 Harbour St"},
		Kind:         ContentText,
		Content:      "two pizzas",
		StoreID:      "s1",
		StoreName:    "Napoli Pizza",
		ProductPrice: types.Money{Currency: currency},
		DeliveryFee:  types.Money{Currency: currency},
		TotalPrice:   types.Money{Currency: currency},
		Status:       StatusPendingStore,
		History:      []HistoryEntry{{Status: StatusPendingStore, Actor: ActorSystem, At: now}},
		CreatedAt:    now,
	}
	require.NoError(t, store.Create(context.Background(), o), "create order")
	return o
}

func TestPgStoreRoundTrip(t *testing.T) {
	store := setupPgStore(t)
	ctx := context.Background()

	o := seedOrder(t, store)

	got, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, o.OrderNumber, got.OrderNumber)
	require.Equal(t, StatusPendingStore, got.Status)
	require.Equal(t, 0, got.StatusVersion)
	require.Len(t, got.History, 1)
	require.Equal(t, currency, got.TotalPrice.Currency)

	byNum, err := store.GetByNumber(ctx, o.OrderNumber)
	require.NoError(t, err)
	require.Equal(t, o.ID, byNum.ID)

	_, err = store.Get(ctx, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestPgStoreApplyOptimistic(t *testing.T) {
	store := setupPgStore(t)
	ctx := context.Background()

	o := seedOrder(t, store)
	entry := HistoryEntry{Status: StatusPricing, Actor: ActorStore, At: time.Now().UTC()}

	ok, err := store.Apply(ctx, StatusUpdate{
		OrderID: o.ID, From: StatusPendingStore, To: StatusPricing, Version: 0,
	}, entry)
	require.NoError(t, err)
	require.True(t, ok, "first apply must win")

	// Replaying the same expected (status, version) pair must fail and must
	// not append a second ledger entry.
	ok, err = store.Apply(ctx, StatusUpdate{
		OrderID: o.ID, From: StatusPendingStore, To: StatusPricing, Version: 0,
	}, entry)
	require.NoError(t, err)
	require.False(t, ok, "stale apply must lose")

	got, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPricing, got.Status)
	require.Equal(t, 1, got.StatusVersion)
	require.Len(t, got.History, 2)
}

func TestPgStoreDriverAndPriceWrites(t *testing.T) {
	store := setupPgStore(t)
	ctx := context.Background()

	o := seedOrder(t, store)
	price := types.Money{Amount: 1800, Currency: currency}

	ok, err := store.Apply(ctx, StatusUpdate{
		OrderID: o.ID, From: StatusPendingStore, To: StatusPricing, Version: 0,
	}, HistoryEntry{Status: StatusPricing, Actor: ActorStore, At: time.Now().UTC()})
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.Apply(ctx, StatusUpdate{
		OrderID: o.ID, From: StatusPricing, To: StatusPendingAdmin, Version: 1,
		ProductPrice: &price,
	}, HistoryEntry{Status: StatusPendingAdmin, Actor: ActorStore, At: time.Now().UTC()})
	require.NoError(t, err)
	require.True(t, ok)

	got, err := store.Get(ctx, o.ID)
	require.NoError(t, err)
	require.Equal(t, int64(1800), got.ProductPrice.Amount)
	require.Nil(t, got.DriverID)
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	for _, stmt := range splitSQL(stripSQLComments(string(content))) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}
