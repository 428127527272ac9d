// README: Handler tests: routing identity into services and mapping errors to status codes.
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"

	"fastdelivery/internal/http/middleware"
	"fastdelivery/internal/infra"
	"fastdelivery/internal/modules/order"
	"fastdelivery/internal/modules/store"
	"fastdelivery/internal/types"
)

// fakeOrderStore is a minimal in-memory order.Store.
type fakeOrderStore struct {
	mu     sync.Mutex
	orders map[types.ID]*order.Order
}

func newFakeOrderStore(orders ...*order.Order) *fakeOrderStore {
	s := &fakeOrderStore{orders: make(map[types.ID]*order.Order)}
	for _, o := range orders {
		s.orders[o.ID] = o
	}
	return s
}

func (s *fakeOrderStore) Create(ctx context.Context, o *order.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
	return nil
}

func (s *fakeOrderStore) Get(ctx context.Context, id types.ID) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (s *fakeOrderStore) GetByNumber(ctx context.Context, num string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.OrderNumber == num {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (s *fakeOrderStore) Apply(ctx context.Context, upd order.StatusUpdate, entry order.HistoryEntry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[upd.OrderID]
	if !ok {
		return false, order.ErrNotFound
	}
	if o.Status != upd.From || o.StatusVersion != upd.Version {
		return false, nil
	}
	o.Status = upd.To
	o.StatusVersion++
	o.History = append(o.History, entry)
	return true, nil
}

func (s *fakeOrderStore) History(ctx context.Context, id types.ID) ([]order.HistoryEntry, error) {
	return nil, nil
}

func (s *fakeOrderStore) ActiveByPhone(ctx context.Context, phone string) (*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.orders {
		if o.Customer.Phone == phone && !order.IsTerminal(o.Status) {
			cp := *o
			return &cp, nil
		}
	}
	return nil, order.ErrNotFound
}

func (s *fakeOrderStore) List(ctx context.Context, f order.ListFilter) ([]*order.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*order.Order
	for _, o := range s.orders {
		if f.StoreID != nil && o.StoreID != *f.StoreID {
			continue
		}
		cp := *o
		out = append(out, &cp)
	}
	return out, nil
}

type fakeSeq struct{}

func (fakeSeq) Next(ctx context.Context, day string) (int64, error) { return 7, nil }

type fakeRepo struct {
	stores map[types.ID]*store.Store
}

func (r *fakeRepo) Get(ctx context.Context, id types.ID) (*store.Store, error) {
	s, ok := r.stores[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return s, nil
}

func (r *fakeRepo) ListApproved(ctx context.Context) ([]*store.Store, error) {
	var out []*store.Store
	for _, s := range r.stores {
		if s.IsApproved {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeTokens struct{ registered map[string]string }

func (f *fakeTokens) Register(ctx context.Context, phone, token string) error {
	f.registered[phone] = token
	return nil
}

type stubVerifier struct{ token *infra.FirebaseToken }

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*infra.FirebaseToken, error) {
	return s.token, nil
}

func pendingOrder(id types.ID, storeID types.ID) *order.Order {
	return &order.Order{
		ID:          id,
		OrderNumber: "ORD-20250307-0007",
		Customer:    order.Customer{Name: "Maria", Phone: "5551112222", Address: "12 Harbour St"},
		Kind:        order.ContentText,
		StoreID:     storeID,
		StoreName:   "Napoli Pizza",
		Status:      order.StatusPendingStore,
	}
}

func storeRouter(t *testing.T, svc *order.Service, role, uid string) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	verifier := &stubVerifier{token: &infra.FirebaseToken{
		UID:    uid,
		Claims: map[string]interface{}{"role": role},
	}}
	h := NewStoreHandler(svc)
	grp := r.Group("/api/store", middleware.Auth(verifier), middleware.RequireRole("store"))
	grp.POST("/orders/:id/accept", h.Accept)
	grp.GET("/orders", h.ListOrders)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer token")
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStoreAcceptHappyPath(t *testing.T) {
	svc := order.NewService(newFakeOrderStore(pendingOrder("o1", "s1")), order.Deps{Seq: fakeSeq{}})
	r := storeRouter(t, svc, "store", "s1")

	w := doJSON(t, r, http.MethodPost, "/api/store/orders/o1/accept", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
}

func TestStoreAcceptWrongStoreForbidden(t *testing.T) {
	svc := order.NewService(newFakeOrderStore(pendingOrder("o1", "s1")), order.Deps{Seq: fakeSeq{}})
	r := storeRouter(t, svc, "store", "s2")

	w := doJSON(t, r, http.MethodPost, "/api/store/orders/o1/accept", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestStoreAcceptUnknownOrderNotFound(t *testing.T) {
	svc := order.NewService(newFakeOrderStore(), order.Deps{Seq: fakeSeq{}})
	r := storeRouter(t, svc, "store", "s1")

	w := doJSON(t, r, http.MethodPost, "/api/store/orders/nope/accept", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestStoreAcceptWrongStateBadRequest(t *testing.T) {
	o := pendingOrder("o1", "s1")
	o.Status = order.StatusInDelivery
	svc := order.NewService(newFakeOrderStore(o), order.Deps{Seq: fakeSeq{}})
	r := storeRouter(t, svc, "store", "s1")

	w := doJSON(t, r, http.MethodPost, "/api/store/orders/o1/accept", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestStoreRouteRejectsOtherRoles(t *testing.T) {
	svc := order.NewService(newFakeOrderStore(pendingOrder("o1", "s1")), order.Deps{Seq: fakeSeq{}})
	r := storeRouter(t, svc, "driver", "d1")

	w := doJSON(t, r, http.MethodPost, "/api/store/orders/o1/accept", nil)
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
}

func TestStoreListScopedToCaller(t *testing.T) {
	svc := order.NewService(newFakeOrderStore(
		pendingOrder("o1", "s1"),
		pendingOrder("o2", "s2"),
	), order.Deps{Seq: fakeSeq{}})
	r := storeRouter(t, svc, "store", "s1")

	w := doJSON(t, r, http.MethodGet, "/api/store/orders", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp struct {
		Orders []orderView `json:"orders"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(resp.Orders) != 1 || resp.Orders[0].StoreID != "s1" {
		t.Fatalf("expected only s1 orders, got %+v", resp.Orders)
	}
}

func TestCustomerCreateOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := order.NewService(newFakeOrderStore(), order.Deps{Seq: fakeSeq{}})
	repo := &fakeRepo{stores: map[types.ID]*store.Store{
		"s1": {ID: "s1", BusinessName: "Napoli Pizza", IsApproved: true},
		"s2": {ID: "s2", BusinessName: "Closed Shop", IsApproved: false},
	}}
	tokens := &fakeTokens{registered: make(map[string]string)}
	h := NewCustomerHandler(svc, repo, tokens)

	verifier := &stubVerifier{token: &infra.FirebaseToken{UID: "u1", Claims: map[string]interface{}{}}}
	r := gin.New()
	grp := r.Group("/api/customer", middleware.Auth(verifier))
	grp.POST("/orders", h.CreateOrder)

	body := map[string]any{
		"customer":     map[string]string{"name": "Maria", "phone": "5551112222", "address": "12 Harbour St"},
		"storeId":      "s1",
		"orderType":    "text",
		"orderContent": "two pizzas",
	}
	w := doJSON(t, r, http.MethodPost, "/api/customer/orders", body)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var view orderView
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if view.Status != string(order.StatusPendingStore) {
		t.Errorf("status = %s", view.Status)
	}
	if view.OrderNumber == "" {
		t.Error("expected order number")
	}
	if view.StoreName != "Napoli Pizza" {
		t.Errorf("storeName = %s", view.StoreName)
	}

	// Unknown and unapproved stores are rejected up front.
	body["storeId"] = "nope"
	if w := doJSON(t, r, http.MethodPost, "/api/customer/orders", body); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown store: expected 400, got %d", w.Code)
	}
	body["storeId"] = "s2"
	if w := doJSON(t, r, http.MethodPost, "/api/customer/orders", body); w.Code != http.StatusBadRequest {
		t.Fatalf("unapproved store: expected 400, got %d", w.Code)
	}
}

func TestCustomerActiveOrder(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := order.NewService(newFakeOrderStore(pendingOrder("o1", "s1")), order.Deps{Seq: fakeSeq{}})
	h := NewCustomerHandler(svc, &fakeRepo{}, &fakeTokens{registered: make(map[string]string)})

	verifier := &stubVerifier{token: &infra.FirebaseToken{UID: "u1", Claims: map[string]interface{}{}}}
	r := gin.New()
	r.GET("/api/customer/orders/active", middleware.Auth(verifier), h.ActiveOrder)

	w := doJSON(t, r, http.MethodGet, "/api/customer/orders/active?phone=5551112222", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Order *orderView `json:"order"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Order == nil || resp.Order.OrderID != "o1" {
		t.Fatalf("expected order o1, got %+v", resp.Order)
	}

	// No active order is a 404, like the tracking endpoint.
	w = doJSON(t, r, http.MethodGet, "/api/customer/orders/active?phone=5550000000", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", w.Code, w.Body.String())
	}
}

func TestCustomerRegisterPushToken(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := order.NewService(newFakeOrderStore(), order.Deps{Seq: fakeSeq{}})
	tokens := &fakeTokens{registered: make(map[string]string)}
	h := NewCustomerHandler(svc, &fakeRepo{}, tokens)

	verifier := &stubVerifier{token: &infra.FirebaseToken{
		UID:    "u1",
		Claims: map[string]interface{}{"phone": "5551112222"},
	}}
	r := gin.New()
	r.POST("/api/customer/push-token", middleware.Auth(verifier), h.RegisterPushToken)

	w := doJSON(t, r, http.MethodPost, "/api/customer/push-token", map[string]string{"token": "ExponentPushToken[abc]"})
	if w.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", w.Code)
	}
	if tokens.registered["5551112222"] != "ExponentPushToken[abc]" {
		t.Fatalf("token not registered for caller phone: %v", tokens.registered)
	}
}
