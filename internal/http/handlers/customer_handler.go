// README: Customer-facing endpoints: ordering, tracking, price confirmation.
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"fastdelivery/internal/http/middleware"
	"fastdelivery/internal/modules/order"
	"fastdelivery/internal/modules/store"
	"fastdelivery/internal/types"
)

// TokenRegistry is the slice of the push token store customers need.
type TokenRegistry interface {
	Register(ctx context.Context, phone, token string) error
}

type CustomerHandler struct {
	orders *order.Service
	stores store.Repo
	tokens TokenRegistry
}

func NewCustomerHandler(orders *order.Service, stores store.Repo, tokens TokenRegistry) *CustomerHandler {
	return &CustomerHandler{orders: orders, stores: stores, tokens: tokens}
}

type createOrderReq struct {
	Customer     customerView `json:"customer"`
	StoreID      string       `json:"storeId"`
	OrderType    string       `json:"orderType"`
	OrderContent string       `json:"orderContent"`
	VoiceURL     *string      `json:"voiceUrl"`
}

func (h *CustomerHandler) CreateOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	mer, err := h.stores.Get(c.Request.Context(), types.ID(req.StoreID))
	if errors.Is(err, store.ErrNotFound) {
		writeError(c, http.StatusBadRequest, "unknown store")
		return
	}
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	if !mer.IsApproved {
		writeError(c, http.StatusBadRequest, "store not accepting orders")
		return
	}
	o, err := h.orders.Create(c.Request.Context(), order.CreateCommand{
		Customer: order.Customer{
			Name:    req.Customer.Name,
			Phone:   req.Customer.Phone,
			Address: req.Customer.Address,
		},
		StoreID:  mer.ID,
		Kind:     order.ContentKind(req.OrderType),
		Content:  req.OrderContent,
		VoiceURL: req.VoiceURL,
	}, mer.BusinessName)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusCreated, toOrderView(o, false))
}

// GetOrder returns one order by its human-facing number, with the full
// status timeline.
func (h *CustomerHandler) GetOrder(c *gin.Context) {
	num := c.Param("number")
	o, err := h.orders.GetByNumber(c.Request.Context(), num)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderView(o, true))
}

// ActiveOrder returns the caller's current non-terminal order. No active
// order is a 404, same as an unknown order number.
func (h *CustomerHandler) ActiveOrder(c *gin.Context) {
	phone := middleware.CallerPhone(c)
	if phone == "" {
		phone = c.Query("phone")
	}
	if phone == "" {
		writeError(c, http.StatusBadRequest, "missing phone")
		return
	}
	o, err := h.orders.ActiveByPhone(c.Request.Context(), phone)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"order": toOrderView(o, true)})
}

type confirmPriceReq struct {
	Phone   string `json:"phone"`
	Confirm *bool  `json:"confirm"`
}

// ConfirmPrice accepts or declines the quoted total. The phone must match
// the one the order was created with.
func (h *CustomerHandler) ConfirmPrice(c *gin.Context) {
	var req confirmPriceReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Confirm == nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	phone := middleware.CallerPhone(c)
	if phone == "" {
		phone = req.Phone
	}
	id := types.ID(c.Param("id"))
	if err := h.orders.ConfirmPrice(c.Request.Context(), id, phone, *req.Confirm); err != nil {
		writeOrderError(c, err)
		return
	}
	o, err := h.orders.Get(c.Request.Context(), id)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderView(o, false))
}

type registerTokenReq struct {
	Phone string `json:"phone"`
	Token string `json:"token"`
}

// RegisterPushToken records the customer's device token for the push
// fallback. Last writer wins per phone.
func (h *CustomerHandler) RegisterPushToken(c *gin.Context) {
	var req registerTokenReq
	if err := c.ShouldBindJSON(&req); err != nil || req.Token == "" {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	phone := middleware.CallerPhone(c)
	if phone == "" {
		phone = req.Phone
	}
	if phone == "" {
		writeError(c, http.StatusBadRequest, "missing phone")
		return
	}
	if err := h.tokens.Register(c.Request.Context(), phone, req.Token); err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	c.Status(http.StatusNoContent)
}

// ListStores returns the approved stores a customer can order from.
func (h *CustomerHandler) ListStores(c *gin.Context) {
	stores, err := h.stores.ListApproved(c.Request.Context())
	if err != nil {
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	out := make([]storeView, 0, len(stores))
	for _, s := range stores {
		out = append(out, toStoreView(s))
	}
	writeJSON(c, http.StatusOK, gin.H{"stores": out})
}
