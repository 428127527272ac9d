// README: Store-facing endpoints: incoming orders, accept/reject, pricing, preparing.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fastdelivery/internal/http/middleware"
	"fastdelivery/internal/modules/order"
	"fastdelivery/internal/types"
)

type StoreHandler struct {
	orders *order.Service
}

func NewStoreHandler(orders *order.Service) *StoreHandler {
	return &StoreHandler{orders: orders}
}

// ListOrders returns the caller's orders, optionally filtered by status.
func (h *StoreHandler) ListOrders(c *gin.Context) {
	storeID := types.ID(middleware.CallerUID(c))
	f := order.ListFilter{StoreID: &storeID, Limit: 100}
	if s := c.Query("status"); s != "" {
		st := order.Status(s)
		f.Status = &st
	}
	orders, err := h.orders.List(c.Request.Context(), f)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": toOrderViews(orders)})
}

func (h *StoreHandler) Accept(c *gin.Context) {
	storeID := types.ID(middleware.CallerUID(c))
	id := types.ID(c.Param("id"))
	if err := h.orders.StoreAccept(c.Request.Context(), id, storeID); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusPricing})
}

func (h *StoreHandler) Reject(c *gin.Context) {
	storeID := types.ID(middleware.CallerUID(c))
	id := types.ID(c.Param("id"))
	if err := h.orders.StoreReject(c.Request.Context(), id, storeID); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusRejectedStore})
}

type setPriceReq struct {
	ProductPrice int64 `json:"productPrice"`
}

// SetPrice records the product price in minor units and hands the order to
// the admin for the delivery fee.
func (h *StoreHandler) SetPrice(c *gin.Context) {
	var req setPriceReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	storeID := types.ID(middleware.CallerUID(c))
	id := types.ID(c.Param("id"))
	err := h.orders.SetProductPrice(c.Request.Context(), id, storeID, types.Money{Amount: req.ProductPrice})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusPendingAdmin})
}

func (h *StoreHandler) MarkPreparing(c *gin.Context) {
	storeID := types.ID(middleware.CallerUID(c))
	id := types.ID(c.Param("id"))
	if err := h.orders.MarkPreparing(c.Request.Context(), id, storeID); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusPreparing})
}
