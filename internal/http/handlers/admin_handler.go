// README: Admin endpoints: order oversight, delivery fees, driver assignment.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"fastdelivery/internal/modules/driver"
	"fastdelivery/internal/modules/order"
	"fastdelivery/internal/types"
)

type AdminHandler struct {
	orders  *order.Service
	drivers *driver.Service
}

func NewAdminHandler(orders *order.Service, drivers *driver.Service) *AdminHandler {
	return &AdminHandler{orders: orders, drivers: drivers}
}

// ListOrders returns orders across all stores, newest first, with optional
// status filter and paging.
func (h *AdminHandler) ListOrders(c *gin.Context) {
	f := order.ListFilter{Limit: 100}
	if s := c.Query("status"); s != "" {
		st := order.Status(s)
		f.Status = &st
	}
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if v := c.Query("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.Offset = n
		}
	}
	orders, err := h.orders.List(c.Request.Context(), f)
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"orders": toOrderViews(orders)})
}

func (h *AdminHandler) GetOrder(c *gin.Context) {
	o, err := h.orders.Get(c.Request.Context(), types.ID(c.Param("id")))
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toOrderView(o, true))
}

type deliveryFeeReq struct {
	DeliveryFee int64 `json:"deliveryFee"`
}

// SetDeliveryFee fixes the total and pushes the order to the customer for
// confirmation.
func (h *AdminHandler) SetDeliveryFee(c *gin.Context) {
	var req deliveryFeeReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id := types.ID(c.Param("id"))
	err := h.orders.SetDeliveryFee(c.Request.Context(), id, types.Money{Amount: req.DeliveryFee})
	if err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusPendingConfirm})
}

type assignDriverReq struct {
	DriverID string `json:"driverId"`
}

func (h *AdminHandler) AssignDriver(c *gin.Context) {
	var req assignDriverReq
	if err := c.ShouldBindJSON(&req); err != nil || req.DriverID == "" {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id := types.ID(c.Param("id"))
	if err := h.orders.AssignDriver(c.Request.Context(), id, types.ID(req.DriverID)); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusAssigned})
}

type cancelReq struct {
	Reason string `json:"reason"`
}

func (h *AdminHandler) Cancel(c *gin.Context) {
	var req cancelReq
	_ = c.ShouldBindJSON(&req)
	id := types.ID(c.Param("id"))
	if err := h.orders.AdminCancel(c.Request.Context(), id, req.Reason); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusCancelled})
}

// ListDrivers returns drivers for the dispatch board, optionally only the
// online ones.
func (h *AdminHandler) ListDrivers(c *gin.Context) {
	onlineOnly := c.Query("online") == "true"
	drivers, err := h.drivers.List(c.Request.Context(), onlineOnly)
	if err != nil {
		writeDriverError(c, err)
		return
	}
	out := make([]driverView, 0, len(drivers))
	for _, d := range drivers {
		out = append(out, toDriverView(d))
	}
	writeJSON(c, http.StatusOK, gin.H{"drivers": out})
}
