// README: Driver-facing endpoints: profile, availability, assignment responses, delivery.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fastdelivery/internal/http/middleware"
	"fastdelivery/internal/modules/driver"
	"fastdelivery/internal/modules/order"
	"fastdelivery/internal/types"
)

type DriverHandler struct {
	orders  *order.Service
	drivers *driver.Service
}

func NewDriverHandler(orders *order.Service, drivers *driver.Service) *DriverHandler {
	return &DriverHandler{orders: orders, drivers: drivers}
}

func (h *DriverHandler) Profile(c *gin.Context) {
	d, err := h.drivers.Get(c.Request.Context(), types.ID(middleware.CallerUID(c)))
	if err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, toDriverView(d))
}

type profileUpdateReq struct {
	Name      *string `json:"name"`
	Phone     *string `json:"phone"`
	Vehicle   *string `json:"vehicle"`
	PushToken *string `json:"pushToken"`
}

func (h *DriverHandler) UpdateProfile(c *gin.Context) {
	var req profileUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id := types.ID(middleware.CallerUID(c))
	err := h.drivers.UpdateProfile(c.Request.Context(), id, driver.ProfileUpdate{
		Name:      req.Name,
		Phone:     req.Phone,
		Vehicle:   req.Vehicle,
		PushToken: req.PushToken,
	})
	if err != nil {
		writeDriverError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type availabilityReq struct {
	IsOnline *bool `json:"isOnline"`
}

func (h *DriverHandler) SetAvailability(c *gin.Context) {
	var req availabilityReq
	if err := c.ShouldBindJSON(&req); err != nil || req.IsOnline == nil {
		writeError(c, http.StatusBadRequest, "invalid json")
		return
	}
	id := types.ID(middleware.CallerUID(c))
	if err := h.drivers.SetAvailability(c.Request.Context(), id, *req.IsOnline); err != nil {
		writeDriverError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"isOnline": *req.IsOnline})
}

// ListOrders returns the orders currently assigned to the caller.
func (h *DriverHandler) ListOrders(c *gin.Context) {
	driverID := types.ID(middleware.CallerUID(c))
	f := order.ListFilter{DriverID: &driverID, Limit: 50}
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

func (h *DriverHandler) Accept(c *gin.Context) {
	driverID := types.ID(middleware.CallerUID(c))
	id := types.ID(c.Param("id"))
	if err := h.orders.DriverAccept(c.Request.Context(), id, driverID); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusAcceptedDriver})
}

func (h *DriverHandler) Reject(c *gin.Context) {
	driverID := types.ID(middleware.CallerUID(c))
	id := types.ID(c.Param("id"))
	if err := h.orders.DriverReject(c.Request.Context(), id, driverID); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusRejectedDriver})
}

func (h *DriverHandler) Start(c *gin.Context) {
	driverID := types.ID(middleware.CallerUID(c))
	id := types.ID(c.Param("id"))
	if err := h.orders.StartDelivery(c.Request.Context(), id, driverID); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusInDelivery})
}

func (h *DriverHandler) Complete(c *gin.Context) {
	driverID := types.ID(middleware.CallerUID(c))
	id := types.ID(c.Param("id"))
	if err := h.orders.Complete(c.Request.Context(), id, driverID); err != nil {
		writeOrderError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"status": order.StatusCompleted})
}
