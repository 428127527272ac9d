// README: Shared handler utilities: JSON helpers, error mapping, response views.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"fastdelivery/internal/modules/driver"
	"fastdelivery/internal/modules/order"
	"fastdelivery/internal/modules/store"
	"fastdelivery/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeOrderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, order.ErrBadRequest):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrInvalidTransition):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, order.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, order.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, order.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func writeDriverError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, driver.ErrNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, driver.ErrNotApproved), errors.Is(err, driver.ErrOffline), errors.Is(err, driver.ErrBusy):
		writeError(c, http.StatusConflict, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

type customerView struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

type historyView struct {
	Status string    `json:"status"`
	Actor  string    `json:"actor"`
	At     time.Time `json:"timestamp"`
}

type orderView struct {
	OrderID          string        `json:"orderId"`
	OrderNumber      string        `json:"orderNumber"`
	Customer         customerView  `json:"customer"`
	DeliveryLocation *types.Point  `json:"deliveryLocation,omitempty"`
	OrderType        string        `json:"orderType"`
	OrderContent     string        `json:"orderContent,omitempty"`
	VoiceURL         *string       `json:"voiceUrl,omitempty"`
	StoreID          string        `json:"storeId"`
	StoreName        string        `json:"storeName"`
	ProductPrice     int64         `json:"productPrice"`
	DeliveryFee      int64         `json:"deliveryFee"`
	TotalPrice       int64         `json:"totalPrice"`
	Currency         string        `json:"currency"`
	DriverID         *types.ID     `json:"driverId,omitempty"`
	DriverName       *string       `json:"driverName,omitempty"`
	Status           string        `json:"status"`
	History          []historyView `json:"statusHistory,omitempty"`
	CreatedAt        time.Time     `json:"createdAt"`
	ConfirmedAt      *time.Time    `json:"confirmedAt,omitempty"`
	CompletedAt      *time.Time    `json:"completedAt,omitempty"`
}

// toOrderView flattens an order for the wire. withHistory controls whether
// the full ledger timeline rides along (detail views only).
func toOrderView(o *order.Order, withHistory bool) orderView {
	v := orderView{
		OrderID:     string(o.ID),
		OrderNumber: o.OrderNumber,
		Customer: customerView{
			Name:    o.Customer.Name,
			Phone:   o.Customer.Phone,
			Address: o.Customer.Address,
		},
		OrderType:    string(o.Kind),
		OrderContent: o.Content,
		VoiceURL:     o.VoiceURL,
		StoreID:      string(o.StoreID),
		StoreName:    o.StoreName,
		ProductPrice: o.ProductPrice.Amount,
		DeliveryFee:  o.DeliveryFee.Amount,
		TotalPrice:   o.TotalPrice.Amount,
		Currency:     o.TotalPrice.Currency,
		DriverID:     o.DriverID,
		DriverName:   o.DriverName,
		Status:       string(o.Status),
		CreatedAt:    o.CreatedAt,
		ConfirmedAt:  o.ConfirmedAt,
		CompletedAt:  o.CompletedAt,
	}
	if o.DeliveryLocation.Lat != 0 || o.DeliveryLocation.Lng != 0 {
		loc := o.DeliveryLocation
		v.DeliveryLocation = &loc
	}
	if withHistory {
		v.History = make([]historyView, 0, len(o.History))
		for _, h := range o.History {
			v.History = append(v.History, historyView{
				Status: string(h.Status),
				Actor:  string(h.Actor),
				At:     h.At,
			})
		}
	}
	return v
}

func toOrderViews(orders []*order.Order) []orderView {
	out := make([]orderView, 0, len(orders))
	for _, o := range orders {
		out = append(out, toOrderView(o, false))
	}
	return out
}

type storeView struct {
	StoreID      string `json:"storeId"`
	BusinessName string `json:"businessName"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
}

func toStoreView(s *store.Store) storeView {
	return storeView{
		StoreID:      string(s.ID),
		BusinessName: s.BusinessName,
		Phone:        s.Phone,
		Address:      s.Address,
	}
}

type driverView struct {
	DriverID     string    `json:"driverId"`
	Name         string    `json:"name"`
	Phone        string    `json:"phone"`
	Vehicle      string    `json:"vehicle"`
	IsOnline     bool      `json:"isOnline"`
	IsApproved   bool      `json:"isApproved"`
	CurrentOrder *types.ID `json:"currentOrder,omitempty"`
}

func toDriverView(d *driver.Driver) driverView {
	return driverView{
		DriverID:     string(d.ID),
		Name:         d.Name,
		Phone:        d.Phone,
		Vehicle:      d.Vehicle,
		IsOnline:     d.IsOnline,
		IsApproved:   d.IsApproved,
		CurrentOrder: d.CurrentOrder,
	}
}
