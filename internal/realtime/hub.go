// README: Event hub: synchronous fan-out of order events and ephemeral location pings.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"fastdelivery/internal/modules/driver"
	"fastdelivery/internal/modules/order"
	"fastdelivery/internal/types"
)

// Envelope is the frame written to every subscribed socket.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// LocationPing is the ephemeral driver-location event. It is forwarded
// verbatim to the order's channel and never written anywhere durable.
type LocationPing struct {
	OrderID   types.ID    `json:"orderId"`
	DriverID  types.ID    `json:"driverId"`
	Location  types.Point `json:"location"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub implements order.Broadcaster and driver.AdminFeed over the registry.
// Delivery is at-most-once per connected socket and strictly best-effort:
// failures are logged, never surfaced to the transition caller.
type Hub struct {
	reg       *Registry
	positions *PositionCache
	log       *slog.Logger
}

func NewHub(reg *Registry, positions *PositionCache, log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{reg: reg, positions: positions, log: log}
}

// Publish fans an order event out to its audience. Called synchronously
// after the commit, so per-order event ordering matches commit ordering.
func (h *Hub) Publish(ctx context.Context, evt order.Event) {
	data := map[string]any{
		"orderId":     evt.OrderID,
		"orderNumber": evt.OrderNumber,
		"newStatus":   evt.NewStatus,
		"storeId":     evt.StoreID,
	}
	if evt.DriverID != nil {
		data["driverId"] = *evt.DriverID
	}
	for k, v := range evt.Data {
		data[k] = v
	}
	payload, err := json.Marshal(Envelope{Event: evt.Name, Data: data})
	if err != nil {
		h.log.Error("marshal event", "event", evt.Name, "err", err)
		return
	}

	// Dedupe across channels so no socket sees the same event twice.
	seen := make(map[Conn]struct{})
	for _, ch := range Audience(evt) {
		for _, c := range h.reg.Connections(ch) {
			if _, dup := seen[c]; dup {
				continue
			}
			seen[c] = struct{}{}
			c.Send(payload)
		}
	}
	h.log.Debug("broadcast", "event", evt.Name, "order_number", evt.OrderNumber, "sockets", len(seen))
}

// DriverAvailability tells the admin channel a driver went on or off shift.
func (h *Hub) DriverAvailability(ctx context.Context, d *driver.Driver) {
	payload, err := json.Marshal(Envelope{Event: "driver:availability_changed", Data: map[string]any{
		"driverId": d.ID,
		"name":     d.Name,
		"isOnline": d.IsOnline,
	}})
	if err != nil {
		h.log.Error("marshal availability", "err", err)
		return
	}
	for _, c := range h.reg.Connections(ChannelAdmin) {
		c.Send(payload)
	}
}

// PublishLocation forwards a driver-location ping to the order's ephemeral
// channel only, and refreshes the last-known-position cache.
func (h *Hub) PublishLocation(ctx context.Context, ping LocationPing) {
	payload, err := json.Marshal(Envelope{Event: "driver:location", Data: ping})
	if err != nil {
		h.log.Error("marshal location", "err", err)
		return
	}
	for _, c := range h.reg.Connections(OrderChannel(ping.OrderID)) {
		c.Send(payload)
	}
	if h.positions != nil {
		if err := h.positions.Set(ctx, ping.DriverID, ping.Location); err != nil {
			h.log.Warn("cache driver position", "driver_id", ping.DriverID, "err", err)
		}
	}
}
