// README: Logical broadcast channels and the audience router.
package realtime

import (
	"fastdelivery/internal/modules/order"
	"fastdelivery/internal/types"
)

// Channel is a logical broadcast target to which zero or more live
// connections subscribe. The naming convention is part of the wire contract.
type Channel string

const ChannelAdmin Channel = "admin"

func StoreChannel(id types.ID) Channel {
	return Channel("store:" + string(id))
}

func DriverChannel(id types.ID) Channel {
	return Channel("driver:" + string(id))
}

func CustomerChannel(phone string) Channel {
	return Channel("customer:" + phone)
}

// OrderChannel is the per-order ephemeral channel used for high-frequency
// driver-location pings. Nothing sent here is persisted.
func OrderChannel(id types.ID) Channel {
	return Channel("order:" + string(id))
}

// Audience computes the channels entitled to see an order event, from the
// post-transition snapshot: admins always, the order's store, the customer,
// and the driver only while one is assigned.
func Audience(evt order.Event) []Channel {
	chans := []Channel{ChannelAdmin, StoreChannel(evt.StoreID)}
	if evt.DriverID != nil {
		chans = append(chans, DriverChannel(*evt.DriverID))
	}
	chans = append(chans, CustomerChannel(evt.CustomerPhone))
	return chans
}
