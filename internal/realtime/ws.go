// README: WebSocket transport: client pumps and inbound message handling.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"fastdelivery/internal/types"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4096
)

// Identity is the verified {role, id} pair a connection announced. One
// identity per connection; one identity may hold several connections.
type Identity struct {
	Role string
	ID   string
}

// Channel returns the identity's own subscription channel.
func (id Identity) Channel() Channel {
	switch id.Role {
	case "admin":
		return ChannelAdmin
	case "store":
		return StoreChannel(types.ID(id.ID))
	case "driver":
		return DriverChannel(types.ID(id.ID))
	default:
		return CustomerChannel(id.ID)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browsers and the mobile apps connect cross-origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// inboundMsg is what clients send upstream: order-room joins and, for
// drivers, location pings.
type inboundMsg struct {
	Type     string       `json:"type"`
	OrderID  types.ID     `json:"orderId"`
	Location *types.Point `json:"location"`
}

type wsClient struct {
	conn     *websocket.Conn
	send     chan []byte
	done     chan struct{}
	identity Identity
	reg      *Registry
	hub      *Hub
	log      *slog.Logger
}

// Send queues a payload without blocking. A client that cannot drain its
// buffer loses the frame; live delivery is best-effort by contract. The send
// channel stays open for the connection's lifetime so a broadcast racing a
// disconnect lands in the buffer and is simply never drained.
func (c *wsClient) Send(payload []byte) {
	select {
	case <-c.done:
	case c.send <- payload:
	default:
		c.log.Warn("dropping frame for slow consumer", "role", c.identity.Role, "id", c.identity.ID)
	}
}

// ServeWS upgrades the request and runs the connection until it closes.
// The caller has already authenticated the identity.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, identity Identity, sendBuffer int) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade", "err", err)
		return
	}
	if sendBuffer <= 0 {
		sendBuffer = 32
	}
	c := &wsClient{
		conn:     conn,
		send:     make(chan []byte, sendBuffer),
		done:     make(chan struct{}),
		identity: identity,
		reg:      h.reg,
		hub:      h,
		log:      h.log,
	}
	h.reg.Subscribe(identity.Channel(), c)

	go c.writePump()
	c.readPump(r.Context())
}

func (c *wsClient) readPump(ctx context.Context) {
	defer func() {
		c.reg.Drop(c)
		close(c.done)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMsgSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg inboundMsg
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Warn("bad client frame", "role", c.identity.Role, "err", err)
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *wsClient) handle(ctx context.Context, msg inboundMsg) {
	switch msg.Type {
	case "join_order":
		if msg.OrderID == "" {
			return
		}
		c.reg.Subscribe(OrderChannel(msg.OrderID), c)
	case "driver:location":
		// Only the delivering driver streams positions.
		if c.identity.Role != "driver" || msg.OrderID == "" || msg.Location == nil {
			return
		}
		c.hub.PublishLocation(ctx, LocationPing{
			OrderID:   msg.OrderID,
			DriverID:  types.ID(c.identity.ID),
			Location:  *msg.Location,
			Timestamp: time.Now(),
		})
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
