// README: API gateway; registers HTTP routes and the realtime endpoint.
package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"fastdelivery/internal/http/handlers"
	"fastdelivery/internal/http/middleware"
	"fastdelivery/internal/infra"
	"fastdelivery/internal/modules/driver"
	"fastdelivery/internal/modules/order"
	"fastdelivery/internal/modules/store"
	"fastdelivery/internal/realtime"
)

type ServerDeps struct {
	Orders   *order.Service
	Drivers  *driver.Service
	Stores   store.Repo
	Tokens   handlers.TokenRegistry
	Hub      *realtime.Hub
	Verifier infra.TokenVerifier
	Log      *slog.Logger

	// WSSendBuffer sizes each socket's outbound queue.
	WSSendBuffer int
}

type Server struct {
	deps ServerDeps
}

func NewServer(deps ServerDeps) *Server {
	if deps.Log == nil {
		deps.Log = slog.Default()
	}
	return &Server{deps: deps}
}

func (s *Server) Routes() http.Handler {
	r := gin.New()
	r.Use(middleware.Recovery(s.deps.Log))
	r.Use(middleware.Logging(s.deps.Log))

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "OK")
	})
	r.GET("/ws", s.handleWS)

	customer := handlers.NewCustomerHandler(s.deps.Orders, s.deps.Stores, s.deps.Tokens)
	merchant := handlers.NewStoreHandler(s.deps.Orders)
	drv := handlers.NewDriverHandler(s.deps.Orders, s.deps.Drivers)
	admin := handlers.NewAdminHandler(s.deps.Orders, s.deps.Drivers)

	api := r.Group("/api", middleware.Auth(s.deps.Verifier))

	cust := api.Group("/customer")
	{
		cust.POST("/orders", customer.CreateOrder)
		cust.GET("/orders/active", customer.ActiveOrder)
		cust.GET("/orders/:number", customer.GetOrder)
		cust.POST("/orders/:id/confirm", customer.ConfirmPrice)
		cust.POST("/push-token", customer.RegisterPushToken)
		cust.GET("/stores", customer.ListStores)
	}

	str := api.Group("/store", middleware.RequireRole("store"))
	{
		str.GET("/orders", merchant.ListOrders)
		str.POST("/orders/:id/accept", merchant.Accept)
		str.POST("/orders/:id/reject", merchant.Reject)
		str.POST("/orders/:id/price", merchant.SetPrice)
		str.POST("/orders/:id/preparing", merchant.MarkPreparing)
	}

	drvGroup := api.Group("/driver", middleware.RequireRole("driver"))
	{
		drvGroup.GET("/profile", drv.Profile)
		drvGroup.PATCH("/profile", drv.UpdateProfile)
		drvGroup.POST("/availability", drv.SetAvailability)
		drvGroup.GET("/orders", drv.ListOrders)
		drvGroup.POST("/orders/:id/accept", drv.Accept)
		drvGroup.POST("/orders/:id/reject", drv.Reject)
		drvGroup.POST("/orders/:id/start", drv.Start)
		drvGroup.POST("/orders/:id/complete", drv.Complete)
	}

	adm := api.Group("/admin", middleware.RequireRole("admin"))
	{
		adm.GET("/orders", admin.ListOrders)
		adm.GET("/orders/:id", admin.GetOrder)
		adm.POST("/orders/:id/delivery-fee", admin.SetDeliveryFee)
		adm.POST("/orders/:id/assign", admin.AssignDriver)
		adm.POST("/orders/:id/cancel", admin.Cancel)
		adm.GET("/drivers", admin.ListDrivers)
	}

	return r
}

// handleWS authenticates a realtime client and hands the connection to the
// hub. WebSocket clients cannot always set headers, so the token may ride in
// the query string.
func (s *Server) handleWS(c *gin.Context) {
	raw := c.Query("token")
	if raw == "" {
		if t, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok {
			raw = t
		}
	}
	if raw == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
		return
	}
	token, err := s.deps.Verifier.VerifyIDToken(c.Request.Context(), raw)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	role, _ := token.Claims["role"].(string)
	id := token.UID
	if role == "" || role == "customer" {
		role = "customer"
		// Customers subscribe by phone; their channel must match the
		// audience router's naming.
		if phone, ok := token.Claims["phone"].(string); ok && phone != "" {
			id = phone
		}
	}
	s.deps.Hub.ServeWS(c.Writer, c.Request, realtime.Identity{Role: role, ID: id}, s.deps.WSSendBuffer)
}
