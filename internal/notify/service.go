// README: Push notification fallback for customers who are not connected live.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"fastdelivery/internal/modules/order"
)

const notificationTitle = "Fast Delivery"

// Message is a provider-independent push payload.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers a message to one device token.
type Sender interface {
	Send(ctx context.Context, token string, msg Message) error
}

// statusMessages maps the statuses worth a push to their customer-facing
// text. Statuses absent here are live-feed only.
var statusMessages = map[order.Status]string{
	order.StatusPendingConfirm: "Your order %s is priced. Please confirm to proceed.",
	order.StatusConfirmed:      "Order %s confirmed. The store is getting started.",
	order.StatusInDelivery:     "Order %s is on the way!",
	order.StatusCompleted:      "Order %s has been delivered. Enjoy!",
	order.StatusCancelled:      "Order %s was cancelled.",
	order.StatusRejectedStore:  "Sorry, the store could not take order %s.",
}

// Service implements order.Notifier. Every failure is logged and swallowed:
// a push that cannot be delivered never disturbs the transition that
// triggered it.
type Service struct {
	tokens TokenStore
	expo   Sender
	fcm    Sender
	log    *slog.Logger
}

func NewService(tokens TokenStore, expo, fcm Sender, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{tokens: tokens, expo: expo, fcm: fcm, log: log}
}

// StatusChanged pushes a notification for the order's new status to the
// customer's registered device, if the status warrants one and a token exists.
func (s *Service) StatusChanged(ctx context.Context, o *order.Order) {
	tmpl, ok := statusMessages[o.Status]
	if !ok {
		return
	}
	token, found, err := s.tokens.Lookup(ctx, o.Customer.Phone)
	if err != nil {
		s.log.Warn("push token lookup", "order_number", o.OrderNumber, "err", err)
		return
	}
	if !found {
		return
	}

	msg := Message{
		Title: notificationTitle,
		Body:  fmt.Sprintf(tmpl, o.OrderNumber),
		Data: map[string]string{
			"orderId":     string(o.ID),
			"orderNumber": o.OrderNumber,
			"status":      string(o.Status),
		},
	}
	sender := s.fcm
	if IsExpoToken(token) {
		sender = s.expo
	}
	if sender == nil {
		s.log.Warn("no sender configured for token", "order_number", o.OrderNumber)
		return
	}
	if err := sender.Send(ctx, token, msg); err != nil {
		s.log.Warn("push send failed", "order_number", o.OrderNumber, "status", o.Status, "err", err)
		return
	}
	s.log.Debug("push sent", "order_number", o.OrderNumber, "status", o.Status)
}
