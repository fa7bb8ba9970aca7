package notify

import "time"

// Notification kinds.
const (
	KindOrderCreated      = "order.created"
	KindOrderApproved     = "order.approved"
	KindOrderCancelled    = "order.cancelled"
	KindPaymentPaid       = "payment.paid"
	KindDriverAssigned    = "order.driver_assigned"
	KindDeliveryAssigned  = "delivery.assigned"
	KindDeliveryUpdated   = "delivery.status_changed"
	KindDeliveryCompleted = "order.completed"
	KindRefundFailed      = "payment.refund_failed"
	KindPaymentUnmatched  = "payment.unmatched"
)

// Notification is the user-facing message.
type Notification struct {
	Kind  string
	Title string
	Body  string
	Data  map[string]string
}

// Event is a notification addressed to a user, as carried on the bus.
type Event struct {
	UserID    int64             `json:"user_id"`
	Kind      string            `json:"kind"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Notification returns the message part of the event.
func (e Event) Notification() Notification {
	return Notification{Kind: e.Kind, Title: e.Title, Body: e.Body, Data: e.Data}
}
