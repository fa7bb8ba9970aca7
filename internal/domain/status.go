package domain

type (
	// OrderStatus is the lifecycle state of an order.
	OrderStatus string
	// DeliveryStatus is the state of a delivery order as reported by the driver.
	DeliveryStatus string
	// PaymentStatus is the state of a payment as reported by the gateway.
	PaymentStatus string
	// Availability is the dispatch state of a driver.
	Availability string
)

// Order statuses.
const (
	OrderPendingPayment OrderStatus = "pending_payment"
	OrderPending        OrderStatus = "pending"
	OrderConfirmed      OrderStatus = "confirmed"
	OrderOnDelivery     OrderStatus = "on_delivery"
	OrderCompleted      OrderStatus = "completed"
	OrderCancelled      OrderStatus = "cancelled"
)

// Delivery statuses.
const (
	DeliveryAssigned   DeliveryStatus = "assigned"
	DeliveryOnTheWay   DeliveryStatus = "on_the_way"
	DeliveryPickedUp   DeliveryStatus = "picked_up"
	DeliveryOnDelivery DeliveryStatus = "on_delivery"
	DeliveryDelivered  DeliveryStatus = "delivered"
	DeliveryCancelled  DeliveryStatus = "cancelled"
)

// Payment statuses.
const (
	PaymentUnpaid   PaymentStatus = "unpaid"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentExpired  PaymentStatus = "expired"
	PaymentRefunded PaymentStatus = "refunded"
)

// Driver availability.
const (
	AvailabilityAvailable Availability = "available"
	AvailabilityBusy      Availability = "busy"
	AvailabilityOffline   Availability = "offline"
)

var orderNext = map[OrderStatus][]OrderStatus{
	OrderPendingPayment: {OrderPending, OrderCancelled},
	OrderPending:        {OrderConfirmed, OrderCancelled},
	OrderConfirmed:      {OrderOnDelivery, OrderCancelled},
	// back to confirmed when the driver drops the delivery
	OrderOnDelivery: {OrderCompleted, OrderConfirmed},
}

// Valid checks if the OrderStatus is known.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderPendingPayment, OrderPending, OrderConfirmed, OrderOnDelivery, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// CanTransition reports whether the order may move from s to next.
func (s OrderStatus) CanTransition(next OrderStatus) bool {
	for _, v := range orderNext[s] {
		if v == next {
			return true
		}
	}
	return false
}

// Cancellable reports whether an owner or admin may still cancel.
func (s OrderStatus) Cancellable() bool {
	return s.CanTransition(OrderCancelled)
}

// Display maps the order status to the label shown on the tracking screen.
func (s OrderStatus) Display() string {
	switch s {
	case OrderOnDelivery:
		return "on_the_way"
	case OrderCompleted:
		return "delivered"
	default:
		return string(s)
	}
}

var allowedDeliveryStatuses = [...]DeliveryStatus{
	DeliveryAssigned, DeliveryOnTheWay, DeliveryPickedUp, DeliveryOnDelivery, DeliveryDelivered, DeliveryCancelled,
}

// Valid checks if the DeliveryStatus is known.
func (s DeliveryStatus) Valid() bool {
	for _, v := range allowedDeliveryStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Terminal reports whether no further driver update is accepted.
func (s DeliveryStatus) Terminal() bool {
	return s == DeliveryDelivered || s == DeliveryCancelled
}

func (s DeliveryStatus) rank() int {
	for i, v := range allowedDeliveryStatuses {
		if s == v {
			return i
		}
	}
	return -1
}

// CanTransition reports whether the driver may move the delivery from s to next.
// Progress statuses only move forward; cancelled is reachable from any active status.
func (s DeliveryStatus) CanTransition(next DeliveryStatus) bool {
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == DeliveryCancelled || next == DeliveryDelivered {
		return true
	}
	return next.rank() >= s.rank()
}

// OrderStatus maps the delivery status onto the parent order.
func (s DeliveryStatus) OrderStatus() OrderStatus {
	switch s {
	case DeliveryDelivered:
		return OrderCompleted
	case DeliveryCancelled:
		return OrderConfirmed
	default:
		return OrderOnDelivery
	}
}

// Valid checks if the PaymentStatus is known.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentUnpaid, PaymentPaid, PaymentFailed, PaymentExpired, PaymentRefunded:
		return true
	}
	return false
}

// Settled reports whether the payment left the unpaid state for good.
func (s PaymentStatus) Settled() bool {
	return s == PaymentPaid || s == PaymentRefunded
}

// Valid checks if the Availability is known.
func (a Availability) Valid() bool {
	return a == AvailabilityAvailable || a == AvailabilityBusy || a == AvailabilityOffline
}
