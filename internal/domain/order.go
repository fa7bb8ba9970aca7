package domain

import "time"

// Product is a sellable commodity with tracked stock.
type Product struct {
	ID          int64
	Name        string
	Description string
	Category    string
	Price       int64
	Stock       int
}

// Location is a WGS84 coordinate pair.
type Location struct {
	Lat float64
	Lng float64
}

// Destination is where the order is delivered to.
type Destination struct {
	Location
	Address string
}

// Order is the order aggregate root.
type Order struct {
	ID          int64
	UserID      int64
	Code        string
	Items       []OrderItem
	Total       int64
	Destination Destination
	Status      OrderStatus
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	CancelledAt *time.Time
	ArrivedAt   *time.Time
}

// OrderItem is an order line with the price captured at order time.
type OrderItem struct {
	ID          int64
	OrderID     int64
	ProductID   int64
	ProductName string
	Price       int64
	Quantity    int
	Subtotal    int64
}

// NewOrderItem builds a line and its subtotal.
func NewOrderItem(productID int64, name string, price int64, qty int) OrderItem {
	return OrderItem{
		ProductID:   productID,
		ProductName: name,
		Price:       price,
		Quantity:    qty,
		Subtotal:    price * int64(qty),
	}
}

// SumTotal returns the sum of line subtotals.
func SumTotal(items []OrderItem) int64 {
	var total int64
	for _, it := range items {
		total += it.Subtotal
	}
	return total
}

// Payment is the gateway payment attached 1:1 to an order.
type Payment struct {
	ID          int64
	OrderID     int64
	Reference   string
	MerchantRef string
	Method      string
	Amount      int64
	Status      PaymentStatus
	CheckoutURL string
	RawResponse []byte
	ExpiresAt   *time.Time
	PaidAt      *time.Time
	RefundedAt  *time.Time
	CreatedAt   time.Time
}

// ActivityEntry is an audit log record.
type ActivityEntry struct {
	ID        int64
	ActorID   int64
	Action    string
	OrderID   int64
	Details   map[string]any
	CreatedAt time.Time
}

// Audit actions.
const (
	ActionOrderCreated          = "order.created"
	ActionOrderApproved         = "order.approved"
	ActionOrderDriverAssigned   = "order.driver_assigned"
	ActionOrderCancelled        = "order.cancelled"
	ActionOrderCompleted        = "order.completed"
	ActionPaymentPaid           = "payment.paid"
	ActionDeliveryStatusChanged = "delivery.status_changed"
)
