package domain

// OrderLineInput is one requested order line.
type OrderLineInput struct {
	ProductID int64
	Quantity  int
}

// CreateOrderInput is the payload of order creation.
type CreateOrderInput struct {
	Items         []OrderLineInput
	Destination   Destination
	PaymentMethod string
	Notes         string
}

// ListOrdersFilter narrows order listings.
type ListOrdersFilter struct {
	Status OrderStatus
	Limit  int
	Offset int
}

// ProductFilter narrows catalog listings. Search matches name or description.
type ProductFilter struct {
	Search   string
	Category string
	InStock  bool
	Limit    int
	Offset   int
}

// CancelResult reports the cancellation and the refund outcome.
type CancelResult struct {
	Order        Order
	RefundStatus string
	RefundError  string
}

// Refund outcomes.
const (
	RefundNone      = "none"
	RefundSucceeded = "refunded"
	RefundFailed    = "failed"
)

// AssignDriverInput is the payload of driver assignment.
type AssignDriverInput struct {
	OrderID  int64
	DriverID int64
}

// UpdateDeliveryStatusInput is the payload of a driver status update.
// Position is required when the status is delivered.
type UpdateDeliveryStatusInput struct {
	DeliveryID int64
	Status     DeliveryStatus
	Position   *Location
}

// CompleteDeliveryInput is the payload of a geofenced completion.
type CompleteDeliveryInput struct {
	DeliveryID int64
	Location
}

// RecordPositionInput is one GPS ping from the driver app.
type RecordPositionInput struct {
	DeliveryID int64
	Location
}

// CheckoutInput starts or resumes a payment.
type CheckoutInput struct {
	OrderID int64
	Method  string
}

// CallbackInput is the raw gateway callback.
type CallbackInput struct {
	Signature string
	Body      []byte
}

// ValidCoordinates reports whether lat/lng are within WGS84 bounds.
func ValidCoordinates(l Location) bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}
