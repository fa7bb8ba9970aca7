package domain

import "time"

// DeliveryOrder is the dispatch record of an order, upserted by order id.
type DeliveryOrder struct {
	ID               int64
	OrderID          int64
	DriverID         int64
	Status           DeliveryStatus
	DistanceKm       *float64
	EstimatedMinutes *int
	AssignedAt       time.Time
	CompletedAt      *time.Time
	UpdatedAt        time.Time
}

// Active reports whether the delivery still holds its driver.
func (d DeliveryOrder) Active() bool {
	return !d.Status.Terminal()
}

// TrackPoint is one GPS ping of a delivery.
type TrackPoint struct {
	ID         int64
	DeliveryID int64
	Location
	RecordedAt time.Time
}

// Waybill is the shipment document of an order.
type Waybill struct {
	ID       int64
	OrderID  int64
	DriverID int64
	Number   string
	Notes    string
	IssuedAt time.Time
}

// AssignResult is the outcome of a driver assignment.
type AssignResult struct {
	Delivery DeliveryOrder
	Order    Order
	Waybill  Waybill
}

// CompleteResult is the outcome of a geofenced completion.
type CompleteResult struct {
	Delivery   DeliveryOrder
	Order      Order
	DistanceKm float64
	RadiusKm   float64
}

// Estimate is a routing estimate from the warehouse to the destination.
type Estimate struct {
	DistanceKm  float64
	DurationMin int
}

// TrackingView is what the tracking screen renders.
type TrackingView struct {
	OrderID          int64
	OrderCode        string
	Status           string
	Destination      Destination
	Driver           *User
	DeliveryID       int64
	DeliveryStatus   DeliveryStatus
	LatestPosition   *TrackPoint
	DistanceKm       *float64
	EstimatedMinutes *int
}
