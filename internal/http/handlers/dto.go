package handlers

import "time"

type orderLineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type destinationRequest struct {
	Lat     *float64 `json:"lat" validate:"required"`
	Lng     *float64 `json:"lng" validate:"required"`
	Address string   `json:"address" validate:"required,max=500"`
}

type createOrderRequest struct {
	Items         []orderLineRequest `json:"items"`
	Destination   destinationRequest `json:"destination"`
	PaymentMethod string             `json:"payment_method" validate:"max=32"`
	Notes         string             `json:"notes" validate:"max=1000"`
}

type cancelOrderRequest struct {
	Reason string `json:"reason" validate:"max=500"`
}

type checkoutRequest struct {
	Method string `json:"method" validate:"required,max=32"`
}

type assignDriverRequest struct {
	DriverID int64 `json:"driver_id" validate:"required,gt=0"`
}

type waybillRequest struct {
	Notes string `json:"notes" validate:"max=1000"`
}

type availabilityRequest struct {
	Availability string `json:"availability" validate:"required"`
}

type deliveryStatusRequest struct {
	Status string   `json:"status" validate:"required"`
	Lat    *float64 `json:"lat" validate:"required_with=Lng"`
	Lng    *float64 `json:"lng" validate:"required_with=Lat"`
}

type positionRequest struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lng *float64 `json:"lng" validate:"required"`
}

type pushTokenRequest struct {
	FCMToken string `json:"fcm_token" validate:"required,max=4096"`
}

type productDTO struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	Price       int64  `json:"price"`
	Stock       int    `json:"stock"`
}

type destinationDTO struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

type orderItemDTO struct {
	ProductID   int64  `json:"product_id"`
	ProductName string `json:"product_name"`
	Price       int64  `json:"price"`
	Quantity    int    `json:"quantity"`
	Subtotal    int64  `json:"subtotal"`
}

type orderDTO struct {
	ID            int64          `json:"id"`
	Code          string         `json:"code"`
	UserID        int64          `json:"user_id"`
	Status        string         `json:"status"`
	StatusDisplay string         `json:"status_display"`
	Total         int64          `json:"total"`
	Destination   destinationDTO `json:"destination"`
	Notes         string         `json:"notes,omitempty"`
	Items         []orderItemDTO `json:"items"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	CancelledAt   *time.Time     `json:"cancelled_at,omitempty"`
	ArrivedAt     *time.Time     `json:"arrived_at,omitempty"`
}

type cancelDTO struct {
	Order        orderDTO `json:"order"`
	RefundStatus string   `json:"refund_status"`
	RefundError  string   `json:"refund_error,omitempty"`
}

type paymentDTO struct {
	ID          int64      `json:"id"`
	OrderID     int64      `json:"order_id"`
	Reference   string     `json:"reference"`
	MerchantRef string     `json:"merchant_ref"`
	Method      string     `json:"method"`
	Amount      int64      `json:"amount"`
	Status      string     `json:"status"`
	CheckoutURL string     `json:"checkout_url,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	PaidAt      *time.Time `json:"paid_at,omitempty"`
	RefundedAt  *time.Time `json:"refunded_at,omitempty"`
}

type deliveryDTO struct {
	ID               int64      `json:"id"`
	OrderID          int64      `json:"order_id"`
	DriverID         int64      `json:"driver_id"`
	Status           string     `json:"status"`
	DistanceKm       *float64   `json:"distance_km,omitempty"`
	EstimatedMinutes *int       `json:"estimated_minutes,omitempty"`
	AssignedAt       time.Time  `json:"assigned_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
}

type waybillDTO struct {
	ID       int64     `json:"id"`
	OrderID  int64     `json:"order_id"`
	DriverID int64     `json:"driver_id"`
	Number   string    `json:"number"`
	Notes    string    `json:"notes,omitempty"`
	IssuedAt time.Time `json:"issued_at"`
}

type assignDTO struct {
	Delivery deliveryDTO `json:"delivery"`
	Order    orderDTO    `json:"order"`
	Waybill  waybillDTO  `json:"waybill"`
}

type completeDTO struct {
	Delivery   deliveryDTO `json:"delivery"`
	Order      orderDTO    `json:"order"`
	DistanceKm float64     `json:"distance_km"`
	RadiusKm   float64     `json:"radius_km"`
}

type driverDTO struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Availability  string `json:"availability,omitempty"`
	VehicleType   string `json:"vehicle_type,omitempty"`
	VehicleNumber string `json:"vehicle_number,omitempty"`
}

type trackPointDTO struct {
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	RecordedAt time.Time `json:"recorded_at"`
}

type trackingDTO struct {
	OrderID          int64          `json:"order_id"`
	OrderCode        string         `json:"order_code"`
	Status           string         `json:"status"`
	Destination      destinationDTO `json:"destination"`
	Driver           *driverDTO     `json:"driver,omitempty"`
	DeliveryID       int64          `json:"delivery_id,omitempty"`
	DeliveryStatus   string         `json:"delivery_status,omitempty"`
	LatestPosition   *trackPointDTO `json:"latest_position,omitempty"`
	DistanceKm       *float64       `json:"distance_km,omitempty"`
	EstimatedMinutes *int           `json:"estimated_minutes,omitempty"`
}
