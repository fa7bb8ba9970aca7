package ordertx

import (
	"context"
	"errors"
	"time"

	"palmshell-dispatch/internal/domain"
)

// Getters return (nil, nil) when the row does not exist.
// *ForUpdate variants lock the row until the transaction ends.

// ProductQuery narrows ListProducts. Zero fields are ignored.
type ProductQuery struct {
	Search   string
	Category string
	InStock  bool
	Limit    int
	Offset   int
}

// CatalogStore is the read side of the product table.
type CatalogStore interface {
	GetProduct(ctx context.Context, id int64) (*domain.Product, error)
	ListProducts(ctx context.Context, q ProductQuery) ([]domain.Product, error)
}

// ProductStore is the stock ledger storage.
type ProductStore interface {
	GetProductForUpdate(ctx context.Context, id int64) (*domain.Product, error)
	AddProductStock(ctx context.Context, id int64, delta int) error
}

// OrderQuery narrows ListOrders. Zero fields are ignored.
type OrderQuery struct {
	UserID   int64
	DriverID int64
	Status   domain.OrderStatus
	Limit    int
	Offset   int
}

// OrderStatusChange is a status write with the lifecycle timestamps it implies.
type OrderStatusChange struct {
	ID          int64
	Status      domain.OrderStatus
	CancelledAt *time.Time
	ArrivedAt   *time.Time
}

// OrderStore is the order aggregate storage.
type OrderStore interface {
	InsertOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id int64) (*domain.Order, error)
	GetOrderForUpdate(ctx context.Context, id int64) (*domain.Order, error)
	ListOrders(ctx context.Context, q OrderQuery) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, c OrderStatusChange) error
}

// PaymentStore is the payment storage.
type PaymentStore interface {
	GetPaymentByOrder(ctx context.Context, orderID int64) (*domain.Payment, error)
	GetPaymentByOrderForUpdate(ctx context.Context, orderID int64) (*domain.Payment, error)
	// Merchant ref lookups also resolve refs replaced by a later UpsertPayment.
	GetPaymentByMerchantRef(ctx context.Context, merchantRef string) (*domain.Payment, error)
	GetPaymentByMerchantRefForUpdate(ctx context.Context, merchantRef string) (*domain.Payment, error)
	UpsertPayment(ctx context.Context, p *domain.Payment) error
	UpdatePaymentStatus(ctx context.Context, id int64, status domain.PaymentStatus, at time.Time) error
}

// UserStore is the user and driver availability storage.
type UserStore interface {
	GetUser(ctx context.Context, id int64) (*domain.User, error)
	GetUserForUpdate(ctx context.Context, id int64) (*domain.User, error)
	UpdateAvailability(ctx context.Context, id int64, a domain.Availability) error
	UpdatePushToken(ctx context.Context, id int64, token string) error
	ListDrivers(ctx context.Context, onlyAvailable bool) ([]domain.User, error)
	ListAdminIDs(ctx context.Context) ([]int64, error)
}

// DeliveryStore is the dispatch storage.
type DeliveryStore interface {
	UpsertDelivery(ctx context.Context, d *domain.DeliveryOrder) error
	GetDelivery(ctx context.Context, id int64) (*domain.DeliveryOrder, error)
	GetDeliveryForUpdate(ctx context.Context, id int64) (*domain.DeliveryOrder, error)
	GetDeliveryByOrder(ctx context.Context, orderID int64) (*domain.DeliveryOrder, error)
	UpdateDeliveryStatus(ctx context.Context, id int64, status domain.DeliveryStatus, completedAt *time.Time) error
	UpdateDeliveryEstimate(ctx context.Context, id int64, est domain.Estimate) error
	ListDeliveriesByDriver(ctx context.Context, driverID int64) ([]domain.DeliveryOrder, error)
}

// TrackStore is the append-only GPS log.
type TrackStore interface {
	InsertTrackPoint(ctx context.Context, p *domain.TrackPoint) error
	LatestTrackPoint(ctx context.Context, deliveryID int64) (*domain.TrackPoint, error)
	ListTrackPoints(ctx context.Context, deliveryID int64, limit int) ([]domain.TrackPoint, error)
}

// WaybillStore is the waybill storage. UpsertWaybill keeps an existing number.
type WaybillStore interface {
	UpsertWaybill(ctx context.Context, w *domain.Waybill) error
	GetWaybillByOrder(ctx context.Context, orderID int64) (*domain.Waybill, error)
}

// ActivityStore is the audit log.
type ActivityStore interface {
	AppendActivity(ctx context.Context, e *domain.ActivityEntry) error
}

// Repository is the storage visible inside one unit of work.
type Repository interface {
	CatalogStore
	ProductStore
	OrderStore
	PaymentStore
	UserStore
	DeliveryStore
	TrackStore
	WaybillStore
	ActivityStore
}

// Runner opens units of work.
type Runner interface {
	// WithTx runs fn in a transaction, rolled back when fn fails or panics.
	WithTx(ctx context.Context, fn func(tx Repository) error) error
	// View runs fn outside a transaction; locking reads do not hold locks here.
	View(ctx context.Context, fn func(q Repository) error) error
}

// ErrDuplicateCode is returned by InsertOrder when the order code is taken.
var ErrDuplicateCode = errors.New("order code already exists")
