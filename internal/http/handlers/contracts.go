package handlers

import (
	"context"

	"palmshell-dispatch/internal/domain"
)

type orderService interface {
	Create(ctx context.Context, actor domain.Actor, in domain.CreateOrderInput) (domain.Order, error)
	Get(ctx context.Context, actor domain.Actor, orderID int64) (domain.Order, error)
	List(ctx context.Context, actor domain.Actor, f domain.ListOrdersFilter) ([]domain.Order, error)
	Approve(ctx context.Context, actor domain.Actor, orderID int64) (domain.Order, error)
	Cancel(ctx context.Context, actor domain.Actor, orderID int64, reason string) (domain.CancelResult, error)
}

type paymentService interface {
	Checkout(ctx context.Context, actor domain.Actor, in domain.CheckoutInput) (domain.Payment, error)
	HandleCallback(ctx context.Context, in domain.CallbackInput) (domain.Payment, error)
}

type dispatchService interface {
	AssignDriver(ctx context.Context, actor domain.Actor, in domain.AssignDriverInput) (domain.AssignResult, error)
	UpdateDeliveryStatus(ctx context.Context, actor domain.Actor, in domain.UpdateDeliveryStatusInput) (domain.DeliveryOrder, error)
	CompleteDelivery(ctx context.Context, actor domain.Actor, in domain.CompleteDeliveryInput) (domain.CompleteResult, error)
	ListDrivers(ctx context.Context, actor domain.Actor, onlyAvailable bool) ([]domain.User, error)
	SetAvailability(ctx context.Context, actor domain.Actor, a domain.Availability) (domain.User, error)
	ListAssignments(ctx context.Context, actor domain.Actor) ([]domain.DeliveryOrder, error)
	CreateWaybill(ctx context.Context, actor domain.Actor, orderID int64, notes string) (domain.Waybill, error)
	GetWaybill(ctx context.Context, actor domain.Actor, orderID int64) (domain.Waybill, error)
}

type trackingService interface {
	RecordPosition(ctx context.Context, actor domain.Actor, in domain.RecordPositionInput) (domain.TrackPoint, error)
	Tracking(ctx context.Context, actor domain.Actor, orderID int64) (domain.TrackingView, error)
	History(ctx context.Context, actor domain.Actor, deliveryID int64, limit int) ([]domain.TrackPoint, error)
}

type catalogService interface {
	ListProducts(ctx context.Context, actor domain.Actor, f domain.ProductFilter) ([]domain.Product, error)
	GetProduct(ctx context.Context, actor domain.Actor, id int64) (domain.Product, error)
}

type accountService interface {
	SetPushToken(ctx context.Context, actor domain.Actor, token string) error
}
