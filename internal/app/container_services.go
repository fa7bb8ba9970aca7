package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/config"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
	"palmshell-dispatch/internal/service/account"
	"palmshell-dispatch/internal/service/catalog"
	"palmshell-dispatch/internal/service/dispatch"
	"palmshell-dispatch/internal/service/inventory"
	"palmshell-dispatch/internal/service/notify"
	"palmshell-dispatch/internal/service/order"
	"palmshell-dispatch/internal/service/payment"
	"palmshell-dispatch/internal/service/tracking"
)

func registerDomainServices(container *dig.Container) error {
	return provideAll(container,
		inventory.NewLedger,
		newPaymentService,
		newOrderService,
		newDispatchService,
		newTrackingService,
		newCatalogService,
		newAccountService,
	)
}

type paymentIn struct {
	dig.In
	Config  *config.Config
	Logger  logx.Logger
	Repo    ordertx.Runner
	Policy  *authz.Policy
	Notify  *notify.Dispatcher
	Gateway payment.Gateway
	Dedup   payment.Deduper
}

func newPaymentService(in paymentIn) *payment.Service {
	return payment.NewService(payment.Deps{
		Repo:    in.Repo,
		Gateway: in.Gateway,
		Dedup:   in.Dedup,
		Policy:  in.Policy,
		Notify:  in.Notify,
		Logger:  in.Logger,
		Timeout: in.Config.Service.OperationTimeout,
	})
}

type orderIn struct {
	dig.In
	Config   *config.Config
	Logger   logx.Logger
	Repo     ordertx.Runner
	Ledger   *inventory.Ledger
	Policy   *authz.Policy
	Notify   *notify.Dispatcher
	Payments *payment.Service
	Created  prometheus.Counter `name:"orders_created_total"`
}

func newOrderService(in orderIn) *order.Service {
	return order.NewService(order.Deps{
		Repo:     in.Repo,
		Ledger:   in.Ledger,
		Policy:   in.Policy,
		Refunder: in.Payments,
		Notify:   in.Notify,
		Logger:   in.Logger,
		Created:  in.Created,
		Timeout:  in.Config.Service.OperationTimeout,
	})
}

type dispatchIn struct {
	dig.In
	Config     *config.Config
	Logger     logx.Logger
	Repo       ordertx.Runner
	Policy     *authz.Policy
	Notify     *notify.Dispatcher
	Estimator  dispatch.DistanceEstimator
	Positions  tracking.PositionCache
	Rejections prometheus.Counter `name:"geofence_rejections_total"`
}

func newDispatchService(in dispatchIn) *dispatch.Service {
	return dispatch.NewService(dispatch.Deps{
		Repo:       in.Repo,
		Policy:     in.Policy,
		Notify:     in.Notify,
		Estimator:  in.Estimator,
		Positions:  in.Positions,
		Logger:     in.Logger,
		Rejections: in.Rejections,
		RadiusKm:   in.Config.Geofence.RadiusKm,
		Timeout:    in.Config.Service.OperationTimeout,
	})
}

type trackingIn struct {
	dig.In
	Config *config.Config
	Logger logx.Logger
	Repo   ordertx.Runner
	Policy *authz.Policy
	Cache  tracking.PositionCache
}

func newTrackingService(in trackingIn) *tracking.Service {
	return tracking.NewService(tracking.Deps{
		Repo:    in.Repo,
		Policy:  in.Policy,
		Cache:   in.Cache,
		Logger:  in.Logger,
		Timeout: in.Config.Service.OperationTimeout,
	})
}

type catalogIn struct {
	dig.In
	Config *config.Config
	Repo   ordertx.Runner
	Policy *authz.Policy
}

func newCatalogService(in catalogIn) *catalog.Service {
	return catalog.NewService(catalog.Deps{
		Repo:    in.Repo,
		Policy:  in.Policy,
		Timeout: in.Config.Service.OperationTimeout,
	})
}

type accountIn struct {
	dig.In
	Config *config.Config
	Logger logx.Logger
	Repo   ordertx.Runner
	Policy *authz.Policy
}

func newAccountService(in accountIn) *account.Service {
	return account.NewService(account.Deps{
		Repo:    in.Repo,
		Policy:  in.Policy,
		Logger:  in.Logger,
		Timeout: in.Config.Service.OperationTimeout,
	})
}
