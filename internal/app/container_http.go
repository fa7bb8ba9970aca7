package app

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"palmshell-dispatch/internal/config"
	"palmshell-dispatch/internal/http/handlers"
	"palmshell-dispatch/internal/http/middleware/auth"
	"palmshell-dispatch/internal/http/middleware/ratelimit"
	"palmshell-dispatch/internal/http/pprofserver"
	"palmshell-dispatch/internal/http/router"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/service/account"
	"palmshell-dispatch/internal/service/catalog"
	"palmshell-dispatch/internal/service/dispatch"
	"palmshell-dispatch/internal/service/order"
	"palmshell-dispatch/internal/service/payment"
	"palmshell-dispatch/internal/service/tracking"
)

func registerHTTP(container *dig.Container) error {
	return provideAll(container,
		handlers.New,
		func(l logx.Logger, s *order.Service) *handlers.OrderHandler { return handlers.NewOrderHandler(l, s) },
		func(l logx.Logger, s *payment.Service) *handlers.PaymentHandler { return handlers.NewPaymentHandler(l, s) },
		func(l logx.Logger, s *dispatch.Service) *handlers.DispatchHandler { return handlers.NewDispatchHandler(l, s) },
		func(l logx.Logger, s *tracking.Service) *handlers.TrackingHandler { return handlers.NewTrackingHandler(l, s) },
		func(l logx.Logger, s *catalog.Service) *handlers.CatalogHandler { return handlers.NewCatalogHandler(l, s) },
		func(l logx.Logger, s *account.Service) *handlers.AccountHandler { return handlers.NewAccountHandler(l, s) },
		func(cfg *config.Config) (*auth.Verifier, error) { return auth.NewVerifier(cfg.Auth.JWTSecret) },
		newRateLimitMiddleware,
		providePprof,
		newRouter,
		newHTTPServer,
	)
}

type rateLimitIn struct {
	dig.In
	Config  *config.Config
	Logger  logx.Logger
	Counter prometheus.Counter `name:"rate_limit_exceeded_total"`
}

// newRateLimitMiddleware allows everything when limiting is switched off.
func newRateLimitMiddleware(in rateLimitIn) *ratelimit.Middleware {
	rl := in.Config.RateLimit
	if !rl.Enabled {
		return ratelimit.New(in.Logger, in.Counter, ratelimit.NopLimiter{})
	}
	limiter := ratelimit.NewVisitorLimiter(ratelimit.RealClock{}, ratelimit.Config{
		Rate:       rl.Rate,
		Burst:      rl.Burst,
		TTL:        rl.TTL,
		MaxBuckets: rl.MaxBuckets,
	})
	return ratelimit.New(in.Logger, in.Counter, limiter)
}

type pprofOut struct {
	dig.Out
	Handler http.Handler `name:"pprof"`
}

// providePprof yields a nil handler when profiling is off.
func providePprof(cfg *config.Config, v *auth.Verifier) pprofOut {
	if !cfg.Pprof.Enabled {
		return pprofOut{}
	}
	return pprofOut{Handler: pprofserver.Handler(pprofserver.Config{
		User:   cfg.Pprof.User,
		Pass:   cfg.Pprof.Pass,
		Tokens: v,
	})}
}

type routerIn struct {
	dig.In
	Logger    logx.Logger
	Verifier  *auth.Verifier
	RateLimit *ratelimit.Middleware
	Pprof     http.Handler `name:"pprof" optional:"true"`

	Base     *handlers.Handlers
	Orders   *handlers.OrderHandler
	Payments *handlers.PaymentHandler
	Dispatch *handlers.DispatchHandler
	Tracking *handlers.TrackingHandler
	Catalog  *handlers.CatalogHandler
	Account  *handlers.AccountHandler
}

func newRouter(in routerIn) http.Handler {
	return router.New(router.Deps{
		Logger:    in.Logger,
		Verifier:  in.Verifier,
		RateLimit: in.RateLimit,
		Pprof:     in.Pprof,
		Base:      in.Base,
		Orders:    in.Orders,
		Payments:  in.Payments,
		Dispatch:  in.Dispatch,
		Tracking:  in.Tracking,
		Catalog:   in.Catalog,
		Account:   in.Account,
	})
}
