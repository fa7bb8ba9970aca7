package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"palmshell-dispatch/internal/http/handlers"
	mw "palmshell-dispatch/internal/http/middleware"
	"palmshell-dispatch/internal/http/middleware/auth"
	"palmshell-dispatch/internal/http/middleware/ratelimit"
	"palmshell-dispatch/internal/logx"
)

// Deps are the pieces the router mounts.
type Deps struct {
	Logger    logx.Logger
	Verifier  *auth.Verifier
	RateLimit *ratelimit.Middleware
	Pprof     http.Handler // nil keeps /debug/pprof unmounted

	Base     *handlers.Handlers
	Orders   *handlers.OrderHandler
	Payments *handlers.PaymentHandler
	Dispatch *handlers.DispatchHandler
	Tracking *handlers.TrackingHandler
	Catalog  *handlers.CatalogHandler
	Account  *handlers.AccountHandler
}

// New constructs a chi-based http.Handler with base middleware and routes.
func New(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = logx.Nop()
	}
	limit := func(next http.Handler) http.Handler { return next }
	if d.RateLimit != nil {
		limit = d.RateLimit.Handler()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Observability(logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/ping", d.Base.Ping)
	r.Method(http.MethodHead, "/healthcheck", http.HandlerFunc(d.Base.HealthcheckHead))
	r.Handle("/metrics", promhttp.Handler())
	if d.Pprof != nil {
		r.Mount("/debug/pprof", d.Pprof)
	}
	r.NotFound(http.HandlerFunc(d.Base.NotFound))
	r.MethodNotAllowed(http.HandlerFunc(d.Base.MethodNotAllowed))

	// gateway callback is signed, not bearer-authenticated
	r.With(limit).Post("/payments/callback", d.Payments.Callback)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(d.Verifier, logger))
		r.Use(mw.CaptureActor)
		r.Use(limit)

		r.Post("/fcm-token", d.Account.SetPushToken)
		r.Get("/products", d.Catalog.List)
		r.Get("/products/{id}", d.Catalog.Get)

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", d.Orders.Create)
			r.Get("/", d.Orders.List)
			r.Get("/{id}", d.Orders.Get)
			r.Post("/{id}/cancel", d.Orders.Cancel)
			r.Post("/{id}/checkout", d.Payments.Checkout)
			r.Get("/{id}/tracking", d.Tracking.Tracking)
			r.Get("/{id}/waybill", d.Dispatch.GetWaybill)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Post("/orders/{id}/approve", d.Orders.Approve)
			r.Post("/orders/{id}/assign", d.Dispatch.Assign)
			r.Post("/orders/{id}/waybill", d.Dispatch.CreateWaybill)
			r.Get("/drivers", d.Dispatch.ListDrivers)
		})

		r.Route("/driver", func(r chi.Router) {
			r.Put("/availability", d.Dispatch.SetAvailability)
			r.Get("/deliveries", d.Dispatch.Assignments)
			r.Put("/deliveries/{id}/status", d.Dispatch.UpdateStatus)
			r.Post("/deliveries/{id}/complete", d.Dispatch.Complete)
			r.Post("/deliveries/{id}/position", d.Tracking.RecordPosition)
		})

		r.Get("/deliveries/{id}/track", d.Tracking.History)
	})

	return r
}
