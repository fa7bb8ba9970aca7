package app

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"palmshell-dispatch/internal/metrics"
)

type metricsOut struct {
	dig.Out

	RateLimitExceededTotal  prometheus.Counter `name:"rate_limit_exceeded_total"`
	GatewayRetriesTotal     prometheus.Counter `name:"gateway_retries_total"`
	OrdersCreatedTotal      prometheus.Counter `name:"orders_created_total"`
	GeofenceRejectionsTotal prometheus.Counter `name:"geofence_rejections_total"`
}

func registerMetrics(container *dig.Container) error {
	return provideAll(container, provideMetrics)
}

// provideMetrics registers the service counters in the default registry.
// A counter already registered under the same name is reused.
func provideMetrics() (metricsOut, error) {
	var out metricsOut
	var err error

	if out.RateLimitExceededTotal, err = registerCounter(metrics.NewRateLimitExceededTotal(), "rate_limit_exceeded_total"); err != nil {
		return metricsOut{}, err
	}
	if out.GatewayRetriesTotal, err = registerCounter(metrics.NewGatewayRetriesTotal(), "gateway_retries_total"); err != nil {
		return metricsOut{}, err
	}
	if out.OrdersCreatedTotal, err = registerCounter(metrics.NewOrdersCreatedTotal(), "orders_created_total"); err != nil {
		return metricsOut{}, err
	}
	if out.GeofenceRejectionsTotal, err = registerCounter(metrics.NewGeofenceRejectionsTotal(), "geofence_rejections_total"); err != nil {
		return metricsOut{}, err
	}
	return out, nil
}

func registerCounter(c prometheus.Counter, name string) (prometheus.Counter, error) {
	err := prometheus.DefaultRegisterer.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
			return existing, nil
		}
	}
	return nil, fmt.Errorf("register %s: %w", name, err)
}
