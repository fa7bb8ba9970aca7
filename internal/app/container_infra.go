package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"

	"palmshell-dispatch/internal/authz"
	"palmshell-dispatch/internal/cache"
	"palmshell-dispatch/internal/config"
	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/gateway/distance"
	"palmshell-dispatch/internal/gateway/tripay"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
	"palmshell-dispatch/internal/service/dispatch"
	"palmshell-dispatch/internal/service/notify"
	"palmshell-dispatch/internal/service/payment"
	"palmshell-dispatch/internal/service/tracking"
	"palmshell-dispatch/internal/transport/kafka"
)

// registerInfra provides the adapters the core services depend on.
// Optional backends resolve to nil (or a local fallback) when unconfigured.
func registerInfra(container *dig.Container) error {
	return provideAll(container,
		authz.NewPolicy,
		provideCache,
		providePositionCache,
		provideDeduper,
		providePaymentGateway,
		provideEstimator,
		provideProducer,
		provideNotifier,
		func(n notify.Notifier, repo ordertx.Runner, logger logx.Logger) *notify.Dispatcher {
			return notify.NewDispatcher(n, repo, logger)
		},
	)
}

func provideCache(ctx context.Context, cfg *config.Config, logger logx.Logger) (*cache.Client, error) {
	if !cfg.Redis.Enabled() {
		logger.Info("redis not configured, cache disabled")
		return nil, nil
	}
	c, err := cache.New(ctx, cache.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return c, nil
}

func providePositionCache(c *cache.Client) tracking.PositionCache {
	if c == nil {
		return nil
	}
	return cache.NewPositions(c, cache.PositionTTL)
}

func provideDeduper(c *cache.Client) payment.Deduper {
	if c == nil {
		return nil
	}
	return cache.NewDedup(c, cache.DedupTTL)
}

type gatewayIn struct {
	dig.In
	Config  *config.Config
	Logger  logx.Logger
	Retries prometheus.Counter `name:"gateway_retries_total"`
}

func providePaymentGateway(in gatewayIn) (payment.Gateway, error) {
	t := in.Config.Tripay
	if !t.Enabled() {
		in.Logger.Warn("tripay credentials missing, checkout and refunds are disabled")
		return tripay.Disabled{}, nil
	}
	client, err := tripay.NewClient(tripay.Config{
		BaseURL:      t.APIURL,
		APIKey:       t.APIKey,
		PrivateKey:   t.PrivateKey,
		MerchantCode: t.MerchantCode,
		CallbackURL:  t.CallbackURL,
		ReturnURL:    t.ReturnURL,
	})
	if err != nil {
		return nil, fmt.Errorf("tripay: %w", err)
	}
	return tripay.NewRetryingGateway(client, in.Logger, in.Retries, tripay.RetryConfig{
		MaxAttempts: t.Retry.MaxAttempts,
		BaseDelay:   t.Retry.BaseDelay,
		MaxDelay:    t.Retry.MaxDelay,
	}), nil
}

func provideEstimator(cfg *config.Config) (dispatch.DistanceEstimator, error) {
	origin := domain.Location{Lat: cfg.Maps.WarehouseLat, Lng: cfg.Maps.WarehouseLng}
	if cfg.Maps.APIKey == "" {
		return distance.Straight{Origin: origin}, nil
	}
	c, err := distance.NewClient(cfg.Maps.APIKey, origin)
	if err != nil {
		return nil, fmt.Errorf("distance matrix: %w", err)
	}
	return c, nil
}

func provideProducer(cfg *config.Config) (*kafka.Producer, error) {
	p, err := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, nil
}

// provideNotifier publishes to Kafka when a producer exists and logs otherwise.
func provideNotifier(p *kafka.Producer, logger logx.Logger) notify.Notifier {
	if p == nil {
		return notify.NewLogNotifier(logger)
	}
	return notify.NewPublisher(p, logger)
}
