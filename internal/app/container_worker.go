package app

import (
	"fmt"

	"go.uber.org/dig"

	"palmshell-dispatch/internal/config"
	"palmshell-dispatch/internal/gateway/push"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/ports/ordertx"
	"palmshell-dispatch/internal/service/notify"
	"palmshell-dispatch/internal/transport/kafka"
)

func registerWorker(container *dig.Container) error {
	return provideAll(container,
		providePushClient,
		func(repo ordertx.Runner, sender *push.Client, logger logx.Logger) *notify.Processor {
			return notify.NewProcessor(notify.RepoTokens{Repo: repo}, sender, logger)
		},
		provideConsumer,
	)
}

func providePushClient(cfg *config.Config) (*push.Client, error) {
	c, err := push.NewClient(cfg.Push.ServerKey, push.WithEndpoint(cfg.Push.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("push: %w", err)
	}
	return c, nil
}

func provideConsumer(cfg *config.Config, logger logx.Logger, p *notify.Processor) (*kafka.Consumer, error) {
	c, err := kafka.NewConsumer(logger, cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic,
		makeNotificationsKafka(p))
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return c, nil
}
