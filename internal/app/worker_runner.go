package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"
	"go.uber.org/multierr"

	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/transport/kafka"
)

// WorkerRunner runs the notification consumer
type WorkerRunner struct {
	runFn func(*dig.Container) error
}

// NewWorkerRunner returns a new WorkerRunner
func NewWorkerRunner() *WorkerRunner {
	return &WorkerRunner{runFn: runWorker}
}

// MustRun consumes until the container context is done. Any other failure panics.
func (r *WorkerRunner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil || errors.Is(err, context.Canceled) {
		return
	}
	panic(err)
}

func runWorker(container *dig.Container) error {
	return container.Invoke(workerRun)
}

func workerRun(
	ctx context.Context,
	pool *pgxpool.Pool,
	logger logx.Logger,
	consumer *kafka.Consumer,
) error {
	if consumer == nil {
		return fmt.Errorf("kafka consumer is nil: set KAFKA_BROKERS for the worker")
	}
	defer closeWorker(pool, logger, consumer)

	logger.Info("palmshell worker started")
	return consumer.Run(ctx)
}

func closeWorker(pool *pgxpool.Pool, logger logx.Logger, consumer *kafka.Consumer) {
	var err error
	if consumer != nil {
		err = multierr.Append(err, consumer.Close())
	}
	if pool != nil {
		pool.Close()
	}
	for _, e := range multierr.Errors(err) {
		logger.Error("worker close error", logx.Err(e))
	}
}
