package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/dig"
	"go.uber.org/multierr"

	"palmshell-dispatch/internal/cache"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/transport/kafka"
)

const shutdownTimeout = 15 * time.Second

// Runner runs the HTTP API from a built container.
type Runner struct {
	runFn func(*dig.Container) error
	exit  func(int)
}

// NewRunner returns a Runner serving until the container context is done.
func NewRunner() *Runner {
	return &Runner{runFn: run, exit: os.Exit}
}

// MustRun starts the HTTP server and exits the process on a startup or serve error.
func (r *Runner) MustRun(container *dig.Container) {
	err := r.runFn(container)
	if err == nil {
		return
	}
	logger := containerLogger(container)
	switch {
	case errors.Is(err, context.Canceled):
		logger.Info("shutdown requested, exiting")
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("startup aborted: startup timeout exceeded")
	default:
		logger.Error("run error", logx.Err(err))
		if r.exit != nil {
			r.exit(1)
		}
	}
}

func containerLogger(container *dig.Container) logx.Logger {
	logger := logx.Nop()
	_ = container.Invoke(func(l logx.Logger) { logger = l })
	return logger
}

type apiIn struct {
	dig.In
	Ctx      context.Context
	Logger   logx.Logger
	Server   *http.Server
	Pool     *pgxpool.Pool   `optional:"true"`
	Cache    *cache.Client   `optional:"true"`
	Producer *kafka.Producer `optional:"true"`
}

func run(container *dig.Container) error {
	return container.Invoke(appRun)
}

// appRun serves until the context is canceled, then drains and releases resources.
// It returns the context error on a requested shutdown.
func appRun(in apiIn) error {
	serveErr := startServer(in.Server, in.Logger)

	select {
	case <-in.Ctx.Done():
		in.Logger.Info("shutting down palmshell api")
	case err := <-serveErr:
		closeResources(in)
		return fmt.Errorf("listen: %w", err)
	}

	gracefulShutdown(in.Server, in.Logger, shutdownTimeout)
	closeResources(in)
	return in.Ctx.Err()
}

func startServer(server *http.Server, logger logx.Logger) <-chan error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("palmshell api listening", logx.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	return errCh
}

func gracefulShutdown(srv *http.Server, logger logx.Logger, timeout time.Duration) {
	shCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		logger.Error("graceful shutdown error", logx.Err(err))
	}
}

func closeResources(in apiIn) {
	var err error
	if in.Server != nil {
		err = multierr.Append(err, in.Server.Close())
	}
	if in.Producer != nil {
		err = multierr.Append(err, in.Producer.Close())
	}
	if in.Cache != nil {
		err = multierr.Append(err, in.Cache.Close())
	}
	if in.Pool != nil {
		in.Pool.Close()
	}
	for _, e := range multierr.Errors(err) {
		in.Logger.Error("resource close error", logx.Err(e))
	}
}
