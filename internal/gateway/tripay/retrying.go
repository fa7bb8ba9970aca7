package tripay

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"palmshell-dispatch/internal/domain"
	"palmshell-dispatch/internal/logx"
	"palmshell-dispatch/internal/service/payment"
)

type counter interface {
	Inc()
}

// RetryConfig describes the RetryingGateway backoff.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// RetryingGateway retries transient provider failures with exponential backoff.
type RetryingGateway struct {
	next    payment.Gateway
	logger  logx.Logger
	retries counter
	cfg     RetryConfig
}

// NewRetryingGateway returns nil when next is nil.
func NewRetryingGateway(next payment.Gateway, logger logx.Logger, retries counter, cfg RetryConfig) *RetryingGateway {
	if next == nil {
		return nil
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &RetryingGateway{next: next, logger: logger, retries: retries, cfg: cfg}
}

var _ payment.Gateway = (*RetryingGateway)(nil)

// CreateIntent retries the call on transient failures.
func (g *RetryingGateway) CreateIntent(ctx context.Context, req payment.IntentRequest) (payment.Intent, error) {
	var out payment.Intent
	err := g.do(ctx, "CreateIntent", func() error {
		var err error
		out, err = g.next.CreateIntent(ctx, req)
		return err
	})
	return out, err
}

// VerifyCallback is local and never retried.
func (g *RetryingGateway) VerifyCallback(signature string, body []byte) bool {
	return g.next.VerifyCallback(signature, body)
}

// RequestRefund retries the call on transient failures.
func (g *RetryingGateway) RequestRefund(ctx context.Context, p domain.Payment) (payment.RefundResult, error) {
	var out payment.RefundResult
	err := g.do(ctx, "RequestRefund", func() error {
		var err error
		out, err = g.next.RequestRefund(ctx, p)
		return err
	})
	return out, err
}

func (g *RetryingGateway) do(ctx context.Context, method string, call func() error) error {
	var lastErr error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		err := call()
		if err == nil {
			return nil
		}
		lastErr = err

		if ctx.Err() != nil || attempt == g.cfg.MaxAttempts || !isRetryable(err) {
			break
		}

		delay := backoff(g.cfg.BaseDelay, g.cfg.MaxDelay, attempt)
		if g.retries != nil {
			g.retries.Inc()
		}
		g.logger.Warn("payment gateway retry",
			logx.String("method", method),
			logx.Int("attempt", attempt),
			logx.Duration("delay", delay),
			logx.Err(err),
		)
		if !sleepWithContext(ctx, delay) {
			break
		}
	}
	return lastErr
}

func isRetryable(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		default:
			return false
		}
	}
	var ne net.Error
	return errors.As(err, &ne)
}

func backoff(base, max time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	if d > max {
		return max
	}
	return d
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
