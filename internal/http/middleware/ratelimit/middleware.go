package ratelimit

import (
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"palmshell-dispatch/internal/http/middleware/auth"
	"palmshell-dispatch/internal/logx"
)

// Middleware limits requests per caller.
type Middleware struct {
	logger  logx.Logger
	counter prometheus.Counter
	limiter Limiter
}

// New creates a Middleware.
func New(logger logx.Logger, counter prometheus.Counter, limiter Limiter) *Middleware {
	if limiter == nil {
		limiter = NopLimiter{}
	}
	if logger == nil {
		logger = logx.Nop()
	}
	return &Middleware{
		logger:  logger,
		counter: counter,
		limiter: limiter,
	}
}

// Handler returns chi-style middleware.
func (m *Middleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := visitorKey(r)
			if !m.limiter.Allow(key) {
				if m.counter != nil {
					m.counter.Inc()
				}
				m.logger.Warn("rate limit exceeded",
					logx.String("visitor", key),
					logx.String("method", r.Method),
					logx.String("path", r.URL.Path),
				)

				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "1")
				w.WriteHeader(http.StatusTooManyRequests)
				if _, err := io.WriteString(w, `{"error":"too many requests","kind":"rate_limited"}`); err != nil {
					// client went away
					m.logger.Debug("rate limit response write failed",
						logx.String("visitor", key),
						logx.Any("err", err),
					)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// visitorKey prefers the authenticated user and falls back to the client ip.
func visitorKey(r *http.Request) string {
	if a, ok := auth.ActorFrom(r.Context()); ok {
		return "user:" + strconv.FormatInt(a.ID, 10)
	}
	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
