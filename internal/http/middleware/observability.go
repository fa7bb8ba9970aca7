package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"palmshell-dispatch/internal/http/middleware/auth"
	"palmshell-dispatch/internal/logx"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration)
}

// Observability records request metrics and writes the access log.
func Observability(logger logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

			// the actor is set further down the chain, read it back through the holder
			holder := &actorHolder{}
			next.ServeHTTP(ww, r.WithContext(withHolder(r.Context(), holder)))

			// route pattern keeps label cardinality bounded
			path := pathPattern(r)
			tm := time.Since(start)
			status := strconv.Itoa(ww.Status())

			httpRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, path, status).Observe(tm.Seconds())

			fields := []logx.Field{
				logx.String("method", r.Method),
				logx.String("path", path),
				logx.Int("status", ww.Status()),
				logx.Duration("duration", tm),
			}
			if id := chimw.GetReqID(r.Context()); id != "" {
				fields = append(fields, logx.String("req_id", id))
			}
			if holder.set {
				fields = append(fields, logx.Int64("actor_id", holder.actorID), logx.String("role", holder.role))
			}
			logger.Info("http request", fields...)
		})
	}
}

// CaptureActor copies the authenticated actor into the access log.
// Mount it after the auth middleware.
func CaptureActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h := holderFrom(r); h != nil {
			if a, ok := auth.ActorFrom(r.Context()); ok {
				h.set, h.actorID, h.role = true, a.ID, string(a.Role)
			}
		}
		next.ServeHTTP(w, r)
	})
}

func pathPattern(r *http.Request) string {
	rc := chi.RouteContext(r.Context())
	if rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
