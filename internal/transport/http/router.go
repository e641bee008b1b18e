package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"execledger/internal/platform/metrics"
	"execledger/internal/platform/middleware"
)

// Registrar is implemented by module handlers.
type Registrar interface {
	Register(r chi.Router)
}

// RouterDeps is everything the router mounts.
type RouterDeps struct {
	Logger    *slog.Logger
	Metrics   *metrics.Metrics
	Validator middleware.TokenValidator
	Modules   []Registrar
	Feed      http.Handler
	Replay    http.Handler
	Health    *HealthHandler
	// RateLimit, when set, runs on the authenticated group before the
	// modules.
	RateLimit func(http.Handler) http.Handler
}

// NewRouter wires all public endpoints. Reads are public; writes need a
// bearer token, and the modules decide what the caller may do.
func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recovery(d.Logger))
	r.Use(middleware.RequestID)
	r.Use(middleware.RequestTime)
	r.Use(middleware.Logger(d.Logger))
	if d.Metrics != nil {
		r.Use(metrics.LatencyMiddleware(d.Metrics))
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}
	if d.Health != nil {
		r.Get("/healthz", d.Health.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(d.Validator, d.Logger))
		r.Use(middleware.RequireCallerForWrites(d.Logger))
		if d.RateLimit != nil {
			r.Use(d.RateLimit)
		}
		r.Use(timeout(30 * time.Second))
		for _, m := range d.Modules {
			m.Register(r)
		}
		if d.Replay != nil {
			r.Method(http.MethodGet, "/v1/events", d.Replay)
		}
	})

	// The feed is long-lived and must not inherit the request timeout.
	if d.Feed != nil {
		r.Method(http.MethodGet, "/v1/events/ws", d.Feed)
	}
	return r
}

func timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, `{"error":"timeout","error_description":"request timed out"}`)
	}
}
