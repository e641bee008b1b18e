package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"execledger/internal/ratelimit/metrics"
	"execledger/internal/ratelimit/models"
	"execledger/pkg/platform/httputil"
	"execledger/pkg/requestcontext"
)

// BucketStore is a sliding window counter keyed by caller.
type BucketStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (*models.RateLimitResult, error)
}

type Middleware struct {
	store    BucketStore
	limit    int
	window   time.Duration
	logger   *slog.Logger
	metrics  *metrics.Metrics
	disabled bool
}

type Option func(*Middleware)

// WithDisabled disables rate limiting entirely (for testing/demo mode).
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) {
		m.metrics = mt
	}
}

// New limits each caller to limit writes per window. A non-positive limit
// disables the middleware.
func New(store BucketStore, limit int, window time.Duration, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		store:  store,
		limit:  limit,
		window: window,
		logger: logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if limit <= 0 || store == nil {
		m.disabled = true
	}
	if m.disabled {
		logger.Info("rate limiting disabled")
	}
	return m
}

// Writes limits state changing requests. Reads pass through untouched.
// Lookup failures are logged and the request is let through.
func (m *Middleware) Writes(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.disabled || isRead(r.Method) {
			next.ServeHTTP(w, r)
			return
		}

		ctx := r.Context()
		key := clientKey(r)
		result, err := m.store.Allow(ctx, "writes:"+key, m.limit, m.window)
		if err != nil {
			m.metrics.IncErrors()
			m.logger.ErrorContext(ctx, "failed to check write rate limit",
				"error", err,
				"request_id", requestcontext.RequestID(ctx),
			)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if !result.Allowed {
			m.metrics.IncDenied()
			m.logger.WarnContext(ctx, "write rate limit exceeded",
				"client", key,
				"request_id", requestcontext.RequestID(ctx),
			)
			writeRateLimitExceeded(w, result)
			return
		}
		m.metrics.IncAllowed()
		next.ServeHTTP(w, r)
	})
}

func isRead(method string) bool {
	return method == http.MethodGet || method == http.MethodHead || method == http.MethodOptions
}

// clientKey is the authenticated principal, or the remote host for
// anonymous requests.
func clientKey(r *http.Request) string {
	if caller := requestcontext.Caller(r.Context()); !caller.IsZero() {
		return "principal:" + caller.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}

func addRateLimitHeaders(w http.ResponseWriter, result *models.RateLimitResult) {
	if result == nil {
		return
	}
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result *models.RateLimitResult) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &httputil.ErrorResponse{
		Error:            "rate_limit_exceeded",
		ErrorDescription: "Too many write requests. Please try again later.",
	})
}
