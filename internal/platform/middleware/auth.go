package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "execledger/pkg/domain"
	dErrors "execledger/pkg/domain-errors"
	"execledger/pkg/platform/httputil"
	"execledger/pkg/requestcontext"
)

// TokenValidator validates a bearer token and returns its subject.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// Claims are the parts of a token the middleware relies on.
type Claims struct {
	Subject string
	TokenID string
}

const bearerPrefix = "Bearer "

// Authenticate resolves the caller from an Authorization bearer token when
// one is present. Requests without the header pass through anonymously; a
// header carrying an invalid token is rejected with 401.
func Authenticate(validator TokenValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			token, ok := strings.CutPrefix(authHeader, bearerPrefix)
			if !ok {
				logger.WarnContext(ctx, "unauthenticated request - malformed authorization header",
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Missing or invalid Authorization header"))
				return
			}

			claims, err := validator.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				logger.WarnContext(ctx, "unauthenticated request - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Invalid or expired token"))
				return
			}

			caller := id.NewPrincipal(claims.Subject)
			if caller.IsZero() {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Token has no subject"))
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, caller)))
		})
	}
}

// RequireCaller rejects requests that reached it without an authenticated
// caller. It must run after Authenticate.
func RequireCaller(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			if requestcontext.Caller(ctx).IsZero() {
				logger.WarnContext(ctx, "unauthenticated request - missing token",
					"request_id", requestcontext.RequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "Missing or invalid Authorization header"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireCallerForWrites applies RequireCaller to every method except GET,
// HEAD and OPTIONS.
func RequireCallerForWrites(logger *slog.Logger) func(http.Handler) http.Handler {
	require := RequireCaller(logger)
	return func(next http.Handler) http.Handler {
		guarded := require(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
			default:
				guarded.ServeHTTP(w, r)
			}
		})
	}
}
