package httpapi

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/logging"
	"github.com/doclearn/doclearn/internal/server/auth"
)

type ctxKey string

const identityKey ctxKey = "identity"

// IdentityFrom returns the caller identity stored by the auth middleware.
func IdentityFrom(ctx context.Context) (*auth.Identity, bool) {
	id, ok := ctx.Value(identityKey).(*auth.Identity)
	return id, ok && id != nil
}

func withIdentity(ctx context.Context, id *auth.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Authenticate requires a valid bearer access token and stores the caller
// identity in the request context.
func Authenticate(secret []byte, logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get(common.AuthorizationHeader)
			token, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				writeError(w, r, logger, common.ErrorUnauthorized)
				return
			}

			id, err := auth.ParseToken(strings.TrimSpace(token), secret)
			if err != nil {
				writeError(w, r, logger, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), id)))
		})
	}
}

// RequireModerator rejects callers whose token does not carry a moderator
// role. The services check the stored account again, so a stale token
// cannot outlive a demotion or a ban.
func RequireModerator(logger logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := IdentityFrom(r.Context())
			if !ok {
				writeError(w, r, logger, common.ErrorUnauthorized)
				return
			}
			if !common.IsModeratorRole(id.Role) {
				writeError(w, r, logger, common.Forbidden("admin access required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Counter increments a windowed counter.
type Counter interface {
	IncrWithExpire(ctx context.Context, namespace, k string, window time.Duration) (int64, error)
}

// RateObserver is told about rejected requests.
type RateObserver interface {
	RateLimited(scope string)
}

// RateLimit allows at most limit requests per window for each caller,
// keyed by user id when authenticated and by client address otherwise.
// When the counter store fails the request is let through.
func RateLimit(counter Counter, scope string, limit int, window time.Duration, observer RateObserver, logger logging.Logger) func(http.Handler) http.Handler {
	namespace := "ratelimit:" + scope
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if counter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			count, err := counter.IncrWithExpire(r.Context(), namespace, clientKey(r), window)
			if err != nil {
				logger.Warn(r.Context(), "rate limiter unavailable", "scope", scope, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(limit) - count
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			if count > int64(limit) {
				if observer != nil {
					observer.RateLimited(scope)
				}
				w.Header().Set("Retry-After", strconv.Itoa(int(window.Seconds())))
				writeMessage(w, http.StatusTooManyRequests, "too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if id, ok := IdentityFrom(r.Context()); ok {
		return "uid:" + id.UserID
	}
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		return "ip:" + strings.TrimSpace(strings.Split(ip, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return "ip:" + host
	}
	return "ip:" + r.RemoteAddr
}
