package auth

import (
	"context"
	"fmt"
	"net/http"

	"ms-preorder/internal/logger"
)

type contextKey string

const usernameKey contextKey = "admin_username"

// ClaimsCache is optional; see RedisTokenCache.
type ClaimsCache interface {
	Get(ctx context.Context, rawToken string) (Claims, bool, error)
	Set(ctx context.Context, rawToken string, claims Claims) error
}

// Middleware rejects requests without a valid bearer token and stores the
// admin username in the request context.
func Middleware(v Verifier, cache ClaimsCache, log *logger.Logger) func(http.Handler) http.Handler {
	if log == nil {
		log = logger.NewDiscardLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rawToken, err := ExtractTokenFromRequest(r)
			if err != nil {
				log.LogSecurity("AUTH_MISSING", fmt.Sprintf("%s: %v", r.RemoteAddr, err))
				http.Error(w, err.Error(), http.StatusUnauthorized)
				return
			}

			claims, ok := lookupCached(r.Context(), cache, rawToken, log)
			if !ok {
				claims, err = v.Verify(r.Context(), rawToken)
				if err != nil {
					log.LogSecurity("AUTH_REJECTED", fmt.Sprintf("%s: %v", r.RemoteAddr, err))
					http.Error(w, err.Error(), http.StatusUnauthorized)
					return
				}
				if cache != nil {
					if err := cache.Set(r.Context(), rawToken, claims); err != nil {
						log.Warn("AUTH", fmt.Sprintf("could not cache token: %v", err))
					}
				}
			}

			ctx := WithUsername(r.Context(), claims.Username())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func lookupCached(ctx context.Context, cache ClaimsCache, rawToken string, log *logger.Logger) (Claims, bool) {
	if cache == nil {
		return Claims{}, false
	}
	claims, ok, err := cache.Get(ctx, rawToken)
	if err != nil {
		log.Warn("AUTH", fmt.Sprintf("token cache unavailable: %v", err))
		return Claims{}, false
	}
	return claims, ok
}

func WithUsername(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, usernameKey, username)
}

// Username returns the authenticated admin, or "".
func Username(ctx context.Context) string {
	if name, ok := ctx.Value(usernameKey).(string); ok {
		return name
	}
	return ""
}
