package middleware

import (
	"context"
	"net/http"

	"github.com/dom/jober-auth/internal/api/respond"
	"github.com/dom/jober-auth/internal/domain"
	"github.com/dom/jober-auth/internal/service"
	"go.uber.org/zap"
)

type contextKey string

const (
	IdentityKey contextKey = "identity"
)

// Auth resolves the bearer token into an identity and stores it on the
// request context. Requests without a valid token are rejected with 401.
func Auth(guard *service.Guard, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := guard.Identify(r.Header.Get("Authorization"))
			if err != nil {
				respond.Error(w, logger, "middleware.Auth", err)
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles admits identities holding any of roles. Must run after Auth.
func RequireRoles(guard *service.Guard, logger *zap.Logger, roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := GetIdentity(r.Context())
			if err := guard.Require(identity, roles...); err != nil {
				respond.Error(w, logger, "middleware.RequireRoles", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAnyRole admits identities holding at least one role. Must run after Auth.
func RequireAnyRole(guard *service.Guard, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, _ := GetIdentity(r.Context())
			if err := guard.RequireAnyRole(identity); err != nil {
				respond.Error(w, logger, "middleware.RequireAnyRole", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func GetIdentity(ctx context.Context) (*domain.Identity, bool) {
	identity, ok := ctx.Value(IdentityKey).(*domain.Identity)
	return identity, ok && identity != nil
}
