package http

import (
	"context"
	"net/http"
)

// The auth collaborator in front of this service resolves the session and
// forwards the identity as trusted headers. The core treats it as an opaque
// token plus a role flag.
const (
	headerUserID = "X-User-ID"
	headerRole   = "X-User-Role"

	roleAdmin = "admin"
)

type userIDKey struct{}
type roleKey struct{}

// IdentityMiddleware copies the resolved identity from headers into the
// request context. Routes decide for themselves whether identity is required.
func IdentityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if userID := r.Header.Get(headerUserID); userID != "" {
			ctx = context.WithValue(ctx, userIDKey{}, userID)
		}
		if role := r.Header.Get(headerRole); role != "" {
			ctx = context.WithValue(ctx, roleKey{}, role)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireUser rejects requests without a resolved identity.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userIDFromContext(r.Context()) == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects non-admin identities.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userIDFromContext(r.Context()) == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "missing user authentication")
			return
		}
		if !isAdmin(r.Context()) {
			respondError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userIDFromContext(ctx context.Context) string {
	if userID, ok := ctx.Value(userIDKey{}).(string); ok {
		return userID
	}
	return ""
}

func isAdmin(ctx context.Context) bool {
	role, ok := ctx.Value(roleKey{}).(string)
	return ok && role == roleAdmin
}
