package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gatherline/server/internal/api/problem"
	"github.com/gatherline/server/internal/auth"
	"github.com/gatherline/server/internal/domain/events"
)

const (
	viewerKey  contextKey = "viewer"
	claimsKey  contextKey = "claims"
	authErrKey contextKey = "auth_error"
)

// Authenticate resolves the bearer token, when one is supplied, into a
// viewer stored in the context. It never rejects: routes that can be
// browsed anonymously see a zero viewer, and RequireAuth turns a
// missing or failed resolution into a 401.
func Authenticate(manager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := auth.TokenFromHeader(r.Header.Get("Authorization"))
			if err != nil {
				// No bearer token on the request; continue anonymously.
				next.ServeHTTP(w, r)
				return
			}

			claims, err := manager.Parse(token)
			if err != nil {
				ctx := context.WithValue(r.Context(), authErrKey, err)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			viewer := events.Viewer{
				UserID:  claims.Subject,
				IsAdmin: auth.IsAdmin(claims.Role),
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			ctx = context.WithValue(ctx, viewerKey, viewer)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests that did not resolve to a viewer.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, ok := ViewerFrom(r.Context())
		if !ok || !viewer.Authenticated() {
			writeUnauthenticated(w, r)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects requests whose viewer is not an administrator.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		viewer, ok := ViewerFrom(r.Context())
		if !ok || !viewer.Authenticated() {
			writeUnauthenticated(w, r)
			return
		}
		if !viewer.IsAdmin {
			problem.Write(w, r, http.StatusForbidden, "Access denied")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeUnauthenticated(w http.ResponseWriter, r *http.Request) {
	err, _ := r.Context().Value(authErrKey).(error)
	switch {
	case err == nil:
		problem.Write(w, r, http.StatusUnauthorized, "Authentication required")
	case errors.Is(err, auth.ErrExpiredToken):
		problem.Write(w, r, http.StatusUnauthorized, "Token has expired")
	default:
		problem.Write(w, r, http.StatusUnauthorized, "Invalid token")
	}
}

// ViewerFrom returns the authenticated viewer. The zero viewer stands
// for an anonymous request.
func ViewerFrom(ctx context.Context) (events.Viewer, bool) {
	viewer, ok := ctx.Value(viewerKey).(events.Viewer)
	return viewer, ok
}

// ClaimsFrom returns the verified token claims for the request.
func ClaimsFrom(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}
