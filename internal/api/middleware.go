// Package api implements the Atelier REST API using chi.
package api

import (
	"context"
	"net/http"
	"strings"
)

// DefaultOwner is the owner id used when a request carries no X-User-ID.
const DefaultOwner = "local"

// OwnerHeader names the header that carries the workspace owner id.
const OwnerHeader = "X-User-ID"

type ownerKey struct{}

// AuthMiddleware returns middleware that validates a Bearer token.
// If enabled is false, all requests pass through (disabled mode).
// If enabled is true, requests must carry a valid "Authorization: Bearer <token>" header.
func AuthMiddleware(enabled bool, token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != token {
				writeJSON(w, http.StatusUnauthorized, errorBody("unauthorized"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// OwnerMiddleware stores the caller's owner id in the request context.
// The id only scopes Drive credentials; it is not authenticated.
func OwnerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		owner := strings.TrimSpace(r.Header.Get(OwnerHeader))
		if owner == "" {
			owner = DefaultOwner
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ownerKey{}, owner)))
	})
}

func ownerFrom(ctx context.Context) string {
	if owner, ok := ctx.Value(ownerKey{}).(string); ok {
		return owner
	}
	return DefaultOwner
}
