// Package mw holds HTTP middleware shared by the API routes.
package mw

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fieldset/fieldset-api/internal/service"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the caller resolved for a request. Tenant identity is managed
// upstream; this service trusts the gateway-supplied headers, or resolves a
// publishable key when one is presented instead.
type Identity struct {
	TenantID string
	ActorID  string
	// KeyID is set when the request authenticated with a publishable key.
	KeyID string
}

// GetIdentity returns the request identity, or nil outside the auth chain.
func GetIdentity(ctx context.Context) *Identity {
	id, _ := ctx.Value(identityKey).(*Identity)
	return id
}

// WithIdentity returns a context carrying the identity. Exposed for tests.
func WithIdentity(ctx context.Context, id *Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// Auth resolves the caller from X-Tenant-ID/X-Actor-ID headers, or from a
// Bearer publishable key. Requests with neither are rejected.
func Auth(keys *service.PublishableKeyService, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tenantID := r.Header.Get("X-Tenant-ID"); tenantID != "" {
				id := &Identity{
					TenantID: tenantID,
					ActorID:  r.Header.Get("X-Actor-ID"),
				}
				next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
				return
			}

			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				presented := strings.TrimPrefix(auth, "Bearer ")
				key, err := keys.VerifyKey(r.Context(), presented)
				if err == nil {
					id := &Identity{TenantID: key.TenantID, KeyID: key.ID}
					next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
					return
				}
				logger.Debug("publishable key rejected", "error", err)
			}

			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"title":"Unauthorized","status":401,"detail":"authentication required"}`))
		})
	}
}
