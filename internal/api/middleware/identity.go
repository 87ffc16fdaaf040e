package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/practiva/aigate/internal/contextsync"
	"github.com/practiva/aigate/pkg/models"
)

type contextKey string

const (
	// AIContextKey is the request-context key for the resolved AIContext.
	AIContextKey contextKey = "ai_context"
	// AuthenticatedKey marks whether the request carried an identity.
	AuthenticatedKey contextKey = "authenticated"
)

// Identity extracts the caller's tenant/party/role/profile from request
// headers (falling back to query parameters for the party, matching the
// recognized navigation key names) and attaches a fresh AIContext to the
// request. Every governed operation reads this context instead of doing
// ambient lookups at depth.
//
// The observer sees every request, so a tenant or party switch invalidates
// both state pools before any handler touches them.
func Identity(observer *contextsync.Observer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := strings.TrimSpace(r.Header.Get("X-Tenant-Id"))
			role := strings.TrimSpace(r.Header.Get("X-Role"))
			profileID := strings.TrimSpace(r.Header.Get("X-Profile-Id"))

			partyID := strings.TrimSpace(r.Header.Get("X-Party-Id"))
			if partyID == "" {
				params := map[string]string{}
				for key, vals := range r.URL.Query() {
					if len(vals) > 0 {
						params[key] = vals[0]
					}
				}
				partyID = contextsync.PartyFromParams(params)
			}

			authenticated := tenantID != "" && role != ""
			observer.Sync(authenticated, tenantID, partyID)

			aiCtx := models.AIContext{
				TenantID:       tenantID,
				PartyID:        partyID,
				Role:           models.Role(role),
				ProfileID:      profileID,
				ContextVersion: models.ContextVersion,
			}

			ctx := context.WithValue(r.Context(), AIContextKey, aiCtx)
			ctx = context.WithValue(ctx, AuthenticatedKey, authenticated)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAIContext retrieves the AIContext attached by Identity.
func GetAIContext(ctx context.Context) models.AIContext {
	if v, ok := ctx.Value(AIContextKey).(models.AIContext); ok {
		return v
	}
	return models.AIContext{ContextVersion: models.ContextVersion}
}

// IsAuthenticated reports whether the request carried an identity.
func IsAuthenticated(ctx context.Context) bool {
	v, ok := ctx.Value(AuthenticatedKey).(bool)
	return ok && v
}
