package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"dataspace/internal/visibility"
	"dataspace/pkg/requestcontext"
)

// Claim names carried by the identity provider's access tokens.
const (
	tenantNameClaim = "tenantName"
	usernameClaim   = "preferred_username"
)

type identityKey struct{}

// GetIdentity returns the authenticated caller identity, or the zero
// Identity when the request was not authenticated.
func GetIdentity(ctx context.Context) visibility.Identity {
	v, _ := ctx.Value(identityKey{}).(visibility.Identity)
	return v
}

// WithIdentity stores the identity in the context. Exported for tests.
func WithIdentity(ctx context.Context, identity visibility.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, identity)
}

// RequireAuth validates the bearer token and injects the caller identity
// into the request context. Requests without a valid token are rejected;
// role and claim evaluation is left to the visibility resolver so the
// denial taxonomy stays in one place.
func RequireAuth(signingKey []byte, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeUnauthorized(w, "missing bearer token")
				return
			}

			claims := jwt.MapClaims{}
			_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return signingKey, nil
			})
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "invalid or expired token")
				return
			}

			ctx = WithIdentity(ctx, identityFromClaims(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// identityFromClaims maps token claims onto the resolver's identity shape.
// Roles live under realm_access.roles, matching the IdP's token layout.
func identityFromClaims(claims jwt.MapClaims) visibility.Identity {
	identity := visibility.Identity{
		Claims: visibility.Claims{
			TenantName: stringClaim(claims, tenantNameClaim),
			Username:   stringClaim(claims, usernameClaim),
		},
	}

	realmAccess, _ := claims["realm_access"].(map[string]any)
	roles, _ := realmAccess["roles"].([]any)
	for _, r := range roles {
		name, _ := r.(string)
		switch visibility.Role(name) {
		case visibility.RoleAdmin, visibility.RoleAdminTenant, visibility.RoleUserParticipant:
			identity.Roles = append(identity.Roles, visibility.Role(name))
		}
	}
	return identity
}

func stringClaim(claims jwt.MapClaims, name string) string {
	v, _ := claims[name].(string)
	return v
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
