package middleware

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/voltade/platform-engine/internal/api/types"
	"github.com/voltade/platform-engine/internal/models"
	"github.com/voltade/platform-engine/internal/repository"
	"github.com/voltade/platform-engine/internal/token"
)

type authKeyType string

const (
	claimsKey authKeyType = "claims"
	orgKey    authKeyType = "org"
)

// Verifier validates a compact token and returns its claims.
type Verifier interface {
	Verify(ctx context.Context, tokenString string) (*token.Claims, error)
}

// BearerToken extracts the bearer credential from a request, or "".
func BearerToken(r *http.Request) string {
	ah := r.Header.Get("Authorization")
	if !strings.HasPrefix(strings.ToLower(ah), "bearer ") {
		return ""
	}
	return strings.TrimSpace(ah[len("Bearer "):])
}

func denyJSON(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.APIResponse{
		Success: false,
		Error:   &types.APIError{Code: code, Message: msg},
	})
}

// Auth validates a platform-signed bearer token and stores its claims in the
// request context.
func Auth(verifier Verifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" {
				denyJSON(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
				return
			}
			claims, err := verifier.Verify(r.Context(), raw)
			if err != nil {
				denyJSON(w, http.StatusUnauthorized, "unauthorized", "invalid token")
				return
			}
			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetClaims returns the verified claims stored by Auth, or nil.
func GetClaims(ctx context.Context) *token.Claims {
	if v := ctx.Value(claimsKey); v != nil {
		if c, ok := v.(*token.Claims); ok {
			return c
		}
	}
	return nil
}

// RequireRole rejects requests whose token carries none of the given roles.
func RequireRole(roles ...token.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				denyJSON(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
				return
			}
			for _, role := range roles {
				if claims.Role == role {
					next.ServeHTTP(w, r)
					return
				}
			}
			denyJSON(w, http.StatusForbidden, "forbidden", "insufficient role")
		})
	}
}

// ResolveOrg loads the organization the token is scoped to and stores it in
// the request context. Runner tokens carry the org id directly; anon and
// service_role tokens carry the org slug as audience.
func ResolveOrg(orgRepo repository.OrganizationRepository) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				denyJSON(w, http.StatusUnauthorized, "unauthorized", "missing credentials")
				return
			}

			var org models.Organization
			var err error
			switch {
			case claims.OrgID != "":
				id, parseErr := uuid.Parse(claims.OrgID)
				if parseErr != nil {
					denyJSON(w, http.StatusUnauthorized, "unauthorized", "malformed org claim")
					return
				}
				err = orgRepo.GetByID(r.Context(), id, &org)
			case len(claims.Audience) > 0:
				err = orgRepo.GetBySlug(r.Context(), claims.Audience[0], &org)
			default:
				denyJSON(w, http.StatusUnauthorized, "unauthorized", "token carries no organization scope")
				return
			}
			if err != nil {
				denyJSON(w, http.StatusUnauthorized, "unauthorized", "unknown organization")
				return
			}

			ctx := context.WithValue(r.Context(), orgKey, org)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOrg returns the organization resolved by ResolveOrg.
func GetOrg(ctx context.Context) (models.Organization, bool) {
	if v := ctx.Value(orgKey); v != nil {
		if o, ok := v.(models.Organization); ok {
			return o, true
		}
	}
	return models.Organization{}, false
}

// StaticBearer authenticates machine callers holding a shared secret, such as
// the build job status callback.
func StaticBearer(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" || subtle.ConstantTimeCompare([]byte(raw), []byte(secret)) != 1 {
				denyJSON(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GeneratorAuth guards the provisioning generator endpoint: a static bearer
// token, plus a Host check in production so only the in-cluster generator
// hostname reaches it.
func GeneratorAuth(secret, hostname string, production bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := BearerToken(r)
			if raw == "" || subtle.ConstantTimeCompare([]byte(raw), []byte(secret)) != 1 {
				denyJSON(w, http.StatusUnauthorized, "unauthorized", "invalid credentials")
				return
			}
			if production && hostname != "" {
				host := r.Host
				if h, _, err := net.SplitHostPort(host); err == nil {
					host = h
				}
				if host != hostname {
					denyJSON(w, http.StatusForbidden, "forbidden", "host not permitted")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
