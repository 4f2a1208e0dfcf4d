package token

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the authorization role a signed token carries.
type Role string

const (
	RoleAnon        Role = "anon"
	RoleServiceRole Role = "service_role"
	RoleRunner      Role = "runner"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAnon, RoleServiceRole, RoleRunner:
		return true
	}
	return false
}

// Claims is the payload of a platform-signed token. Runner tokens are scoped
// to exactly one (organization, environment) pair; the scope fields are empty
// for the other roles. The issuer performs no validation beyond the role enum:
// the caller owns claim correctness, since over-scoping a claim is the main
// security failure mode.
type Claims struct {
	Role    Role   `json:"role"`
	OrgID   string `json:"org_id,omitempty"`
	OrgSlug string `json:"org_slug,omitempty"`
	EnvID   string `json:"env_id,omitempty"`
	EnvSlug string `json:"env_slug,omitempty"`
	jwt.RegisteredClaims
}

// RunnerClaims builds a runner-scoped claim set for one (org, environment).
func RunnerClaims(orgID, orgSlug, envID, envSlug string, ttl time.Duration) Claims {
	return Claims{
		Role:    RoleRunner,
		OrgID:   orgID,
		OrgSlug: orgSlug,
		EnvID:   envID,
		EnvSlug: envSlug,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
}

// KeyClaims builds an anon or service_role claim set with the organization
// slug as audience.
func KeyClaims(role Role, orgSlug string, ttl time.Duration) Claims {
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{orgSlug},
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}
}
