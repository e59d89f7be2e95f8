package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTLs. Short access tokens, long opaque refresh sessions.
const (
	DefaultAccessTokenTTL  = 15 * time.Minute
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

// Claims are the access-token claims shared across the service. Keep changes
// additive to preserve compatibility with already-issued tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Roles held by the subject at issuance time. For device tokens this is
	// the snapshot captured when the launch code was minted, NOT a live
	// lookup.
	Roles []string `json:"roles,omitempty"`

	// Role is the legacy single-role claim, mirrors Roles[0].
	Role string `json:"role,omitempty"`

	// Scope restricts what the token may be used for, e.g. ["launcher"].
	Scope []string `json:"scope,omitempty"`

	// Username of the authenticated user, absent on device tokens.
	Username string `json:"username,omitempty"`

	// SID is the browser session id, when one exists.
	SID string `json:"sid,omitempty"`
}

// NewAccessClaims builds minimally-correct claims with a fresh jti.
func NewAccessClaims(
	subject string,
	roles, scope []string,
	ttl time.Duration,
	issuer string,
	audience []string,
	now time.Time,
) Claims {
	role := ""
	if len(roles) > 0 {
		role = roles[0]
	}
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings(audience),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Roles: roles,
		Role:  role,
		Scope: scope,
	}
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// HasRole reports whether the claims carry the given role.
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role) || c.Role == role
}

// Remaining returns the time until the token expires, clamped at zero.
// Returns zero when the exp claim is absent.
func (c *Claims) Remaining(now time.Time) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(c.ExpiresAt.Time.Sub(now), 0)
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()
	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
