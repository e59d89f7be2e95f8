package httpx

import (
	"context"
	"net/http"
	"strings"

	"github.com/stellarvision/launcherd/pkg/jwtx"
	"github.com/stellarvision/launcherd/pkg/slogx"
)

// Revocations is consulted on every authenticated request so a logged-out
// token stops working before its natural expiry.
type Revocations interface {
	IsBlocked(ctx context.Context, jti string) (bool, error)
}

// AuthnMiddleware verifies the bearer token and rejects revoked ones before
// any handler state is touched. revocations may be nil to skip the check
// (tests only).
func AuthnMiddleware(v jwtx.Verifier, revocations Revocations) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			authz := r.Header.Get("Authorization")
			if authz == "" || !strings.HasPrefix(authz, "Bearer ") {
				writeBearerError(w, "missing bearer token")
				return
			}
			raw := strings.TrimSpace(strings.TrimPrefix(authz, "Bearer"))

			claims, err := v.Verify(raw)
			if err != nil {
				writeBearerError(w, "token verification failed")
				log.Warn("jwt verify failed", "err", err)
				return
			}

			if revocations != nil && claims.ID != "" {
				blocked, err := revocations.IsBlocked(ctx, claims.ID)
				if err != nil {
					// Fail closed: if the revocation store is unreachable we
					// cannot prove the token is still good.
					log.Error("revocation check failed", "err", err)
					writeBearerError(w, "token verification failed")
					return
				}
				if blocked {
					writeBearerError(w, "token revoked")
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(contextWithAuth(ctx, claims)))
		})
	}
}

func contextWithAuth(ctx context.Context, c jwtx.Claims) context.Context {
	ctx = context.WithValue(ctx, CtxKeyUserID, c.Subject)
	ctx = context.WithValue(ctx, CtxKeyRoles, effectiveRoles(c))
	ctx = context.WithValue(ctx, CtxKeyClaims, c)
	return ctx
}

func effectiveRoles(c jwtx.Claims) []string {
	if len(c.Roles) > 0 {
		return c.Roles
	}
	if c.Role != "" {
		return []string{c.Role}
	}
	return nil
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	w.WriteHeader(http.StatusUnauthorized)
}
