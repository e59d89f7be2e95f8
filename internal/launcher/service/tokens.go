package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/stellarvision/launcherd/internal/launcher/domain"
	"github.com/stellarvision/launcherd/internal/launcher/kv"
	"github.com/stellarvision/launcherd/pkg/jwtx"
)

const refreshSessionPrefix = "refresh:session:"

// ScopeLauncher marks tokens minted through the code exchange; browser login
// tokens carry no scope.
var ScopeLauncher = []string{"launcher"}

// IssuedToken is the wire shape of a freshly minted access token.
type IssuedToken struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	ExpiresIn   int64  `json:"expiresIn"`
	SessionID   string `json:"sessionId,omitempty"`
}

// TokenService mints access tokens for browser logins and launcher devices.
// Device tokens get a refresh session in the shared KV so a later refresh
// flow can validate them across instances.
type TokenService struct {
	signer jwtx.Signer
	store  kv.Store
	log    *slog.Logger

	issuer     string
	audience   []string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewTokenService(signer jwtx.Signer, store kv.Store, log *slog.Logger, issuer string, audience []string, accessTTL, refreshTTL time.Duration) *TokenService {
	if accessTTL <= 0 {
		accessTTL = jwtx.DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = jwtx.DefaultRefreshTokenTTL
	}
	return &TokenService{
		signer:     signer,
		store:      store,
		log:        log,
		issuer:     issuer,
		audience:   audience,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// IssueForUser mints a browser-session access token after a password login.
func (s *TokenService) IssueForUser(ctx context.Context, u domain.User) (IssuedToken, error) {
	claims := jwtx.NewAccessClaims(u.ID, u.Roles(), nil, s.accessTTL, s.issuer, s.audience, time.Now())
	claims.Username = u.Username

	token, err := s.signer.Sign(claims)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign access token: %w", err)
	}

	s.log.Info("login token issued", "user_id", u.ID, "jti", claims.ID)
	return IssuedToken{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL / time.Second),
	}, nil
}

// IssueForDevice mints a launcher-scoped token from a consumed launch code.
// Roles come from the snapshot taken at issue time, not a fresh user read.
// A refresh session is registered in the KV under a new id; a collision on
// that id is rejected rather than silently reusing someone else's session.
func (s *TokenService) IssueForDevice(ctx context.Context, userID string, roleSnapshot []string) (IssuedToken, error) {
	if len(roleSnapshot) == 0 {
		return IssuedToken{}, errors.New("role snapshot is empty")
	}

	sid := uuid.NewString()
	ok, err := s.store.SetNX(ctx, refreshSessionPrefix+sid, userID, s.refreshTTL)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("register refresh session: %w", err)
	}
	if !ok {
		return IssuedToken{}, errors.New("refresh session id collision")
	}

	claims := jwtx.NewAccessClaims(userID, roleSnapshot, ScopeLauncher, s.accessTTL, s.issuer, s.audience, time.Now())
	claims.SID = sid

	token, err := s.signer.Sign(claims)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign device token: %w", err)
	}

	s.log.Info("device token issued", "user_id", userID, "jti", claims.ID, "sid", sid)
	return IssuedToken{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(s.accessTTL / time.Second),
		SessionID:   sid,
	}, nil
}
