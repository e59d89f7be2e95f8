package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stellarvision/launcherd/internal/launcher/kv"
)

const blockPrefix = "auth:block:"

// BlocklistService revokes access tokens by jti. Entries carry the token's
// remaining lifetime so the blocklist cleans itself up.
type BlocklistService struct {
	store kv.Store
	log   *slog.Logger
}

func NewBlocklistService(store kv.Store, log *slog.Logger) *BlocklistService {
	return &BlocklistService{store: store, log: log}
}

// Block revokes jti for the given remaining lifetime. An already-expired
// token needs no entry.
func (s *BlocklistService) Block(ctx context.Context, jti string, remaining time.Duration) error {
	if jti == "" {
		return errors.New("jti is required")
	}
	if remaining <= 0 {
		return nil
	}
	if _, err := s.store.SetNX(ctx, blockPrefix+jti, "1", remaining); err != nil {
		return fmt.Errorf("block token: %w", err)
	}
	s.log.Info("token revoked", "jti", jti, "remaining_s", int64(remaining/time.Second))
	return nil
}

// IsBlocked reports whether jti has been revoked. Errors propagate so the
// caller can fail closed.
func (s *BlocklistService) IsBlocked(ctx context.Context, jti string) (bool, error) {
	ok, err := s.store.Exists(ctx, blockPrefix+jti)
	if err != nil {
		return false, fmt.Errorf("check blocklist: %w", err)
	}
	return ok, nil
}

// TTL returns how long the revocation entry for jti has left. kv.ErrNotFound
// when the jti is not blocked.
func (s *BlocklistService) TTL(ctx context.Context, jti string) (time.Duration, error) {
	d, err := s.store.TTL(ctx, blockPrefix+jti)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return 0, err
		}
		return 0, fmt.Errorf("blocklist ttl: %w", err)
	}
	return d, nil
}
