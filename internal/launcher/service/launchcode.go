package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/stellarvision/launcherd/internal/launcher/domain"
	"github.com/stellarvision/launcherd/internal/launcher/kv"
	"github.com/stellarvision/launcherd/pkg/cryptox"
)

// Launch code lifetime and entropy bounds. Values outside these ranges are a
// configuration bug, not a runtime condition.
const (
	MinLaunchCodeTTL = 1 * time.Second
	MaxLaunchCodeTTL = 300 * time.Second

	MinLaunchCodeBytes = 16
	MaxLaunchCodeBytes = 64
)

var (
	// ErrCodeNotFound covers both never-issued and already-consumed codes;
	// callers cannot tell the two apart and neither can we.
	ErrCodeNotFound = errors.New("launch code not found or already consumed")

	ErrCodeConflict = errors.New("launch code collision")
)

const launchCodePrefix = "launch:code:"

// LaunchCodeConfig is validated once at construction.
type LaunchCodeConfig struct {
	TTL       time.Duration
	CodeBytes int
	URIScheme string
}

// LaunchCodeService mints single-use launch codes and redeems them exactly
// once. Codes are stored under their SHA-256 fingerprint so the shared KV
// never sees the plaintext.
type LaunchCodeService struct {
	store kv.Store
	log   *slog.Logger

	ttl       time.Duration
	codeBytes int
	uriScheme string
}

func NewLaunchCodeService(store kv.Store, log *slog.Logger, cfg LaunchCodeConfig) (*LaunchCodeService, error) {
	if cfg.TTL < MinLaunchCodeTTL || cfg.TTL > MaxLaunchCodeTTL {
		return nil, fmt.Errorf("launch code ttl %s outside [%s, %s]", cfg.TTL, MinLaunchCodeTTL, MaxLaunchCodeTTL)
	}
	if cfg.CodeBytes < MinLaunchCodeBytes || cfg.CodeBytes > MaxLaunchCodeBytes {
		return nil, fmt.Errorf("launch code size %d outside [%d, %d]", cfg.CodeBytes, MinLaunchCodeBytes, MaxLaunchCodeBytes)
	}
	if cfg.URIScheme == "" {
		return nil, errors.New("launch uri scheme is required")
	}
	return &LaunchCodeService{
		store:     store,
		log:       log,
		ttl:       cfg.TTL,
		codeBytes: cfg.CodeBytes,
		uriScheme: cfg.URIScheme,
	}, nil
}

// Issue mints a fresh code bound to the calling user's identity snapshot.
// The snapshot rides along so the exchange can issue device tokens without
// re-reading the user row.
func (s *LaunchCodeService) Issue(ctx context.Context, rec domain.LaunchCodeRecord) (domain.IssuedLaunchCode, error) {
	code, err := cryptox.GenerateToken(s.codeBytes)
	if err != nil {
		return domain.IssuedLaunchCode{}, fmt.Errorf("generate launch code: %w", err)
	}

	rec.CreatedAt = time.Now().Unix()
	rec.TTL = int(s.ttl / time.Second)

	payload, err := json.Marshal(rec)
	if err != nil {
		return domain.IssuedLaunchCode{}, fmt.Errorf("encode launch code record: %w", err)
	}

	key := launchCodePrefix + cryptox.FingerprintToken(code)
	ok, err := s.store.SetNX(ctx, key, string(payload), s.ttl)
	if err != nil {
		return domain.IssuedLaunchCode{}, fmt.Errorf("store launch code: %w", err)
	}
	if !ok {
		// 128+ bits of entropy colliding means something is badly wrong.
		s.log.Error("launch code fingerprint collision", "user_id", rec.UserID)
		return domain.IssuedLaunchCode{}, ErrCodeConflict
	}

	s.log.Info("launch code issued",
		"user_id", rec.UserID,
		"code_fp", cryptox.ShortFingerprint(code),
		"ttl_s", rec.TTL)

	return domain.IssuedLaunchCode{
		Code:      code,
		LaunchURI: s.uriScheme + "://auth?code=" + url.QueryEscape(code),
		ExpiresIn: rec.TTL,
	}, nil
}

// Consume redeems a code. The GETDEL makes redemption atomic: under any
// number of racing callers exactly one gets the record.
func (s *LaunchCodeService) Consume(ctx context.Context, code string) (domain.LaunchCodeRecord, error) {
	key := launchCodePrefix + cryptox.FingerprintToken(code)

	raw, err := s.store.GetDel(ctx, key)
	if errors.Is(err, kv.ErrNotFound) {
		return domain.LaunchCodeRecord{}, ErrCodeNotFound
	}
	if err != nil {
		return domain.LaunchCodeRecord{}, fmt.Errorf("consume launch code: %w", err)
	}

	var rec domain.LaunchCodeRecord
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.LaunchCodeRecord{}, fmt.Errorf("decode launch code record: %w", err)
	}

	s.log.Info("launch code consumed",
		"user_id", rec.UserID,
		"code_fp", cryptox.ShortFingerprint(code))
	return rec, nil
}
