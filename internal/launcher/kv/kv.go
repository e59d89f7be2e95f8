// Package kv abstracts the shared key-value store backing the launch code
// and revocation stores. The contract is small on purpose: the single-use
// guarantees of the service reduce to two atomic primitives, set-if-absent
// with TTL and fetch-and-delete, which must hold across server processes.
package kv

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound reports a missing (or already-expired) key.
var ErrNotFound = errors.New("kv: not found")

type Store interface {
	// SetNX writes key=value with a TTL only if the key is absent.
	// Returns false when the key already exists.
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// Set writes key=value with a TTL unconditionally.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// GetDel atomically reads and deletes a key. At most one caller ever
	// observes the value, regardless of concurrency or process count.
	GetDel(ctx context.Context, key string) (string, error)

	// Exists reports whether the key is present and unexpired.
	Exists(ctx context.Context, key string) (bool, error)

	// TTL returns the remaining lifetime of a key.
	TTL(ctx context.Context, key string) (time.Duration, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	Close() error
}
