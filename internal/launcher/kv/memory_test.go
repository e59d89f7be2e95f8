package kv

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (*MemoryStore, *time.Time) {
	t.Helper()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := NewMemoryStore()
	s.now = func() time.Time { return now }
	return s, &now
}

func TestSetNXIsFirstWriterWins(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)

	ok, err := s.SetNX(ctx, "k", "first", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.SetNX(ctx, "k", "second", time.Minute)
	require.NoError(t, err)
	require.False(t, ok)

	v, err := s.GetDel(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "first", v)
}

func TestGetDelConsumesExactlyOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, _ := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", "v", time.Minute))

	var hits int
	var mu sync.Mutex
	var wg sync.WaitGroup
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.GetDel(ctx, "k"); err == nil {
				mu.Lock()
				hits++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, hits, "exactly one concurrent GetDel may succeed")
}

func TestExpiryMasksEntries(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, now := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", "v", 30*time.Second))

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, 30*time.Second, ttl)

	*now = now.Add(31 * time.Second)

	ok, err = s.Exists(ctx, "k")
	require.NoError(t, err)
	require.False(t, ok)

	_, err = s.GetDel(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)

	_, err = s.TTL(ctx, "k")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestZeroTTLNeverExpires(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	s, now := newTestStore(t)

	require.NoError(t, s.Set(ctx, "k", "v", 0))
	*now = now.Add(24 * time.Hour)

	ok, err := s.Exists(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)

	ttl, err := s.TTL(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, time.Duration(0), ttl)
}
