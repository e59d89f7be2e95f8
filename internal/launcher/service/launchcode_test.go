package service

import (
	"context"
	"io"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stellarvision/launcherd/internal/launcher/domain"
	"github.com/stellarvision/launcherd/internal/launcher/kv"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newLaunchCodeService(t *testing.T) (*LaunchCodeService, *kv.MemoryStore) {
	t.Helper()
	store := kv.NewMemoryStore()
	svc, err := NewLaunchCodeService(store, discardLogger(), LaunchCodeConfig{
		TTL:       60 * time.Second,
		CodeBytes: 32,
		URIScheme: "svlauncher",
	})
	require.NoError(t, err)
	return svc, store
}

func TestLaunchCodeConfigBounds(t *testing.T) {
	store := kv.NewMemoryStore()
	log := discardLogger()

	_, err := NewLaunchCodeService(store, log, LaunchCodeConfig{TTL: 0, CodeBytes: 32, URIScheme: "svlauncher"})
	require.Error(t, err)

	_, err = NewLaunchCodeService(store, log, LaunchCodeConfig{TTL: 301 * time.Second, CodeBytes: 32, URIScheme: "svlauncher"})
	require.Error(t, err)

	_, err = NewLaunchCodeService(store, log, LaunchCodeConfig{TTL: time.Minute, CodeBytes: 8, URIScheme: "svlauncher"})
	require.Error(t, err)

	_, err = NewLaunchCodeService(store, log, LaunchCodeConfig{TTL: time.Minute, CodeBytes: 32, URIScheme: ""})
	require.Error(t, err)
}

func TestLaunchCodeIssueAndConsume(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLaunchCodeService(t)

	issued, err := svc.Issue(ctx, domain.LaunchCodeRecord{
		UserID:           "u1",
		RoleSnapshot:     []string{"Dev"},
		BrowserSessionID: "bs1",
		IP:               "203.0.113.9",
		UAHash:           "abcd",
	})
	require.NoError(t, err)
	require.NotEmpty(t, issued.Code)
	require.EqualValues(t, 60, issued.ExpiresIn)

	require.True(t, strings.HasPrefix(issued.LaunchURI, "svlauncher://auth?code="))
	u, err := url.Parse(issued.LaunchURI)
	require.NoError(t, err)
	require.Equal(t, issued.Code, u.Query().Get("code"))

	rec, err := svc.Consume(ctx, issued.Code)
	require.NoError(t, err)
	require.Equal(t, "u1", rec.UserID)
	require.Equal(t, []string{"Dev"}, rec.RoleSnapshot)
	require.Equal(t, "bs1", rec.BrowserSessionID)
	require.NotZero(t, rec.CreatedAt)
	require.EqualValues(t, 60, rec.TTL)
}

func TestLaunchCodeIsSingleUse(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLaunchCodeService(t)

	issued, err := svc.Issue(ctx, domain.LaunchCodeRecord{UserID: "u1", RoleSnapshot: []string{"Dev"}})
	require.NoError(t, err)

	_, err = svc.Consume(ctx, issued.Code)
	require.NoError(t, err)

	_, err = svc.Consume(ctx, issued.Code)
	require.ErrorIs(t, err, ErrCodeNotFound)
}

func TestLaunchCodeConsumeUnknown(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLaunchCodeService(t)

	_, err := svc.Consume(ctx, "never-issued")
	require.ErrorIs(t, err, ErrCodeNotFound)
}

func TestLaunchCodeConcurrentConsumeWinsOnce(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLaunchCodeService(t)

	issued, err := svc.Issue(ctx, domain.LaunchCodeRecord{UserID: "u1", RoleSnapshot: []string{"User"}})
	require.NoError(t, err)

	const workers = 16
	var wins int
	var mu sync.Mutex
	var wg sync.WaitGroup
	start := make(chan struct{})

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, err := svc.Consume(ctx, issued.Code); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, wins)
}

func TestLaunchCodePlaintextNeverStored(t *testing.T) {
	ctx := context.Background()
	svc, store := newLaunchCodeService(t)

	issued, err := svc.Issue(ctx, domain.LaunchCodeRecord{UserID: "u1", RoleSnapshot: []string{"User"}})
	require.NoError(t, err)

	ok, err := store.Exists(ctx, launchCodePrefix+issued.Code)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestLaunchCodesAreUnique(t *testing.T) {
	ctx := context.Background()
	svc, _ := newLaunchCodeService(t)

	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		issued, err := svc.Issue(ctx, domain.LaunchCodeRecord{UserID: "u1", RoleSnapshot: []string{"User"}})
		require.NoError(t, err)
		_, dup := seen[issued.Code]
		require.False(t, dup)
		seen[issued.Code] = struct{}{}
	}
}
