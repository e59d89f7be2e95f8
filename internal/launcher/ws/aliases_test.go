package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestAliasIndex() (*AliasIndex, *time.Time) {
	a := NewAliasIndex()
	now := time.Now()
	a.now = func() time.Time { return now }
	return a, &now
}

func TestAliasBindResolve(t *testing.T) {
	a, _ := newTestAliasIndex()

	a.Bind("main", "u1", "s1", 0)

	got, ok := a.Resolve("main", "u1")
	require.True(t, ok)
	require.Equal(t, "s1", got)

	_, ok = a.Resolve("other", "u1")
	require.False(t, ok)
}

func TestAliasResolveIsUserScoped(t *testing.T) {
	a, _ := newTestAliasIndex()

	a.Bind("main", "u1", "s1", 0)

	_, ok := a.Resolve("main", "u2")
	require.False(t, ok)

	// The binding survives a foreign lookup.
	got, ok := a.Resolve("main", "u1")
	require.True(t, ok)
	require.Equal(t, "s1", got)
}

func TestAliasRebindReplaces(t *testing.T) {
	a, _ := newTestAliasIndex()

	a.Bind("main", "u1", "s1", 0)
	a.Bind("main", "u1", "s2", 0)

	got, ok := a.Resolve("main", "u1")
	require.True(t, ok)
	require.Equal(t, "s2", got)

	// The old session no longer owns the alias.
	a.UnbindSession("s1")
	got, ok = a.Resolve("main", "u1")
	require.True(t, ok)
	require.Equal(t, "s2", got)
}

func TestAliasExpiry(t *testing.T) {
	a, now := newTestAliasIndex()

	a.Bind("temp", "u1", "s1", time.Minute)

	_, ok := a.Resolve("temp", "u1")
	require.True(t, ok)

	*now = now.Add(time.Minute)
	_, ok = a.Resolve("temp", "u1")
	require.False(t, ok)

	// Expired entries are purged, so a rebind starts fresh.
	a.Bind("temp", "u1", "s2", time.Minute)
	got, ok := a.Resolve("temp", "u1")
	require.True(t, ok)
	require.Equal(t, "s2", got)
}

func TestUnbindSessionDropsAllAliases(t *testing.T) {
	a, _ := newTestAliasIndex()

	a.Bind("one", "u1", "s1", 0)
	a.Bind("two", "u1", "s1", 0)
	a.Bind("keep", "u1", "s2", 0)

	a.UnbindSession("s1")

	_, ok := a.Resolve("one", "u1")
	require.False(t, ok)
	_, ok = a.Resolve("two", "u1")
	require.False(t, ok)

	got, ok := a.Resolve("keep", "u1")
	require.True(t, ok)
	require.Equal(t, "s2", got)
}

func TestUnbindAlias(t *testing.T) {
	a, _ := newTestAliasIndex()

	a.Bind("main", "u1", "s1", 0)
	a.UnbindAlias("main")
	a.UnbindAlias("main")

	_, ok := a.Resolve("main", "u1")
	require.False(t, ok)
}
