package ws

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	frames []any
	pings  int
	closed bool

	failWrites bool
}

func (c *fakeConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failWrites {
		return errWriteFailed
	}
	c.frames = append(c.frames, v)
	return nil
}

func (c *fakeConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pings++
	return nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeConn) CloseWithCode(code int, reason string) error {
	return c.Close()
}

func (c *fakeConn) sent() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]any, len(c.frames))
	copy(out, c.frames)
	return out
}

var errWriteFailed = errors.New("write failed")

func TestRegistryCreateAndLookup(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	s1 := r.Create("u1", &fakeConn{}, now)
	s2 := r.Create("u1", &fakeConn{}, now)
	s3 := r.Create("u2", &fakeConn{}, now)

	require.NotEqual(t, s1.ID, s2.ID)
	require.Equal(t, 3, r.Len())

	got, ok := r.Get(s1.ID)
	require.True(t, ok)
	require.Equal(t, "u1", got.UserID)

	require.Len(t, r.FindByUser("u1"), 2)
	require.Len(t, r.FindByUser("u2"), 1)
	require.Empty(t, r.FindByUser("u3"))

	_ = s3
}

func TestRegistryFindByInstanceAndDevice(t *testing.T) {
	r := NewRegistry()
	now := time.Now()

	s1 := r.Create("u1", &fakeConn{}, now)
	s1.SetClientMeta("inst-a", "dev-a")
	s2 := r.Create("u1", &fakeConn{}, now)
	s2.SetClientMeta("inst-b", "dev-b")
	other := r.Create("u2", &fakeConn{}, now)
	other.SetClientMeta("inst-a", "dev-a")

	found := r.FindByInstance("u1", "inst-b")
	require.NotNil(t, found)
	require.Equal(t, s2.ID, found.ID)

	byDevice := r.FindByDevice("u1", "dev-a")
	require.Len(t, byDevice, 1)
	require.Equal(t, s1.ID, byDevice[0].ID)

	// Two launcher instances on the same device both match.
	s3 := r.Create("u1", &fakeConn{}, now)
	s3.SetClientMeta("inst-c", "dev-a")
	require.Len(t, r.FindByDevice("u1", "dev-a"), 2)

	require.Nil(t, r.FindByInstance("u1", "inst-missing"))
	require.Nil(t, r.FindByInstance("u3", "inst-a"))
	require.Empty(t, r.FindByDevice("u1", "dev-missing"))
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	r := NewRegistry()
	s := r.Create("u1", &fakeConn{}, time.Now())

	r.Remove(s.ID)
	r.Remove(s.ID)

	require.Equal(t, 0, r.Len())
	require.Empty(t, r.FindByUser("u1"))
}

func TestSessionInflightTracking(t *testing.T) {
	r := NewRegistry()
	s := r.Create("u1", &fakeConn{}, time.Now())

	s.TrackCommand("c1")
	s.TrackCommand("c2")
	require.Equal(t, 2, s.InflightCount())

	s.Ack("c1")
	require.Equal(t, 1, s.InflightCount())

	s.Ack("never-sent")
	require.Equal(t, 1, s.InflightCount())
}

func TestSessionStaleFlag(t *testing.T) {
	r := NewRegistry()
	s := r.Create("u1", &fakeConn{}, time.Now())

	// Fresh sessions count as alive for the first sweep.
	require.True(t, s.MarkStale())
	// Nothing heard since, so the second sweep sees it dead.
	require.False(t, s.MarkStale())

	s.Touch(time.Now())
	require.True(t, s.MarkStale())
}

func TestRegistryListPresence(t *testing.T) {
	r := NewRegistry()
	seen := time.Now().Truncate(time.Second)

	s := r.Create("u1", &fakeConn{}, seen)
	s.SetClientMeta("inst-a", "dev-a")
	s.TrackCommand("c1")

	list := r.ListPresence()
	require.Len(t, list, 1)
	require.Equal(t, s.ID, list[0].SessionID)
	require.Equal(t, "u1", list[0].UserID)
	require.Equal(t, "inst-a", list[0].InstanceID)
	require.Equal(t, "dev-a", list[0].DeviceID)
	require.Equal(t, 1, list[0].Inflight)
	require.Equal(t, seen, list[0].LastSeen)
}
