package ws

import (
	"sync"
	"time"
)

type credEntry struct {
	userID string
	exp    time.Time
}

// CredStore holds short-lived exchange credentials between the HTTP code
// exchange and the websocket handshake. Entries are single-use: Redeem
// removes before it checks, so a racing second redeem loses.
type CredStore struct {
	mu    sync.Mutex
	creds map[string]credEntry

	now func() time.Time
}

func NewCredStore() *CredStore {
	return &CredStore{
		creds: make(map[string]credEntry),
		now:   time.Now,
	}
}

// Issue stores cred for userID with the given lifetime.
func (c *CredStore) Issue(cred, userID string, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.creds[cred] = credEntry{userID: userID, exp: c.now().Add(ttl)}
}

// Redeem consumes cred and returns the user it was issued for. A credential
// past its expiry is consumed but not honoured.
func (c *CredStore) Redeem(cred string) (userID string, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, found := c.creds[cred]
	if !found {
		return "", false
	}
	delete(c.creds, cred)
	if c.now().After(e.exp) {
		return "", false
	}
	return e.userID, true
}

func (c *CredStore) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.creds)
}
