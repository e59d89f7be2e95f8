package ws

import (
	"sync"
	"time"
)

type aliasEntry struct {
	userID    string
	sessionID string
	exp       time.Time // zero means no expiry
}

// AliasIndex maps caller-chosen names to live session ids. Aliases are
// user-scoped: resolving requires the owning user, so two users can hold the
// same name without colliding.
type AliasIndex struct {
	mu        sync.Mutex
	byAlias   map[string]aliasEntry
	bySession map[string]map[string]struct{}

	now func() time.Time
}

func NewAliasIndex() *AliasIndex {
	return &AliasIndex{
		byAlias:   make(map[string]aliasEntry),
		bySession: make(map[string]map[string]struct{}),
		now:       time.Now,
	}
}

// Bind points alias at sessionID for userID, replacing any previous binding
// of the same name. ttl <= 0 means the binding lives until unbound.
func (a *AliasIndex) Bind(alias, userID, sessionID string, ttl time.Duration) {
	var exp time.Time
	if ttl > 0 {
		exp = a.now().Add(ttl)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if prev, ok := a.byAlias[alias]; ok {
		a.dropReverse(prev.sessionID, alias)
	}
	a.byAlias[alias] = aliasEntry{userID: userID, sessionID: sessionID, exp: exp}
	set, ok := a.bySession[sessionID]
	if !ok {
		set = make(map[string]struct{})
		a.bySession[sessionID] = set
	}
	set[alias] = struct{}{}
}

// Resolve returns the session id bound to alias for userID. Expired and
// foreign-user bindings resolve to nothing; expired ones are purged on the
// spot.
func (a *AliasIndex) Resolve(alias, userID string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.byAlias[alias]
	if !ok {
		return "", false
	}
	if !e.exp.IsZero() && !a.now().Before(e.exp) {
		delete(a.byAlias, alias)
		a.dropReverse(e.sessionID, alias)
		return "", false
	}
	if e.userID != userID {
		return "", false
	}
	return e.sessionID, true
}

// UnbindAlias removes a single binding by name.
func (a *AliasIndex) UnbindAlias(alias string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.byAlias[alias]
	if !ok {
		return
	}
	delete(a.byAlias, alias)
	a.dropReverse(e.sessionID, alias)
}

// UnbindSession removes every binding pointing at sessionID. Called when the
// session closes.
func (a *AliasIndex) UnbindSession(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for alias := range a.bySession[sessionID] {
		delete(a.byAlias, alias)
	}
	delete(a.bySession, sessionID)
}

func (a *AliasIndex) dropReverse(sessionID, alias string) {
	if set, ok := a.bySession[sessionID]; ok {
		delete(set, alias)
		if len(set) == 0 {
			delete(a.bySession, sessionID)
		}
	}
}
