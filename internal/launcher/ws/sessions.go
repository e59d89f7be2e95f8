package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session is one live launcher connection. Identity fields are set once at
// creation (or on the client hello) and read without the mutex; mutable
// liveness and in-flight state hide behind mu.
type Session struct {
	ID     string
	UserID string
	Conn   Conn

	mu         sync.Mutex
	instanceID string
	deviceID   string
	alive      bool
	lastSeen   time.Time
	inflight   map[string]struct{}
}

func (s *Session) SetClientMeta(instanceID, deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.instanceID = instanceID
	s.deviceID = deviceID
}

func (s *Session) InstanceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.instanceID
}

func (s *Session) DeviceID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deviceID
}

// Touch marks the session alive and records when we last heard from it.
func (s *Session) Touch(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = true
	s.lastSeen = now
}

// MarkStale clears the alive flag and reports whether the session had
// answered since the previous heartbeat tick.
func (s *Session) MarkStale() (wasAlive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wasAlive = s.alive
	s.alive = false
	return wasAlive
}

func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

// TrackCommand records a dispatched command id until the client acks it.
func (s *Session) TrackCommand(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.inflight == nil {
		s.inflight = make(map[string]struct{})
	}
	s.inflight[id] = struct{}{}
}

// Ack clears an in-flight command id. Unknown ids are ignored.
func (s *Session) Ack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inflight, id)
}

func (s *Session) InflightCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inflight)
}

// Presence is the read-only view of a session exposed over HTTP.
type Presence struct {
	SessionID  string    `json:"wsSessionId"`
	UserID     string    `json:"userId"`
	InstanceID string    `json:"instanceId,omitempty"`
	DeviceID   string    `json:"deviceId,omitempty"`
	LastSeen   time.Time `json:"lastSeen"`
	Inflight   int       `json:"inflight"`
}

// Registry tracks live sessions by id and by user. It is process-local;
// multi-node deployments need sticky routing in front of the gateway.
type Registry struct {
	mu        sync.RWMutex
	bySession map[string]*Session
	byUser    map[string]map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{
		bySession: make(map[string]*Session),
		byUser:    make(map[string]map[string]*Session),
	}
}

// Create registers a new session for userID and returns it. The session
// starts alive so the first heartbeat tick does not kill it.
func (r *Registry) Create(userID string, conn Conn, now time.Time) *Session {
	s := &Session{
		ID:       uuid.NewString(),
		UserID:   userID,
		Conn:     conn,
		alive:    true,
		lastSeen: now,
		inflight: make(map[string]struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.bySession[s.ID] = s
	set, ok := r.byUser[userID]
	if !ok {
		set = make(map[string]*Session)
		r.byUser[userID] = set
	}
	set[s.ID] = s
	return s
}

// Remove drops a session from both indexes. Idempotent.
func (r *Registry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.bySession[sessionID]
	if !ok {
		return
	}
	delete(r.bySession, sessionID)
	if set, ok := r.byUser[s.UserID]; ok {
		delete(set, sessionID)
		if len(set) == 0 {
			delete(r.byUser, s.UserID)
		}
	}
}

func (r *Registry) Get(sessionID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.bySession[sessionID]
	return s, ok
}

// FindByUser returns every live session owned by userID.
func (r *Registry) FindByUser(userID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set := r.byUser[userID]
	out := make([]*Session, 0, len(set))
	for _, s := range set {
		out = append(out, s)
	}
	return out
}

// FindByInstance returns the first of the user's sessions reporting the
// given instance id, or nil.
func (r *Registry) FindByInstance(userID, instanceID string) *Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.byUser[userID] {
		if s.InstanceID() == instanceID {
			return s
		}
	}
	return nil
}

// FindByDevice returns every session of the user reporting the given device
// id. A device can hold several launcher instances, hence the slice.
func (r *Registry) FindByDevice(userID, deviceID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.byUser[userID] {
		if s.DeviceID() == deviceID {
			out = append(out, s)
		}
	}
	return out
}

// All returns a snapshot of every live session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Session, 0, len(r.bySession))
	for _, s := range r.bySession {
		out = append(out, s)
	}
	return out
}

// ListPresence snapshots every live session for the presence endpoint.
func (r *Registry) ListPresence() []Presence {
	return presenceOf(r.All())
}

// ListPresenceByUser snapshots the caller's own live sessions.
func (r *Registry) ListPresenceByUser(userID string) []Presence {
	return presenceOf(r.FindByUser(userID))
}

func presenceOf(sessions []*Session) []Presence {
	out := make([]Presence, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, Presence{
			SessionID:  s.ID,
			UserID:     s.UserID,
			InstanceID: s.InstanceID(),
			DeviceID:   s.DeviceID(),
			LastSeen:   s.LastSeen(),
			Inflight:   s.InflightCount(),
		})
	}
	return out
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.bySession)
}
