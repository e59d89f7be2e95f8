// Package ws hosts the launcher websocket gateway: the session registry,
// alias index, exchange-credential store and the connection handler that
// ties them together.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// DefaultHeartbeatInterval is how often the gateway pings idle connections
// and reaps the ones that never answered the previous ping.
const DefaultHeartbeatInterval = 15 * time.Second

// DispatchResult reports which sessions a command reached. CommandID is nil
// when nothing was delivered.
type DispatchResult struct {
	Delivered []string `json:"delivered"`
	CommandID *string  `json:"commandId"`
}

// Gateway upgrades launcher connections, runs the read loop per session and
// dispatches commands into the registry.
type Gateway struct {
	registry *Registry
	aliases  *AliasIndex
	creds    *CredStore
	log      *slog.Logger

	upgrader websocket.Upgrader

	heartbeat time.Duration
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup

	now func() time.Time
}

type GatewayOption func(*Gateway)

// WithHeartbeatInterval overrides the liveness check period.
func WithHeartbeatInterval(d time.Duration) GatewayOption {
	return func(g *Gateway) {
		if d > 0 {
			g.heartbeat = d
		}
	}
}

func NewGateway(registry *Registry, aliases *AliasIndex, creds *CredStore, log *slog.Logger, opts ...GatewayOption) *Gateway {
	g := &Gateway{
		registry:  registry,
		aliases:   aliases,
		creds:     creds,
		log:       log,
		heartbeat: DefaultHeartbeatInterval,
		stop:      make(chan struct{}),
		now:       time.Now,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browsers never open this endpoint; launchers send no Origin.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Start launches the heartbeat loop. Call Stop on shutdown.
func (g *Gateway) Start() {
	g.wg.Add(1)
	go g.heartbeatLoop()
}

// Stop halts the heartbeat loop and closes every live session.
func (g *Gateway) Stop() {
	g.stopOnce.Do(func() { close(g.stop) })
	g.wg.Wait()
	for _, s := range g.registry.All() {
		g.closeSession(s)
	}
}

func (g *Gateway) heartbeatLoop() {
	defer g.wg.Done()
	ticker := time.NewTicker(g.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			return
		case <-ticker.C:
			g.sweep()
		}
	}
}

// sweep terminates every session that has not answered since the previous
// tick, then pings the rest. Pongs flip the alive flag back on.
func (g *Gateway) sweep() {
	for _, s := range g.registry.All() {
		if !s.MarkStale() {
			g.log.Warn("terminating unresponsive session",
				"session_id", s.ID, "user_id", s.UserID)
			g.closeSession(s)
			continue
		}
		if err := s.Conn.Ping(); err != nil {
			g.log.Debug("heartbeat ping failed", "session_id", s.ID, "error", err)
			g.closeSession(s)
		}
	}
}

func (g *Gateway) closeSession(s *Session) {
	g.registry.Remove(s.ID)
	g.aliases.UnbindSession(s.ID)
	_ = s.Conn.Close()
}

// ServeHTTP is the websocket handshake. The client presents its exchange
// credential in the cred query parameter; a missing credential closes with
// 4400, an unknown or expired one with 4401.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	cred := r.URL.Query().Get("cred")

	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		return
	}
	conn := newGorillaConn(ws)

	if cred == "" {
		_ = conn.CloseWithCode(CloseMissingCred, "missing credential")
		return
	}
	userID, ok := g.creds.Redeem(cred)
	if !ok {
		_ = conn.CloseWithCode(CloseInvalidCred, "invalid or expired credential")
		return
	}

	s := g.registry.Create(userID, conn, g.now())
	// The redeemed credential doubles as an alias so the web client can
	// address this session by the code it already holds.
	g.aliases.Bind(cred, userID, s.ID, 0)
	g.log.Info("launcher connected", "session_id", s.ID, "user_id", userID)

	ws.SetPongHandler(func(string) error {
		s.Touch(g.now())
		return nil
	})

	if err := conn.WriteJSON(ServerHello{
		T:           "hello",
		WSSessionID: s.ID,
		Protocol:    ProtocolVersion,
		ServerTime:  g.now().UnixMilli(),
	}); err != nil {
		g.closeSession(s)
		return
	}

	g.readLoop(s, ws)

	g.closeSession(s)
	g.log.Info("launcher disconnected", "session_id", s.ID, "user_id", userID)
}

func (g *Gateway) readLoop(s *Session, ws *websocket.Conn) {
	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}
		s.Touch(g.now())

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			_ = s.Conn.WriteJSON(errorFrame(errBadJSON, "frame is not valid JSON"))
			continue
		}

		switch frame.T {
		case frameHello:
			if frame.InstanceID == "" {
				_ = s.Conn.WriteJSON(errorFrame(errBadHello, "hello requires instanceId"))
				continue
			}
			s.SetClientMeta(frame.InstanceID, frame.DeviceID)
		case frameAck:
			s.Ack(frame.ID)
		default:
			_ = s.Conn.WriteJSON(errorFrame(errUnknownType, "unknown frame type "+frame.T))
		}
	}
}

// deliver sends one command frame to each target session. Send failures are
// logged and the session dropped from the delivered list; the command still
// counts as dispatched for the sessions that took it.
func (g *Gateway) deliver(ctx context.Context, targets []*Session, cmdType string, payload json.RawMessage) DispatchResult {
	res := DispatchResult{Delivered: []string{}}
	if len(targets) == 0 {
		return res
	}

	id := uuid.NewString()
	frame := ServerCommand{
		T:       "command",
		ID:      id,
		Type:    cmdType,
		Payload: payload,
		Ts:      g.now().UnixMilli(),
	}

	for _, s := range targets {
		if err := s.Conn.WriteJSON(frame); err != nil {
			g.log.Warn("command delivery failed",
				"session_id", s.ID, "command_id", id, "error", err)
			continue
		}
		s.TrackCommand(id)
		res.Delivered = append(res.Delivered, s.ID)
	}
	if len(res.Delivered) > 0 {
		res.CommandID = &id
	}
	return res
}

// SendToSession dispatches to one session by id, scoped to its owner.
func (g *Gateway) SendToSession(ctx context.Context, userID, sessionID, cmdType string, payload json.RawMessage) DispatchResult {
	s, ok := g.registry.Get(sessionID)
	if !ok || s.UserID != userID {
		return DispatchResult{Delivered: []string{}}
	}
	return g.deliver(ctx, []*Session{s}, cmdType, payload)
}

// SendToUser broadcasts to every session the user holds.
func (g *Gateway) SendToUser(ctx context.Context, userID, cmdType string, payload json.RawMessage) DispatchResult {
	return g.deliver(ctx, g.registry.FindByUser(userID), cmdType, payload)
}

// SendToInstance dispatches to the user's session reporting instanceID.
func (g *Gateway) SendToInstance(ctx context.Context, userID, instanceID, cmdType string, payload json.RawMessage) DispatchResult {
	s := g.registry.FindByInstance(userID, instanceID)
	if s == nil {
		return DispatchResult{Delivered: []string{}}
	}
	return g.deliver(ctx, []*Session{s}, cmdType, payload)
}

// SendToDevice dispatches to every session of the user reporting deviceID.
func (g *Gateway) SendToDevice(ctx context.Context, userID, deviceID, cmdType string, payload json.RawMessage) DispatchResult {
	return g.deliver(ctx, g.registry.FindByDevice(userID, deviceID), cmdType, payload)
}

// SendByAlias resolves alias within the user's scope and dispatches there.
func (g *Gateway) SendByAlias(ctx context.Context, userID, alias, cmdType string, payload json.RawMessage) DispatchResult {
	sessionID, ok := g.aliases.Resolve(alias, userID)
	if !ok {
		return DispatchResult{Delivered: []string{}}
	}
	return g.SendToSession(ctx, userID, sessionID, cmdType, payload)
}

// Presence lists the caller's live sessions.
func (g *Gateway) Presence(userID string) []Presence {
	return g.registry.ListPresenceByUser(userID)
}

// BindAlias names one of the user's live sessions. Returns false when the
// session is gone or belongs to someone else.
func (g *Gateway) BindAlias(alias, userID, sessionID string, ttl time.Duration) bool {
	s, ok := g.registry.Get(sessionID)
	if !ok || s.UserID != userID {
		return false
	}
	g.aliases.Bind(alias, userID, sessionID, ttl)
	return true
}
