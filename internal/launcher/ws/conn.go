package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is the slice of a websocket connection the registry and gateway need.
// Tests substitute a fake; production uses the gorilla adapter below.
type Conn interface {
	WriteJSON(v any) error
	Ping() error
	Close() error
	CloseWithCode(code int, reason string) error
}

const writeWait = 5 * time.Second

// gorillaConn serialises writes; gorilla/websocket allows at most one
// concurrent writer.
type gorillaConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func newGorillaConn(ws *websocket.Conn) *gorillaConn {
	return &gorillaConn{ws: ws}
}

func (c *gorillaConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *gorillaConn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *gorillaConn) Close() error {
	return c.ws.Close()
}

func (c *gorillaConn) CloseWithCode(code int, reason string) error {
	c.mu.Lock()
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.mu.Unlock()
	return c.ws.Close()
}
