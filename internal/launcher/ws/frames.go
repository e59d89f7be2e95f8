package ws

import "encoding/json"

// ProtocolVersion is announced in the server hello so clients can refuse to
// speak to a server they don't understand.
const ProtocolVersion = 1

// Close codes for handshake rejection. Distinct per cause so a client can
// tell "you forgot the credential" from "your credential is no longer good".
const (
	CloseMissingCred = 4400
	CloseInvalidCred = 4401
)

// Client frame type tags.
const (
	frameHello = "hello"
	frameAck   = "ack"
)

// Error frame codes.
const (
	errBadHello    = "bad_hello"
	errUnknownType = "unknown_type"
	errBadJSON     = "bad_json"
)

// clientFrame is the superset of every client-to-server frame, discriminated
// by T. Unknown tags fall through to the error branch in the gateway.
type clientFrame struct {
	T          string `json:"t"`
	InstanceID string `json:"instanceId,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
	ID         string `json:"id,omitempty"`
}

// ServerHello is sent immediately after a successful handshake.
type ServerHello struct {
	T           string `json:"t"`
	WSSessionID string `json:"wsSessionId"`
	Protocol    int    `json:"protocol"`
	ServerTime  int64  `json:"serverTime"` // unix millis
}

// ServerCommand carries a command to the launcher. The id stays in the
// session's in-flight set until the client acks it.
type ServerCommand struct {
	T       string          `json:"t"`
	ID      string          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
	Ts      int64           `json:"ts"` // unix millis
}

// ServerError reports a recoverable protocol violation without closing the
// connection.
type ServerError struct {
	T       string `json:"t"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorFrame(code, message string) ServerError {
	return ServerError{T: "error", Code: code, Message: message}
}
