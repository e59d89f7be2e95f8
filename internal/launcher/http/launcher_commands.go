package http

import (
	"encoding/json"
	"net/http"

	"github.com/stellarvision/launcherd/internal/launcher/ws"
	"github.com/stellarvision/launcherd/pkg/httpx"
)

type CommandsHandler struct {
	Gateway *ws.Gateway
}

type commandRequest struct {
	// Addressing, most specific wins: session, instance, device, code
	// (launch-code alias), then broadcast to every session of the user.
	SessionID  string `json:"sessionId,omitempty"`
	InstanceID string `json:"instanceId,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
	Code       string `json:"code,omitempty"`

	// UserID scopes the lookup; defaults to the caller.
	UserID string `json:"userId,omitempty"`

	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type commandResponse struct {
	ws.DispatchResult
	Error string `json:"error,omitempty"`
}

// ServeHTTP pushes a command at one or more of the target user's live
// launcher sessions. 202 regardless of delivery; the body says who got it.
func (h *CommandsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Type == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "type is required")
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = httpx.UserIDFromCtx(ctx)
	}
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	var res ws.DispatchResult
	errCode := "no_live_session"
	switch {
	case req.SessionID != "":
		res = h.Gateway.SendToSession(ctx, userID, req.SessionID, req.Type, req.Payload)
	case req.InstanceID != "":
		res = h.Gateway.SendToInstance(ctx, userID, req.InstanceID, req.Type, req.Payload)
	case req.DeviceID != "":
		res = h.Gateway.SendToDevice(ctx, userID, req.DeviceID, req.Type, req.Payload)
	case req.Code != "":
		res = h.Gateway.SendByAlias(ctx, userID, req.Code, req.Type, req.Payload)
		errCode = "no_live_session_for_code"
	default:
		res = h.Gateway.SendToUser(ctx, userID, req.Type, req.Payload)
	}

	resp := commandResponse{DispatchResult: res}
	if len(res.Delivered) == 0 {
		resp.Error = errCode
	}
	httpx.WriteJSON(w, http.StatusAccepted, resp)
}
