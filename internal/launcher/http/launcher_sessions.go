package http

import (
	"net/http"

	"github.com/stellarvision/launcherd/internal/launcher/ws"
	"github.com/stellarvision/launcherd/pkg/httpx"
)

type SessionsHandler struct {
	Gateway *ws.Gateway
}

type sessionsResponse struct {
	Sessions []ws.Presence `json:"sessions"`
}

func (h *SessionsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := httpx.UserIDFromCtx(r.Context())
	if userID == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, sessionsResponse{
		Sessions: h.Gateway.Presence(userID),
	})
}
