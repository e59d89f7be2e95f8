package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/stellarvision/launcherd/internal/launcher/service"
	"github.com/stellarvision/launcherd/internal/launcher/ws"
	"github.com/stellarvision/launcherd/pkg/httpx"
	"github.com/stellarvision/launcherd/pkg/slogx"
)

type ExchangeHandler struct {
	LaunchCodeService *service.LaunchCodeService
	TokenService      *service.TokenService
	Creds             *ws.CredStore
	CredTTL           time.Duration
}

type exchangeRequest struct {
	Code string `json:"code"`
}

// ServeHTTP redeems a launch code for a device token. The consumed code is
// re-registered as the websocket exchange credential, so the launcher
// presents the same value on /socket that it received in the launch URI.
func (h *ExchangeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req exchangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Code == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "code is required")
		return
	}

	rec, err := h.LaunchCodeService.Consume(ctx, req.Code)
	if err != nil {
		if errors.Is(err, service.ErrCodeNotFound) {
			httpx.WriteError(w, http.StatusUnauthorized, "invalid_or_expired_code", "launch code is invalid or has expired")
			return
		}
		log.Error("code exchange failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "exchange failed")
		return
	}

	token, err := h.TokenService.IssueForDevice(ctx, rec.UserID, rec.RoleSnapshot)
	if err != nil {
		log.Error("device token issue failed", "err", err, "user_id", rec.UserID)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "exchange failed")
		return
	}

	h.Creds.Issue(req.Code, rec.UserID, h.CredTTL)

	httpx.WriteJSON(w, http.StatusOK, token)
}
