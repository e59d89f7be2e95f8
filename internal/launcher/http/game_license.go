package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stellarvision/launcherd/internal/launcher/service"
	"github.com/stellarvision/launcherd/pkg/httpx"
	"github.com/stellarvision/launcherd/pkg/slogx"
)

type GameLicenseHandler struct {
	GameService *service.GameService
}

type licenseRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type licenseResponse struct {
	GameLicense string `json:"gameLicense"`
	UserRole    string `json:"userRole"`
}

func (h *GameLicenseHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req licenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ID == "" || req.Name == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "id and name are required")
		return
	}

	g, err := h.GameService.License(ctx, req.ID, req.Name)
	if err != nil {
		if errors.Is(err, service.ErrGameNotFound) {
			httpx.WriteError(w, http.StatusNotFound, "game_not_found", "no game matches the given id and name")
			return
		}
		log.Error("license lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "license lookup failed")
		return
	}

	role := ""
	if claims, ok := httpx.ClaimsFromCtx(ctx); ok {
		if len(claims.Roles) > 0 {
			role = claims.Roles[0]
		} else {
			role = claims.Role
		}
	}

	httpx.WriteJSON(w, http.StatusOK, licenseResponse{
		GameLicense: g.License,
		UserRole:    role,
	})
}
