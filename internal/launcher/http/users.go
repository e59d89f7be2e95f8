package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/stellarvision/launcherd/internal/launcher/service"
	"github.com/stellarvision/launcherd/pkg/httpx"
	"github.com/stellarvision/launcherd/pkg/slogx"
)

type UsersHandler struct {
	UserService *service.UserService
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type createUserResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *UsersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	u, err := h.UserService.Create(ctx, req.Username, req.Password, req.Role)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrUserExists):
			httpx.WriteError(w, http.StatusConflict, "username_taken", "username is already taken")
		case errors.Is(err, service.ErrInvalidRole):
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "role must be Admin, Dev or User")
		default:
			log.Warn("user creation rejected", "err", err)
			httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error())
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, createUserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	})
}
