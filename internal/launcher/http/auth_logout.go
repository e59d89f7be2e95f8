package http

import (
	"net/http"
	"time"

	"github.com/stellarvision/launcherd/internal/launcher/service"
	"github.com/stellarvision/launcherd/pkg/httpx"
	"github.com/stellarvision/launcherd/pkg/slogx"
)

type LogoutHandler struct {
	BlocklistService *service.BlocklistService
}

// ServeHTTP revokes the presented token for its remaining lifetime. Tokens
// without a jti or exp have nothing to revoke; logout still succeeds.
func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	claims, ok := httpx.ClaimsFromCtx(ctx)
	if ok && claims.ID != "" {
		remaining := claims.Remaining(time.Now())
		if err := h.BlocklistService.Block(ctx, claims.ID, remaining); err != nil {
			log.Error("logout revocation failed", "err", err)
			httpx.WriteError(w, http.StatusInternalServerError, "server_error", "logout failed")
			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}
