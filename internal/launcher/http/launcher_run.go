package http

import (
	"net/http"

	"github.com/stellarvision/launcherd/internal/launcher/domain"
	"github.com/stellarvision/launcherd/internal/launcher/service"
	"github.com/stellarvision/launcherd/pkg/cryptox"
	"github.com/stellarvision/launcherd/pkg/httpx"
	"github.com/stellarvision/launcherd/pkg/slogx"
)

type RunHandler struct {
	LaunchCodeService *service.LaunchCodeService
}

// ServeHTTP mints a launch code for the authenticated browser session. The
// role snapshot is taken from the token, so a later role change does not
// retroactively alter codes already in flight.
func (h *RunHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	claims, ok := httpx.ClaimsFromCtx(ctx)
	if !ok || claims.Subject == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
		return
	}

	roles := claims.Roles
	if len(roles) == 0 && claims.Role != "" {
		roles = []string{claims.Role}
	}

	issued, err := h.LaunchCodeService.Issue(ctx, domain.LaunchCodeRecord{
		UserID:           claims.Subject,
		RoleSnapshot:     roles,
		BrowserSessionID: claims.SID,
		IP:               httpx.IPKeyExtractor(r),
		UAHash:           cryptox.HashUserAgent(r.UserAgent()),
	})
	if err != nil {
		log.Error("launch code issue failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError, "server_error", "failed to issue launch code")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, issued)
}
