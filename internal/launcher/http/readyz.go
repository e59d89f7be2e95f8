package http

import (
	"context"
	"net/http"
	"time"

	"github.com/stellarvision/launcherd/internal/launcher/kv"
	"github.com/stellarvision/launcherd/internal/launcher/store"
	"github.com/stellarvision/launcherd/pkg/httpx"
	"github.com/stellarvision/launcherd/pkg/slogx"
)

type readyzResponse struct {
	healthResponse
	Checks map[string]string `json:"checks"`
}

// ReadyzHandler answers 200 only when both backing stores respond.
func ReadyzHandler(startTime time.Time, version string, st store.Store, kvStore kv.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		log := slogx.FromContext(r.Context())

		checks := map[string]string{"database": "ok", "kv": "ok"}
		status := http.StatusOK

		if err := st.Ping(ctx); err != nil {
			log.Error("readiness database ping failed", "err", err)
			checks["database"] = "unavailable"
			status = http.StatusServiceUnavailable
		}
		if err := kvStore.Ping(ctx); err != nil {
			log.Error("readiness kv ping failed", "err", err)
			checks["kv"] = "unavailable"
			status = http.StatusServiceUnavailable
		}

		state := "ok"
		if status != http.StatusOK {
			state = "degraded"
		}
		httpx.WriteJSON(w, status, readyzResponse{
			healthResponse: healthResponse{
				Status:  state,
				Uptime:  time.Since(startTime).String(),
				Version: version,
			},
			Checks: checks,
		})
	}
}
