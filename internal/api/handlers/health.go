package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rohits-web03/passkeyd/internal/utils"
)

// Health reports liveness and, when ping is set, database reachability.
func Health(ping func(ctx context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if ping != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := ping(ctx); err != nil {
				utils.JSONResponse(w, http.StatusServiceUnavailable, utils.Payload{
					Success: false,
					Message: "Database unavailable",
				})
				return
			}
		}
		utils.JSONResponse(w, http.StatusOK, utils.Payload{
			Success: true,
			Message: "OK",
			Data:    map[string]string{"status": "healthy"},
		})
	}
}
