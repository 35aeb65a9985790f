package controllers

import (
	"net/http"

	"github.com/sparrowretail/shelfline-backend/api/responses"
	"github.com/sparrowretail/shelfline-backend/pkg/config"
	"github.com/sparrowretail/shelfline-backend/pkg/db"
	"github.com/sparrowretail/shelfline-backend/pkg/logger"
	"github.com/sparrowretail/shelfline-backend/pkg/redis"
	"github.com/sparrowretail/shelfline-backend/pkg/vectorstore"
)

// Healthz reports process liveness plus the state of each dependency.
// A degraded store is reported, not failed; the API keeps serving reads.
func Healthz(cfg *config.Config, dbP db.Pinger, redisP redis.Pinger, store *vectorstore.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deps := map[string]string{}

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				deps["db"] = "down"
				logg.Error(r.Context(), "healthz db ping", err)
			} else {
				deps["db"] = "ok"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				deps["redis"] = "down"
			} else {
				deps["redis"] = "ok"
			}
		}
		if store.Available() {
			deps["store"] = "ok"
		} else {
			deps["store"] = "degraded"
		}

		status := http.StatusOK
		if deps["db"] == "down" {
			status = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, status, map[string]any{
			"status": "ok",
			"env":    cfg.App.Env,
			"deps":   deps,
		})
	}
}
