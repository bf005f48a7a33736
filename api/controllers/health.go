package controllers

import (
	"net/http"

	"github.com/mwangikariuki/shopkit-backend/api/responses"
	"github.com/mwangikariuki/shopkit-backend/pkg/config"
	"github.com/mwangikariuki/shopkit-backend/pkg/db"
	pkgerrors "github.com/mwangikariuki/shopkit-backend/pkg/errors"
	"github.com/mwangikariuki/shopkit-backend/pkg/logger"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Shopkit-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the dependencies the API cannot serve without.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Shopkit-Env", cfg.App.Env)

		checks := map[string]db.Pinger{
			"database": dbP,
			"redis":    redisP,
		}
		for name, pinger := range checks {
			if pinger == nil {
				continue
			}
			if err := pinger.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w,
					pkgerrors.Wrap(pkgerrors.CodeDependency, err, name+" unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
