package controllers

import (
	"net/http"

	"github.com/wheeldeal/wheeldeal-backend/api/responses"
	"github.com/wheeldeal/wheeldeal-backend/pkg/config"
	"github.com/wheeldeal/wheeldeal-backend/pkg/db"
	pkgerrors "github.com/wheeldeal/wheeldeal-backend/pkg/errors"
	"github.com/wheeldeal/wheeldeal-backend/pkg/logger"
	"github.com/wheeldeal/wheeldeal-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-WheelDeal-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady verifies the datastore and cache before reporting ready.
func HealthReady(cfg *config.Config, database db.Pinger, cache redis.Pinger, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-WheelDeal-Env", cfg.App.Env)

		if database != nil {
			if err := database.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database unavailable"))
				return
			}
		}
		if cache != nil {
			if err := cache.Ping(r.Context()); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redis unavailable"))
				return
			}
		}
		responses.WriteSuccess(w, map[string]string{"status": "ready"})
	}
}
