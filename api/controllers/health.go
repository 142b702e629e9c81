package controllers

import (
	"net/http"

	"go.uber.org/multierr"

	"github.com/angelmondragon/trackline-backend/api/responses"
	"github.com/angelmondragon/trackline-backend/pkg/config"
	"github.com/angelmondragon/trackline-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/trackline-backend/pkg/errors"
	"github.com/angelmondragon/trackline-backend/pkg/logger"
	"github.com/angelmondragon/trackline-backend/pkg/redis"
)

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Trackline-Env", cfg.App.Env)
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	}
}

// HealthReady reports ready only when the database and redis respond.
func HealthReady(cfg *config.Config, logg *logger.Logger, dbP db.Pinger, redisP redis.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Trackline-Env", cfg.App.Env)

		checks := map[string]string{}
		var errs error

		if dbP != nil {
			if err := dbP.Ping(r.Context()); err != nil {
				checks["database"] = "down"
				errs = multierr.Append(errs, err)
			} else {
				checks["database"] = "ok"
			}
		}
		if redisP != nil {
			if err := redisP.Ping(r.Context()); err != nil {
				checks["redis"] = "down"
				errs = multierr.Append(errs, err)
			} else {
				checks["redis"] = "ok"
			}
		}

		if errs != nil {
			err := pkgerrors.Wrap(pkgerrors.CodeDependency, errs, "dependencies unavailable").WithDetails(checks)
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"status": "ready", "checks": checks})
	}
}
