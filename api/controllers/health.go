package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/finbase-io/wallet-engine/api/responses"
	"github.com/finbase-io/wallet-engine/pkg/config"
	"github.com/finbase-io/wallet-engine/pkg/logger"
)

// Pinger reports backend connectivity for readiness checks.
type Pinger interface {
	Ping(ctx context.Context) error
}

func HealthLive(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "live", "env": cfg.App.Env})
	}
}

func HealthReady(cfg *config.Config, logg *logger.Logger, dbP, redisP Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		checks := map[string]string{}
		healthy := true

		for name, pinger := range map[string]Pinger{"db": dbP, "redis": redisP} {
			if pinger == nil {
				checks[name] = "skipped"
				continue
			}
			if err := pinger.Ping(ctx); err != nil {
				checks[name] = "down"
				healthy = false
				if logg != nil {
					logg.Error(logg.WithField(ctx, "dependency", name), "readiness check failed", err)
				}
				continue
			}
			checks[name] = "up"
		}

		status := http.StatusOK
		if !healthy {
			status = http.StatusServiceUnavailable
		}
		responses.WriteSuccessStatus(w, status, map[string]any{"status": checks, "env": cfg.App.Env})
	}
}
