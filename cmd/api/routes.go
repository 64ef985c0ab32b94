package main

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"ha-sip-bridge/internal/audit"
	"ha-sip-bridge/internal/auth"
	"ha-sip-bridge/internal/config"
	"ha-sip-bridge/internal/hass"
	"ha-sip-bridge/internal/httpapi"
	"ha-sip-bridge/internal/supervisor"
	"ha-sip-bridge/pkg/logger"
	"ha-sip-bridge/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

const healthTimeout = 2 * time.Second

// healthChecks reports the optional backends that are configured.
func healthChecks(db *sql.DB, rdb *redis.Client) map[string]httpapi.HealthCheck {
	checks := map[string]httpapi.HealthCheck{}
	if db != nil {
		checks["audit_db"] = func(ctx context.Context) error {
			return utils.HealthCheck(ctx, db, healthTimeout)
		}
	}
	if rdb != nil {
		checks["event_publish"] = func(ctx context.Context) error {
			return utils.PingRedis(ctx, rdb, healthTimeout)
		}
	}
	return checks
}

// newRouter builds the gin engine. Keep this file free of business logic.
func newRouter(cfg config.Config, log *slog.Logger, h *hass.Hass, m *auth.Manager, sup *supervisor.Client, aud *audit.Service, checks map[string]httpapi.HealthCheck) (*gin.Engine, *httpapi.IPRateLimiter) {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.Middleware(log))

	limiter := httpapi.NewIPRateLimiter(httpapi.RateLimitConfig{
		Rate:            rate.Limit(cfg.Webhook.Rate),
		Burst:           cfg.Webhook.Burst,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	})

	httpapi.Register(r, httpapi.Handlers{
		Hass:            h,
		Auth:            m,
		Addon:           sup,
		AddonSlug:       cfg.Entry.AddonSlug,
		BootstrapSecret: cfg.Auth.BootstrapSecret,
		Audit:           aud,
		EntryID:         cfg.Entry.ID,
		Health:          checks,
	}, limiter)
	return r, limiter
}
