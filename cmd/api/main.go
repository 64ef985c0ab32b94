package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ha-sip-bridge/internal/audit"
	"ha-sip-bridge/internal/auth"
	"ha-sip-bridge/internal/config"
	"ha-sip-bridge/internal/eventbus"
	"ha-sip-bridge/internal/hass"
	"ha-sip-bridge/internal/supervisor"
	"ha-sip-bridge/internal/talk"
	"ha-sip-bridge/internal/voice"
	"ha-sip-bridge/pkg/logger"
	"ha-sip-bridge/pkg/utils"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Root context that cancels on shutdown
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	log := logger.New(cfg.App.Env)
	slog.SetDefault(log)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	authManager, err := auth.NewManager(cfg.Auth)
	if err != nil {
		log.Error("auth init failed", "err", err)
		os.Exit(1)
	}

	var auditRepo audit.Repository = audit.NewMemoryRepo()
	var db *sql.DB
	if cfg.DBEnabled() {
		db, err = utils.OpenPostgres(rootCtx, cfg.PostgresDSN(), utils.PostgresPoolConfig{})
		if err != nil {
			log.Error("postgres init failed", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		pg := audit.NewPostgresRepo(db)
		if err := pg.Migrate(rootCtx); err != nil {
			log.Error("audit migration failed", "err", err)
			os.Exit(1)
		}
		auditRepo = pg
	}
	auditSvc := audit.NewService(auditRepo, log)

	var bus eventbus.Bus = eventbus.NewMemoryBus()
	var rdb *redis.Client
	if cfg.RedisEnabled() {
		rdb, err = utils.OpenRedis(rootCtx, utils.RedisConfig{Addr: cfg.RedisAddr(), Password: cfg.Redis.Password})
		if err != nil {
			log.Error("redis init failed", "err", err)
			os.Exit(1)
		}
		defer rdb.Close()
		bus = eventbus.NewRedisBus(rdb, cfg.Redis.ChannelPrefix)
	}

	h := hass.New(bus, log)
	sup := supervisor.NewClient(cfg.Supervisor.URL, cfg.Supervisor.Token)
	if !sup.Configured() {
		log.Warn("SUPERVISOR_TOKEN not set; commands will fail until it is")
	}

	entry, err := talk.Setup(rootCtx, h, talk.Config{
		EntryID:   cfg.Entry.ID,
		SIPHost:   cfg.SIP.Host,
		SIPPort:   cfg.SIP.Port,
		WebhookID: cfg.Entry.WebhookID,
		AddonSlug: cfg.Entry.AddonSlug,
	}, sup, auditSvc)
	if err != nil {
		log.Error("ha-sip setup failed", "err", err)
		os.Exit(1)
	}
	defer entry.Unload(context.Background())

	if cfg.Voice.Enabled {
		v, err := voice.Setup(h, cfg.Entry.ID, sup, auditSvc)
		if err != nil {
			log.Error("voice setup failed", "err", err)
			os.Exit(1)
		}
		defer v.Unload()
	}

	r, limiter := newRouter(cfg, log, h, authManager, sup, auditSvc, healthChecks(db, rdb))
	defer limiter.Stop()

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Info("api listening",
			"addr", srv.Addr,
			"env", cfg.App.Env,
			"webhook_path", entry.WebhookPath(),
			"services", h.Services.Names(),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", "err", err)
			stop()
		}
	}()

	<-rootCtx.Done()
	log.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "err", err)
	}
}
