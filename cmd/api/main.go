package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bryanwahyu/qa-scanlog/internal/application"
	appscans "github.com/bryanwahyu/qa-scanlog/internal/application/scans"
	appsettings "github.com/bryanwahyu/qa-scanlog/internal/application/settings"
	appspecs "github.com/bryanwahyu/qa-scanlog/internal/application/specs"
	"github.com/bryanwahyu/qa-scanlog/internal/config"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/db"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/export"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/httpserver"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/meter"
	"github.com/bryanwahyu/qa-scanlog/internal/infra/push"
	minioStore "github.com/bryanwahyu/qa-scanlog/internal/infra/storage"
	"github.com/bryanwahyu/qa-scanlog/internal/logging"
	"github.com/bryanwahyu/qa-scanlog/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	// load config
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.Log.Level, cfg.Log.Pretty)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// connect database
	store, err := db.Open(ctx, cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("database open error")
	}
	defer store.Close()

	// push hub
	hub := push.NewHub(log.With().Str("component", "push").Logger())
	go hub.Run(ctx)

	metrics := middleware.NewMetrics(func() float64 { return float64(hub.ClientCount()) })

	svc := &appscans.Service{
		Repo:      store.Scans,
		Specs:     store.Specs,
		Settings:  store.Settings,
		Meter:     meter.New(cfg.Meter, log.With().Str("component", "meter").Logger()),
		Publisher: hub,
		Reports:   export.XLSX{},
		Observer:  metrics,
		Clock:     application.SystemClock{},
		Log:       log,
	}

	health := map[string]middleware.HealthChecker{
		"database": &middleware.DatabaseHealthChecker{DB: store.DB},
	}

	// init minio (optional)
	if cfg.Minio.Enabled() {
		archive, err := minioStore.New(ctx, cfg.Minio)
		if err != nil {
			log.Fatal().Err(err).Msg("minio init error")
		}
		svc.Archive = archive
		health["storage"] = middleware.CheckerFunc(archive.Ping)
	}

	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.RPS, cfg.Server.RateLimit.Burst)
	go limiter.RunCleanup(ctx.Done())

	handler := httpserver.NewRouter(httpserver.Deps{
		Scans:       svc,
		Specs:       appspecs.NewService(store.Specs),
		Settings:    appsettings.NewService(store.Settings),
		Hub:         hub,
		Metrics:     metrics,
		Limiter:     limiter,
		Health:      health,
		CORSOrigins: cfg.Server.CORSOrigins,
		Log:         log,
	})

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.Server.GetReadTimeout(),
		WriteTimeout: cfg.Server.GetWriteTimeout(),
		IdleTimeout:  60 * time.Second,
	}

	// run server
	go func() {
		log.Info().Str("addr", addr).Str("driver", store.Dialect.Name).Str("meter", cfg.Meter.Mode).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// graceful shutdown
	<-ctx.Done()
	log.Info().Msg("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Error().Err(err).Msg("shutdown error")
	}
}
