package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hackgods/appointment-reminders/internal/api"
	"github.com/hackgods/appointment-reminders/internal/bootstrap"
	"github.com/hackgods/appointment-reminders/internal/config"
	"github.com/hackgods/appointment-reminders/pkg/logging"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("info", "prod")
		l.Fatal().Err(err).Msg("config load error")
	}

	cfg.ServiceName = "api-server"
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "api-server").Logger()
	logger.Info().Str("env", cfg.Env).Str("http_port", cfg.HTTPPort).Msg("api-server starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer rt.Close()

	if cfg.HookSecret == "" {
		logger.Warn().Msg("HOOK_SECRET not set, lifecycle hooks are unauthenticated")
	}

	var redisPing api.PingFunc
	if rt.Redis != nil {
		redisPing = rt.PingRedis
	}

	router := api.NewRouter(api.RouterConfig{
		Trigger:    rt.Trigger,
		Reminders:  rt.Scheduler,
		Health:     api.NewHealthHandler(rt.PingPostgres, redisPing, cfg.Env, version),
		Gatherer:   rt.Registry,
		Logger:     logger,
		HookSecret: cfg.HookSecret,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-rootCtx.Done():
		logger.Info().Msg("shutdown signal received")
	case err := <-errCh:
		logger.Error().Err(err).Msg("http server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		rt.Close()
		os.Exit(1)
	}

	logger.Info().Msg("api-server stopped")
}
