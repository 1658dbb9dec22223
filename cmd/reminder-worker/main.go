package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/hackgods/appointment-reminders/internal/bootstrap"
	"github.com/hackgods/appointment-reminders/internal/config"
	"github.com/hackgods/appointment-reminders/pkg/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		l := logging.New("info", "prod")
		l.Fatal().Err(err).Msg("config load error")
	}

	cfg.ServiceName = "reminder-worker"
	logger := logging.New(cfg.LogLevel, cfg.Env).With().Str("service", "reminder-worker").Logger()
	logger.Info().Str("env", cfg.Env).Str("schedule", cfg.SweepSchedule).Msg("reminder-worker starting up")

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rt, err := bootstrap.New(rootCtx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("startup failed")
	}
	defer rt.Close()

	locker := rt.SweepLocker()
	if locker == nil {
		logger.Warn().Msg("no sweep lease, run a single worker instance")
	}

	runner := bootstrap.NewSweepRunner(rt.Scheduler, locker, cfg.SweepTimeout, logger.With().Str("component", "sweep").Logger())
	if err := bootstrap.RunSweeps(rootCtx, runner, cfg.SweepSchedule, cfg.Location, logger); err != nil {
		logger.Error().Err(err).Msg("reminder-worker stopped with error")
		return
	}

	logger.Info().Msg("reminder-worker stopped")
}
