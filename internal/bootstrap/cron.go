package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger routes cron's own messages into zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// RunSweeps sweeps once right away and then on every tick of schedule until ctx
// is done. Ticks that arrive while a sweep is still running are dropped.
func RunSweeps(ctx context.Context, runner *SweepRunner, schedule string, loc *time.Location, logger zerolog.Logger) error {
	if loc == nil {
		loc = time.UTC
	}

	cl := cronLogger{logger: logger}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
	)

	if _, err := c.AddFunc(schedule, func() {
		_, _ = runner.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("add sweep schedule %q: %w", schedule, err)
	}

	_, _ = runner.RunOnce(ctx)

	c.Start()
	logger.Info().Str("schedule", schedule).Str("tz", loc.String()).Msg("sweep schedule started")

	<-ctx.Done()

	<-c.Stop().Done()
	logger.Info().Msg("sweep schedule stopped")
	return nil
}
