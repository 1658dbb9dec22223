package bootstrap

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/appointment-reminders/internal/redis"
)

const sweepLockName = "sweep"

// Sweeper is the part of the scheduler a sweep run needs.
type Sweeper interface {
	ProcessPendingReminders(ctx context.Context) (int, error)
}

// SweepRunner runs one bounded sweep at a time. With a locker, only one
// process across the deployment sweeps at once.
type SweepRunner struct {
	sweeper Sweeper
	locker  redisclient.Locker
	timeout time.Duration
	logger  zerolog.Logger
}

func NewSweepRunner(s Sweeper, locker redisclient.Locker, timeout time.Duration, logger zerolog.Logger) *SweepRunner {
	return &SweepRunner{sweeper: s, locker: locker, timeout: timeout, logger: logger}
}

// RunOnce returns how many reminders were handled. A sweep skipped because
// another process holds the lease is not an error.
func (r *SweepRunner) RunOnce(ctx context.Context) (int, error) {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	var processed int
	run := func(ctx context.Context) error {
		n, err := r.sweeper.ProcessPendingReminders(ctx)
		processed = n
		return err
	}

	var err error
	if r.locker != nil {
		err = r.locker.WithLock(ctx, sweepLockName, run)
	} else {
		err = run(ctx)
	}

	switch {
	case errors.Is(err, redisclient.ErrLockNotAcquired):
		r.logger.Debug().Msg("sweep already running elsewhere, skipping")
		return 0, nil
	case err != nil:
		r.logger.Error().Err(err).Dur("elapsed", time.Since(start)).Msg("sweep failed")
		return processed, err
	}

	r.logger.Info().Int("processed", processed).Dur("elapsed", time.Since(start)).Msg("sweep complete")
	return processed, nil
}
