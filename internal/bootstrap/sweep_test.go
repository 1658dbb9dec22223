package bootstrap

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/hackgods/appointment-reminders/internal/redis"
)

type countingSweeper struct {
	calls    int
	n        int
	err      error
	deadline bool
}

func (s *countingSweeper) ProcessPendingReminders(ctx context.Context) (int, error) {
	s.calls++
	_, s.deadline = ctx.Deadline()
	return s.n, s.err
}

func newLocker(t *testing.T) (redisclient.Locker, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return redisclient.NewRedisLocker(rdb, "reminders:", time.Minute), rdb
}

func TestSweepRunner_WithoutLocker(t *testing.T) {
	s := &countingSweeper{n: 3}
	r := NewSweepRunner(s, nil, 5*time.Second, zerolog.Nop())

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, 1, s.calls)
	assert.True(t, s.deadline)
}

func TestSweepRunner_SkipsWhenLeaseHeld(t *testing.T) {
	locker, rdb := newLocker(t)
	require.NoError(t, rdb.Set(context.Background(), "reminders:sweep", "other", time.Minute).Err())

	s := &countingSweeper{n: 3}
	r := NewSweepRunner(s, locker, 0, zerolog.Nop())

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, s.calls)
}

func TestSweepRunner_ReleasesLease(t *testing.T) {
	locker, rdb := newLocker(t)
	s := &countingSweeper{n: 1}
	r := NewSweepRunner(s, locker, 0, zerolog.Nop())

	_, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	_, err = r.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, s.calls)
	assert.Zero(t, rdb.Exists(context.Background(), "reminders:sweep").Val())
}

func TestSweepRunner_PropagatesError(t *testing.T) {
	boom := errors.New("boom")
	s := &countingSweeper{err: boom}
	r := NewSweepRunner(s, nil, 0, zerolog.Nop())

	_, err := r.RunOnce(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestRunSweeps_RejectsBadSchedule(t *testing.T) {
	s := &countingSweeper{}
	r := NewSweepRunner(s, nil, 0, zerolog.Nop())

	err := RunSweeps(context.Background(), r, "not a schedule", nil, zerolog.Nop())
	require.Error(t, err)
	assert.Zero(t, s.calls)
}

func TestRunSweeps_SweepsAtStartupAndStops(t *testing.T) {
	s := &countingSweeper{}
	r := NewSweepRunner(s, nil, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunSweeps(ctx, r, "@every 1h", time.UTC, zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, s.calls)
}
