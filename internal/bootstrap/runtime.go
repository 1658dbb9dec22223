package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/hackgods/appointment-reminders/internal/appointment"
	"github.com/hackgods/appointment-reminders/internal/config"
	"github.com/hackgods/appointment-reminders/internal/db"
	"github.com/hackgods/appointment-reminders/internal/lifecycle"
	"github.com/hackgods/appointment-reminders/internal/notify"
	"github.com/hackgods/appointment-reminders/internal/observability/metrics"
	redisclient "github.com/hackgods/appointment-reminders/internal/redis"
	"github.com/hackgods/appointment-reminders/internal/reminder"
)

// Runtime holds the wired reminder engine shared by every binary.
type Runtime struct {
	Config   config.Config
	Logger   zerolog.Logger
	Pool     *pgxpool.Pool
	Redis    *redis.Client // nil when redis was unreachable at startup
	Registry *prometheus.Registry
	Metrics  *metrics.ReminderMetrics

	Appointments appointment.Repository
	Store        reminder.Store
	Scheduler    *reminder.Scheduler
	Trigger      *lifecycle.Trigger
}

// New connects to Postgres and Redis and builds the scheduler and trigger.
// Redis is optional: without it events are not deduplicated and sweeps are
// not leased.
func New(ctx context.Context, cfg config.Config, logger zerolog.Logger) (*Runtime, error) {
	rt := &Runtime{Config: cfg, Logger: logger}

	pgCtx, cancelPg := context.WithTimeout(ctx, 10*time.Second)
	pool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns: cfg.PostgresMaxConns,
		MinConns: cfg.PostgresMinConns,
		AppName:  cfg.ServiceName,
	})
	cancelPg()
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	rt.Pool = pool
	logger.Info().Msg("connected to postgres")

	rdb, err := redisclient.NewRedisClient(ctx, redisclient.Options{
		Addr:     cfg.RedisAddr,
		Username: cfg.RedisUsername,
		Password: cfg.RedisPassword,
		PoolSize: cfg.RedisPoolSize,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("redis unavailable, running without event markers and sweep lease")
	} else {
		rt.Redis = rdb
		logger.Info().Msg("connected to redis")
	}

	rt.Registry = prometheus.NewRegistry()
	rt.Registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rt.Metrics = metrics.NewReminderMetrics(rt.Registry)

	transports, err := notify.BuildTransports(ctx, cfg, logger)
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("transports: %w", err)
	}

	rt.Appointments = appointment.NewPgRepository(pool)
	if cfg.UseMemoryStore {
		logger.Warn().Msg("scheduled reminders kept in memory, they will not survive a restart")
		rt.Store = reminder.NewMemoryStore()
	} else {
		rt.Store = reminder.NewPgStore(pool)
	}

	dispatcher := reminder.NewDispatcher(transports, logger.With().Str("component", "dispatch").Logger(), rt.Metrics)
	rt.Scheduler = reminder.NewScheduler(rt.Appointments, rt.Store, dispatcher,
		logger.With().Str("component", "scheduler").Logger(),
		reminder.WithMetrics(rt.Metrics),
		reminder.WithProjector(reminder.NewProjector(cfg.Location, cfg.DefaultVenue)),
	)

	triggerOpts := []lifecycle.Option{lifecycle.WithMetrics(rt.Metrics)}
	if rt.Redis != nil {
		triggerOpts = append(triggerOpts, lifecycle.WithMarker(redisclient.NewMarker(rt.Redis), cfg.EventMarkerTTL))
	}
	rt.Trigger = lifecycle.NewTrigger(rt.Scheduler, logger.With().Str("component", "lifecycle").Logger(), triggerOpts...)

	return rt, nil
}

// SweepLocker returns nil when redis is not connected.
func (rt *Runtime) SweepLocker() redisclient.Locker {
	if rt.Redis == nil {
		return nil
	}
	return redisclient.NewRedisLocker(rt.Redis, "reminders:", rt.Config.SweepLockTTL)
}

func (rt *Runtime) PingPostgres(ctx context.Context) error {
	return rt.Pool.Ping(ctx)
}

func (rt *Runtime) PingRedis(ctx context.Context) error {
	if rt.Redis == nil {
		return fmt.Errorf("redis not connected")
	}
	return rt.Redis.Ping(ctx).Err()
}

func (rt *Runtime) Close() {
	if rt.Redis != nil {
		if err := rt.Redis.Close(); err != nil {
			rt.Logger.Warn().Err(err).Msg("error closing redis")
		}
	}
	if rt.Pool != nil {
		rt.Pool.Close()
	}
}
