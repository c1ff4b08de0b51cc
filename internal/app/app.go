package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/db"
	"github.com/hackgods/clinic-scheduling/internal/hours"
	"github.com/hackgods/clinic-scheduling/internal/metrics"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
	"github.com/hackgods/clinic-scheduling/internal/tracing"
	"github.com/hackgods/clinic-scheduling/internal/waitlist"
)

type Options struct {
	// ServiceName labels traces and metrics.
	ServiceName string
	// Memory runs the engine on the in-process repository, without Postgres or Redis.
	Memory bool
}

// App is the scheduling engine with its storage and delivery wired from configuration. Every
// command builds one and closes it on exit.
type App struct {
	Config   config.Config
	Logger   *zap.Logger
	Metrics  *metrics.Collector
	Pool     *pgxpool.Pool
	Redis    *redis.Client
	Kafka    *kafka.Writer
	Outbox   *notify.EventLogStore
	Hours    hours.Provider
	Repo     appointment.Repository
	Service  *appointment.Service
	Waitlist waitlist.Store
	Promoter *waitlist.Promoter

	closers []func(context.Context) error
}

func New(ctx context.Context, cfg config.Config, log *zap.Logger, opts Options) (_ *App, err error) {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ServiceName == "" {
		opts.ServiceName = "clinic-scheduling"
	}

	a := &App{
		Config:  cfg,
		Logger:  log,
		Metrics: metrics.NewCollector("scheduling"),
	}
	defer func() {
		if err != nil {
			a.Close(context.WithoutCancel(ctx))
		}
	}()

	shutdownTracing, err := tracing.Setup(ctx, cfg, opts.ServiceName)
	if err != nil {
		return nil, fmt.Errorf("setup tracing: %w", err)
	}
	a.onClose(shutdownTracing)

	base, err := loadHours(cfg)
	if err != nil {
		return nil, err
	}
	a.Hours = base

	var locker redisclient.Locker
	senders := notify.Multi{notify.NewLogSender(log)}

	if opts.Memory {
		a.Repo = appointment.NewMemoryRepository()
		a.Waitlist = waitlist.NewMemoryStore(nil)
	} else {
		if err := cfg.RequirePostgres(); err != nil {
			return nil, err
		}
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		a.Pool, err = db.ConnectPostgres(connectCtx, cfg.PostgresDSN, log)
		cancel()
		if err != nil {
			return nil, err
		}
		a.onClose(func(context.Context) error {
			a.Pool.Close()
			return nil
		})
		log.Info("connected to postgres")

		a.Repo = appointment.NewPgRepository(a.Pool)
		a.Waitlist = waitlist.NewPgStore(a.Pool)
		a.Hours = hours.NewPgProvider(a.Pool, cfg.Location, base)
		a.Outbox = notify.NewEventLogStore(a.Pool)
		senders = append(senders, a.Outbox)

		if cfg.RedisAddr != "" {
			a.Redis, err = redisclient.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
			if err != nil {
				return nil, err
			}
			a.onClose(func(context.Context) error { return a.Redis.Close() })
			locker = redisclient.NewRedisProviderLocker(a.Redis, cfg.LockTTL, cfg.LockWait)
			log.Info("connected to redis, provider locks enabled")
		}
	}

	if cfg.KafkaBrokers != "" {
		a.Kafka = notify.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		a.onClose(func(context.Context) error { return a.Kafka.Close() })
		if a.Outbox == nil {
			// without an outbox, events go straight to Kafka behind a breaker
			senders = append(senders, notify.NewBreaker(notify.NewKafkaSender(a.Kafka), "kafka", 5, 30*time.Second, log))
		}
	}

	a.Promoter = waitlist.NewPromoter(a.Waitlist,
		waitlist.WithCounter(a.Metrics),
		waitlist.WithLogger(log.Named("waitlist")),
	)
	senders = append(senders, a.Promoter)

	a.Service = appointment.NewService(a.Repo, locker, cfg,
		appointment.WithHours(a.Hours),
		appointment.WithNotifier(senders),
		appointment.WithMetrics(a.Metrics),
		appointment.WithLogger(log.Named("engine")),
	)
	a.Promoter.Bind(a.Service)

	return a, nil
}

func loadHours(cfg config.Config) (*hours.Static, error) {
	if cfg.HoursFile == "" {
		return hours.NewStatic(hours.DefaultSchedule(), nil), nil
	}
	static, err := hours.LoadFile(cfg.HoursFile)
	if err != nil {
		return nil, fmt.Errorf("load branch hours: %w", err)
	}
	return static, nil
}

func (a *App) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Checks lists the readiness probes for whatever the app is connected to.
func (a *App) Checks() []api.Check {
	var checks []api.Check
	if a.Pool != nil {
		checks = append(checks, api.Check{
			Name:     "postgres",
			Required: true,
			Probe:    func(ctx context.Context) error { return db.Ping(ctx, a.Pool) },
		})
	}
	if a.Redis != nil {
		checks = append(checks, api.Check{
			Name:  "redis",
			Probe: func(ctx context.Context) error { return a.Redis.Ping(ctx).Err() },
		})
	}
	if a.Kafka != nil {
		checks = append(checks, api.Check{
			Name:  "kafka",
			Probe: notify.KafkaReadyCheck(a.Config.KafkaBrokers),
		})
	}
	return checks
}
