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

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hackgods/clinic-scheduling/internal/api"
	"github.com/hackgods/clinic-scheduling/internal/app"
	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/logger"
	"github.com/hackgods/clinic-scheduling/internal/notify"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "scheduler-worker:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config load error: %w", err)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("scheduler-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.WorkerInterval),
		zap.Duration("no_show_grace", cfg.NoShowGrace),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(rootCtx, cfg, log, app.Options{ServiceName: "scheduler-worker"})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := a.Close(closeCtx); err != nil {
			log.Warn("shutdown", zap.Error(err))
		}
	}()

	router := api.NewRouter(api.RouterConfig{
		Logger:        log.Named("ops"),
		Checks:        a.Checks(),
		Metrics:       a.Metrics.Handler(),
		Env:           cfg.Env,
		Version:       version,
		OutboxPending: a.Outbox.Pending,
	})
	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(rootCtx)

	g.Go(func() error {
		log.Info("ops server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("ops server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		sweep(ctx, a.Service, a.Metrics.AddNoShows, log)
		ticker := time.NewTicker(cfg.WorkerInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				log.Info("shutdown signal received, stopping no-show sweeper")
				return nil
			case <-ticker.C:
				sweep(ctx, a.Service, a.Metrics.AddNoShows, log)
			}
		}
	})

	if a.Kafka != nil {
		relay := notify.NewRelay(a.Pool, a.Outbox, a.Kafka, log.Named("relay"), notify.RelayConfig{
			BatchSize: cfg.RelayBatchSize,
			OnBatch:   a.Metrics.AddRelayed,
		})
		g.Go(func() error { return relay.Run(ctx) })
	} else {
		log.Warn("KAFKA_BROKERS not set, event_logs will not be relayed")
	}

	return g.Wait()
}

func sweep(ctx context.Context, svc *appointment.Service, count func(int), log *zap.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 20*time.Second)
	defer cancel()

	start := time.Now()
	marked, err := svc.MarkOverdueNoShows(runCtx)
	count(marked)
	if err != nil {
		log.Error("no-show sweep failed", zap.Int("marked", marked), zap.Error(err))
		return
	}
	log.Info("no-show sweep complete", zap.Int("marked", marked), zap.Duration("took", time.Since(start)))
}
