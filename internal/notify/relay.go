package notify

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Relay drains unpublished event_logs rows to Kafka. Rows stay locked for the duration of a
// batch, so several relays can run side by side.
type Relay struct {
	pool      *pgxpool.Pool
	store     *EventLogStore
	writer    MessageWriter
	logger    *zap.Logger
	pollEvery time.Duration
	batchSize int
	onBatch   func(published int)
}

type RelayConfig struct {
	PollEvery time.Duration
	BatchSize int
	// OnBatch, when set, is told how many rows each successful batch published.
	OnBatch func(published int)
}

func NewRelay(pool *pgxpool.Pool, store *EventLogStore, writer MessageWriter, logger *zap.Logger, cfg RelayConfig) *Relay {
	if cfg.PollEvery <= 0 {
		cfg.PollEvery = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		pool:      pool,
		store:     store,
		writer:    writer,
		logger:    logger,
		pollEvery: cfg.PollEvery,
		batchSize: cfg.BatchSize,
		onBatch:   cfg.OnBatch,
	}
}

func (r *Relay) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := r.PublishBatch(ctx)
			if err != nil {
				r.logger.Error("event relay batch failed", zap.Error(err))
				continue
			}
			if n > 0 {
				r.logger.Debug("event relay batch published", zap.Int("count", n))
			}
		}
	}
}

func (r *Relay) PublishBatch(ctx context.Context) (int, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	records, err := r.store.FetchUnpublished(ctx, tx, r.batchSize)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, tx.Commit(ctx)
	}

	msgs := make([]kafka.Message, 0, len(records))
	ids := make([]int64, 0, len(records))
	for _, rec := range records {
		key := ""
		if rec.AppointmentID != nil {
			key = rec.AppointmentID.String()
		}
		msgs = append(msgs, message(rec.EventID.String(), rec.EventType, key, rec.Payload))
		ids = append(ids, rec.ID)
	}

	if err := r.writer.WriteMessages(ctx, msgs...); err != nil {
		return 0, err
	}
	if err := r.store.MarkPublished(ctx, tx, ids); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}

	if r.onBatch != nil {
		r.onBatch(len(records))
	}
	return len(records), nil
}
