package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EventLog struct {
	ID            int64
	EventID       uuid.UUID
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
	PublishedAt   *time.Time
}

// EventLogStore persists events to event_logs. As a Sender it is the durable half of
// notification delivery; Relay publishes the rows afterwards.
type EventLogStore struct {
	pool *pgxpool.Pool
}

func NewEventLogStore(pool *pgxpool.Pool) *EventLogStore {
	return &EventLogStore{pool: pool}
}

func (s *EventLogStore) Send(ctx context.Context, ev Event) error {
	payload, err := ev.Payload()
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	apptID := ev.AppointmentID
	return s.Insert(ctx, EventLog{
		EventID:       ev.ID,
		EventType:     ev.Type,
		AppointmentID: &apptID,
		Payload:       payload,
		CreatedAt:     ev.OccurredAt,
	})
}

func (s *EventLogStore) Insert(ctx context.Context, ev EventLog) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO event_logs (event_id, event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, $4, COALESCE($5, now()))
	`, ev.EventID, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}
	return nil
}

func (s *EventLogStore) FetchUnpublished(ctx context.Context, tx pgx.Tx, limit int) ([]EventLog, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, event_id, event_type, appointment_id, payload, created_at, published_at
		FROM event_logs
		WHERE published_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []EventLog
	for rows.Next() {
		var ev EventLog
		if err := rows.Scan(&ev.ID, &ev.EventID, &ev.EventType, &ev.AppointmentID, &ev.Payload, &ev.CreatedAt, &ev.PublishedAt); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *EventLogStore) MarkPublished(ctx context.Context, tx pgx.Tx, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx, `
		UPDATE event_logs
		SET published_at = now()
		WHERE id = ANY($1)
	`, ids)
	return err
}

// Pending counts rows the relay has not published yet.
func (s *EventLogStore) Pending(ctx context.Context) (int64, error) {
	var n int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM event_logs WHERE published_at IS NULL`).Scan(&n)
	return n, err
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
