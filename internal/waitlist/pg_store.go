package waitlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

const entryColumns = `id, patient_id, branch_id, provider_id, type, duration_minutes, priority,
	notes, status, appointment_id, created_at, updated_at`

func scanEntry(row pgx.Row) (*Entry, error) {
	var (
		e          Entry
		typ, state string
	)
	err := row.Scan(
		&e.ID, &e.PatientID, &e.BranchID, &e.ProviderID, &typ, &e.DurationMinutes, &e.Priority,
		&e.Notes, &state, &e.AppointmentID, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Type = appointment.Type(typ)
	e.Status = Status(state)
	return &e, nil
}

func (s *PgStore) Add(ctx context.Context, e Entry) (*Entry, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO waitlist_entries (id, patient_id, branch_id, provider_id, type, duration_minutes, priority, notes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+entryColumns,
		e.ID, e.PatientID, e.BranchID, e.ProviderID, string(e.Type), e.DurationMinutes, e.Priority, e.Notes, string(e.Status),
	)
	out, err := scanEntry(row)
	if err != nil {
		return nil, fmt.Errorf("insert waitlist entry: %w", err)
	}
	return out, nil
}

func (s *PgStore) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	e, err := scanEntry(s.pool.QueryRow(ctx, `SELECT `+entryColumns+` FROM waitlist_entries WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get waitlist entry: %w", err)
	}
	return e, nil
}

func (s *PgStore) Waiting(ctx context.Context, branchID uuid.UUID) ([]Entry, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+entryColumns+`
		FROM waitlist_entries
		WHERE branch_id = $1 AND status = 'waiting'
		ORDER BY priority DESC, created_at, id
	`, branchID)
	if err != nil {
		return nil, fmt.Errorf("list waitlist: %w", err)
	}
	defer rows.Close()

	out := make([]Entry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan waitlist entry: %w", err)
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *PgStore) MarkPromoted(ctx context.Context, id, appointmentID uuid.UUID) error {
	return s.leave(ctx, id, StatusPromoted, &appointmentID)
}

func (s *PgStore) Remove(ctx context.Context, id uuid.UUID) error {
	return s.leave(ctx, id, StatusRemoved, nil)
}

// leave moves a waiting entry out of the queue. The status guard makes concurrent promotions of
// the same entry race on the row and only one of them wins.
func (s *PgStore) leave(ctx context.Context, id uuid.UUID, to Status, appointmentID *uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE waitlist_entries
		SET status = $2, appointment_id = $3, updated_at = now()
		WHERE id = $1 AND status = 'waiting'
	`, id, string(to), appointmentID)
	if err != nil {
		return fmt.Errorf("update waitlist entry: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrNotWaiting
}
