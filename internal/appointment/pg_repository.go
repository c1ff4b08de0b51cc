package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const appointmentColumns = `id, patient_id, branch_id, provider_id, series_id, start_time, end_time,
	appointment_type, status, notes, cancellation_reason, cancelled_at, created_at, updated_at, version`

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Helpers

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var providerID, seriesID *uuid.UUID
	var cancelledAt *time.Time

	err := row.Scan(
		&a.ID,
		&a.PatientID,
		&a.BranchID,
		&providerID,
		&seriesID,
		&a.StartTime,
		&a.EndTime,
		&a.Type,
		&a.Status,
		&a.Notes,
		&a.CancellationReason,
		&cancelledAt,
		&a.CreatedAt,
		&a.UpdatedAt,
		&a.Version,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.ProviderID = providerID
	a.SeriesID = seriesID
	a.CancelledAt = cancelledAt
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// isWriteConflict matches the provider overlap exclusion constraint and duplicate keys.
func isWriteConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && (pgErr.Code == "23P01" || pgErr.Code == "23505")
}

// Interface methods

func (r *PgRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) GetByProviderAndWindow(ctx context.Context, providerID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE provider_id = $1
		  AND status <> 'cancelled'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time, id
	`, providerID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query provider window: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) GetByBranchAndWindow(ctx context.Context, branchID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE branch_id = $1
		  AND status <> 'cancelled'
		  AND start_time < $3
		  AND end_time > $2
		ORDER BY start_time, id
	`, branchID, start, end)
	if err != nil {
		return nil, fmt.Errorf("query branch window: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Appointment, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.BranchID != uuid.Nil {
		add("branch_id = $%d", f.BranchID)
	}
	if f.ProviderID != uuid.Nil {
		add("provider_id = $%d", f.ProviderID)
	}
	if f.PatientID != uuid.Nil {
		add("patient_id = $%d", f.PatientID)
	}
	if f.SeriesID != uuid.Nil {
		add("series_id = $%d", f.SeriesID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}
	if !f.From.IsZero() {
		add("start_time >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("start_time < $%d", f.To)
	}
	if !f.EndsBefore.IsZero() {
		add("end_time < $%d", f.EndsBefore)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY start_time, id"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO appointments (id, patient_id, branch_id, provider_id, series_id, start_time, end_time,
			appointment_type, status, notes, cancellation_reason, cancelled_at, created_at, updated_at, version)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, 1)
		RETURNING `+appointmentColumns,
		a.ID, a.PatientID, a.BranchID, a.ProviderID, a.SeriesID, a.StartTime, a.EndTime,
		string(a.Type), string(a.Status), a.Notes, a.CancellationReason, a.CancelledAt, a.CreatedAt, a.UpdatedAt,
	)

	stored, err := scanAppointment(row)
	if err != nil {
		if isWriteConflict(err) {
			return nil, ErrWriteConflict
		}
		return nil, fmt.Errorf("insert appointment: %w", err)
	}
	return stored, nil
}

// Update is a compare-and-swap on version. A miss is either a concurrent writer or a deleted row.
func (r *PgRepository) Update(ctx context.Context, a Appointment) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE appointments
		SET provider_id = $3,
		    start_time = $4,
		    end_time = $5,
		    appointment_type = $6,
		    status = $7,
		    notes = $8,
		    cancellation_reason = $9,
		    cancelled_at = $10,
		    updated_at = $11,
		    version = version + 1
		WHERE id = $1
		  AND version = $2
		RETURNING `+appointmentColumns,
		a.ID, a.Version, a.ProviderID, a.StartTime, a.EndTime, string(a.Type), string(a.Status),
		a.Notes, a.CancellationReason, a.CancelledAt, a.UpdatedAt,
	)

	stored, err := scanAppointment(row)
	switch {
	case err == nil:
		return stored, nil
	case isWriteConflict(err):
		return nil, ErrWriteConflict
	case errors.Is(err, ErrAppointmentNotFound):
		if _, getErr := r.GetByID(ctx, a.ID); getErr != nil {
			return nil, getErr
		}
		return nil, ErrWriteConflict
	default:
		return nil, fmt.Errorf("update appointment: %w", err)
	}
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}
