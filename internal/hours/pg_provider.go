package hours

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

// PgProvider reads shifts from branch_hours and closures from branch_holidays. Each row of
// branch_hours is one open shift on a weekday, so a lunch break is two rows. Branches without
// any configured rows use the fallback provider.
type PgProvider struct {
	pool     *pgxpool.Pool
	loc      *time.Location
	fallback Provider
}

func NewPgProvider(pool *pgxpool.Pool, loc *time.Location, fallback Provider) *PgProvider {
	if loc == nil {
		loc = time.UTC
	}
	return &PgProvider{pool: pool, loc: loc, fallback: fallback}
}

func (p *PgProvider) Windows(ctx context.Context, branchID uuid.UUID, day time.Time) ([]availability.Interval, error) {
	var configured, holiday bool
	err := p.pool.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM branch_hours WHERE branch_id = $1),
			EXISTS (SELECT 1 FROM branch_holidays WHERE branch_id = $1 AND day = $2::date)
	`, branchID, day.Format(dateLayout)).Scan(&configured, &holiday)
	if err != nil {
		return nil, fmt.Errorf("load branch hours flags: %w", err)
	}

	if !configured {
		if p.fallback == nil {
			return nil, nil
		}
		return p.fallback.Windows(ctx, branchID, day)
	}
	if holiday {
		return nil, nil
	}

	rows, err := p.pool.Query(ctx, `
		SELECT to_char(open_time, 'HH24:MI'), to_char(close_time, 'HH24:MI')
		FROM branch_hours
		WHERE branch_id = $1 AND weekday = $2
		ORDER BY open_time
	`, branchID, int16(day.Weekday()))
	if err != nil {
		return nil, fmt.Errorf("load branch hours: %w", err)
	}
	defer rows.Close()

	var out []availability.Interval
	for rows.Next() {
		var open, closeAt string
		if err := rows.Scan(&open, &closeAt); err != nil {
			return nil, err
		}
		start, err := clockOn(day, open, p.loc)
		if err != nil {
			return nil, err
		}
		end, err := clockOn(day, closeAt, p.loc)
		if err != nil {
			return nil, err
		}
		if end.After(start) {
			out = append(out, availability.Interval{Start: start, End: end})
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

// Location is the provider's zone for branches with stored shifts, and the fallback's otherwise.
func (p *PgProvider) Location(ctx context.Context, branchID uuid.UUID) (*time.Location, error) {
	if p.fallback == nil {
		return p.loc, nil
	}
	var configured bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM branch_hours WHERE branch_id = $1)`, branchID,
	).Scan(&configured)
	if err != nil {
		return nil, fmt.Errorf("load branch hours flags: %w", err)
	}
	if configured {
		return p.loc, nil
	}
	return p.fallback.Location(ctx, branchID)
}

// ReplaceSchedule stores sched as the branch's shifts and holidays, replacing what was there.
func (p *PgProvider) ReplaceSchedule(ctx context.Context, branchID uuid.UUID, sched Schedule) error {
	if err := sched.Validate(); err != nil {
		return err
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM branch_hours WHERE branch_id = $1`, branchID); err != nil {
		return fmt.Errorf("clear branch hours: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM branch_holidays WHERE branch_id = $1`, branchID); err != nil {
		return fmt.Errorf("clear branch holidays: %w", err)
	}

	probe := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	for name, d := range sched.Weekly {
		wd := weekdays[strings.ToLower(name)]
		shifts, err := Schedule{Weekly: map[string]Day{strings.ToLower(name): d}}.Windows(nextWeekday(probe, wd))
		if err != nil {
			return err
		}
		for _, s := range shifts {
			_, err := tx.Exec(ctx, `
				INSERT INTO branch_hours (branch_id, weekday, open_time, close_time)
				VALUES ($1, $2, $3::time, $4::time)
			`, branchID, int16(wd), s.Start.Format("15:04"), s.End.Format("15:04"))
			if err != nil {
				return fmt.Errorf("insert branch hours: %w", err)
			}
		}
	}

	for _, h := range sched.Holidays {
		if _, err := tx.Exec(ctx, `
			INSERT INTO branch_holidays (branch_id, day) VALUES ($1, $2::date)
			ON CONFLICT DO NOTHING
		`, branchID, h); err != nil {
			return fmt.Errorf("insert branch holiday: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func nextWeekday(from time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(from.Weekday()) + 7) % 7
	return from.AddDate(0, 0, delta)
}
