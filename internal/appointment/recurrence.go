package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// MaxSeriesOccurrences bounds a single series expansion.
const MaxSeriesOccurrences = 366

var (
	ErrInvalidSeries = errors.New("invalid recurring series")
	ErrBranchClosed  = errors.New("branch is closed at this time")
)

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// SeriesRequest books Template at its own time and then every Interval days, weeks or months until
// Count occurrences exist or the next start is after Until.
type SeriesRequest struct {
	Template  Appointment
	Frequency Frequency
	Interval  int
	Count     int
	Until     time.Time

	// SkipUnavailable leaves out occurrences that conflict, fall on a closed day or lie in the past.
	// Without it the first such occurrence aborts the series and cancels what was already booked.
	SkipUnavailable bool
}

type SkippedOccurrence struct {
	Start  time.Time
	End    time.Time
	Reason error
}

type SeriesResult struct {
	SeriesID uuid.UUID
	Created  []Appointment
	Skipped  []SkippedOccurrence
}

// SeriesPatch holds the fields ModifySeries changes. Nil fields are left alone.
type SeriesPatch struct {
	Notes         *string
	Type          *Type
	ProviderID    *uuid.UUID
	ClearProvider bool
}

// Occurrences expands the request into start times without touching storage. Monthly occurrences
// on days a month lacks fall on the month's last day.
func Occurrences(req SeriesRequest) ([]time.Time, error) {
	start := req.Template.StartTime
	if start.IsZero() {
		return nil, fmt.Errorf("%w: template has no start time", ErrInvalidSeries)
	}
	switch req.Frequency {
	case FrequencyDaily, FrequencyWeekly, FrequencyMonthly:
	default:
		return nil, fmt.Errorf("%w: unknown frequency %q", ErrInvalidSeries, req.Frequency)
	}
	if req.Count < 0 {
		return nil, fmt.Errorf("%w: negative count", ErrInvalidSeries)
	}
	if req.Count == 0 && req.Until.IsZero() {
		return nil, fmt.Errorf("%w: count or until is required", ErrInvalidSeries)
	}
	if !req.Until.IsZero() && req.Until.Before(start) {
		return nil, fmt.Errorf("%w: until is before the first occurrence", ErrInvalidSeries)
	}

	interval := req.Interval
	if interval <= 0 {
		interval = 1
	}
	limit := MaxSeriesOccurrences
	if req.Count > 0 && req.Count < limit {
		limit = req.Count
	}

	var out []time.Time
	for i := 0; len(out) < limit; i++ {
		next := nthOccurrence(start, req.Frequency, i*interval)
		if !req.Until.IsZero() && next.After(req.Until) {
			break
		}
		out = append(out, next)
	}
	return out, nil
}

func nthOccurrence(start time.Time, freq Frequency, steps int) time.Time {
	switch freq {
	case FrequencyDaily:
		return start.AddDate(0, 0, steps)
	case FrequencyWeekly:
		return start.AddDate(0, 0, 7*steps)
	default:
		y, m, d := start.Date()
		first := time.Date(y, m+time.Month(steps), 1, start.Hour(), start.Minute(), start.Second(), start.Nanosecond(), start.Location())
		if last := daysIn(first); d > last {
			d = last
		}
		return first.AddDate(0, 0, d-1)
	}
}

func daysIn(firstOfMonth time.Time) int {
	return firstOfMonth.AddDate(0, 1, -1).Day()
}

// CreateSeries books every occurrence of req through CreateAppointment under a fresh series id.
func (s *Service) CreateSeries(ctx context.Context, req SeriesRequest) (_ *SeriesResult, err error) {
	ctx, done := s.instrument(ctx, "create_series")
	defer done(&err)

	if err := validateRange(req.Template.StartTime, req.Template.EndTime); err != nil {
		return nil, err
	}
	starts, err := Occurrences(req)
	if err != nil {
		return nil, err
	}

	seriesID := uuid.New()
	duration := req.Template.Duration()
	res := &SeriesResult{SeriesID: seriesID}

	for _, start := range starts {
		end := start.Add(duration)

		bookErr := s.checkOpen(ctx, req.Template.BranchID, start, end)
		if bookErr == nil {
			occ := req.Template.clone()
			occ.StartTime = start
			occ.EndTime = end
			occ.SeriesID = &seriesID

			var created *Appointment
			created, bookErr = s.CreateAppointment(ctx, occ)
			if bookErr == nil {
				res.Created = append(res.Created, *created)
				continue
			}
		}

		if req.SkipUnavailable && skippable(bookErr) {
			res.Skipped = append(res.Skipped, SkippedOccurrence{Start: start, End: end, Reason: bookErr})
			continue
		}

		s.rollbackSeries(ctx, res.Created)
		return nil, fmt.Errorf("book occurrence at %s: %w", start.Format(time.RFC3339), bookErr)
	}

	s.logger.Info("series created",
		zap.Stringer("series_id", seriesID),
		zap.Int("created", len(res.Created)),
		zap.Int("skipped", len(res.Skipped)),
	)
	return res, nil
}

func skippable(err error) bool {
	return errors.Is(err, ErrSlotConflict) || errors.Is(err, ErrBranchClosed) || errors.Is(err, ErrPastAppointment)
}

// checkOpen requires [start, end) to lie inside one operating window of the branch. The
// calendar day is the one start falls on in the branch's time zone.
func (s *Service) checkOpen(ctx context.Context, branchID uuid.UUID, start, end time.Time) error {
	loc, err := s.branchLocation(ctx, branchID)
	if err != nil {
		return err
	}
	windows, err := s.hours.Windows(ctx, branchID, start.In(loc))
	if err != nil {
		return fmt.Errorf("load operating hours: %w", err)
	}
	for _, w := range windows {
		if !start.Before(w.Start) && !end.After(w.End) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrBranchClosed, start.Format(time.RFC3339))
}

func (s *Service) rollbackSeries(ctx context.Context, created []Appointment) {
	for _, a := range created {
		if _, err := s.Cancel(ctx, a.ID, "series creation aborted"); err != nil {
			s.logger.Error("rollback series occurrence failed",
				zap.Stringer("appointment_id", a.ID),
				zap.Error(err),
			)
		}
	}
}

// CancelSeries cancels the series' scheduled and confirmed occurrences that have not started yet.
func (s *Service) CancelSeries(ctx context.Context, seriesID uuid.UUID, reason string) (int, error) {
	pending, err := s.futureOccurrences(ctx, seriesID)
	if err != nil {
		return 0, err
	}

	cancelled := 0
	for _, a := range pending {
		if _, err := s.Cancel(ctx, a.ID, reason); err != nil {
			return cancelled, fmt.Errorf("cancel occurrence %s: %w", a.ID, err)
		}
		cancelled++
	}
	return cancelled, nil
}

// ModifySeries applies patch to every future scheduled or confirmed occurrence.
func (s *Service) ModifySeries(ctx context.Context, seriesID uuid.UUID, patch SeriesPatch) (int, error) {
	if patch.Type != nil && !patch.Type.IsValid() {
		return 0, fmt.Errorf("%w: %q", ErrInvalidType, *patch.Type)
	}

	pending, err := s.futureOccurrences(ctx, seriesID)
	if err != nil {
		return 0, err
	}

	modified := 0
	for _, a := range pending {
		next := a.clone()
		if patch.Notes != nil {
			next.Notes = *patch.Notes
		}
		if patch.Type != nil {
			next.Type = *patch.Type
		}
		if patch.ClearProvider {
			next.ProviderID = nil
		} else if patch.ProviderID != nil {
			p := *patch.ProviderID
			next.ProviderID = &p
		}

		if _, err := s.update(ctx, next, patch.ClearProvider); err != nil {
			return modified, fmt.Errorf("modify occurrence %s: %w", a.ID, err)
		}
		modified++
	}
	return modified, nil
}

func (s *Service) futureOccurrences(ctx context.Context, seriesID uuid.UUID) ([]Appointment, error) {
	return s.list(ctx, Filter{
		SeriesID: seriesID,
		Statuses: []Status{StatusScheduled, StatusConfirmed},
		From:     s.clock.Now(),
	})
}
