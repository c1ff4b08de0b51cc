package appointment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/config"
	"github.com/hackgods/clinic-scheduling/internal/hours"
	"github.com/hackgods/clinic-scheduling/internal/notify"
	redisclient "github.com/hackgods/clinic-scheduling/internal/redis"
)

var tracer = otel.Tracer("github.com/hackgods/clinic-scheduling/internal/appointment")

const (
	opCreate     = "create"
	opUpdate     = "update"
	opDelete     = "delete"
	opReschedule = "reschedule"
	opAvailable  = "is_available"
	opSlots      = "available_slots"
)

// Service is the scheduling engine. It keeps no mutable state of its own; every write is
// serialized by the provider lock (when configured) and, in the end, by the repository.
type Service struct {
	repo   Repository
	locker redisclient.Locker
	cfg    config.Config

	clock    clock.Clock
	hours    hours.Provider
	notifier notify.Sender
	metrics  Metrics
	logger   *zap.Logger

	loc           *time.Location
	granularity   time.Duration
	notifyTimeout time.Duration
}

// NewService wires the engine. locker may be nil, in which case the repository alone guards
// against double booking.
func NewService(repo Repository, locker redisclient.Locker, cfg config.Config, opts ...Option) *Service {
	s := &Service{
		repo:   repo,
		locker: locker,
		cfg:    cfg,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.clock == nil {
		s.clock = clock.System()
	}
	if s.hours == nil {
		s.hours = hours.NewStatic(hours.DefaultSchedule(), nil)
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.loc = cfg.Location
	if s.loc == nil {
		s.loc = time.UTC
	}
	s.granularity = cfg.SlotGranularity
	if s.granularity <= 0 {
		s.granularity = 15 * time.Minute
	}
	s.notifyTimeout = cfg.NotifyTimeout
	if s.notifyTimeout <= 0 {
		s.notifyTimeout = 2 * time.Second
	}

	return s
}

// CreateAppointment validates and stores a new appointment. The conflict check and the insert run
// under the provider lock; losing a race at the repository is retried once with a fresh check.
func (s *Service) CreateAppointment(ctx context.Context, in Appointment) (_ *Appointment, err error) {
	ctx, done := s.instrument(ctx, opCreate, attribute.String("branch_id", in.BranchID.String()))
	defer done(&err)

	appt := in.clone()
	if appt.Type == "" {
		appt.Type = TypeConsultation
	}
	if !appt.Type.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, appt.Type)
	}
	if err := validateRange(appt.StartTime, appt.EndTime); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := s.validateStart(ctx, appt.BranchID, appt.Type, appt.StartTime, now); err != nil {
		return nil, err
	}

	appt.ID = uuid.New()
	appt.Status = StatusScheduled
	appt.CancellationReason = ""
	appt.CancelledAt = nil
	appt.CreatedAt = now
	appt.UpdatedAt = now
	appt.Version = 0

	var created *Appointment
	err = s.withProviderLock(ctx, appt.ProviderID, func(lockCtx context.Context) error {
		return s.retryWrite(lockCtx, opCreate, ErrSlotConflict, func(ctx context.Context) error {
			if err := s.ensureFree(ctx, appt.ProviderID, appt.StartTime, appt.EndTime, uuid.Nil); err != nil {
				return err
			}
			stored, err := s.repo.Insert(ctx, appt)
			if err != nil {
				return err
			}
			created = stored
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment created",
		zap.Stringer("appointment_id", created.ID),
		zap.Stringer("branch_id", created.BranchID),
		zap.Time("start_time", created.StartTime),
		zap.String("type", string(created.Type)),
	)
	s.publish(ctx, EventAppointmentCreated, created, nil)

	return created, nil
}

// UpdateAppointment applies notes, type, provider and times from in onto the stored record. Zero
// times, an empty type and a nil provider keep the stored values; use UnassignProvider to clear
// the provider. Status is never changed here, and the start is not required to be in the future.
// Times can only move while the appointment is scheduled or confirmed.
func (s *Service) UpdateAppointment(ctx context.Context, in Appointment) (*Appointment, error) {
	return s.update(ctx, in, false)
}

// UnassignProvider removes the provider from an appointment, leaving everything else as stored.
func (s *Service) UnassignProvider(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	return s.update(ctx, *current, true)
}

func (s *Service) update(ctx context.Context, in Appointment, clearProvider bool) (_ *Appointment, err error) {
	ctx, done := s.instrument(ctx, opUpdate, attribute.String("appointment_id", in.ID.String()))
	defer done(&err)

	if in.Type != "" && !in.Type.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}

	current, err := s.repo.GetByID(ctx, in.ID)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	first := mergeUpdate(*current, in, clearProvider)
	if err := validateRange(first.StartTime, first.EndTime); err != nil {
		return nil, err
	}
	if retimed(*current, first) {
		if err := checkReschedulable(current.Status); err != nil {
			return nil, err
		}
	}

	lost := ErrWriteConflict
	if movedFrom(*current, first) {
		lost = ErrSlotConflict
	}

	var updated *Appointment
	err = s.withProviderLock(ctx, first.ProviderID, func(lockCtx context.Context) error {
		return s.retryWrite(lockCtx, opUpdate, lost, func(ctx context.Context) error {
			cur, err := s.repo.GetByID(ctx, in.ID)
			if err != nil {
				return fmt.Errorf("load appointment: %w", err)
			}
			next := mergeUpdate(*cur, in, clearProvider)
			if retimed(*cur, next) {
				if err := checkReschedulable(cur.Status); err != nil {
					return err
				}
			}
			if movedFrom(*cur, next) && next.Blocks() {
				if err := s.ensureFree(ctx, next.ProviderID, next.StartTime, next.EndTime, next.ID); err != nil {
					return err
				}
			}
			next.UpdatedAt = s.clock.Now()

			stored, err := s.repo.Update(ctx, next)
			if err != nil {
				return err
			}
			updated = stored
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	var data map[string]string
	if movedFrom(*current, *updated) {
		data = previousTimes(*current)
	}
	s.publish(ctx, EventAppointmentUpdated, updated, data)

	return updated, nil
}

// DeleteAppointment removes the appointment. Deleting an unknown id is a no-op.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) (err error) {
	ctx, done := s.instrument(ctx, opDelete, attribute.String("appointment_id", id.String()))
	defer done(&err)

	existing, err := s.repo.GetByID(ctx, id)
	if errors.Is(err, ErrAppointmentNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load appointment: %w", err)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil
		}
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.logger.Info("appointment deleted", zap.Stringer("appointment_id", id))
	s.publish(ctx, EventAppointmentDeleted, existing, nil)
	return nil
}

// Reschedule moves a scheduled or confirmed appointment to a new time range. The status is kept.
func (s *Service) Reschedule(ctx context.Context, id uuid.UUID, newStart, newEnd time.Time) (_ *Appointment, err error) {
	ctx, done := s.instrument(ctx, opReschedule, attribute.String("appointment_id", id.String()))
	defer done(&err)

	if err := validateRange(newStart, newEnd); err != nil {
		return nil, err
	}

	current, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if err := checkReschedulable(current.Status); err != nil {
		return nil, err
	}
	if err := s.validateStart(ctx, current.BranchID, current.Type, newStart, s.clock.Now()); err != nil {
		return nil, err
	}

	var updated *Appointment
	err = s.withProviderLock(ctx, current.ProviderID, func(lockCtx context.Context) error {
		return s.retryWrite(lockCtx, opReschedule, ErrSlotConflict, func(ctx context.Context) error {
			cur, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return fmt.Errorf("load appointment: %w", err)
			}
			if err := checkReschedulable(cur.Status); err != nil {
				return err
			}
			if err := s.ensureFree(ctx, cur.ProviderID, newStart, newEnd, cur.ID); err != nil {
				return err
			}

			cur.StartTime = newStart
			cur.EndTime = newEnd
			cur.UpdatedAt = s.clock.Now()

			stored, err := s.repo.Update(ctx, *cur)
			if err != nil {
				return err
			}
			updated = stored
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("appointment rescheduled",
		zap.Stringer("appointment_id", id),
		zap.Time("previous_start", current.StartTime),
		zap.Time("start_time", updated.StartTime),
	)
	s.publish(ctx, EventAppointmentRescheduled, updated, previousTimes(*current))

	return updated, nil
}

func (s *Service) Confirm(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, "confirm", id, StatusConfirmed, nil)
}

func (s *Service) CheckIn(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, "check_in", id, StatusCheckedIn, nil)
}

func (s *Service) StartVisit(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, "start_visit", id, StatusInProgress, nil)
}

func (s *Service) Complete(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, "complete", id, StatusCompleted, nil)
}

func (s *Service) MarkNoShow(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	return s.transition(ctx, "no_show", id, StatusNoShow, nil)
}

// Cancel frees the appointment's slot. The reason is stored and carried on the event.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, reason string) (*Appointment, error) {
	return s.transition(ctx, "cancel", id, StatusCancelled, func(a *Appointment, now time.Time) {
		a.CancellationReason = reason
		a.CancelledAt = &now
	})
}

func (s *Service) transition(ctx context.Context, op string, id uuid.UUID, to Status, apply func(*Appointment, time.Time)) (_ *Appointment, err error) {
	ctx, done := s.instrument(ctx, op, attribute.String("appointment_id", id.String()))
	defer done(&err)

	var (
		updated *Appointment
		from    Status
	)
	err = s.retryWrite(ctx, op, ErrWriteConflict, func(ctx context.Context) error {
		cur, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("load appointment: %w", err)
		}
		if _, err := Transition(cur.Status, to); err != nil {
			return err
		}

		from = cur.Status
		now := s.clock.Now()
		cur.Status = to
		cur.UpdatedAt = now
		if apply != nil {
			apply(cur, now)
		}

		stored, err := s.repo.Update(ctx, *cur)
		if err != nil {
			return err
		}
		updated = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.IncTransition(string(from), string(to))
	s.logger.Info("appointment status changed",
		zap.Stringer("appointment_id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)

	var data map[string]string
	if to == StatusCancelled && updated.CancellationReason != "" {
		data = map[string]string{"reason": updated.CancellationReason}
	}
	s.publish(ctx, transitionEvents[to], updated, data)

	return updated, nil
}

func (s *Service) instrument(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(*error)) {
	ctx, span := tracer.Start(ctx, "appointment."+op, trace.WithAttributes(attrs...))
	started := time.Now()

	return ctx, func(errp *error) {
		outcome := outcomeOf(*errp)
		if *errp != nil {
			span.RecordError(*errp)
			span.SetStatus(codes.Error, outcome)
		}
		span.SetAttributes(attribute.String("outcome", outcome))
		s.metrics.ObserveOperation(op, outcome, time.Since(started))
		span.End()
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotConflict):
		return "conflict"
	case errors.Is(err, ErrInvalidTimeRange), errors.Is(err, ErrPastAppointment),
		errors.Is(err, ErrInvalidType), errors.Is(err, ErrInvalidSeries):
		return "invalid"
	case errors.Is(err, ErrInvalidTransition):
		return "invalid_transition"
	case errors.Is(err, ErrAppointmentNotFound):
		return "not_found"
	case errors.Is(err, ErrProviderBusy):
		return "busy"
	case errors.Is(err, ErrWriteConflict):
		return "write_conflict"
	default:
		return "error"
	}
}

func (s *Service) withProviderLock(ctx context.Context, providerID *uuid.UUID, fn func(ctx context.Context) error) error {
	if s.locker == nil || providerID == nil {
		return fn(ctx)
	}

	err := s.locker.WithProviderLock(ctx, *providerID, fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return fmt.Errorf("%w: provider %s", ErrProviderBusy, *providerID)
	}
	return err
}

// retryWrite runs attempt once more when a concurrent writer won the race. A second loss is
// reported as lost.
func (s *Service) retryWrite(ctx context.Context, op string, lost error, attempt func(ctx context.Context) error) error {
	err := attempt(ctx)
	if !errors.Is(err, ErrWriteConflict) {
		return err
	}

	s.metrics.IncRetry(op)
	s.logger.Debug("write lost a race, retrying", zap.String("operation", op))

	err = attempt(ctx)
	if errors.Is(err, ErrWriteConflict) {
		return lost
	}
	return err
}

// ensureFree fails with ErrSlotConflict when the provider already has a blocking appointment in
// [start, end). Appointments without a provider are not conflict checked.
func (s *Service) ensureFree(ctx context.Context, providerID *uuid.UUID, start, end time.Time, excludeID uuid.UUID) error {
	if providerID == nil {
		return nil
	}

	existing, err := s.repo.GetByProviderAndWindow(ctx, *providerID, start, end)
	if err != nil {
		return fmt.Errorf("load provider appointments: %w", err)
	}
	if c := Conflicts(existing, start, end, excludeID); len(c) > 0 {
		return fmt.Errorf("%w: overlaps appointment %s (%s - %s)", ErrSlotConflict,
			c[0].ID, c[0].StartTime.Format(time.RFC3339), c[0].EndTime.Format(time.RFC3339))
	}
	return nil
}

// validateStart requires a start strictly after now. Emergencies may start earlier on the same
// calendar day in the branch's time zone.
func (s *Service) validateStart(ctx context.Context, branchID uuid.UUID, t Type, start, now time.Time) error {
	if start.After(now) {
		return nil
	}
	if t == TypeEmergency {
		loc, err := s.branchLocation(ctx, branchID)
		if err != nil {
			return err
		}
		if sameDay(start, now, loc) {
			return nil
		}
	}
	return fmt.Errorf("%w: start %s is not after %s", ErrPastAppointment,
		start.Format(time.RFC3339), now.Format(time.RFC3339))
}

// branchLocation is the zone the branch's opening hours are read in, or the engine's zone when
// the hours provider has none.
func (s *Service) branchLocation(ctx context.Context, branchID uuid.UUID) (*time.Location, error) {
	loc, err := s.hours.Location(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("load branch time zone: %w", err)
	}
	if loc == nil {
		return s.loc, nil
	}
	return loc, nil
}

func validateRange(start, end time.Time) error {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return fmt.Errorf("%w: start %s, end %s", ErrInvalidTimeRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return nil
}

func checkReschedulable(st Status) error {
	if !st.Reschedulable() {
		return fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidTransition, st)
	}
	return nil
}

func mergeUpdate(cur, in Appointment, clearProvider bool) Appointment {
	next := cur.clone()
	next.Notes = in.Notes
	if in.Type != "" {
		next.Type = in.Type
	}
	if clearProvider {
		next.ProviderID = nil
	} else if in.ProviderID != nil {
		p := *in.ProviderID
		next.ProviderID = &p
	}
	if !in.StartTime.IsZero() {
		next.StartTime = in.StartTime
	}
	if !in.EndTime.IsZero() {
		next.EndTime = in.EndTime
	}
	return next
}

func retimed(before, after Appointment) bool {
	return !before.StartTime.Equal(after.StartTime) || !before.EndTime.Equal(after.EndTime)
}

func movedFrom(before, after Appointment) bool {
	return !before.StartTime.Equal(after.StartTime) ||
		!before.EndTime.Equal(after.EndTime) ||
		!sameProvider(before.ProviderID, after.ProviderID)
}

func previousTimes(a Appointment) map[string]string {
	return map[string]string{
		"previous_start": a.StartTime.Format(time.RFC3339),
		"previous_end":   a.EndTime.Format(time.RFC3339),
	}
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}
