package waitlist

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
	"github.com/hackgods/clinic-scheduling/internal/clock"
	"github.com/hackgods/clinic-scheduling/internal/notify"
)

// Booker is the part of the scheduling engine the promoter books through.
type Booker interface {
	IsTimeSlotAvailable(ctx context.Context, branchID uuid.UUID, providerID *uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
	CreateAppointment(ctx context.Context, in appointment.Appointment) (*appointment.Appointment, error)
	Cancel(ctx context.Context, id uuid.UUID, reason string) (*appointment.Appointment, error)
}

type Counter interface {
	IncPromoted()
}

// Promotion records a waitlist entry turned into an appointment.
type Promotion struct {
	Entry       Entry
	Appointment appointment.Appointment
}

// Promoter listens for cancelled and deleted appointments and books the freed slot for the best
// waiting entry of the branch.
type Promoter struct {
	store   Store
	clock   clock.Clock
	counter Counter
	logger  *zap.Logger

	mu     sync.RWMutex
	booker Booker
}

type PromoterOption func(*Promoter)

func WithClock(c clock.Clock) PromoterOption {
	return func(p *Promoter) { p.clock = c }
}

func WithCounter(c Counter) PromoterOption {
	return func(p *Promoter) { p.counter = c }
}

func WithLogger(l *zap.Logger) PromoterOption {
	return func(p *Promoter) { p.logger = l }
}

func NewPromoter(store Store, opts ...PromoterOption) *Promoter {
	p := &Promoter{store: store}
	for _, opt := range opts {
		opt(p)
	}
	if p.clock == nil {
		p.clock = clock.System()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Bind sets the engine to book through. The engine usually takes the promoter as one of its
// notifiers, so the two are constructed first and bound afterwards.
func (p *Promoter) Bind(b Booker) {
	p.mu.Lock()
	p.booker = b
	p.mu.Unlock()
}

var _ notify.Sender = (*Promoter)(nil)

func (p *Promoter) Send(ctx context.Context, ev notify.Event) error {
	if ev.Type != appointment.EventAppointmentCancelled && ev.Type != appointment.EventAppointmentDeleted {
		return nil
	}
	_, err := p.Promote(ctx, ev.BranchID, ev.ProviderID, ev.StartTime, ev.EndTime)
	return err
}

// Promote books [start, end) for the first waiting entry that fits it. It returns nil when no
// entry could take the slot.
func (p *Promoter) Promote(ctx context.Context, branchID uuid.UUID, providerID *uuid.UUID, start, end time.Time) (*Promotion, error) {
	p.mu.RLock()
	booker := p.booker
	p.mu.RUnlock()
	if booker == nil || !start.After(p.clock.Now()) {
		return nil, nil
	}

	entries, err := p.store.Waiting(ctx, branchID)
	if err != nil {
		return nil, fmt.Errorf("load waitlist: %w", err)
	}

	for _, e := range entries {
		if !e.Accepts(providerID, start, end) {
			continue
		}
		slotEnd := start.Add(e.Duration())

		free, err := booker.IsTimeSlotAvailable(ctx, branchID, providerID, start, slotEnd, nil)
		if err != nil {
			return nil, fmt.Errorf("check freed slot: %w", err)
		}
		if !free {
			continue
		}

		created, err := booker.CreateAppointment(ctx, appointment.Appointment{
			PatientID:  e.PatientID,
			BranchID:   branchID,
			ProviderID: providerID,
			StartTime:  start,
			EndTime:    slotEnd,
			Type:       e.Type,
			Notes:      e.Notes,
		})
		switch {
		case err == nil:
		case errors.Is(err, appointment.ErrSlotConflict), errors.Is(err, appointment.ErrProviderBusy):
			// taken by a direct booking in the meantime
			continue
		default:
			return nil, fmt.Errorf("book waitlist entry %s: %w", e.ID, err)
		}

		if err := p.store.MarkPromoted(ctx, e.ID, created.ID); err != nil {
			p.release(ctx, booker, created.ID, err)
			if errors.Is(err, ErrNotWaiting) || errors.Is(err, ErrEntryNotFound) {
				continue
			}
			return nil, fmt.Errorf("mark waitlist entry %s promoted: %w", e.ID, err)
		}

		if p.counter != nil {
			p.counter.IncPromoted()
		}
		p.logger.Info("waitlist entry promoted",
			zap.Stringer("entry_id", e.ID),
			zap.Stringer("appointment_id", created.ID),
			zap.Time("start_time", start),
		)

		e.Status = StatusPromoted
		e.AppointmentID = &created.ID
		return &Promotion{Entry: e, Appointment: *created}, nil
	}

	return nil, nil
}

// release cancels an appointment booked for an entry that could not be marked promoted.
func (p *Promoter) release(ctx context.Context, booker Booker, appointmentID uuid.UUID, cause error) {
	p.logger.Warn("waitlist entry left the queue during promotion",
		zap.Stringer("appointment_id", appointmentID),
		zap.Error(cause),
	)
	if _, err := booker.Cancel(ctx, appointmentID, "waitlist promotion withdrawn"); err != nil {
		p.logger.Error("failed to cancel withdrawn promotion",
			zap.Stringer("appointment_id", appointmentID),
			zap.Error(err),
		)
	}
}
