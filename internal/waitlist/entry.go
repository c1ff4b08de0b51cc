package waitlist

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/appointment"
)

type Status string

const (
	StatusWaiting  Status = "waiting"
	StatusPromoted Status = "promoted"
	StatusRemoved  Status = "removed"
)

var (
	ErrEntryNotFound = errors.New("waitlist entry not found")
	ErrNotWaiting    = errors.New("waitlist entry is no longer waiting")
	ErrInvalidEntry  = errors.New("invalid waitlist entry")
)

// Entry is a patient waiting for a freed slot at a branch. A nil ProviderID accepts any provider.
type Entry struct {
	ID              uuid.UUID
	PatientID       uuid.UUID
	BranchID        uuid.UUID
	ProviderID      *uuid.UUID
	Type            appointment.Type
	DurationMinutes int
	Priority        int
	Notes           string
	Status          Status
	AppointmentID   *uuid.UUID
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (e Entry) Duration() time.Duration {
	return time.Duration(e.DurationMinutes) * time.Minute
}

// Accepts reports whether a slot freed for provider fits this entry.
func (e Entry) Accepts(provider *uuid.UUID, start, end time.Time) bool {
	if e.ProviderID != nil && (provider == nil || *provider != *e.ProviderID) {
		return false
	}
	return !start.Add(e.Duration()).After(end)
}

// Validate fills defaults and rejects entries that could never be booked.
func (e *Entry) Validate() error {
	if e.PatientID == uuid.Nil || e.BranchID == uuid.Nil {
		return fmt.Errorf("%w: patient and branch are required", ErrInvalidEntry)
	}
	if e.DurationMinutes <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidEntry)
	}
	if e.Type == "" {
		e.Type = appointment.TypeConsultation
	}
	if !e.Type.IsValid() {
		return fmt.Errorf("%w: %q", appointment.ErrInvalidType, e.Type)
	}
	if len(e.Notes) > appointment.MaxNotesLength {
		return fmt.Errorf("%w: notes exceed %d characters", ErrInvalidEntry, appointment.MaxNotesLength)
	}
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	e.Status = StatusWaiting
	return nil
}

// byPriority orders the best candidate first: highest priority, then the longest waiting.
func byPriority(a, b Entry) int {
	if a.Priority != b.Priority {
		return b.Priority - a.Priority
	}
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return compareIDs(a.ID, b.ID)
}

func compareIDs(a, b uuid.UUID) int {
	as, bs := a.String(), b.String()
	switch {
	case as < bs:
		return -1
	case as > bs:
		return 1
	}
	return 0
}
