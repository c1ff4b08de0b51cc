package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "scheduled"
	StatusConfirmed  Status = "confirmed"
	StatusCheckedIn  Status = "checked_in"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no_show"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusCheckedIn, StatusInProgress,
		StatusCompleted, StatusCancelled, StatusNoShow:
		return true
	}
	return false
}

type Type string

const (
	TypeConsultation Type = "consultation"
	TypeFollowUp     Type = "follow_up"
	TypeProcedure    Type = "procedure"
	TypeEmergency    Type = "emergency"
	TypeTelehealth   Type = "telehealth"
	TypeNewPatient   Type = "new_patient"
	TypeHearingTest  Type = "hearing_test"
)

func (t Type) IsValid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeProcedure, TypeEmergency,
		TypeTelehealth, TypeNewPatient, TypeHearingTest:
		return true
	}
	return false
}

// MaxNotesLength is enforced by input layers, not by the engine.
const MaxNotesLength = 2000

type Appointment struct {
	ID         uuid.UUID
	PatientID  uuid.UUID
	BranchID   uuid.UUID
	ProviderID *uuid.UUID
	SeriesID   *uuid.UUID

	StartTime time.Time
	EndTime   time.Time
	Type      Type
	Status    Status
	Notes     string

	CancellationReason string
	CancelledAt        *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

func (a Appointment) Duration() time.Duration {
	return a.EndTime.Sub(a.StartTime)
}

// Blocks reports whether the appointment occupies its time range.
func (a Appointment) Blocks() bool {
	return a.Status != StatusCancelled
}

func (a Appointment) clone() Appointment {
	out := a
	if a.ProviderID != nil {
		p := *a.ProviderID
		out.ProviderID = &p
	}
	if a.SeriesID != nil {
		s := *a.SeriesID
		out.SeriesID = &s
	}
	if a.CancelledAt != nil {
		c := *a.CancelledAt
		out.CancelledAt = &c
	}
	return out
}

func sameProvider(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
