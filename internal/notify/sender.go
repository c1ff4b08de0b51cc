package notify

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Event describes a committed appointment mutation.
type Event struct {
	ID            uuid.UUID         `json:"event_id"`
	Type          string            `json:"event_type"`
	AppointmentID uuid.UUID         `json:"appointment_id"`
	PatientID     uuid.UUID         `json:"patient_id"`
	BranchID      uuid.UUID         `json:"branch_id"`
	ProviderID    *uuid.UUID        `json:"provider_id,omitempty"`
	StartTime     time.Time         `json:"start_time"`
	EndTime       time.Time         `json:"end_time"`
	Status        string            `json:"status"`
	OccurredAt    time.Time         `json:"occurred_at"`
	Data          map[string]string `json:"data,omitempty"`
}

func (e Event) Payload() ([]byte, error) {
	return json.Marshal(e)
}

// Sender delivers events. The engine never rolls back a mutation because Send failed.
type Sender interface {
	Send(ctx context.Context, ev Event) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, ev Event) error

func (f SenderFunc) Send(ctx context.Context, ev Event) error {
	return f(ctx, ev)
}

// Multi fans an event out to every sender and joins their errors.
type Multi []Sender

func (m Multi) Send(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Send(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
