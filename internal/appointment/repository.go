package appointment

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter narrows List. Zero values are unset. From/To bound StartTime as [From, To).
type Filter struct {
	BranchID   uuid.UUID
	ProviderID uuid.UUID
	PatientID  uuid.UUID
	SeriesID   uuid.UUID
	Statuses   []Status
	From       time.Time
	To         time.Time
	EndsBefore time.Time
	Limit      int
}

// Repository contains all storage interactions needed by the service. Implementations must
// refuse to store two overlapping non-cancelled appointments for the same provider and must
// apply Update only when the stored version equals the given one; both cases return
// ErrWriteConflict.
type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	// Window lookups return non-cancelled appointments overlapping [start, end).
	GetByProviderAndWindow(ctx context.Context, providerID uuid.UUID, start, end time.Time) ([]Appointment, error)
	GetByBranchAndWindow(ctx context.Context, branchID uuid.UUID, start, end time.Time) ([]Appointment, error)

	// List returns matches ordered by start time, then id.
	List(ctx context.Context, f Filter) ([]Appointment, error)

	Insert(ctx context.Context, a Appointment) (*Appointment, error)
	Update(ctx context.Context, a Appointment) (*Appointment, error)
	Delete(ctx context.Context, id uuid.UUID) error
}
