package appointment

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/clinic-scheduling/internal/availability"
)

// MemoryRepository keeps appointments in process memory. Every write checks and mutates under
// one mutex, which gives it the same conflict guarantees as the Postgres repository within a
// single process.
type MemoryRepository struct {
	mu    sync.RWMutex
	items map[uuid.UUID]Appointment
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[uuid.UUID]Appointment)}
}

func (r *MemoryRepository) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.items[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	out := a.clone()
	return &out, nil
}

func (r *MemoryRepository) GetByProviderAndWindow(ctx context.Context, providerID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	return r.window(ctx, start, end, func(a Appointment) bool {
		return a.ProviderID != nil && *a.ProviderID == providerID
	})
}

func (r *MemoryRepository) GetByBranchAndWindow(ctx context.Context, branchID uuid.UUID, start, end time.Time) ([]Appointment, error) {
	return r.window(ctx, start, end, func(a Appointment) bool {
		return a.BranchID == branchID
	})
}

func (r *MemoryRepository) window(ctx context.Context, start, end time.Time, match func(Appointment) bool) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.items {
		if !a.Blocks() || !match(a) {
			continue
		}
		if availability.Overlaps(a.StartTime, a.EndTime, start, end) {
			out = append(out, a.clone())
		}
	}
	sortByStart(out)
	return out, nil
}

func (r *MemoryRepository) List(ctx context.Context, f Filter) ([]Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Appointment
	for _, a := range r.items {
		if f.matches(a) {
			out = append(out, a.clone())
		}
	}
	sortByStart(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) Insert(ctx context.Context, a Appointment) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.items[a.ID]; exists {
		return nil, ErrWriteConflict
	}
	if r.overlapsLocked(a) {
		return nil, ErrWriteConflict
	}

	a.Version = 1
	r.items[a.ID] = a.clone()
	return &a, nil
}

func (r *MemoryRepository) Update(ctx context.Context, a Appointment) (*Appointment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.items[a.ID]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	if current.Version != a.Version {
		return nil, ErrWriteConflict
	}
	if r.overlapsLocked(a) {
		return nil, ErrWriteConflict
	}

	a.Version++
	r.items[a.ID] = a.clone()
	return &a, nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.items, id)
	return nil
}

func (r *MemoryRepository) overlapsLocked(a Appointment) bool {
	if a.ProviderID == nil || !a.Blocks() {
		return false
	}
	for id, other := range r.items {
		if id == a.ID || !other.Blocks() || !sameProvider(other.ProviderID, a.ProviderID) {
			continue
		}
		if availability.Overlaps(other.StartTime, other.EndTime, a.StartTime, a.EndTime) {
			return true
		}
	}
	return false
}

func (f Filter) matches(a Appointment) bool {
	if f.BranchID != uuid.Nil && a.BranchID != f.BranchID {
		return false
	}
	if f.ProviderID != uuid.Nil && (a.ProviderID == nil || *a.ProviderID != f.ProviderID) {
		return false
	}
	if f.PatientID != uuid.Nil && a.PatientID != f.PatientID {
		return false
	}
	if f.SeriesID != uuid.Nil && (a.SeriesID == nil || *a.SeriesID != f.SeriesID) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, a.Status) {
		return false
	}
	if !f.From.IsZero() && a.StartTime.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !a.StartTime.Before(f.To) {
		return false
	}
	if !f.EndsBefore.IsZero() && !a.EndTime.Before(f.EndsBefore) {
		return false
	}
	return true
}

func sortByStart(appts []Appointment) {
	sort.Slice(appts, func(i, j int) bool {
		if !appts[i].StartTime.Equal(appts[j].StartTime) {
			return appts[i].StartTime.Before(appts[j].StartTime)
		}
		return appts[i].ID.String() < appts[j].ID.String()
	})
}
