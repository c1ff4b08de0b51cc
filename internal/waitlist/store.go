package waitlist

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store persists waitlist entries. Waiting returns entries best candidate first.
type Store interface {
	Add(ctx context.Context, e Entry) (*Entry, error)
	Get(ctx context.Context, id uuid.UUID) (*Entry, error)
	Waiting(ctx context.Context, branchID uuid.UUID) ([]Entry, error)
	MarkPromoted(ctx context.Context, id, appointmentID uuid.UUID) error
	Remove(ctx context.Context, id uuid.UUID) error
}

type MemoryStore struct {
	mu      sync.Mutex
	entries map[uuid.UUID]Entry
	now     func() time.Time
}

func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &MemoryStore{entries: make(map[uuid.UUID]Entry), now: now}
}

func (s *MemoryStore) Add(ctx context.Context, e Entry) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := e.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.now()
	}
	e.UpdatedAt = e.CreatedAt
	s.entries[e.ID] = e
	return &e, nil
}

func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &e, nil
}

func (s *MemoryStore) Waiting(ctx context.Context, branchID uuid.UUID) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Entry, 0)
	for _, e := range s.entries {
		if e.BranchID == branchID && e.Status == StatusWaiting {
			out = append(out, e)
		}
	}
	slices.SortFunc(out, byPriority)
	return out, nil
}

func (s *MemoryStore) MarkPromoted(ctx context.Context, id, appointmentID uuid.UUID) error {
	return s.setStatus(ctx, id, StatusPromoted, &appointmentID)
}

func (s *MemoryStore) Remove(ctx context.Context, id uuid.UUID) error {
	return s.setStatus(ctx, id, StatusRemoved, nil)
}

func (s *MemoryStore) setStatus(ctx context.Context, id uuid.UUID, to Status, appointmentID *uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return ErrEntryNotFound
	}
	if e.Status != StatusWaiting {
		return ErrNotWaiting
	}
	e.Status = to
	e.AppointmentID = appointmentID
	e.UpdatedAt = s.now()
	s.entries[id] = e
	return nil
}
