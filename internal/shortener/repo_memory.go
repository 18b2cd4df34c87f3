package shortener

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JLChnToZ/shota-url/internal/errx"
)

// MemoryRepository is a mutex-guarded in-memory Repository. It backs tests
// and single-node development runs; the behavior mirrors the Postgres
// implementation, including the conditional decrement in SaveVisit.
type MemoryRepository struct {
	mu        sync.RWMutex
	byPublic  map[string]*Entry
	byRemoval map[string]string // removal id -> public id
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byPublic:  make(map[string]*Entry),
		byRemoval: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, e *Entry) error {
	const op = "shortener.MemoryRepository.Create"

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byPublic[e.PublicID]; exists {
		return errx.E(op, errx.Conflict, errors.New("public id already exists"))
	}
	if _, exists := r.byRemoval[e.RemovalID]; exists {
		return errx.E(op, errx.Conflict, errors.New("removal id already exists"))
	}

	stored := cloneEntry(e)
	r.byPublic[e.PublicID] = stored
	r.byRemoval[e.RemovalID] = e.PublicID
	return nil
}

func (r *MemoryRepository) GetByPublicID(_ context.Context, publicID string) (*Entry, error) {
	const op = "shortener.MemoryRepository.GetByPublicID"

	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.byPublic[publicID]
	if !ok {
		return nil, errx.E(op, errx.NotFound, errors.New("entry not found"))
	}
	return cloneEntry(e), nil
}

func (r *MemoryRepository) GetByRemovalID(_ context.Context, removalID string) (*Entry, error) {
	const op = "shortener.MemoryRepository.GetByRemovalID"

	r.mu.RLock()
	defer r.mu.RUnlock()

	publicID, ok := r.byRemoval[removalID]
	if !ok {
		return nil, errx.E(op, errx.NotFound, errors.New("entry not found"))
	}
	return cloneEntry(r.byPublic[publicID]), nil
}

func (r *MemoryRepository) Delete(_ context.Context, publicID string) error {
	const op = "shortener.MemoryRepository.Delete"

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byPublic[publicID]
	if !ok {
		return errx.E(op, errx.NotFound, errors.New("entry not found"))
	}
	delete(r.byRemoval, e.RemovalID)
	delete(r.byPublic, publicID)
	return nil
}

func (r *MemoryRepository) SaveVisit(_ context.Context, publicID string, expiresAt time.Time) error {
	const op = "shortener.MemoryRepository.SaveVisit"

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byPublic[publicID]
	if !ok {
		return errx.E(op, errx.NotFound, errors.New("entry not found"))
	}
	if e.RemainingUses > 0 {
		e.RemainingUses--
	}
	e.ExpiresAt = expiresAt
	return nil
}

// Len reports the number of stored entries. Test helper.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byPublic)
}

func cloneEntry(e *Entry) *Entry {
	clone := *e
	clone.Targets = make([]Target, len(e.Targets))
	copy(clone.Targets, e.Targets)
	return &clone
}
