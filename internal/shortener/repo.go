package shortener

import (
	"context"
	"time"
)

// Repository is the persistence contract for entries. Implementations must
// enforce uniqueness of both PublicID and RemovalID (reported as an
// errx.Conflict) and report missing entries as errx.NotFound.
type Repository interface {
	// Create persists a new entry.
	Create(ctx context.Context, e *Entry) error

	// GetByPublicID returns the entry with the given public id.
	GetByPublicID(ctx context.Context, publicID string) (*Entry, error)

	// GetByRemovalID returns the entry with the given removal token.
	GetByRemovalID(ctx context.Context, removalID string) (*Entry, error)

	// Delete removes the entry with the given public id.
	Delete(ctx context.Context, publicID string) error

	// SaveVisit persists one visit's bookkeeping: the use-count decrement is
	// applied as a conditional update at the storage layer (never dropping an
	// unlimited or already-exhausted counter below its floor) and expires_at
	// is set to expiresAt as computed by the caller.
	SaveVisit(ctx context.Context, publicID string, expiresAt time.Time) error
}
