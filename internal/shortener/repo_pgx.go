package shortener

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/JLChnToZ/shota-url/internal/errx"
)

// uniqueViolation is the Postgres error code for unique-index conflicts.
const uniqueViolation = "23505"

// pgxQuerier is the slice of pgxpool.Pool the repository needs. Tests can
// substitute their own implementation.
type pgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PgxRepository is the Postgres-backed Repository. Targets are stored as a
// JSONB document per entry; public and removal ids are enforced unique by
// index. The expires_at column carries a plain index for optional passive
// reclamation sweeps; lazy deletion on access remains authoritative.
type PgxRepository struct {
	db pgxQuerier
}

// NewPgxRepository returns a PgxRepository on top of db.
func NewPgxRepository(db pgxQuerier) *PgxRepository {
	return &PgxRepository{db: db}
}

func (r *PgxRepository) Create(ctx context.Context, e *Entry) error {
	const op = "shortener.PgxRepository.Create"

	targets, err := json.Marshal(e.Targets)
	if err != nil {
		return errx.E(op, errx.Internal, fmt.Errorf("marshal targets: %w", err))
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO entries
			(public_id, removal_id, comments, targets, remaining_uses,
			 expires_at, ttl_ms, randomize, auto_redirect, refresh_ttl,
			 og_policy, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		e.PublicID, e.RemovalID, e.Comments, targets, e.RemainingUses,
		e.ExpiresAt, e.TTL.Milliseconds(), e.Randomize, e.AutoRedirect,
		e.RefreshTTLOnVisit, e.OGPolicy, e.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return errx.E(op, errx.Conflict, err)
		}
		return errx.E(op, errx.Internal, err)
	}
	return nil
}

func (r *PgxRepository) GetByPublicID(ctx context.Context, publicID string) (*Entry, error) {
	const op = "shortener.PgxRepository.GetByPublicID"
	return r.get(ctx, op, "public_id", publicID)
}

func (r *PgxRepository) GetByRemovalID(ctx context.Context, removalID string) (*Entry, error) {
	const op = "shortener.PgxRepository.GetByRemovalID"
	return r.get(ctx, op, "removal_id", removalID)
}

func (r *PgxRepository) get(ctx context.Context, op, column, id string) (*Entry, error) {
	row := r.db.QueryRow(ctx, `
		SELECT public_id, removal_id, comments, targets, remaining_uses,
		       expires_at, ttl_ms, randomize, auto_redirect, refresh_ttl,
		       og_policy, created_at
		FROM entries
		WHERE `+column+` = $1`,
		id,
	)

	var e Entry
	var targets []byte
	var ttlMillis int64
	err := row.Scan(
		&e.PublicID, &e.RemovalID, &e.Comments, &targets, &e.RemainingUses,
		&e.ExpiresAt, &ttlMillis, &e.Randomize, &e.AutoRedirect,
		&e.RefreshTTLOnVisit, &e.OGPolicy, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errx.E(op, errx.NotFound, errors.New("entry not found"))
		}
		return nil, errx.E(op, errx.Internal, err)
	}

	if err := json.Unmarshal(targets, &e.Targets); err != nil {
		return nil, errx.E(op, errx.Internal, fmt.Errorf("unmarshal targets: %w", err))
	}
	e.TTL = time.Duration(ttlMillis) * time.Millisecond
	return &e, nil
}

func (r *PgxRepository) Delete(ctx context.Context, publicID string) error {
	const op = "shortener.PgxRepository.Delete"

	tag, err := r.db.Exec(ctx, `DELETE FROM entries WHERE public_id = $1`, publicID)
	if err != nil {
		return errx.E(op, errx.Internal, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, errors.New("entry not found"))
	}
	return nil
}

// SaveVisit applies the visit bookkeeping in a single conditional UPDATE,
// so two concurrent final visits cannot drive the counter below zero.
func (r *PgxRepository) SaveVisit(ctx context.Context, publicID string, expiresAt time.Time) error {
	const op = "shortener.PgxRepository.SaveVisit"

	tag, err := r.db.Exec(ctx, `
		UPDATE entries
		SET remaining_uses = CASE
				WHEN remaining_uses > 0 THEN remaining_uses - 1
				ELSE remaining_uses
			END,
		    expires_at = $2
		WHERE public_id = $1`,
		publicID, expiresAt,
	)
	if err != nil {
		return errx.E(op, errx.Internal, err)
	}
	if tag.RowsAffected() == 0 {
		return errx.E(op, errx.NotFound, errors.New("entry not found"))
	}
	return nil
}
