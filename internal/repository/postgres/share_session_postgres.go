package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"healthvault/internal/model"
	"healthvault/internal/repository"
)

// ShareSessionPostgres stores share sessions in the share_sessions table.
// Rotation is serialized per owner with a transaction-scoped advisory lock, and
// the partial unique index on (owner_id) WHERE status = 'active' backs it up.
type ShareSessionPostgres struct {
	db *sql.DB
}

// NewShareSessionPostgres creates a new ShareSessionPostgres repository.
func NewShareSessionPostgres(db *sql.DB) *ShareSessionPostgres {
	return &ShareSessionPostgres{db: db}
}

var _ repository.ShareSessionRepository = (*ShareSessionPostgres)(nil)

// Rotate supersedes the owner's active sessions and inserts s in one transaction.
func (r *ShareSessionPostgres) Rotate(ctx context.Context, s *model.ShareSession) (int64, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, s.OwnerID); err != nil {
		return 0, fmt.Errorf("lock owner: %w", err)
	}

	res, err := tx.ExecContext(ctx,
		`UPDATE share_sessions SET status = 'expired', updated_at = $2
		 WHERE owner_id = $1 AND status = 'active'`,
		s.OwnerID, s.CreatedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("expire previous sessions: %w", err)
	}
	superseded, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire previous sessions: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO share_sessions (id, owner_id, token_fingerprint, status, expires_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		s.ID, s.OwnerID, s.TokenFingerprint, string(model.ShareStatusActive), s.ExpiresAt, s.CreatedAt,
	); err != nil {
		return 0, fmt.Errorf("insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	s.Status = model.ShareStatusActive
	return superseded, nil
}

const sessionColumns = `id, owner_id, token_fingerprint, status, expires_at, created_at`

func scanSession(row *sql.Row) (*model.ShareSession, error) {
	var (
		s      model.ShareSession
		status string
	)
	err := row.Scan(
		&s.ID,
		&s.OwnerID,
		&s.TokenFingerprint,
		&status,
		&s.ExpiresAt,
		&s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	s.Status = model.ShareStatus(status)
	return &s, nil
}

// FindByFingerprint returns the session for a token fingerprint.
func (r *ShareSessionPostgres) FindByFingerprint(ctx context.Context, fingerprint string) (*model.ShareSession, error) {
	const q = `
		SELECT ` + sessionColumns + `
		FROM share_sessions
		WHERE token_fingerprint = $1
	`
	return scanSession(r.db.QueryRowContext(ctx, q, fingerprint))
}

// Latest returns the owner's newest session in any state.
func (r *ShareSessionPostgres) Latest(ctx context.Context, ownerID string) (*model.ShareSession, error) {
	const q = `
		SELECT ` + sessionColumns + `
		FROM share_sessions
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return scanSession(r.db.QueryRowContext(ctx, q, ownerID))
}

// MarkUsed is a compare-and-swap from active to used.
func (r *ShareSessionPostgres) MarkUsed(ctx context.Context, id string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE share_sessions SET status = 'used', updated_at = now()
		 WHERE id = $1 AND status = 'active'`,
		id,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n == 1, err
}

// Expire marks a single active session expired.
func (r *ShareSessionPostgres) Expire(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE share_sessions SET status = 'expired', updated_at = now()
		 WHERE id = $1 AND status = 'active'`,
		id,
	)
	return err
}

// ExpireBefore sweeps every active session whose expiry has passed.
func (r *ShareSessionPostgres) ExpireBefore(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE share_sessions SET status = 'expired', updated_at = $1
		 WHERE status = 'active' AND expires_at <= $1`,
		now,
	)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountActive returns the number of active sessions for an owner.
func (r *ShareSessionPostgres) CountActive(ctx context.Context, ownerID string) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM share_sessions WHERE owner_id = $1 AND status = 'active'`,
		ownerID,
	).Scan(&n)
	return n, err
}
