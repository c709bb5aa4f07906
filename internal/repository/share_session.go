package repository

import (
	"context"
	"time"

	"healthvault/internal/model"
)

// ShareSessionRepository persists share sessions.
type ShareSessionRepository interface {
	// Rotate expires every active session of s.OwnerID and inserts s as the
	// owner's only active session, as one atomic step. It returns how many
	// sessions were superseded.
	Rotate(ctx context.Context, s *model.ShareSession) (int64, error)

	// FindByFingerprint returns the session issued for a token fingerprint or ErrNotFound.
	FindByFingerprint(ctx context.Context, fingerprint string) (*model.ShareSession, error)

	// Latest returns the owner's most recently created session, whatever its
	// status, or ErrNotFound.
	Latest(ctx context.Context, ownerID string) (*model.ShareSession, error)

	// MarkUsed moves an active session to used. It reports false when the
	// session was no longer active.
	MarkUsed(ctx context.Context, id string) (bool, error)

	// Expire moves an active session to expired. Non-active sessions are left untouched.
	Expire(ctx context.Context, id string) error

	// ExpireBefore expires every active session whose expiry is not after now.
	ExpireBefore(ctx context.Context, now time.Time) (int64, error)

	// CountActive returns the owner's active sessions.
	CountActive(ctx context.Context, ownerID string) (int, error)
}
