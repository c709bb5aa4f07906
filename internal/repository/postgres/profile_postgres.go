package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"

	"healthvault/internal/model"
	"healthvault/internal/repository"
)

var validTableNameRegex = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// ProfilePostgres reads patient profiles from a table maintained by the account service.
type ProfilePostgres struct {
	db    *sql.DB
	query string
}

// NewProfilePostgres creates a profile reader over table.
// The table name must be a plain lowercase identifier.
func NewProfilePostgres(db *sql.DB, table string) (*ProfilePostgres, error) {
	if !validTableNameRegex.MatchString(table) || len(table) > 63 {
		return nil, fmt.Errorf("invalid profile table name: %q", table)
	}
	q := fmt.Sprintf(`SELECT id, name, email, profile_picture FROM %q WHERE id = $1`, table)
	return &ProfilePostgres{db: db, query: q}, nil
}

var _ repository.ProfileRepository = (*ProfilePostgres)(nil)

// FindByID returns the profile for id.
func (r *ProfilePostgres) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	var (
		p       model.Profile
		picture sql.NullString
	)
	err := r.db.QueryRowContext(ctx, r.query, id).Scan(&p.ID, &p.Name, &p.Email, &picture)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	p.ProfilePicture = picture.String
	return &p, nil
}
