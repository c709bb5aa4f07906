package repository

import (
	"context"

	"healthvault/internal/model"
)

// ProfileRepository reads patient profiles owned by the external account system.
type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*model.Profile, error)
}
