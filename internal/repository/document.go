package repository

import (
	"context"

	"healthvault/internal/model"
)

// DocumentRepository is the Document Registry: metadata rows only, no blob access.
type DocumentRepository interface {
	// Create inserts a new document record and returns the stored row.
	Create(ctx context.Context, doc *model.Document) (*model.Document, error)

	// FindByID returns a document by its ID or ErrNotFound.
	FindByID(ctx context.Context, id string) (*model.Document, error)

	// FindByOwnerAndCategory returns the owner's documents, newest first.
	// An empty category returns every category; otherwise the match is case-insensitive.
	FindByOwnerAndCategory(ctx context.Context, ownerID, category string) ([]model.Document, error)

	// Delete removes a document by ID, or returns ErrNotFound.
	Delete(ctx context.Context, id string) error
}
