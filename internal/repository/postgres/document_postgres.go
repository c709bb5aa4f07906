package postgres

import (
	"context"
	"database/sql"
	"errors"

	"healthvault/internal/model"
	"healthvault/internal/repository"
)

// DocumentPostgres is a PostgreSQL implementation of repository.DocumentRepository.
// It uses database/sql with parameterized queries and contains no business logic.
type DocumentPostgres struct {
	db *sql.DB
}

// NewDocumentPostgres creates a new DocumentPostgres repository.
func NewDocumentPostgres(db *sql.DB) *DocumentPostgres {
	return &DocumentPostgres{db: db}
}

var _ repository.DocumentRepository = (*DocumentPostgres)(nil)

const documentColumns = `id, owner_id, title, file_name, category, mime_type, size_bytes, blob_handle, notes, document_date, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		d        model.Document
		category string
		docDate  sql.NullTime
	)
	if err := row.Scan(
		&d.ID,
		&d.OwnerID,
		&d.Title,
		&d.FileName,
		&category,
		&d.MimeType,
		&d.SizeBytes,
		&d.BlobHandle,
		&d.Notes,
		&docDate,
		&d.CreatedAt,
	); err != nil {
		return nil, err
	}
	d.Category = model.Category(category)
	if docDate.Valid {
		t := docDate.Time
		d.DocumentDate = &t
	}
	return &d, nil
}

// Create inserts a new document row and returns the stored record.
func (r *DocumentPostgres) Create(ctx context.Context, doc *model.Document) (*model.Document, error) {
	const q = `
		INSERT INTO documents (` + documentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING ` + documentColumns

	var docDate sql.NullTime
	if doc.DocumentDate != nil {
		docDate = sql.NullTime{Time: *doc.DocumentDate, Valid: true}
	}
	row := r.db.QueryRowContext(ctx, q,
		doc.ID,
		doc.OwnerID,
		doc.Title,
		doc.FileName,
		string(doc.Category),
		doc.MimeType,
		doc.SizeBytes,
		doc.BlobHandle,
		doc.Notes,
		docDate,
		doc.CreatedAt,
	)
	return scanDocument(row)
}

// FindByID fetches a single document by its ID.
func (r *DocumentPostgres) FindByID(ctx context.Context, id string) (*model.Document, error) {
	const q = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE id = $1
	`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	return d, err
}

// FindByOwnerAndCategory lists an owner's documents newest first, optionally filtered by category.
func (r *DocumentPostgres) FindByOwnerAndCategory(ctx context.Context, ownerID, category string) ([]model.Document, error) {
	const qAll = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
	`
	const qCategory = `
		SELECT ` + documentColumns + `
		FROM documents
		WHERE owner_id = $1 AND lower(category) = lower($2)
		ORDER BY created_at DESC, id DESC
	`

	var (
		rows *sql.Rows
		err  error
	)
	if category == "" {
		rows, err = r.db.QueryContext(ctx, qAll, ownerID)
	} else {
		rows, err = r.db.QueryContext(ctx, qCategory, ownerID, category)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]model.Document, 0)
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// Delete removes a document by ID, reporting repository.ErrNotFound when no row matched.
func (r *DocumentPostgres) Delete(ctx context.Context, id string) error {
	const q = `DELETE FROM documents WHERE id = $1`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}
