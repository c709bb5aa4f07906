package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"healthvault/internal/model"
	"healthvault/internal/repository"
	"healthvault/internal/storage"
)

var tracer = otel.Tracer("healthvault/internal/service")

// UploadInput is the metadata accompanying an uploaded file.
type UploadInput struct {
	OwnerID      string `validate:"required,max=128"`
	Title        string `validate:"max=200"`
	FileName     string `validate:"required,max=255"`
	Category     string `validate:"max=32"`
	MimeType     string `validate:"required,max=255"`
	Size         int64  `validate:"min=-1"`
	Notes        string `validate:"max=2000"`
	DocumentDate *time.Time
}

// DocumentService defines the use cases for handling documents.
type DocumentService interface {
	// Upload stores the content in the Blob Store, then records it in the registry.
	// A registry failure after a successful blob write leaves the blob in place and logs it.
	Upload(ctx context.Context, in UploadInput, r io.Reader) (*model.Document, error)

	// List returns the owner's documents newest first, optionally filtered by category
	// (case-insensitive).
	List(ctx context.Context, ownerID, category string) ([]model.Document, error)

	// ListGrouped returns the owner's documents partitioned into category buckets.
	ListGrouped(ctx context.Context, ownerID string, url func(model.Document) string) (model.GroupedDocuments, error)

	// Get returns a single document's metadata.
	Get(ctx context.Context, ownerID, id string) (*model.Document, error)

	// Open returns the document and a stream of its bytes. The caller closes the stream.
	Open(ctx context.Context, ownerID, id string) (*model.Document, io.ReadCloser, error)

	// Delete attempts the blob delete, then unconditionally removes the registry record.
	Delete(ctx context.Context, ownerID, id string) error
}

// documentService is a concrete implementation of DocumentService.
type documentService struct {
	store    storage.Store
	repo     repository.DocumentRepository
	logger   *slog.Logger
	hooks    []Hook
	recorder Recorder
	validate *validator.Validate
	now      func() time.Time
}

// DocumentOption configures the document service.
type DocumentOption func(*documentService)

func WithLogger(l *slog.Logger) DocumentOption {
	return func(s *documentService) { s.logger = l }
}

func WithHooks(h ...Hook) DocumentOption {
	return func(s *documentService) { s.hooks = append(s.hooks, h...) }
}

func WithRecorder(r Recorder) DocumentOption {
	return func(s *documentService) { s.recorder = r }
}

// NewDocumentService constructs a new DocumentService over one blob backend and the registry.
func NewDocumentService(store storage.Store, repo repository.DocumentRepository, opts ...DocumentOption) DocumentService {
	s := &documentService{
		store:    store,
		repo:     repo,
		logger:   slog.Default(),
		recorder: nopRecorder{},
		validate: validator.New(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func (s *documentService) Upload(ctx context.Context, in UploadInput, r io.Reader) (doc *model.Document, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Upload", trace.WithAttributes(attribute.String("owner.id", in.OwnerID)))
	defer func() { endSpan(span, err) }()

	if r == nil {
		return nil, validationError("file is required")
	}
	in.FileName = strings.TrimSpace(in.FileName)
	in.Title = strings.TrimSpace(in.Title)
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError("%v", err)
	}
	category, ok := model.ParseCategory(in.Category)
	if !ok {
		return nil, validationError("unknown category %q", in.Category)
	}
	if in.Title == "" {
		in.Title = in.FileName
	}

	info, err := s.store.Put(ctx, r, storage.PutOptions{
		Size:        in.Size,
		ContentType: in.MimeType,
		Metadata: map[string]string{
			"original-filename": in.FileName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("upload to storage: %w: %w", ErrStorageTransient, err)
	}

	rec := &model.Document{
		ID:           uuid.New().String(),
		OwnerID:      in.OwnerID,
		Title:        in.Title,
		FileName:     in.FileName,
		Category:     category,
		MimeType:     in.MimeType,
		SizeBytes:    info.Size,
		BlobHandle:   info.Handle,
		Notes:        in.Notes,
		DocumentDate: in.DocumentDate,
		CreatedAt:    s.now().UTC(),
	}
	stored, err := s.repo.Create(ctx, rec)
	if err != nil {
		// No rollback: the blob is left for an out-of-band sweep.
		s.logger.ErrorContext(ctx, "orphaned_blob",
			"blob_handle", info.Handle,
			"owner_id", in.OwnerID,
			"error", err,
		)
		return nil, fmt.Errorf("db save failed: %w", err)
	}

	runHooks(ctx, s.logger, s.hooks, "upload", *stored)
	return stored, nil
}

func (s *documentService) List(ctx context.Context, ownerID, category string) ([]model.Document, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	docs, err := s.repo.FindByOwnerAndCategory(ctx, ownerID, strings.TrimSpace(category))
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return docs, nil
}

func (s *documentService) ListGrouped(ctx context.Context, ownerID string, url func(model.Document) string) (model.GroupedDocuments, error) {
	docs, err := s.List(ctx, ownerID, "")
	if err != nil {
		return model.GroupedDocuments{}, err
	}
	return model.GroupDocuments(docs, url), nil
}

// Get hides other owners' documents behind ErrNotFound.
func (s *documentService) Get(ctx context.Context, ownerID, id string) (*model.Document, error) {
	if ownerID == "" {
		return nil, ErrUnauthorized
	}
	if id == "" {
		return nil, validationError("id is required")
	}
	doc, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find document: %w", err)
	}
	if doc.OwnerID != ownerID {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (s *documentService) Open(ctx context.Context, ownerID, id string) (doc *model.Document, rc io.ReadCloser, err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Open", trace.WithAttributes(attribute.String("document.id", id)))
	defer func() { endSpan(span, err) }()

	doc, err = s.Get(ctx, ownerID, id)
	if err != nil {
		return nil, nil, err
	}
	rc, _, err = s.store.Get(ctx, doc.BlobHandle)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			s.logger.ErrorContext(ctx, "storage_integrity_violation",
				"document_id", doc.ID,
				"blob_handle", doc.BlobHandle,
			)
			s.recorder.StorageIntegrityViolation()
			return nil, nil, fmt.Errorf("%w: document %s references a missing blob", ErrStorageIntegrity, doc.ID)
		}
		return nil, nil, fmt.Errorf("open blob: %w: %w", ErrStorageTransient, err)
	}
	return doc, rc, nil
}

func (s *documentService) Delete(ctx context.Context, ownerID, id string) (err error) {
	ctx, span := tracer.Start(ctx, "DocumentService.Delete", trace.WithAttributes(attribute.String("document.id", id)))
	defer func() { endSpan(span, err) }()

	doc, err := s.Get(ctx, ownerID, id)
	if err != nil {
		return err
	}

	if blobErr := s.store.Delete(ctx, doc.BlobHandle); blobErr != nil {
		if errors.Is(blobErr, storage.ErrNotFound) {
			s.logger.WarnContext(ctx, "blob_already_absent", "document_id", doc.ID, "blob_handle", doc.BlobHandle)
		} else {
			s.logger.ErrorContext(ctx, "blob_delete_failed",
				"document_id", doc.ID,
				"blob_handle", doc.BlobHandle,
				"error", blobErr,
			)
			s.recorder.BlobDeleteFailed()
		}
	}

	if err := s.repo.Delete(ctx, doc.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete document: %w", err)
	}

	runHooks(ctx, s.logger, s.hooks, "delete", *doc)
	return nil
}
