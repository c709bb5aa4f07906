package service

import (
	"context"
	"log/slog"

	"healthvault/internal/model"
)

// Hook is notified after an upload or delete has committed. Hooks cannot
// change the outcome of the operation; a panicking hook is recovered and logged.
type Hook interface {
	AfterUpload(ctx context.Context, doc model.Document)
	AfterDelete(ctx context.Context, doc model.Document)
}

// HookFuncs adapts plain functions to Hook. Nil fields are skipped.
type HookFuncs struct {
	Upload func(ctx context.Context, doc model.Document)
	Delete func(ctx context.Context, doc model.Document)
}

func (h HookFuncs) AfterUpload(ctx context.Context, doc model.Document) {
	if h.Upload != nil {
		h.Upload(ctx, doc)
	}
}

func (h HookFuncs) AfterDelete(ctx context.Context, doc model.Document) {
	if h.Delete != nil {
		h.Delete(ctx, doc)
	}
}

// Recorder receives counters for events that are not post-commit notifications.
type Recorder interface {
	BlobDeleteFailed()
	StorageIntegrityViolation()
	ShareGenerated(superseded int64)
	ShareRedeemed(outcome string)
	SharesSwept(n int64)
}

type nopRecorder struct{}

func (nopRecorder) BlobDeleteFailed()          {}
func (nopRecorder) StorageIntegrityViolation() {}
func (nopRecorder) ShareGenerated(int64)       {}
func (nopRecorder) ShareRedeemed(string)       {}
func (nopRecorder) SharesSwept(int64)          {}

func runHooks(ctx context.Context, logger *slog.Logger, hooks []Hook, event string, doc model.Document) {
	for _, h := range hooks {
		func() {
			defer func() {
				if r := recover(); r != nil {
					logger.ErrorContext(ctx, "post_commit_hook_panic", "event", event, "document_id", doc.ID, "panic", r)
				}
			}()
			switch event {
			case "upload":
				h.AfterUpload(ctx, doc)
			case "delete":
				h.AfterDelete(ctx, doc)
			}
		}()
	}
}
