// Package storage implements the Blob Store: opaque document bytes kept behind
// interchangeable backends. Callers address a blob only through the handle
// returned by Put and never interpret it.
package storage

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Get and Delete when the handle addresses no blob.
// Malformed handles are reported the same way.
var ErrNotFound = errors.New("blob not found")

// ErrChecksumMismatch is returned while streaming a blob whose stored digest
// does not match its bytes.
var ErrChecksumMismatch = errors.New("blob checksum mismatch")

// PutOptions define optional parameters for uploading blobs.
// Size should be the exact number of bytes if known, or -1.
type PutOptions struct {
	Size        int64
	ContentType string
	Metadata    map[string]string
}

// ObjectInfo describes a stored blob.
type ObjectInfo struct {
	Handle       string
	Size         int64
	ETag         string
	ContentType  string
	LastModified time.Time
	Metadata     map[string]string
}

// Store is the Blob Store contract. Implementations are safe for concurrent use
// and stream content without buffering whole blobs in memory.
type Store interface {
	// Put stores the reader's bytes under a fresh handle.
	Put(ctx context.Context, r io.Reader, opt PutOptions) (ObjectInfo, error)
	// Get opens the blob for reading. The caller closes the reader.
	Get(ctx context.Context, handle string) (io.ReadCloser, ObjectInfo, error)
	// Delete removes the blob.
	Delete(ctx context.Context, handle string) error
}

func newID() string {
	return uuid.New().String()
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
