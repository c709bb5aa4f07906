package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCS stores blobs as objects in a Google Cloud Storage bucket.
type GCS struct {
	client *gcs.Client
	bucket *gcs.BucketHandle
}

// NewGCS connects to bucket using application default credentials unless opts say otherwise.
func NewGCS(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCS, error) {
	client, err := gcs.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCS{client: client, bucket: client.Bucket(bucket)}, nil
}

var _ Store = (*GCS)(nil)

// Close releases the client.
func (s *GCS) Close() error {
	return s.client.Close()
}

func (s *GCS) Put(ctx context.Context, r io.Reader, opt PutOptions) (ObjectInfo, error) {
	name := objectPrefix + newID()
	// Close finalizes whatever was written; only a canceled context aborts the upload.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	w := s.bucket.Object(name).If(gcs.Conditions{DoesNotExist: true}).NewWriter(ctx)
	w.ContentType = opt.ContentType
	w.Metadata = opt.Metadata

	if _, err := io.Copy(w, r); err != nil {
		cancel()
		w.Close()
		return ObjectInfo{}, fmt.Errorf("writing object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return ObjectInfo{}, fmt.Errorf("closing object %s: %w", name, err)
	}
	attrs := w.Attrs()
	return ObjectInfo{
		Handle:       name,
		Size:         attrs.Size,
		ETag:         attrs.Etag,
		ContentType:  attrs.ContentType,
		LastModified: attrs.Updated,
		Metadata:     attrs.Metadata,
	}, nil
}

func (s *GCS) Get(ctx context.Context, handle string) (io.ReadCloser, ObjectInfo, error) {
	r, err := s.bucket.Object(handle).NewReader(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return nil, ObjectInfo{}, ErrNotFound
	}
	if err != nil {
		return nil, ObjectInfo{}, fmt.Errorf("reading object %s: %w", handle, err)
	}
	return r, ObjectInfo{
		Handle:       handle,
		Size:         r.Attrs.Size,
		ContentType:  r.Attrs.ContentType,
		LastModified: r.Attrs.LastModified,
	}, nil
}

func (s *GCS) Delete(ctx context.Context, handle string) error {
	err := s.bucket.Object(handle).Delete(ctx)
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("deleting object %s: %w", handle, err)
	}
	return nil
}
