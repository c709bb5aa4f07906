package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"regexp"
)

var localHandleRegex = regexp.MustCompile(`^[0-9a-f]{2}/[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

// Local stores blobs as files under a directory. Handles look like
// "3f/3f2a...": a two character shard followed by a UUID.
// All access goes through an os.Root, so handles cannot escape the directory.
type Local struct {
	root *os.Root
}

// NewLocal opens (creating if needed) dir as a blob directory.
func NewLocal(dir string) (*Local, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create blob dir: %w", err)
	}
	root, err := os.OpenRoot(dir)
	if err != nil {
		return nil, fmt.Errorf("open blob dir: %w", err)
	}
	return &Local{root: root}, nil
}

var _ Store = (*Local)(nil)

// Close releases the directory handle.
func (s *Local) Close() error {
	return s.root.Close()
}

// Put writes to a temp file and renames it into place once synced.
func (s *Local) Put(ctx context.Context, r io.Reader, opt PutOptions) (ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return ObjectInfo{}, err
	}

	id := newID()
	handle := path.Join(id[:2], id)
	tmp := ".t" + newID()

	t, err := s.root.Create(tmp)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("create temp file: %w", err)
	}
	success := false
	defer func() {
		if closeErr := t.Close(); closeErr != nil && !errors.Is(closeErr, os.ErrClosed) {
			slog.Warn("failed to close tmp file", "err", closeErr)
		}
		if !success {
			if rmErr := s.root.Remove(tmp); rmErr != nil {
				slog.Warn("failed to remove tmp file", "err", rmErr)
			}
		}
	}()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(h, t), &ctxReader{ctx: ctx, r: r})
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("write blob: %w", err)
	}
	if opt.Size > 0 && opt.Size != n {
		return ObjectInfo{}, fmt.Errorf("write blob: got %d bytes, expected %d", n, opt.Size)
	}
	if err := t.Sync(); err != nil {
		return ObjectInfo{}, fmt.Errorf("sync blob: %w", err)
	}
	if err := s.root.MkdirAll(id[:2], 0o750); err != nil {
		return ObjectInfo{}, fmt.Errorf("create shard dir: %w", err)
	}
	if err := s.root.Rename(tmp, handle); err != nil {
		return ObjectInfo{}, fmt.Errorf("rename blob: %w", err)
	}
	success = true

	st, err := s.root.Stat(handle)
	if err != nil {
		return ObjectInfo{}, fmt.Errorf("stat blob: %w", err)
	}
	return ObjectInfo{
		Handle:       handle,
		Size:         n,
		ETag:         hex.EncodeToString(h.Sum(nil)),
		ContentType:  opt.ContentType,
		LastModified: st.ModTime(),
		Metadata:     opt.Metadata,
	}, nil
}

// Get opens the blob file.
func (s *Local) Get(ctx context.Context, handle string) (io.ReadCloser, ObjectInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, ObjectInfo{}, err
	}
	if !localHandleRegex.MatchString(handle) {
		return nil, ObjectInfo{}, ErrNotFound
	}

	f, err := s.root.Open(handle)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ObjectInfo{}, ErrNotFound
		}
		return nil, ObjectInfo{}, fmt.Errorf("open blob: %w", err)
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, ObjectInfo{}, fmt.Errorf("stat blob: %w", err)
	}
	return f, ObjectInfo{Handle: handle, Size: st.Size(), LastModified: st.ModTime()}, nil
}

// Delete removes the blob file.
func (s *Local) Delete(ctx context.Context, handle string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !localHandleRegex.MatchString(handle) {
		return ErrNotFound
	}
	if err := s.root.Remove(handle); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ErrNotFound
		}
		return fmt.Errorf("delete blob: %w", err)
	}
	return nil
}
