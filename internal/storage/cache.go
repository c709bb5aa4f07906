package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru"
)

// Cached is a least-recently-used read cache in front of another Store.
// Blobs up to maxBytes are kept in memory after their first Get; larger
// blobs stream straight from the backend. Writes pass through.
type Cached struct {
	c        *lru.Cache // handle -> cachedBlob
	s        Store
	maxBytes int64

	mu  sync.Mutex
	gen uint64 // bumped by every Delete
}

type cachedBlob struct {
	data []byte
	info ObjectInfo
}

// NewCached wraps s, caching up to entries blobs of at most maxBytes each.
func NewCached(s Store, entries int, maxBytes int64) (*Cached, error) {
	c, err := lru.New(entries)
	if err != nil {
		return nil, fmt.Errorf("create blob cache: %w", err)
	}
	return &Cached{c: c, s: s, maxBytes: maxBytes}, nil
}

var _ Store = (*Cached)(nil)

func (s *Cached) Put(ctx context.Context, r io.Reader, opt PutOptions) (ObjectInfo, error) {
	return s.s.Put(ctx, r, opt)
}

func (s *Cached) Get(ctx context.Context, handle string) (io.ReadCloser, ObjectInfo, error) {
	if got, ok := s.c.Get(handle); ok {
		b := got.(cachedBlob)
		return io.NopCloser(bytes.NewReader(b.data)), b.info, nil
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	rc, info, err := s.s.Get(ctx, handle)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if info.Size < 0 || info.Size > s.maxBytes {
		return rc, info, nil
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, ObjectInfo{}, err
	}
	if int64(len(data)) <= s.maxBytes {
		s.mu.Lock()
		// A Delete that ran during the read may have targeted this handle.
		if s.gen == gen {
			s.c.Add(handle, cachedBlob{data: data, info: info})
		}
		s.mu.Unlock()
	}
	return io.NopCloser(bytes.NewReader(data)), info, nil
}

// Delete evicts the handle even when the backend delete fails.
func (s *Cached) Delete(ctx context.Context, handle string) error {
	s.mu.Lock()
	s.gen++
	s.c.Remove(handle)
	s.mu.Unlock()
	return s.s.Delete(ctx, handle)
}

// Len returns the number of cached blobs.
func (s *Cached) Len() int {
	return s.c.Len()
}

// Close purges the cache and closes the wrapped store when it is closable.
func (s *Cached) Close() error {
	s.c.Purge()
	if c, ok := s.s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
