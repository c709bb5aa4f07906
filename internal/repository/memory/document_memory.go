// Package memory holds in-process implementations of the repository
// interfaces. They back the ephemeral server mode and the service tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"healthvault/internal/model"
	"healthvault/internal/repository"
)

// DocumentMemory is a map-backed DocumentRepository.
type DocumentMemory struct {
	mu   sync.RWMutex
	docs map[string]model.Document
}

func NewDocumentMemory() *DocumentMemory {
	return &DocumentMemory{docs: make(map[string]model.Document)}
}

var _ repository.DocumentRepository = (*DocumentMemory)(nil)

func (r *DocumentMemory) Create(_ context.Context, doc *model.Document) (*model.Document, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := *doc
	r.docs[doc.ID] = stored
	return &stored, nil
}

func (r *DocumentMemory) FindByID(_ context.Context, id string) (*model.Document, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.docs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &d, nil
}

func (r *DocumentMemory) FindByOwnerAndCategory(_ context.Context, ownerID, category string) ([]model.Document, error) {
	r.mu.RLock()
	out := make([]model.Document, 0)
	for _, d := range r.docs {
		if d.OwnerID != ownerID {
			continue
		}
		if category != "" && !strings.EqualFold(string(d.Category), category) {
			continue
		}
		out = append(out, d)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (r *DocumentMemory) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.docs[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.docs, id)
	return nil
}
