package memory

import (
	"context"
	"sync"
	"time"

	"healthvault/internal/model"
	"healthvault/internal/repository"
)

// ShareSessionMemory keeps sessions in a map guarded by one mutex, which makes
// Rotate atomic with respect to every other call.
type ShareSessionMemory struct {
	mu       sync.Mutex
	sessions map[string]*model.ShareSession
	byPrint  map[string]string
	order    []string // session ids in Rotate order
}

func NewShareSessionMemory() *ShareSessionMemory {
	return &ShareSessionMemory{
		sessions: make(map[string]*model.ShareSession),
		byPrint:  make(map[string]string),
	}
}

var _ repository.ShareSessionRepository = (*ShareSessionMemory)(nil)

func (r *ShareSessionMemory) Rotate(_ context.Context, s *model.ShareSession) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var superseded int64
	for _, cur := range r.sessions {
		if cur.OwnerID == s.OwnerID && cur.Status == model.ShareStatusActive {
			cur.Status = model.ShareStatusExpired
			superseded++
		}
	}
	s.Status = model.ShareStatusActive
	stored := *s
	r.sessions[s.ID] = &stored
	r.byPrint[s.TokenFingerprint] = s.ID
	r.order = append(r.order, s.ID)
	return superseded, nil
}

func (r *ShareSessionMemory) FindByFingerprint(_ context.Context, fingerprint string) (*model.ShareSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byPrint[fingerprint]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s := *r.sessions[id]
	return &s, nil
}

func (r *ShareSessionMemory) Latest(_ context.Context, ownerID string) (*model.ShareSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.order) - 1; i >= 0; i-- {
		if s := r.sessions[r.order[i]]; s.OwnerID == ownerID {
			out := *s
			return &out, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *ShareSessionMemory) MarkUsed(_ context.Context, id string) (bool, error) {
	return r.transition(id, model.ShareStatusUsed), nil
}

func (r *ShareSessionMemory) Expire(_ context.Context, id string) error {
	r.transition(id, model.ShareStatusExpired)
	return nil
}

func (r *ShareSessionMemory) transition(id string, to model.ShareStatus) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != model.ShareStatusActive {
		return false
	}
	s.Status = to
	return true
}

func (r *ShareSessionMemory) ExpireBefore(_ context.Context, now time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, s := range r.sessions {
		if s.Status == model.ShareStatusActive && !s.ExpiresAt.After(now) {
			s.Status = model.ShareStatusExpired
			n++
		}
	}
	return n, nil
}

func (r *ShareSessionMemory) CountActive(_ context.Context, ownerID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sessions {
		if s.OwnerID == ownerID && s.Status == model.ShareStatusActive {
			n++
		}
	}
	return n, nil
}
