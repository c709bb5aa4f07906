package memory

import (
	"context"
	"sync"

	"healthvault/internal/model"
	"healthvault/internal/repository"
)

// ProfileMemory serves profiles registered with Put.
type ProfileMemory struct {
	mu       sync.RWMutex
	profiles map[string]model.Profile
}

func NewProfileMemory(profiles ...model.Profile) *ProfileMemory {
	r := &ProfileMemory{profiles: make(map[string]model.Profile, len(profiles))}
	for _, p := range profiles {
		r.profiles[p.ID] = p
	}
	return r
}

var _ repository.ProfileRepository = (*ProfileMemory)(nil)

// Put adds or replaces a profile.
func (r *ProfileMemory) Put(p model.Profile) {
	r.mu.Lock()
	r.profiles[p.ID] = p
	r.mu.Unlock()
}

func (r *ProfileMemory) FindByID(_ context.Context, id string) (*model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.profiles[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &p, nil
}
