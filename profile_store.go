package adminauth

import (
	"context"
	"sync"
)

// MemoryProfileStore is a process-local ProfileStore.
type MemoryProfileStore struct {
	mu       sync.RWMutex
	profiles map[string]AdminProfile
}

// NewMemoryProfileStore returns a store seeded with profiles.
func NewMemoryProfileStore(seed ...AdminProfile) *MemoryProfileStore {
	s := &MemoryProfileStore{profiles: make(map[string]AdminProfile, len(seed))}
	for _, p := range seed {
		s.profiles[p.ID] = *p.Clone()
	}
	return s
}

func (s *MemoryProfileStore) Get(ctx context.Context, identityID string) (*AdminProfile, error) {
	if err := ctx.Err(); err != nil {
		return nil, NetworkError(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.profiles[identityID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryProfileStore) Put(ctx context.Context, identityID string, patch ProfilePatch, merge bool) error {
	if err := ctx.Err(); err != nil {
		return NetworkError(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := AdminProfile{}
	if merge {
		existing, ok := s.profiles[identityID]
		if !ok {
			return ErrProfileNotFound
		}
		base = existing
	}

	next := patch.Apply(base)
	next.ID = identityID
	s.profiles[identityID] = next
	return nil
}

// Len returns the number of stored profiles.
func (s *MemoryProfileStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.profiles)
}

var _ ProfileStore = (*MemoryProfileStore)(nil)
