package credentials

import (
	"context"
	"sync"
)

type MemoryStore struct {
	mu  sync.RWMutex
	key *string
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Get(ctx context.Context) (string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.key == nil {
		return "", false, nil
	}
	return *s.key, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string) error {
	s.mu.Lock()
	s.key = &key
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	s.key = nil
	s.mu.Unlock()
	return nil
}
