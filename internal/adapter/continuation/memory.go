package continuation

import (
	"context"
	"sync"
)

// MemoryStore: потокобезопасная карта conversationID -> responseID на время жизни процесса.
// Records are never evicted.
type MemoryStore struct {
	mu    sync.RWMutex
	items map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{items: make(map[string]string)}
}

func (s *MemoryStore) Get(_ context.Context, conversationID string) (string, bool, error) {
	s.mu.RLock()
	id, ok := s.items[conversationID]
	s.mu.RUnlock()
	return id, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, conversationID, responseID string) error {
	s.mu.Lock()
	s.items[conversationID] = responseID
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Len() int {
	s.mu.RLock()
	l := len(s.items)
	s.mu.RUnlock()
	return l
}

func (s *MemoryStore) Close() error { return nil }

var _ Backend = (*MemoryStore)(nil)
