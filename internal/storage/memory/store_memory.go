package memory

import (
	"context"
	"sync"
)

// InMemoryStore keeps documents in a map. It backs tests and the
// "memory" storage driver.
type InMemoryStore struct {
	mu   sync.RWMutex
	docs map[string][]byte
}

func New() *InMemoryStore {
	return &InMemoryStore{docs: make(map[string][]byte)}
}

func (s *InMemoryStore) Load(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[key]
	if !ok {
		return nil, nil
	}
	return append([]byte(nil), doc...), nil
}

func (s *InMemoryStore) Save(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[key] = append([]byte(nil), value...)
	return nil
}

// Keys lists stored keys; used by tests and the CLI dump command.
func (s *InMemoryStore) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.docs))
	for k := range s.docs {
		keys = append(keys, k)
	}
	return keys
}
