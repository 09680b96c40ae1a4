package memory

import (
	"context"
	"sync"
)

// Store keeps documents in process memory. Values are copied on the way in
// and out so callers cannot alias stored bytes.
type Store struct {
	mu    sync.Mutex
	items map[string][]byte

	// FailSet, when non-nil, is returned by Set without storing anything.
	FailSet error
	// FailGet, when non-nil, is returned by Get.
	FailGet error
}

func New() *Store {
	return &Store{items: map[string][]byte{}}
}

// Seed returns a store pre-populated with one document.
func Seed(key string, value []byte) *Store {
	s := New()
	s.items[key] = append([]byte(nil), value...)
	return s
}

// Get implements storage.KeyValue
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailGet != nil {
		return nil, false, s.FailGet
	}
	v, ok := s.items[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set implements storage.KeyValue
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailSet != nil {
		return s.FailSet
	}
	s.items[key] = append([]byte(nil), value...)
	return nil
}

// Len returns how many keys currently hold a value.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}
