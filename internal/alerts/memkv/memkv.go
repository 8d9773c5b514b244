// Package memkv provides an in-memory implementation of alerts.KV.
package memkv

import (
	"context"
	"sync"
)

// Store holds records in memory. Suitable for dev/testing; contents are lost
// on restart.
type Store struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// New initializes a new in-memory Store.
func New() *Store {
	return &Store{data: make(map[string][]byte)}
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

// Set stores a copy of value under key.
func (s *Store) Set(_ context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = append([]byte(nil), value...)
	return nil
}
