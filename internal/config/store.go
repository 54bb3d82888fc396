package config

import (
	"fmt"
	"sync"
	"sync/atomic"
)

// Store publishes the current configuration. Updates copy, validate, persist
// and then replace it; subscribers run after the swap in registration order.
type Store struct {
	path    string
	current atomic.Pointer[Config]

	mu          sync.Mutex
	subscribers []func(*Config)
}

// NewStore wraps cfg. An empty path disables persistence.
func NewStore(cfg *Config, path string) *Store {
	s := &Store{path: path}
	s.current.Store(cfg)
	return s
}

func (s *Store) Current() *Config {
	return s.current.Load()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) Subscribe(fn func(*Config)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

// Update applies mutate to a copy of the current config. Nothing changes if
// the result is invalid or cannot be saved.
func (s *Store) Update(mutate func(*Config)) (*Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current.Load().Clone()
	mutate(next)

	if err := next.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if s.path != "" {
		if err := next.Save(s.path); err != nil {
			return nil, err
		}
	}

	s.current.Store(next)
	for _, fn := range s.subscribers {
		fn(next)
	}
	return next, nil
}
