// Package store implements the in-memory session stores: a map guarded by a
// single lock, which becomes unusable once a panic happens while the lock is
// held.
package store

import (
	"errors"
	"sync"
)

// ErrPoisoned is returned by every operation on a Map whose lock was held by a
// panicking caller
var ErrPoisoned = errors.New("store lock poisoned")

// Map is a concurrent mapping from string keys to values of type V
type Map[V any] struct {
	mu       sync.Mutex
	m        map[string]V
	poisoned bool
}

// New returns an empty Map
func New[V any]() *Map[V] {
	return &Map[V]{m: make(map[string]V)}
}

// Do runs fn with exclusive access to the underlying map. If fn panics, the
// Map is marked as poisoned and the panic is propagated.
func (s *Map[V]) Do(fn func(m map[string]V)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.poisoned {
		return ErrPoisoned
	}
	completed := false
	defer func() {
		if !completed {
			s.poisoned = true
		}
	}()
	fn(s.m)
	completed = true
	return nil
}

// Insert sets the value for the key, overwriting any previous one
func (s *Map[V]) Insert(key string, v V) error {
	return s.Do(func(m map[string]V) {
		m[key] = v
	})
}

// Get returns a copy of the value stored for the key
func (s *Map[V]) Get(key string) (V, bool, error) {
	var (
		v  V
		ok bool
	)
	err := s.Do(func(m map[string]V) {
		v, ok = m[key]
	})
	return v, ok, err
}

// Remove deletes the key. Removing a missing key is not an error.
func (s *Map[V]) Remove(key string) error {
	return s.Do(func(m map[string]V) {
		delete(m, key)
	})
}

// Len returns the number of stored keys
func (s *Map[V]) Len() (int, error) {
	var n int
	err := s.Do(func(m map[string]V) {
		n = len(m)
	})
	return n, err
}

// DeleteFunc deletes every entry for which del returns true, and returns the
// number of deleted entries
func (s *Map[V]) DeleteFunc(del func(key string, v V) bool) (int, error) {
	var n int
	err := s.Do(func(m map[string]V) {
		for k, v := range m {
			if del(k, v) {
				delete(m, k)
				n++
			}
		}
	})
	return n, err
}
