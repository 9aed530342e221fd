package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yndnr/condkv/internal/core/domain"
)

// waitPoint is the wake-up point for one key. Every write to the key
// closes ch and installs a fresh channel, so a waiter that captured ch
// under the lock cannot miss a write made after it released the lock.
type waitPoint struct {
	ch chan struct{}
}

// Stats is a point-in-time view of the store.
type Stats struct {
	Keys           int `json:"keys"`
	WaitPoints     int `json:"wait_points"`
	BlockedWaiters int `json:"blocked_waiters"`
}

// Store is the shared key-value map.
//
// A single RWMutex guards the records and the wait points. Reads take the
// read lock; writes, wait-point creation and condition checks take the
// write lock. Values are copied on the way in and out.
type Store struct {
	mu      sync.RWMutex
	data    map[string][]byte
	waits   map[string]*waitPoint
	blocked int
}

// New creates an empty store.
func New() *Store {
	return &Store{
		data:  make(map[string][]byte),
		waits: make(map[string]*waitPoint),
	}
}

// Put stores value under key, replacing any previous value, and wakes every
// GetWhen waiting on key.
func (s *Store) Put(key string, value []byte) error {
	if err := domain.ValidateKey(key); err != nil {
		return err
	}
	if err := domain.ValidateValue(value); err != nil {
		return err
	}

	v := bytes.Clone(value)

	s.mu.Lock()
	s.data[key] = v
	s.signalLocked(key)
	s.mu.Unlock()
	return nil
}

// MultiPut stores every pair under one lock acquisition. All pairs are
// validated first; if any is invalid nothing is stored.
func (s *Store) MultiPut(pairs map[string][]byte) error {
	copies := make(map[string][]byte, len(pairs))
	for k, v := range pairs {
		if err := domain.ValidateKey(k); err != nil {
			return err
		}
		if err := domain.ValidateValue(v); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
		copies[k] = bytes.Clone(v)
	}

	s.mu.Lock()
	for k, v := range copies {
		s.data[k] = v
		s.signalLocked(k)
	}
	s.mu.Unlock()
	return nil
}

// Get returns a copy of the value under key.
func (s *Store) Get(key string) ([]byte, bool) {
	s.mu.RLock()
	v, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	return bytes.Clone(v), true
}

// MultiGet returns the subset of keys that are present, read under one
// lock acquisition. Missing keys are omitted, not mapped to nil.
func (s *Store) MultiGet(keys []string) map[string][]byte {
	out := make(map[string][]byte, len(keys))

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range keys {
		if v, ok := s.data[k]; ok {
			out[k] = bytes.Clone(v)
		}
	}
	return out
}

// GetWhen blocks until the value under condKey equals condValue, then
// returns the value of targetKey as observed at that moment. The boolean
// is false if targetKey is absent.
//
// The condition is re-checked after every wake, so a write that sets
// condKey to a different value never releases the caller. If ctx ends
// first, the error wraps domain.ErrOperationInterrupted and ctx.Err().
func (s *Store) GetWhen(ctx context.Context, targetKey, condKey string, condValue []byte) ([]byte, bool, error) {
	if err := domain.ValidateKey(targetKey); err != nil {
		return nil, false, err
	}
	if err := domain.ValidateKey(condKey); err != nil {
		return nil, false, err
	}
	if err := domain.ValidateValue(condValue); err != nil {
		return nil, false, err
	}

	s.mu.Lock()
	for {
		if cur, ok := s.data[condKey]; ok && bytes.Equal(cur, condValue) {
			v, found := s.data[targetKey]
			s.mu.Unlock()
			if !found {
				return nil, false, nil
			}
			return bytes.Clone(v), true, nil
		}

		ch := s.waitPointLocked(condKey).ch
		s.blocked++
		s.mu.Unlock()

		select {
		case <-ch:
		case <-ctx.Done():
		}

		s.mu.Lock()
		s.blocked--
		if err := ctx.Err(); err != nil {
			s.mu.Unlock()
			return nil, false, domain.ErrOperationInterrupted.WithCause(err)
		}
	}
}

// Remove deletes key and its wait point. Waiters blocked on key are woken
// and go back to waiting on a fresh wait point.
func (s *Store) Remove(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.data[key]
	delete(s.data, key)
	if wp, exists := s.waits[key]; exists {
		close(wp.ch)
		delete(s.waits, key)
	}
	return ok
}

// Keys returns all keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	s.mu.RUnlock()

	sort.Strings(keys)
	return keys
}

// Len returns the number of stored keys.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Clear removes every record and wait point.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, wp := range s.waits {
		close(wp.ch)
	}
	s.data = make(map[string][]byte)
	s.waits = make(map[string]*waitPoint)
}

// Stats returns current counters.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Stats{
		Keys:           len(s.data),
		WaitPoints:     len(s.waits),
		BlockedWaiters: s.blocked,
	}
}

// waitPointLocked returns the wait point for key, creating it on first use.
func (s *Store) waitPointLocked(key string) *waitPoint {
	wp, ok := s.waits[key]
	if !ok {
		wp = &waitPoint{ch: make(chan struct{})}
		s.waits[key] = wp
	}
	return wp
}

// signalLocked wakes all waiters on key. It is a no-op when nobody has
// ever waited on key.
func (s *Store) signalLocked(key string) {
	wp, ok := s.waits[key]
	if !ok {
		return
	}
	close(wp.ch)
	wp.ch = make(chan struct{})
}
