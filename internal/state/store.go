package state

import (
	"sync"
)

// Signal broadcasts "something changed" to any number of waiters. Each call
// to Changed returns a channel that is closed at the next Notify.
// The zero value is ready to use.
type Signal struct {
	mu sync.Mutex
	ch chan struct{}
}

// Changed returns a channel closed on the next Notify.
func (s *Signal) Changed() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch == nil {
		s.ch = make(chan struct{})
	}
	return s.ch
}

// Notify wakes every waiter obtained from Changed so far.
func (s *Signal) Notify() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ch != nil {
		close(s.ch)
	}
	s.ch = make(chan struct{})
}

// Store coordinates concurrent updates to a snapshot value. Readers always
// receive a copy produced by the clone function, so a returned value can be
// kept or modified without affecting the store.
type Store[T any] struct {
	mu       sync.RWMutex
	snapshot T
	clone    func(T) T
	signal   Signal
}

// NewStore returns a Store holding initial. clone may be nil when T has no
// shared internals.
func NewStore[T any](initial T, clone func(T) T) *Store[T] {
	return &Store[T]{snapshot: initial, clone: clone}
}

// Update applies fn to the stored value under the write lock and notifies
// waiters. fn returns false to skip the notification.
func (s *Store[T]) Update(fn func(*T) bool) {
	s.mu.Lock()
	changed := fn(&s.snapshot)
	s.mu.Unlock()
	if changed {
		s.signal.Notify()
	}
}

// Snapshot returns a copy of the current value.
func (s *Store[T]) Snapshot() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.clone == nil {
		return s.snapshot
	}
	return s.clone(s.snapshot)
}

// Changed returns a channel closed at the next update.
func (s *Store[T]) Changed() <-chan struct{} {
	return s.signal.Changed()
}
