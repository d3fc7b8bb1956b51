package utils

import (
	"context"
	"sync"
	"time"
)

// Throttle spaces out requests to the upstream site. Wait blocks until at least
// the configured interval has passed since the previous Wait returned, or since
// the last Done when the caller marks the end of its work.
type Throttle struct {
	interval time.Duration

	mu          sync.Mutex
	lastRequest time.Time
}

// NewThrottle creates a Throttle with the given minimum interval in milliseconds.
func NewThrottle(intervalMs int) *Throttle {
	return &Throttle{interval: time.Duration(intervalMs) * time.Millisecond}
}

// Wait enforces the interval. The first call never blocks.
func (t *Throttle) Wait(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.lastRequest.IsZero() {
		if elapsed := time.Since(t.lastRequest); elapsed < t.interval {
			if err := Sleep(ctx, t.interval-elapsed); err != nil {
				return err
			}
		}
	}
	t.lastRequest = time.Now()
	return nil
}

// Done marks the end of the work started after the last Wait, so the next
// Wait measures the interval from now.
func (t *Throttle) Done() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lastRequest = time.Now()
}

// KeySet is a thread-safe set of string keys.
type KeySet struct {
	mu   sync.RWMutex
	seen map[string]struct{}
}

// NewKeySet creates an empty KeySet.
func NewKeySet() *KeySet {
	return &KeySet{seen: make(map[string]struct{})}
}

// Add returns true if the key was newly added, false if already present.
func (s *KeySet) Add(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.seen[key]; exists {
		return false
	}
	s.seen[key] = struct{}{}
	return true
}

// Contains reports whether key has been added.
func (s *KeySet) Contains(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.seen[key]
	return exists
}

// Size returns the number of unique keys tracked.
func (s *KeySet) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.seen)
}
