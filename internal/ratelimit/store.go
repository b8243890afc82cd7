// Package ratelimit implements fixed-window admission control with a
// cooldown block once the window's budget is exceeded.
//
// All limiters created against the same Store share one keyed record map.
// The map is guarded by a mutex: every admission decision is evaluated
// atomically, so concurrent callers never lose increments.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/quantumlife/hearth/internal/clock"
)

// DefaultCleanupInterval is how often Run sweeps expired records.
const DefaultCleanupInterval = time.Minute

// Record is the per-key counter state.
type Record struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"reset_at"`
	// BlockedUntil is zero when the key is not blocked.
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
}

// expired reports whether both the window and any block have passed.
func (r Record) expired(now time.Time) bool {
	if !r.ResetAt.Before(now) {
		return false
	}
	return r.BlockedUntil.IsZero() || r.BlockedUntil.Before(now)
}

// Stats describes the store contents.
type Stats struct {
	ActiveRecords int `json:"active_records"`
	BlockedKeys   int `json:"blocked_keys"`
}

// Store is the shared keyed record map.
type Store struct {
	mu       sync.Mutex
	records  map[string]*Record
	clock    clock.Clock
	interval time.Duration
}

// NewStore creates a store. A nil clock uses the wall clock; a non-positive
// interval uses DefaultCleanupInterval.
func NewStore(c clock.Clock, cleanupInterval time.Duration) *Store {
	if c == nil {
		c = clock.Real{}
	}
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}
	return &Store{
		records:  make(map[string]*Record),
		clock:    c,
		interval: cleanupInterval,
	}
}

// Get returns a copy of the record for key.
func (s *Store) Get(key string) (Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[key]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Set stores a copy of rec under key.
func (s *Store) Set(key string, rec Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := rec
	s.records[key] = &r
}

// Reset drops every record.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*Record)
}

// Cleanup removes records whose window and block have both expired.
// Returns the number of records removed.
func (s *Store) Cleanup() int {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, r := range s.records {
		if r.expired(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed
}

// Stats returns the current record counts.
func (s *Store) Stats() Stats {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Stats{ActiveRecords: len(s.records)}
	for _, r := range s.records {
		if r.BlockedUntil.After(now) {
			st.BlockedKeys++
		}
	}
	return st
}

// Run sweeps expired records every cleanup interval until ctx is done.
func (s *Store) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.Cleanup()
		}
	}
}

// update evaluates fn against the record for key while holding the lock.
// fn receives nil when there is no record and returns the record to keep.
func (s *Store) update(key string, fn func(now time.Time, rec *Record) (*Record, Result)) Result {
	now := s.clock.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	next, res := fn(now, s.records[key])
	if next != nil {
		s.records[key] = next
	}
	return res
}
