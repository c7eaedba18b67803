// Package memory provides in-memory implementations of storage ports,
// suitable for tests and single-process deployments without persistence.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/Terry-Mathew/youtube-filter-sub001/domain/usage"
	"github.com/Terry-Mathew/youtube-filter-sub001/ports"
)

// UsageStore is an append-only in-memory ledger.
type UsageStore struct {
	mu      sync.RWMutex
	records []usage.Record
	cap     int
}

// NewUsageStore creates a ledger that retains at most capacity records
// (oldest dropped first). capacity <= 0 means unbounded.
func NewUsageStore(capacity int) *UsageStore {
	return &UsageStore{cap: capacity}
}

// Append stores one ledger record.
func (s *UsageStore) Append(_ context.Context, rec usage.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	if s.cap > 0 && len(s.records) > s.cap {
		s.records = s.records[len(s.records)-s.cap:]
	}
	return nil
}

// SumCharged returns the total cost charged in [start, end].
func (s *UsageStore) SumCharged(_ context.Context, start, end time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var total int64
	for _, r := range s.records {
		if r.Timestamp.Before(start) || r.Timestamp.After(end) {
			continue
		}
		total += r.CostCharged
	}
	return total, nil
}

// Recent returns the most recent records, newest first.
func (s *UsageStore) Recent(_ context.Context, limit int) ([]usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.records)
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]usage.Record, limit)
	for i := 0; i < limit; i++ {
		out[i] = s.records[n-1-i]
	}
	return out, nil
}

// Len returns the number of retained records (for tests).
func (s *UsageStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

var _ ports.UsageStore = (*UsageStore)(nil)
