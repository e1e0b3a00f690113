package store

import (
	"context"
	"sync"
	"time"

	"sjsage522/krishaworker/internal/crawler"
	crawlerrors "sjsage522/krishaworker/pkg/errors"
)

// MemoryStore keeps flats in memory. It backs dry runs and tests.
type MemoryStore struct {
	mu    sync.Mutex
	ready bool
	rows  []crawler.ListingRecord
	keys  map[string]struct{}
	now   func() time.Time
}

// NewMemoryStore creates an empty store; a nil clock means time.Now
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		keys: make(map[string]struct{}),
		now:  now,
	}
}

// EnsureSchema marks the table as created
func (s *MemoryStore) EnsureSchema(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = true
	return nil
}

// InsertBatch stores records whose uuid is new. A record violating the table
// constraints rejects the whole batch.
func (s *MemoryStore) InsertBatch(ctx context.Context, records []crawler.ListingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.ready {
		return 0, crawlerrors.NewStore("table flats does not exist", nil)
	}
	for _, r := range records {
		if r.UniqueKey == "" {
			return 0, crawlerrors.NewStore("null value in column uuid", nil)
		}
		if r.Price == nil {
			return 0, crawlerrors.NewStore("null value in column price for "+r.UniqueKey, nil)
		}
	}

	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	inserted := 0
	for _, r := range records {
		if _, exists := s.keys[r.UniqueKey]; exists {
			continue
		}
		r.CapturedDate = today
		s.keys[r.UniqueKey] = struct{}{}
		s.rows = append(s.rows, r)
		inserted++
	}
	return inserted, nil
}

// Count returns the number of stored flats
func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.rows), nil
}

// Records returns the stored flats in insertion order
func (s *MemoryStore) Records() []crawler.ListingRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]crawler.ListingRecord(nil), s.rows...)
}

// Close is a no-op
func (s *MemoryStore) Close() {}
