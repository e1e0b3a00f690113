package crawler

import (
	"context"
	"errors"
	"sync"
	"time"

	crawlerrors "sjsage522/krishaworker/pkg/errors"
	"sjsage522/krishaworker/services/cache"
	"sjsage522/krishaworker/services/publisher"
)

// MockCacheService implements a simple in-memory cache for testing
type MockCacheService struct {
	mu    sync.Mutex
	cache map[string][]byte
	ttls  map[string]time.Duration
}

var _ cache.CacheService = (*MockCacheService)(nil)

func NewMockCacheService() *MockCacheService {
	return &MockCacheService{
		cache: make(map[string][]byte),
		ttls:  make(map[string]time.Duration),
	}
}

func (m *MockCacheService) Get(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if val, ok := m.cache[key]; ok {
		return val, nil
	}
	return nil, cache.ErrMiss
}

func (m *MockCacheService) Set(key string, value []byte, expiration time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache[key] = value
	m.ttls[key] = expiration
	return nil
}

func (m *MockCacheService) Delete(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cache, key)
	return nil
}

// mockFetcher serves canned pages; URLs without a page fail as exhausted
type mockFetcher struct {
	mu    sync.Mutex
	pages map[string]string
	calls []string
}

var _ Fetcher = (*mockFetcher)(nil)

func newMockFetcher() *mockFetcher {
	return &mockFetcher{pages: make(map[string]string)}
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, url)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, ok := m.pages[url]
	if !ok {
		return nil, crawlerrors.NewFetchExhausted(url, len(DefaultBackoffSchedule), errors.New("connection refused"))
	}
	return &FetchResult{Content: []byte(page), FinalURL: url}, nil
}

func (m *mockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// timedFetcher records when each request started
type timedFetcher struct {
	Fetcher
	mu     sync.Mutex
	starts []time.Time
}

func (f *timedFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	f.mu.Lock()
	f.starts = append(f.starts, time.Now())
	f.mu.Unlock()
	return f.Fetcher.Fetch(ctx, url)
}

func (f *timedFetcher) Starts() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.starts...)
}

// failingFetcher returns err for one URL
type failingFetcher struct {
	Fetcher
	url string
	err error
}

func (f *failingFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	if url == f.url {
		return nil, f.err
	}
	return f.Fetcher.Fetch(ctx, url)
}

// mockStore keeps records in insertion order and ignores repeated keys
type mockStore struct {
	mu      sync.Mutex
	batches [][]ListingRecord
	rows    map[string]ListingRecord
	err     error
}

var _ Store = (*mockStore)(nil)

func newMockStore() *mockStore {
	return &mockStore{rows: make(map[string]ListingRecord)}
}

func (m *mockStore) EnsureSchema(ctx context.Context) error {
	return nil
}

func (m *mockStore) InsertBatch(ctx context.Context, records []ListingRecord) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	m.batches = append(m.batches, append([]ListingRecord(nil), records...))
	inserted := 0
	for _, r := range records {
		if _, exists := m.rows[r.UniqueKey]; exists {
			continue
		}
		m.rows[r.UniqueKey] = r
		inserted++
	}
	return inserted, nil
}

// mockPublisher records published messages by key
type mockPublisher struct {
	mu       sync.Mutex
	messages map[string][]byte
	err      error
}

var _ publisher.Publisher = (*mockPublisher)(nil)

func newMockPublisher() *mockPublisher {
	return &mockPublisher{messages: make(map[string][]byte)}
}

func (m *mockPublisher) Publish(key string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.messages[key] = append([]byte(nil), message...)
	return nil
}

func (m *mockPublisher) TrimStreams() error { return nil }

func (m *mockPublisher) Close() error { return nil }

type droppedListing struct {
	reason string
	url    string
}

// mockDrops records every dropped listing
type mockDrops struct {
	mu      sync.Mutex
	dropped []droppedListing
}

func (m *mockDrops) RecordDrop(reason string, url string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropped = append(m.dropped, droppedListing{reason: reason, url: url})
}
