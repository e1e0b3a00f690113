package store

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"sjsage522/krishaworker/internal/crawler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// This test requires a running PostgreSQL reachable through TEST_DATABASE_URL
// If it is not set or not reachable, the test will be skipped
func newTestPostgresStore(t *testing.T) *PostgresStore {
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set, skipping test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	s, err := NewPostgresStore(ctx, dsn, 2)
	if err != nil {
		t.Skipf("PostgreSQL is not available, skipping test: %v", err)
	}
	t.Cleanup(s.Close)

	require.NoError(t, s.EnsureSchema(ctx))
	return s
}

func TestPostgresStoreInsertBatch(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	// Schema creation is idempotent
	require.NoError(t, s.EnsureSchema(ctx))

	prefix := fmt.Sprintf("test-%d", time.Now().UnixNano())
	t.Cleanup(func() {
		s.pool.Exec(context.Background(), `DELETE FROM flats WHERE uuid LIKE $1`, prefix+"%")
	})
	rooms := 2
	city := "Алматы"
	records := []crawler.ListingRecord{flat(prefix+"-a", 100), flat(prefix+"-b", 200)}
	records[0].Rooms = &rooms
	records[0].City = &city

	before, err := s.Count(ctx)
	require.NoError(t, err)

	n, err := s.InsertBatch(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.InsertBatch(ctx, records[:1])
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	after, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+2, after)

	var date time.Time
	require.NoError(t, s.pool.QueryRow(ctx, `SELECT date FROM flats WHERE uuid = $1`, prefix+"-a").Scan(&date))
	assert.False(t, date.IsZero())
}

func TestPostgresStoreBatchIsAtomic(t *testing.T) {
	s := newTestPostgresStore(t)
	ctx := context.Background()

	prefix := fmt.Sprintf("atomic-%d", time.Now().UnixNano())
	noPrice := flat(prefix+"-b", 0)
	noPrice.Price = nil

	before, err := s.Count(ctx)
	require.NoError(t, err)

	_, err = s.InsertBatch(ctx, []crawler.ListingRecord{flat(prefix+"-a", 1), noPrice})
	require.Error(t, err)

	after, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestPostgresStoreEmptyBatch(t *testing.T) {
	s := newTestPostgresStore(t)

	n, err := s.InsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}
