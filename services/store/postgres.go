package store

import (
	"context"
	"fmt"

	"sjsage522/krishaworker/internal/crawler"
	"sjsage522/krishaworker/logger"
	crawlerrors "sjsage522/krishaworker/pkg/errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on a pgx connection pool
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgresStore connects to databaseURL with at most maxConns connections
func NewPostgresStore(ctx context.Context, databaseURL string, maxConns int) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, crawlerrors.NewConfiguration("invalid DATABASE_URL", err)
	}
	if maxConns <= 0 {
		maxConns = 2
	}
	cfg.MaxConns = int32(maxConns)

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, crawlerrors.NewStore("unable to create connection pool", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, crawlerrors.NewStore("unable to reach database", err)
	}

	return &PostgresStore{
		pool: pool,
		log:  logger.ForStore(),
	}, nil
}

// Close releases the pool
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// EnsureSchema creates the flats table if it does not exist
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, createFlatsTable); err != nil {
		return crawlerrors.NewStore("create table flats", err)
	}
	return nil
}

// InsertBatch inserts records in one transaction and returns how many were new
func (s *PostgresStore) InsertBatch(ctx context.Context, records []crawler.ListingRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	inserted := 0
	err := s.withTransaction(ctx, func(tx pgx.Tx) error {
		b := &pgx.Batch{}
		for _, r := range records {
			b.Queue(insertFlat,
				r.ExternalID, r.UniqueKey, r.SourceURL, r.Rooms, r.Area, r.City,
				r.Latitude, r.Longitude, r.Description, r.PhotoURL, r.Price,
			)
		}

		br := tx.SendBatch(ctx, b)
		for i := range records {
			tag, err := br.Exec()
			if err != nil {
				_ = br.Close()
				return fmt.Errorf("insert %s: %w", records[i].UniqueKey, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return br.Close()
	})
	if err != nil {
		return 0, crawlerrors.NewStore(fmt.Sprintf("insert batch of %d", len(records)), err)
	}

	s.log.Debug().Int("batch", len(records)).Int("inserted", inserted).Msg("Inserted batch")
	return inserted, nil
}

// Count returns the number of stored flats
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT count(*) FROM flats`).Scan(&n); err != nil {
		return 0, crawlerrors.NewStore("count flats", err)
	}
	return n, nil
}

func (s *PostgresStore) withTransaction(ctx context.Context, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		} else if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			err = tx.Commit(ctx)
		}
	}()

	return fn(tx)
}
