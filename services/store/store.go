// Package store persists listing records into the flats table.
//
// Both implementations share the same contract: inserts are keyed on the
// listing uuid, existing keys are skipped without updating, and a batch is
// applied all-or-nothing.
package store

import (
	"context"

	"sjsage522/krishaworker/internal/crawler"
)

// Store is the persistence contract the crawl writes through
type Store interface {
	crawler.Store
	Count(ctx context.Context) (int, error)
	Close()
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)

const createFlatsTable = `
CREATE TABLE IF NOT EXISTS flats (
	id          BIGSERIAL PRIMARY KEY,
	id_flat     BIGINT,
	uuid        TEXT NOT NULL UNIQUE,
	url         TEXT,
	room        INTEGER,
	square      DOUBLE PRECISION,
	city        TEXT,
	lat         DOUBLE PRECISION,
	lon         DOUBLE PRECISION,
	description TEXT,
	photo       TEXT,
	date        DATE NOT NULL DEFAULT CURRENT_DATE,
	price       BIGINT NOT NULL
)`

const insertFlat = `
INSERT INTO flats (id_flat, uuid, url, room, square, city, lat, lon, description, photo, price)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (uuid) DO NOTHING`
