package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const schemaLockKey = int64(2026101801)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates warehouse and history tables when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker/indexer startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS neighborhoods (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	geohash TEXT,
	school_rating DOUBLE PRECISION,
	crime_rate DOUBLE PRECISION,
	amenity_density DOUBLE PRECISION,
	walk_score DOUBLE PRECISION,
	description TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_neighborhoods_geohash ON neighborhoods(geohash);

CREATE TABLE IF NOT EXISTS listings (
	id TEXT PRIMARY KEY,
	address TEXT NOT NULL,
	price DOUBLE PRECISION NOT NULL,
	bedrooms DOUBLE PRECISION NOT NULL,
	bathrooms DOUBLE PRECISION NOT NULL,
	square_footage DOUBLE PRECISION NOT NULL DEFAULT 0,
	description TEXT NOT NULL DEFAULT '',
	neighborhood_id TEXT REFERENCES neighborhoods(id),
	property_type TEXT NOT NULL DEFAULT '',
	year_built INTEGER NOT NULL DEFAULT 0,
	latitude DOUBLE PRECISION NOT NULL DEFAULT 0,
	longitude DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS hazard_risks (
	listing_id TEXT NOT NULL REFERENCES listings(id) ON DELETE CASCADE,
	category TEXT NOT NULL,
	level TEXT NOT NULL,
	PRIMARY KEY (listing_id, category)
);

CREATE TABLE IF NOT EXISTS lending_params (
	effective_date DATE PRIMARY KEY,
	interest_rate_percent DOUBLE PRECISION NOT NULL,
	loan_term_years INTEGER NOT NULL,
	property_tax_rate_percent DOUBLE PRECISION NOT NULL,
	insurance_annual DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS analysis_history (
	request_id TEXT PRIMARY KEY,
	recorded_at TIMESTAMPTZ NOT NULL,
	status TEXT NOT NULL,
	duration_ms BIGINT NOT NULL DEFAULT 0,
	entry JSONB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_analysis_history_recorded_at ON analysis_history(recorded_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}
