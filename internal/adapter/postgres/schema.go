package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS film_records (
		username        TEXT NOT NULL,
		position        INTEGER NOT NULL,
		film_slug       TEXT NOT NULL,
		title           TEXT NOT NULL DEFAULT '',
		rating          DOUBLE PRECISION,
		liked           BOOLEAN NOT NULL DEFAULT FALSE,
		year            INTEGER,
		runtime_minutes INTEGER,
		genres          JSONB NOT NULL DEFAULT '[]',
		themes          JSONB NOT NULL DEFAULT '[]',
		directors       JSONB NOT NULL DEFAULT '[]',
		cast_members    JSONB NOT NULL DEFAULT '[]',
		studios         JSONB NOT NULL DEFAULT '[]',
		countries       JSONB NOT NULL DEFAULT '[]',
		language        TEXT,
		avg_rating      DOUBLE PRECISION,
		num_watched     INTEGER,
		num_liked       INTEGER,
		scraped_at      TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		PRIMARY KEY (username, position)
	)`,
	`CREATE INDEX IF NOT EXISTS film_records_slug_idx ON film_records (film_slug)`,
	`CREATE TABLE IF NOT EXISTS failed_fetches (
		username               TEXT NOT NULL,
		film_slug              TEXT NOT NULL,
		failure_reason         TEXT NOT NULL DEFAULT '',
		http_status_code       INTEGER NOT NULL DEFAULT 0,
		last_attempt_timestamp TIMESTAMPTZ NOT NULL,
		retry_count            INTEGER NOT NULL DEFAULT 1,
		PRIMARY KEY (username, film_slug)
	)`,
}

// EnsureSchema creates the tables used by the repositories if missing.
func EnsureSchema(ctx context.Context, db *pgxpool.Pool) error {
	for _, stmt := range schema {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Connect opens a pool and verifies it with a ping.
func Connect(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	db, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to database: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("unable to reach database: %w", err)
	}
	return db, nil
}
