// Package postgres opens the shared database handle for the durable stores.
package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"caresignal/internal/platform/config"
)

// Open connects to PostgreSQL using the provided configuration. Returns nil
// if no URL is configured (in-memory stores are used instead).
func Open(cfg config.Postgres) (*sql.DB, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}
