package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// The action log has a single writer and an occasional status reader.
const (
	maxOpenConns    = 4
	maxIdleConns    = 2
	connMaxLifetime = 5 * time.Minute
	healthTimeout   = 5 * time.Second
)

// ErrNoURL is returned by Connect when no connection string is configured.
var ErrNoURL = errors.New("database URL is required")

// Connect opens the action log database and verifies it answers a ping.
func Connect(ctx context.Context, url string) (*sql.DB, error) {
	if url == "" {
		return nil, ErrNoURL
	}

	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open action log database: %w", err)
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)

	if err := HealthCheck(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// HealthCheck pings db with a short deadline. It backs /healthz.
func HealthCheck(ctx context.Context, db *sql.DB) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("action log database unreachable: %w", err)
	}
	return nil
}
