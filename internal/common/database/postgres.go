// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"college-predictor/internal/common/config"

	_ "github.com/lib/pq"
)

// SQLClient wraps a database/sql connection pool for either SQL backend.
type SQLClient struct {
	DB      *sql.DB
	Dialect string
}

// NewPostgres opens a PostgreSQL pool. The connection is verified lazily by Ping.
func NewPostgres(cfg config.PostgresConfig) (*SQLClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &SQLClient{DB: db, Dialect: config.BackendPostgres}, nil
}

// Ping tests the database connection
func (c *SQLClient) Ping(ctx context.Context) error {
	if err := c.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", c.Dialect, err)
	}
	return nil
}

// Close closes the database connection
func (c *SQLClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
