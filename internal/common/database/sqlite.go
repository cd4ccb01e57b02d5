// internal/common/database/sqlite.go
package database

import (
	"database/sql"
	"fmt"

	"college-predictor/internal/common/config"

	_ "modernc.org/sqlite"
)

// NewSQLite opens a SQLite database file, or an in-memory database for ":memory:".
func NewSQLite(cfg config.SQLiteConfig) (*SQLClient, error) {
	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", cfg.Path, err)
	}

	// each new connection to :memory: would see its own empty database
	db.SetMaxOpenConns(1)

	return &SQLClient{DB: db, Dialect: config.BackendSQLite}, nil
}
