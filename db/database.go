package db

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Database owns the history connection and its schema.
//
//	database, err := NewDatabase("data/history.db")
//	if err != nil {
//	    return err
//	}
//	defer database.Close()
//	if err := database.Migrate(); err != nil {
//	    return err
//	}
type Database struct {
	db   *sql.DB
	path string
	mu   sync.RWMutex
}

// NewDatabase opens path with DefaultConnectionConfig, creating parent
// directories as needed.
func NewDatabase(path string) (*Database, error) {
	return NewDatabaseWithConfig(DefaultConnectionConfig(path))
}

// NewDatabaseWithConfig opens a database with a custom connection config.
func NewDatabaseWithConfig(config ConnectionConfig) (*Database, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("database path is required")
	}

	if dir := filepath.Dir(config.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	conn, err := NewSQLiteConnection(config)
	if err != nil {
		return nil, fmt.Errorf("failed to create database connection: %w", err)
	}

	return &Database{db: conn, path: config.Path}, nil
}

// Migrate applies pending schema migrations. It is safe to call repeatedly.
// golang-migrate closes the connection it is given, so it runs on its own.
func (d *Database) Migrate() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := MigrateUpFromPath(d.path); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return nil
}

// DB returns the shared connection. Do not close it; use Close.
func (d *Database) DB() *sql.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// Path returns the database file path.
func (d *Database) Path() string {
	return d.path
}

// Close closes the connection. Further calls are no-ops.
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}
	err := d.db.Close()
	d.db = nil
	if err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// Ping verifies the connection is alive; used by the health endpoint.
func (d *Database) Ping(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return fmt.Errorf("database connection is closed")
	}
	return d.db.PingContext(ctx)
}
