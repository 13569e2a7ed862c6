// Package sqlite provides the SQLite entity store driver.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/solacelabs/solace/pkg/storage/sqlstore"
)

// Config holds SQLite driver configuration.
type Config struct {
	// Path is the database file location. The parent directory is created
	// if missing.
	Path string
}

// Driver is a SQLite-backed entity store.
type Driver struct {
	*sqlstore.SQLStore
	logger *zap.Logger
}

// NewDriver opens the database file and applies the schema. Foreign keys
// are enabled per connection via the DSN; SQLite disables them by default.
func NewDriver(ctx context.Context, cfg Config, logger *zap.Logger) (*Driver, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000", cfg.Path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite database: %w", err)
	}

	// The sqlite3 driver is not safe for concurrent writes over multiple
	// connections; a single connection serializes them.
	db.SetMaxOpenConns(1)

	store := sqlstore.New(db, sqlstore.SQLite)
	if err := store.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite store ready", zap.String("path", cfg.Path))

	return &Driver{SQLStore: store, logger: logger}, nil
}
