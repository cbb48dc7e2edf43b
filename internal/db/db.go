// Package db opens the local SQLite databases davsync keeps under its data
// directory and brings their schema up to date.
package db

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/davsync/internal/utils"
	"github.com/pressly/goose/v3"
)

const memoryPath = ":memory:"

const defaultPragma = `
PRAGMA journal_mode=WAL;
PRAGMA busy_timeout=5000;
PRAGMA foreign_keys=ON;
PRAGMA temp_store=MEMORY;
PRAGMA synchronous=NORMAL;
`

type config struct {
	path            string
	pragmas         string
	maxOpenConns    int
	maxIdleConns    int
	connMaxLifetime time.Duration
	migrations      fs.FS
}

type SqliteOption func(*config)

// WithPath sets the database file. ":memory:" is the default.
func WithPath(path string) SqliteOption {
	return func(c *config) {
		c.path = path
	}
}

// WithPragmas replaces the default pragmas.
func WithPragmas(pragmas string) SqliteOption {
	return func(c *config) {
		c.pragmas = pragmas
	}
}

func WithMaxOpenConns(n int) SqliteOption {
	return func(c *config) {
		c.maxOpenConns = n
	}
}

func WithMaxIdleConns(n int) SqliteOption {
	return func(c *config) {
		c.maxIdleConns = n
	}
}

func WithConnMaxLifetime(d time.Duration) SqliteOption {
	return func(c *config) {
		c.connMaxLifetime = d
	}
}

// WithMigrations applies the goose SQL migrations found at the root of fsys
// right after connecting.
func WithMigrations(fsys fs.FS) SqliteOption {
	return func(c *config) {
		c.migrations = fsys
	}
}

// NewSqliteDb opens a database and applies pragmas and migrations.
func NewSqliteDb(opts ...SqliteOption) (*sqlx.DB, error) {
	cfg := &config{
		path:         memoryPath,
		pragmas:      defaultPragma,
		maxIdleConns: 2,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	dsn := memoryPath
	if cfg.path != memoryPath {
		if err := utils.EnsureParent(cfg.path); err != nil {
			return nil, fmt.Errorf("ensure parent directory: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_txlock=immediate&mode=rwc", cfg.path)
	} else {
		// every new connection to :memory: is a new empty database
		cfg.maxOpenConns = 1
	}

	slog.Debug("db open", "driver", driverID, "path", cfg.path)
	db, err := sqlx.Connect(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if cfg.maxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.maxOpenConns)
	}
	if cfg.maxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.maxIdleConns)
	}
	if cfg.connMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.connMaxLifetime)
	}

	if _, err := db.Exec(cfg.pragmas); err != nil {
		db.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	if cfg.migrations != nil {
		if err := Migrate(context.Background(), db, cfg.migrations); err != nil {
			db.Close()
			return nil, err
		}
	}

	return db, nil
}

// Migrate applies pending goose migrations from fsys.
func Migrate(ctx context.Context, db *sqlx.DB, fsys fs.FS) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}
	for _, r := range results {
		slog.Debug("db migration applied", "version", r.Source.Version, "took", r.Duration)
	}
	return nil
}
