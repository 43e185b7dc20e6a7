package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/shopsync/internal/common"
	"github.com/dmitrijs2005/shopsync/internal/migrations"
	"github.com/pressly/goose/v3"
)

// Database lazily opens the SQLite file and applies embedded migrations.
//
// Initialization happens exactly once, on first use of any repository
// operation; concurrent first calls share the same initialization via
// sync.Once. A failed open is remembered and surfaced as
// common.ErrStorageUnavailable on every subsequent call, so callers never
// need to sequence initialization manually.
type Database struct {
	dsn  string
	once sync.Once
	db   *sql.DB
	err  error
}

// NewDatabase returns an unopened Database for the given SQLite DSN.
// Nothing touches the filesystem until the first operation.
func NewDatabase(dsn string) *Database {
	return &Database{dsn: dsn}
}

// Conn returns the initialized database handle, opening it on first call.
func (d *Database) Conn(ctx context.Context) (*sql.DB, error) {
	d.once.Do(func() {
		d.db, d.err = d.open(ctx)
	})
	if d.err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrStorageUnavailable, d.err)
	}
	return d.db, nil
}

func (d *Database) open(ctx context.Context) (*sql.DB, error) {
	db, err := sql.Open("sqlite", d.dsn)
	if err != nil {
		return nil, err
	}

	// SQLite allows a single writer; a one-connection pool keeps every
	// statement serialized through it.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := runMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}

// Close closes the underlying handle if it was ever opened.
func (d *Database) Close() error {
	if d.db == nil {
		return nil
	}
	return d.db.Close()
}

func runMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	return goose.UpContext(ctx, db, ".")
}
