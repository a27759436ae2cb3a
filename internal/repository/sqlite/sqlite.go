// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// modernc.org/sqlite is a pure Go translation of SQLite, so the binary builds
// without a C toolchain. Use ":memory:" as the path for a throwaway database in tests.
//
// DATABASE/SQL OVERVIEW:
//   - sql.DB     : a connection pool (NOT a single connection!)
//   - sql.Tx     : a transaction
//   - sql.Row    : a single result row
//   - sql.Rows   : multiple result rows (must be closed!)
//
// SINGLE CONNECTION:
// The pool is capped at one open connection. SQLite allows a single writer
// at a time anyway, and a ":memory:" database exists per connection, so a
// second connection would see an empty schema. With one connection every
// transaction in this package runs strictly after the previous one finishes.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DB wraps a sql.DB connection pool and implements UserRepository,
// JokeRepository and LedgerRepository.
type DB struct {
	conn *sql.DB
}

// New opens the SQLite database at dbPath and brings its schema up to date.
//
// dbPath examples:
//   - "data/jokes.db"  → file-based database (persistent)
//   - ":memory:"       → in-memory database (lost on close)
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// sql.Open doesn't connect; Ping surfaces a bad path right away.
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// PRAGMA STATEMENTS:
	// WAL lets readers proceed during a write, foreign keys are OFF by default
	// in SQLite, and busy_timeout makes a locked file wait instead of failing
	// immediately when another process holds the write lock.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := conn.Exec(p); err != nil {
			conn.Close()
			return nil, fmt.Errorf("sqlite: %s: %w", p, err)
		}
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping reports whether the database is reachable. Used by /healthz.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// migrate applies the embedded migrations/*.sql files with golang-migrate.
// schema_migrations records the applied version, so reopening an existing
// database is a no-op.
//
// The migrate instance is deliberately not Closed: closing it would close
// the database driver, and with it db.conn.
func (db *DB) migrate() error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("loading migration files: %w", err)
	}

	driver, err := migratesqlite.WithInstance(db.conn, &migratesqlite.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}

// withTx runs fn inside a transaction, committing if fn returns nil and
// rolling back otherwise.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return translateError(fmt.Errorf("sqlite: beginning transaction: %w", err))
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return translateError(fmt.Errorf("sqlite: committing transaction: %w", err))
	}
	return nil
}
