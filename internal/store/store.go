// Package store provides the embedded SQLite storage engine for syllabooster.
//
// The store owns the relational schema (users, courses, units, points, tags,
// course points and the point type / delivery state vocabulary) and enforces
// its uniqueness invariants with SQL constraints:
//   - one course per (name, user)
//   - one unit per (course, position)
//   - one point per heading
//   - one course point per (course, point)
//   - one delivery state per (point type, name)
//
// Reads and writes are available both on the DB itself and inside a
// transaction (see WithTx); the import path always runs inside exactly one
// transaction so a failed run leaves no trace.
//
// The database runs in embedded mode through ncruces/go-sqlite3 with WAL,
// a busy timeout and foreign keys enabled on every pooled connection.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrNotFound is returned by lookups when no row matches.
var ErrNotFound = errors.New("not found")

// DB wraps the SQLite connection pool.
type DB struct {
	queries
	conn *sql.DB
	path string
}

// Tx is a store transaction. It exposes the same read and write methods as
// DB, bound to the transaction.
type Tx struct {
	queries
	tx *sql.Tx
}

// Open creates a new database connection at the specified path.
//
// If the database doesn't exist, it is created; call InitSchema before use.
// The caller MUST call Close() when done.
//
// Example:
//
//	db, err := store.Open("syllabooster.db")
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
func Open(path string) (*DB, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	return &DB{
		queries: queries{q: conn},
		conn:    conn,
		path:    path,
	}, nil
}

// dsn builds the connection string. Pragmas are passed as _pragma
// parameters so that every connection in the pool gets them, not just the
// first one.
func dsn(path string) string {
	params := url.Values{}
	params.Add("_pragma", "journal_mode(WAL)")
	params.Add("_pragma", "busy_timeout(5000)")
	params.Add("_pragma", "foreign_keys(1)")
	return "file:" + path + "?" + params.Encode()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// RawDB returns the underlying sql.DB connection.
func (db *DB) RawDB() *sql.DB {
	return db.conn
}

// Close closes the database connection.
// Performs a WAL checkpoint to ensure all changes are persisted.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}

	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}

	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	db.conn = nil
	return nil
}

// WithTx runs fn inside a transaction. The transaction is committed when fn
// returns nil and rolled back otherwise; fn's error is returned unchanged.
func (db *DB) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{queries: queries{q: sqlTx}, tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// InitSchema creates the database schema if it doesn't exist.
// This is idempotent - safe to call multiple times.
func (db *DB) InitSchema() error {
	return db.InitSchemaContext(context.Background())
}

// InitSchemaContext creates the database schema with context support.
func (db *DB) InitSchemaContext(ctx context.Context) error {
	if _, err := db.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}
	return nil
}

const schema = `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT NOT NULL UNIQUE
	);

	-- Reference vocabulary, never written by the import path
	CREATE TABLE IF NOT EXISTS point_types (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		icon TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS delivery_states (
		id INTEGER PRIMARY KEY,
		point_type_id INTEGER NOT NULL REFERENCES point_types(id) ON DELETE CASCADE,
		position INTEGER,
		name TEXT NOT NULL,
		display_name TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		css_class TEXT NOT NULL DEFAULT '',
		UNIQUE (point_type_id, name)
	);

	CREATE TABLE IF NOT EXISTS tags (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	);

	-- heading is the point's identity across imports and courses
	CREATE TABLE IF NOT EXISTS points (
		id INTEGER PRIMARY KEY,
		heading TEXT NOT NULL UNIQUE,
		contents TEXT NOT NULL DEFAULT '',
		point_type_id INTEGER REFERENCES point_types(id) ON DELETE RESTRICT
	);

	CREATE TABLE IF NOT EXISTS point_tags (
		point_id INTEGER NOT NULL REFERENCES points(id) ON DELETE CASCADE,
		tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
		PRIMARY KEY (point_id, tag_id)
	);

	CREATE TABLE IF NOT EXISTS courses (
		id INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		current_position INTEGER NOT NULL DEFAULT 0,
		UNIQUE (name, user_id)
	);

	CREATE TABLE IF NOT EXISTS units (
		id INTEGER PRIMARY KEY,
		course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		position INTEGER NOT NULL CHECK (position > 0),
		title TEXT NOT NULL,
		UNIQUE (course_id, position)
	);

	CREATE TABLE IF NOT EXISTS course_points (
		id INTEGER PRIMARY KEY,
		course_id INTEGER NOT NULL REFERENCES courses(id) ON DELETE CASCADE,
		point_id INTEGER NOT NULL REFERENCES points(id) ON DELETE CASCADE,
		position INTEGER NOT NULL CHECK (position > 0),
		unit_id INTEGER REFERENCES units(id) ON DELETE CASCADE,
		state_id INTEGER REFERENCES delivery_states(id) ON DELETE RESTRICT,
		UNIQUE (course_id, point_id)
	);

	CREATE INDEX IF NOT EXISTS idx_units_course ON units(course_id, position);
	CREATE INDEX IF NOT EXISTS idx_course_points_course ON course_points(course_id, position);
	CREATE INDEX IF NOT EXISTS idx_course_points_unit ON course_points(unit_id);
	CREATE INDEX IF NOT EXISTS idx_point_tags_tag ON point_tags(tag_id);
	CREATE INDEX IF NOT EXISTS idx_delivery_states_type ON delivery_states(point_type_id, position);
	`
