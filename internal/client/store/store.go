// Package store is the on-device structured store: an embedded SQLite
// database holding pending recordings, local clients and the client catalog.
//
// A Store is opened through a Provider, which caches one handle per database
// file for the whole process and makes concurrent callers share a single
// in-flight open. Opening is self-healing: if the file cannot be opened or
// its schema cannot be created, the file is deleted and recreated once.
// Only a second failure is reported, wrapped in ErrStoreFatal.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/dmitrijs2005/fieldrec/internal/client/migrations"
	"github.com/dmitrijs2005/fieldrec/internal/dbx"
	"github.com/dmitrijs2005/fieldrec/internal/filex"
	"github.com/dmitrijs2005/fieldrec/internal/logging"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// ErrStoreFatal is returned when the store could not be opened even after
// recreating the database file.
var ErrStoreFatal = errors.New("structured store unavailable")

// MemoryPath opens a private in-memory database (tests, dry runs).
const MemoryPath = ":memory:"

// Row is one result row keyed by column name.
type Row map[string]any

// Store is an open structured store.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the database at path, healing it once if needed.
func Open(ctx context.Context, path string, logger logging.Logger) (*Store, error) {
	s, err := open(ctx, path)
	if err == nil {
		return s, nil
	}

	logger.Warn(ctx, "store open failed, recreating database", "path", path, "error", err)

	if path != MemoryPath {
		if rmErr := filex.RemoveWithSidecars(path, "-wal", "-shm", "-journal"); rmErr != nil {
			logger.Error(ctx, "could not remove database file", "path", path, "error", rmErr)
		}
	}

	s, healErr := open(ctx, path)
	if healErr != nil {
		return nil, fmt.Errorf("%w: %w; after recreate: %w", ErrStoreFatal, err, healErr)
	}

	logger.Info(ctx, "store recreated with empty schema", "path", path)
	return s, nil
}

func open(ctx context.Context, path string) (*Store, error) {
	dsn := MemoryPath
	if path != MemoryPath {
		if _, err := filex.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, err
		}
		dsn = fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if path == MemoryPath {
		// every connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db, path: path}, nil
}

// EnsureSchema creates the three base tables when they are missing.
func EnsureSchema(ctx context.Context, db dbx.DBTX) error {
	for _, stmt := range baseSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// RunMigrations applies the embedded goose migrations.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	provider, err := goose.NewProvider(goose.DialectSQLite3, db, migrations.FS)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// DB returns the underlying handle for typed repositories.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// WithTx runs fn inside a transaction on the store.
func (s *Store) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTx(ctx, s.db, nil, fn)
}

// FromDB wraps an already opened handle without touching its schema.
func FromDB(db *sql.DB, path string) *Store {
	return &Store{db: db, path: path}
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Exec runs a statement that returns no rows.
func (s *Store) Exec(ctx context.Context, query string, args ...any) error {
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("exec failed: %w", err)
	}
	return nil
}

// QueryAll returns every row produced by query.
func (s *Store) QueryAll(ctx context.Context, query string, args ...any) ([]Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to read columns: %w", err)
	}

	var result []Row
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make(Row, len(cols))
		for i, c := range cols {
			if b, ok := values[i].([]byte); ok {
				values[i] = string(b)
			}
			row[c] = values[i]
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows: %w", err)
	}
	return result, nil
}

// QueryFirst returns the first row of query; ok is false when there is none.
func (s *Store) QueryFirst(ctx context.Context, query string, args ...any) (Row, bool, error) {
	rows, err := s.QueryAll(ctx, query, args...)
	if err != nil {
		return nil, false, err
	}
	if len(rows) == 0 {
		return nil, false, nil
	}
	return rows[0], true, nil
}

// Int returns column c as int64 (0 when NULL or not numeric).
func (r Row) Int(c string) int64 {
	switch v := r[c].(type) {
	case int64:
		return v
	case float64:
		return int64(v)
	case bool:
		if v {
			return 1
		}
	}
	return 0
}

// String returns column c as a string ("" when NULL).
func (r Row) String(c string) string {
	switch v := r[c].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
