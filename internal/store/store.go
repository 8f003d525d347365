package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"io"
	"log/slog"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Rows imported from the legacy cid_tokens table
const currentSchemaVersion = 1

// DefaultReadConns is the size of the reader pool when Options.ReadConns is zero.
const DefaultReadConns = 8

// Store is the durable identifier -> (content, level, number) map.
//
// All writes go through a single connection; reads use a separate pool of
// read-only connections so lookups never queue behind a batch commit.
// WAL mode gives readers a consistent view of the last committed batch.
type Store struct {
	db     *sql.DB // writer, exactly one connection
	readDB *sql.DB // readers, pooled
	path   string
	logger *slog.Logger
}

// Options tunes Open.
type Options struct {
	// ReadConns bounds the reader pool. Zero means DefaultReadConns.
	ReadConns int

	// Logger receives migration and lifecycle messages. Nil discards them.
	Logger *slog.Logger
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts Options) (*Store, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	db, err := sql.Open("sqlite3", fileURI(path, "_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db, logger); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	readDB, err := openReader(path, opts.ReadConns)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db, readDB: readDB, path: path, logger: logger}, nil
}

// openReader opens the read-only pool. The schema must already exist.
func openReader(path string, conns int) (*sql.DB, error) {
	if conns <= 0 {
		conns = DefaultReadConns
	}
	readDB, err := sql.Open("sqlite3", fileURI(path, "mode=ro&_busy_timeout=5000"))
	if err != nil {
		return nil, fmt.Errorf("failed to open read pool: %w", err)
	}
	readDB.SetMaxOpenConns(conns)
	readDB.SetMaxIdleConns(conns)
	if err := readDB.Ping(); err != nil {
		readDB.Close()
		return nil, fmt.Errorf("failed to connect read pool: %w", err)
	}
	return readDB, nil
}

// fileURI builds a SQLite URI filename for path. Characters that URI
// filenames reserve ('?', '#', '%') are percent-encoded.
func fileURI(path, query string) string {
	u := url.URL{Path: path}
	return "file:" + u.EscapedPath() + "?" + query
}

// Path returns the database file the store was opened on.
func (s *Store) Path() string {
	return s.path
}

// Close closes both connection pools.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	rerr := s.readDB.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return rerr
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB, logger *slog.Logger) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db, logger); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB, logger *slog.Logger) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db, logger); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 copies rows from the cid_tokens table written by earlier
// builds into cache_records. Rows without a token level or number cannot be
// reverse-looked-up and are skipped. The legacy table is left in place.
func migrateToV1(db *sql.DB, logger *slog.Logger) error {
	var n int
	err := db.QueryRow(`
		SELECT COUNT(*) FROM sqlite_master
		WHERE type = 'table' AND name = 'cid_tokens'
	`).Scan(&n)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	if n == 0 {
		return nil
	}

	res, err := db.Exec(`
		INSERT OR IGNORE INTO cache_records (identifier, content, level, number)
		SELECT cid, content, token_level, token_number
		FROM cid_tokens
		WHERE token_level IS NOT NULL AND token_number IS NOT NULL
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	imported, _ := res.RowsAffected()
	logger.Info("imported legacy cid_tokens rows", "rows", imported)
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

// readTx starts a transaction on the reader pool. Queries issued through it
// see a single WAL snapshot.
func (s *Store) readTx(ctx context.Context) (*sql.Tx, error) {
	return s.readDB.BeginTx(ctx, nil)
}
