// Package store provides the persistent local store of the sync core:
// durable CRUD over the three record families (offline mutations, sync
// queue, cached responses) plus the sync history, surviving process
// restarts. No other component touches the underlying storage directly.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// DBFileName is the SQLite file created under the data directory.
const DBFileName = "equipment-sync.db"

// Store wraps the SQLite connection with sync-core configuration.
// Construct with NewStore; the underlying database is opened lazily and
// idempotently on first use, so concurrent callers share one handle.
type Store struct {
	dataDir string

	initOnce sync.Once
	initErr  error
	db       *sql.DB

	// Prepared statement cache for frequently used queries.
	// Statements are prepared on first use and cached for reuse.
	stmtCache sync.Map // map[string]*sql.Stmt

	// now is the clock; tests override it for TTL and ordering checks.
	now func() time.Time
}

// NewStore creates a Store rooted at dataDir. The database is not
// opened until Init or the first operation.
func NewStore(dataDir string) *Store {
	return &Store{
		dataDir: dataDir,
		now:     time.Now,
	}
}

// Init opens the database and creates the schema. It is safe to call
// multiple times and from multiple goroutines; all callers observe the
// outcome of the single real open. An open failure is fatal and is
// returned to every caller.
func (s *Store) Init() error {
	s.initOnce.Do(func() {
		s.initErr = s.open()
	})
	return s.initErr
}

// open creates the data directory, opens the SQLite file with WAL mode
// and foreign keys enabled, and applies the schema.
func (s *Store) open() error {
	if err := os.MkdirAll(s.dataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := filepath.Join(s.dataDir, DBFileName)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't support multiple writers
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}

	s.db = db
	return nil
}

// initSchema creates the record-family tables if they don't exist.
// The seq column on offline_data is a monotonic tiebreaker so replay
// order is stable even for mutations recorded in the same millisecond.
func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS offline_data (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		entity_type TEXT NOT NULL,
		action TEXT NOT NULL,
		payload TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		synced INTEGER NOT NULL DEFAULT 0,
		retry_count INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_offline_data_unsynced
		ON offline_data(synced, created_at);

	CREATE TABLE IF NOT EXISTS sync_queue (
		id TEXT PRIMARY KEY,
		url TEXT NOT NULL,
		method TEXT NOT NULL,
		headers TEXT NOT NULL DEFAULT '{}',
		body BLOB,
		max_retries INTEGER NOT NULL DEFAULT 3,
		retry_count INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		last_attempt_at INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_sync_queue_created
		ON sync_queue(created_at);

	CREATE TABLE IF NOT EXISTS api_cache (
		key TEXT PRIMARY KEY,
		data TEXT NOT NULL,
		cached_at INTEGER NOT NULL,
		ttl INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL,
		trigger_kind TEXT NOT NULL,
		synced_count INTEGER NOT NULL,
		failed_count INTEGER NOT NULL,
		status TEXT NOT NULL
	);
	`
	_, err := db.Exec(schema)
	return err
}

// prepareStmt gets or creates a prepared statement from the cache.
// Key is the query string, value is the prepared statement.
func (s *Store) prepareStmt(query string) (*sql.Stmt, error) {
	if stmt, ok := s.stmtCache.Load(query); ok {
		return stmt.(*sql.Stmt), nil
	}

	stmt, err := s.db.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare statement: %w", err)
	}

	actual, loaded := s.stmtCache.LoadOrStore(query, stmt)
	if loaded {
		// Another goroutine already prepared this, close our duplicate
		stmt.Close()
		return actual.(*sql.Stmt), nil
	}

	return stmt, nil
}

// Close closes all cached prepared statements and the database.
func (s *Store) Close() error {
	var firstErr error
	s.stmtCache.Range(func(key, value interface{}) bool {
		stmt := value.(*sql.Stmt)
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		return true
	})
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
