package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mattn/go-sqlite3"
	"github.com/ours334/player/internal/shared"
)

// DBFileName is the sqlite file created under each candidate directory.
const DBFileName = "playback_logs.sqlite"

const fallbackDirName = ".ours334-player"

// Store is the embedded sqlite store. It is safe for concurrent use; the
// sqlite handle may be swapped by the read-only recovery path, so all access
// goes through database().
type Store struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	cfg    shared.DatabaseConfig
	logger *log.Logger
}

// Open opens the store through the candidate path chain. The first candidate
// whose directory can be created and whose file opens read-write wins; every
// candidate failing is a fatal initialization error.
func Open(cfg shared.DatabaseConfig, logger *log.Logger) (*Store, error) {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	s := &Store{cfg: cfg, logger: logger}
	if err := s.open(false); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenPath opens the store at an explicit sqlite file, skipping the fallback
// chain. Used by the offline sync tools and tests.
func OpenPath(path string, logger *log.Logger) (*Store, error) {
	return Open(shared.DatabaseConfig{Path: path, MaxOpenConns: 1, MaxIdleConns: 1}, logger)
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the sqlite file currently backing the store.
func (s *Store) Path() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.path
}

func (s *Store) database() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

// candidatePaths returns the ordered open candidates. preferFallback moves
// the configured path to the end, used when recovering from a read-only
// handle.
func (s *Store) candidatePaths(preferFallback bool) []string {
	preferred := strings.TrimSpace(s.cfg.Path)
	if preferred == "" {
		preferred = filepath.Join("data", DBFileName)
	}

	fallback := filepath.Join(os.TempDir(), "ours334-player", DBFileName)
	candidates := []string{preferred}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, fallbackDirName, DBFileName))
	}
	candidates = append(candidates, fallback)

	if preferFallback {
		candidates = append(candidates[1:], candidates[0])
	}

	seen := make(map[string]bool, len(candidates))
	unique := candidates[:0]
	for _, candidate := range candidates {
		if seen[candidate] {
			continue
		}
		seen[candidate] = true
		unique = append(unique, candidate)
	}
	return unique
}

// open walks the candidate chain and keeps the first database that opens and
// migrates successfully. Callers must not hold s.mu.
func (s *Store) open(preferFallback bool) error {
	var errs []string

	for _, candidate := range s.candidatePaths(preferFallback) {
		db, err := openAt(candidate, s.cfg)
		if err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", candidate, err))
			continue
		}

		s.mu.Lock()
		if s.db != nil {
			s.db.Close()
		}
		s.db = db
		s.path = candidate
		s.mu.Unlock()

		if preferFallback {
			s.logger.Warn("reopened sqlite store via fallback path", "path", candidate)
		}
		return nil
	}

	return fmt.Errorf("%w: failed to initialize sqlite store: %s", shared.ErrStoreUnavailable, strings.Join(errs, " | "))
}

func openAt(path string, cfg shared.DatabaseConfig) (*sql.DB, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
	}

	// Immediate transaction locking serializes conflicting local writers;
	// the busy timeout keeps short lock contention from surfacing as errors.
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=1", path)
	db, err := shared.NewDatabase(dsn)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// isReadonlyError reports whether err means the open handle cannot write.
func isReadonlyError(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		if sqliteErr.Code == sqlite3.ErrReadonly {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "readonly")
}

// write runs fn against the current handle. A read-only failure reopens the
// store starting from the fallback path and retries exactly once; any second
// failure propagates to the caller.
func (s *Store) write(fn func(db *sql.DB) error) error {
	err := fn(s.database())
	if !isReadonlyError(err) {
		return err
	}

	s.logger.Warn("sqlite store is read-only, reopening via fallback chain", "error", err)
	if reopenErr := s.open(true); reopenErr != nil {
		return reopenErr
	}
	return fn(s.database())
}

// inTx runs fn inside a transaction on the given handle. The DSN requests
// immediate locking, so the transaction takes the write lock up front.
func inTx(db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}
	return tx.Commit()
}
