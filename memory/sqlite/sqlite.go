// Package sqlite implements a persistent SQLite-backed memory store.
// It uses modernc.org/sqlite (pure Go, no CGO) with WAL mode and an
// FTS5 index over a pre-segmented token stream.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	mathrand "math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/kokoro-ai/kokoro/memory"

	_ "modernc.org/sqlite" // SQLite driver registration
)

// defaultBusyTimeout is the SQLite busy_timeout in milliseconds.
const defaultBusyTimeout = 5000

// Config holds the SQLite store configuration.
type Config struct {
	Path        string `yaml:"path"`
	BusyTimeout int    `yaml:"busy_timeout"`
	WAL         *bool  `yaml:"wal"`
}

// defaults fills zero-valued fields with sensible defaults.
func (c *Config) defaults() {
	if c.BusyTimeout <= 0 {
		c.BusyTimeout = defaultBusyTimeout
	}
}

// walEnabled reports whether WAL mode should be enabled (default true).
func (c *Config) walEnabled() bool {
	return c.WAL == nil || *c.WAL
}

// Store is a memory.Store backed by SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	mu      sync.Mutex // guards entropy
	entropy *ulid.MonotonicEntropy
}

// Compile-time interface guard.
var _ memory.Store = (*Store)(nil)

// Open opens (creating if necessary) the database at cfg.Path and
// migrates the schema. Open failures surface as
// memory.ErrStoreUnavailable; callers must not assume records persist
// across a failed open.
func Open(cfg Config, logger *slog.Logger) (*Store, error) {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("%w: create directory %s: %w", memory.ErrStoreUnavailable, dir, err)
		}
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", memory.ErrStoreUnavailable, cfg.Path, err)
	}

	// SQLite handles one writer at a time; limit the pool to a single
	// connection so PRAGMAs apply consistently.
	db.SetMaxOpenConns(1)

	ctx := context.TODO()

	if cfg.walEnabled() {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("%w: enable WAL: %w", memory.ErrStoreUnavailable, err)
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA busy_timeout=%d", cfg.BusyTimeout)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set busy_timeout: %w", memory.ErrStoreUnavailable, err)
	}

	if err := migrate(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: %w", memory.ErrStoreUnavailable, err)
	}

	s := &Store{
		db:      db,
		logger:  logger,
		entropy: ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0),
	}

	logger.Info("sqlite memory store opened",
		"path", cfg.Path,
		"wal", cfg.walEnabled(),
	)

	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// newID returns a fresh sortable record identifier.
func (s *Store) newID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}
