package snapshot

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/shellforge/shellforge/pkg/descriptor"
	"github.com/shellforge/shellforge/pkg/platform"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Cache is a SQLite-backed store of fetched snapshot indexes, keyed by
// (host, owner, repo, revision, platform). Only pinned references are
// cached: a moving branch may resolve to a different snapshot on every
// import, so caching it would violate re-resolution semantics.
type Cache struct {
	db     *sql.DB
	path   string
	logger zerolog.Logger
}

// NewCache creates a snapshot cache at the given database path.
func NewCache(path string, logger zerolog.Logger) (*Cache, error) {
	if path == "" {
		return nil, fmt.Errorf("cache database path is required")
	}
	return &Cache{
		path:   path,
		logger: logger.With().Str("component", "snapshot-cache").Logger(),
	}, nil
}

// Init opens the database, enables WAL mode, and runs migrations.
func (c *Cache) Init(ctx context.Context) error {
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", c.path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open cache database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping cache database: %w", err)
	}

	c.db = db
	return c.migrate()
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func (c *Cache) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(c.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Get returns the cached index for a pinned reference, or (nil, false)
// on a miss.
func (c *Cache) Get(ctx context.Context, ref descriptor.SourceRef, p platform.Platform) (*Index, bool, error) {
	if c.db == nil {
		return nil, false, fmt.Errorf("cache not initialized")
	}

	query := `
		SELECT index_json
		FROM snapshots
		WHERE host = ? AND owner = ? AND repo = ? AND revision = ? AND platform = ?
	`

	var indexJSON []byte
	err := c.db.QueryRowContext(ctx, query, ref.Host, ref.Owner, ref.Repo, ref.Ref, p.String()).
		Scan(&indexJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to query snapshot cache: %w", err)
	}

	var index Index
	if err := json.Unmarshal(indexJSON, &index); err != nil {
		return nil, false, fmt.Errorf("corrupt cached snapshot: %w", err)
	}

	return &index, true, nil
}

// Put stores an index under its pinned reference. Existing entries are
// replaced; an index for a pinned revision never changes, so a replace
// is always a no-op in content.
func (c *Cache) Put(ctx context.Context, ref descriptor.SourceRef, p platform.Platform, index *Index) error {
	if c.db == nil {
		return fmt.Errorf("cache not initialized")
	}

	indexJSON, err := json.Marshal(index)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot index: %w", err)
	}

	query := `
		INSERT OR REPLACE INTO snapshots (host, owner, repo, revision, platform, index_json, fetched_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = c.db.ExecContext(ctx, query,
		ref.Host, ref.Owner, ref.Repo, ref.Ref, p.String(), indexJSON, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to store snapshot: %w", err)
	}

	return nil
}
