// Eventstats - Event Engagement Similarity and Recommendations
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/eventstats

package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/tomtom215/eventstats/internal/config"
	"github.com/tomtom215/eventstats/internal/logging"
	"github.com/tomtom215/eventstats/internal/metrics"
	"github.com/tomtom215/eventstats/internal/models"
)

// Store is the full persistence contract: the store worker write paths and
// the recommendation read paths.
type Store interface {
	ProcessUserAction(ctx context.Context, action models.ActionEvent) error
	ProcessEventSimilarity(ctx context.Context, update models.SimilarityUpdate) error

	SumInteractionWeights(ctx context.Context, eventIDs []int64) (map[int64]float64, error)
	RecentEventIDs(ctx context.Context, userID int64, limit int) ([]int64, error)
	SimilarExcluding(ctx context.Context, eventID int64, exclude []int64, limit int) ([]models.ScoredEvent, error)
	Candidates(ctx context.Context, interacted []int64, limit int) ([]models.SimilarityUpdate, error)
	Links(ctx context.Context, candidate int64, interacted []int64, limit int) ([]models.SimilarityUpdate, error)
	UserWeights(ctx context.Context, userID int64, eventIDs []int64) (map[int64]float64, error)

	Ping(ctx context.Context) error
	Close() error
}

// DB is the SQL implementation of Store.
type DB struct {
	conn   *sql.DB
	driver string
}

// Open returns the store selected by cfg.Driver.
func Open(cfg *config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "memory":
		return NewMemoryStore(), nil
	case "duckdb", "sqlite3":
		return New(cfg)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

// New opens a SQL database and creates the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	if cfg.Path != ":memory:" {
		dbDir := filepath.Dir(cfg.Path)
		if dbDir != "" && dbDir != "." {
			if err := os.MkdirAll(dbDir, 0o750); err != nil {
				return nil, fmt.Errorf("failed to create database directory %s: %w", dbDir, err)
			}
		}
	}

	dsn, err := dataSourceName(cfg)
	if err != nil {
		return nil, err
	}
	conn, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db := &DB{conn: conn, driver: cfg.Driver}
	db.configureConnectionPool(cfg)

	if err := db.createTables(); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	logging.Info().Str("driver", cfg.Driver).Str("path", cfg.Path).Msg("Database opened")
	return db, nil
}

func dataSourceName(cfg *config.DatabaseConfig) (string, error) {
	switch cfg.Driver {
	case "duckdb":
		threads := cfg.Threads
		if threads <= 0 {
			threads = runtime.NumCPU()
		}
		maxMemory := cfg.MaxMemory
		if maxMemory == "" {
			maxMemory = "1GB"
		}
		return fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s&autoinstall_known_extensions=false&autoload_known_extensions=false",
			cfg.Path, threads, maxMemory), nil
	case "sqlite3":
		return fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", cfg.Path), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}

func (db *DB) configureConnectionPool(cfg *config.DatabaseConfig) {
	if db.driver == "sqlite3" {
		// SQLite allows one writer; an in-memory database exists per connection.
		db.conn.SetMaxOpenConns(1)
		return
	}
	maxConns := cfg.Threads
	if maxConns <= 0 {
		maxConns = runtime.NumCPU()
	}
	db.conn.SetMaxOpenConns(maxConns)
	db.conn.SetMaxIdleConns(2)
	db.conn.SetConnMaxLifetime(time.Hour)
	db.conn.SetConnMaxIdleTime(5 * time.Minute)
}

// Ping verifies the connection.
func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Close closes the connection pool.
func (db *DB) Close() error {
	if db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

// Conn returns the underlying pool.
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// observe records the duration and outcome of a store call.
func observe(operation string, start time.Time, err error) {
	metrics.RecordStoreOperation(operation, time.Since(start), err)
}
