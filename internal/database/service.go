/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"astromine-go/internal/models"
	"astromine-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.KVStore.
var _ store.KVStore = (*Service)(nil)

const (
	kindString = "string"
	kindHash   = "hash"
	kindZSet   = "zset"
)

type Service struct {
	db  *sql.DB
	now func() time.Time

	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", cfg.Path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database
	if cfg.Path == ":memory:" {
		cfg.MaxOpenConns = 1
	}

	// Set connection timeouts and limits
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{
		db:       db,
		now:      time.Now,
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}
	if err := service.initSchema(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	if cfg.CleanupInterval > 0 {
		go service.cleanupLoop(cfg.CleanupInterval)
	} else {
		close(service.doneChan)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// Close stops the expiry sweeper and closes the database.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.stopChan)
		<-s.doneChan
		if err = s.db.Close(); err != nil {
			zap.L().Warn("Failed to close database connection", zap.Error(err))
		}
	})
	return err
}

func (s *Service) Ping(ctx context.Context) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	return nil
}

func (s *Service) initSchema() error {
	schema := `
	-- One row per live key, holding its kind and optional expiry (unix ms)
	CREATE TABLE IF NOT EXISTS kv_keys (
		key TEXT PRIMARY KEY,
		kind TEXT NOT NULL,
		expires_at INTEGER
	);

	-- Create index for the expiry sweep
	CREATE INDEX IF NOT EXISTS idx_kv_keys_expires_at ON kv_keys(expires_at);

	CREATE TABLE IF NOT EXISTS kv_strings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS kv_hash_fields (
		key TEXT NOT NULL,
		field TEXT NOT NULL,
		value TEXT NOT NULL,
		PRIMARY KEY (key, field)
	);

	CREATE TABLE IF NOT EXISTS kv_zset_members (
		key TEXT NOT NULL,
		member TEXT NOT NULL,
		score INTEGER NOT NULL,
		PRIMARY KEY (key, member)
	);

	-- Create index for ranked reads
	CREATE INDEX IF NOT EXISTS idx_kv_zset_members_rank ON kv_zset_members(key, score DESC, member);
	`

	_, err := s.db.Exec(schema)
	return err
}

// withTx runs fn inside an immediate transaction so each store call is
// atomic with respect to every other writer.
func (s *Service) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	if s.closed.Load() {
		return store.ErrClosed
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *Service) expiresAt(ttl time.Duration) sql.NullInt64 {
	if ttl <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: s.now().Add(ttl).UnixMilli(), Valid: true}
}

// liveKind returns the kind of key, removing it first if it has expired.
func (s *Service) liveKind(ctx context.Context, tx *sql.Tx, key string) (string, sql.NullInt64, bool, error) {
	var kind string
	var expires sql.NullInt64
	err := tx.QueryRowContext(ctx, queryGetKey, key).Scan(&kind, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return "", expires, false, nil
	}
	if err != nil {
		return "", expires, false, fmt.Errorf("failed to look up key: %w", err)
	}

	if expires.Valid && expires.Int64 <= s.now().UnixMilli() {
		if err := deleteKey(ctx, tx, key); err != nil {
			return "", expires, false, err
		}
		return "", sql.NullInt64{}, false, nil
	}
	return kind, expires, true, nil
}

// ensureKind returns nil when key holds the wanted kind, creating it without
// expiry when absent.
func (s *Service) ensureKind(ctx context.Context, tx *sql.Tx, key, kind string) error {
	current, _, found, err := s.liveKind(ctx, tx, key)
	if err != nil {
		return err
	}
	if found {
		if current != kind {
			return store.ErrWrongType
		}
		return nil
	}
	if _, err := tx.ExecContext(ctx, queryInsertKey, key, kind, sql.NullInt64{}); err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}
	return nil
}

// requireKind reports whether key exists with the wanted kind.
func (s *Service) requireKind(ctx context.Context, tx *sql.Tx, key, kind string) (bool, error) {
	current, _, found, err := s.liveKind(ctx, tx, key)
	if err != nil || !found {
		return false, err
	}
	if current != kind {
		return false, store.ErrWrongType
	}
	return true, nil
}

func deleteKey(ctx context.Context, tx *sql.Tx, key string) error {
	for _, query := range []string{queryDeleteStringValue, queryDeleteHashFields, queryDeleteZSetMembers, queryDeleteKey} {
		if _, err := tx.ExecContext(ctx, query, key); err != nil {
			return fmt.Errorf("failed to delete key: %w", err)
		}
	}
	return nil
}
