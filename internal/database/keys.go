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
	"fmt"
	"time"

	"astromine-go/internal/store"

	"go.uber.org/zap"
)

func (s *Service) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	var applied bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, _, found, err := s.liveKind(ctx, tx, key)
		if err != nil || !found {
			return err
		}
		applied = true
		if ttl <= 0 {
			return deleteKey(ctx, tx, key)
		}
		if _, err := tx.ExecContext(ctx, queryUpdateKeyExpiry, s.expiresAt(ttl), key); err != nil {
			return fmt.Errorf("failed to update expiry: %w", err)
		}
		return nil
	})
	return applied, err
}

func (s *Service) TTL(ctx context.Context, key string) (time.Duration, error) {
	var remaining time.Duration
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, expires, found, err := s.liveKind(ctx, tx, key)
		if err != nil {
			return err
		}
		if !found {
			return store.ErrNotFound
		}
		if expires.Valid {
			remaining = time.Duration(expires.Int64-s.now().UnixMilli()) * time.Millisecond
		}
		return nil
	})
	return remaining, err
}

func (s *Service) Del(ctx context.Context, keys ...string) (int64, error) {
	var removed int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, key := range keys {
			_, _, found, err := s.liveKind(ctx, tx, key)
			if err != nil {
				return err
			}
			if !found {
				continue
			}
			if err := deleteKey(ctx, tx, key); err != nil {
				return err
			}
			removed++
		}
		return nil
	})
	return removed, err
}

// PurgeExpired removes every key whose expiry has passed and returns how
// many were removed. Reads already skip expired keys, so this only
// reclaims space.
func (s *Service) PurgeExpired(ctx context.Context) (int64, error) {
	var purged int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, queryGetExpiredKeys, s.now().UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to query expired keys: %w", err)
		}
		var keys []string
		for rows.Next() {
			var key string
			if err := rows.Scan(&key); err != nil {
				rows.Close()
				return fmt.Errorf("failed to scan expired key: %w", err)
			}
			keys = append(keys, key)
		}
		if err := rows.Close(); err != nil {
			return fmt.Errorf("failed to read expired keys: %w", err)
		}

		for _, key := range keys {
			if err := deleteKey(ctx, tx, key); err != nil {
				return err
			}
		}
		purged = int64(len(keys))
		return nil
	})
	return purged, err
}

func (s *Service) cleanupLoop(interval time.Duration) {
	defer close(s.doneChan)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			purged, err := s.PurgeExpired(ctx)
			cancel()
			if err != nil {
				zap.L().Warn("Failed to purge expired keys", zap.Error(err))
				continue
			}
			if purged > 0 {
				zap.L().Debug("Purged expired keys", zap.Int64("count", purged))
			}
		}
	}
}
