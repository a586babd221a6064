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
	"time"

	"astromine-go/internal/store"
)

func (s *Service) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		found, err := s.requireKind(ctx, tx, key, kindString)
		if err != nil {
			return err
		}
		if !found {
			return store.ErrNotFound
		}
		if err := tx.QueryRowContext(ctx, queryGetString, key).Scan(&value); err != nil {
			return fmt.Errorf("failed to get value: %w", err)
		}
		return nil
	})
	return value, err
}

func (s *Service) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := deleteKey(ctx, tx, key); err != nil {
			return err
		}
		return s.insertString(ctx, tx, key, value, ttl)
	})
}

func (s *Service) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	var created bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		_, _, found, err := s.liveKind(ctx, tx, key)
		if err != nil || found {
			return err
		}
		if err := s.insertString(ctx, tx, key, value, ttl); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

func (s *Service) insertString(ctx context.Context, tx *sql.Tx, key, value string, ttl time.Duration) error {
	if _, err := tx.ExecContext(ctx, queryInsertKey, key, kindString, s.expiresAt(ttl)); err != nil {
		return fmt.Errorf("failed to create key: %w", err)
	}
	if _, err := tx.ExecContext(ctx, queryInsertString, key, value); err != nil {
		return fmt.Errorf("failed to insert value: %w", err)
	}
	return nil
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
