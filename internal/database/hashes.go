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
	"strconv"

	"astromine-go/internal/store"
)

func (s *Service) HGet(ctx context.Context, key, field string) (string, error) {
	var value string
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		found, err := s.requireKind(ctx, tx, key, kindHash)
		if err != nil {
			return err
		}
		if !found {
			return store.ErrNotFound
		}
		err = tx.QueryRowContext(ctx, queryGetHashField, key, field).Scan(&value)
		if isNoRows(err) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to get hash field: %w", err)
		}
		return nil
	})
	return value, err
}

func (s *Service) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields := make(map[string]string)
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		found, err := s.requireKind(ctx, tx, key, kindHash)
		if err != nil || !found {
			return err
		}

		rows, err := tx.QueryContext(ctx, queryGetHashFields, key)
		if err != nil {
			return fmt.Errorf("failed to query hash fields: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var field, value string
			if err := rows.Scan(&field, &value); err != nil {
				return fmt.Errorf("failed to scan hash field: %w", err)
			}
			fields[field] = value
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return fields, nil
}

func (s *Service) HSet(ctx context.Context, key string, fields map[string]string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureKind(ctx, tx, key, kindHash); err != nil {
			return err
		}
		for field, value := range fields {
			if _, err := tx.ExecContext(ctx, queryUpsertHashField, key, field, value); err != nil {
				return fmt.Errorf("failed to set hash field: %w", err)
			}
		}
		return nil
	})
}

func (s *Service) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	var result int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureKind(ctx, tx, key, kindHash); err != nil {
			return err
		}

		var raw string
		err := tx.QueryRowContext(ctx, queryGetHashField, key, field).Scan(&raw)
		switch {
		case isNoRows(err):
		case err != nil:
			return fmt.Errorf("failed to get hash field: %w", err)
		default:
			current, parseErr := strconv.ParseInt(raw, 10, 64)
			if parseErr != nil {
				return store.ErrNotInteger
			}
			result = current
		}

		result += delta
		if _, err := tx.ExecContext(ctx, queryUpsertHashField, key, field, strconv.FormatInt(result, 10)); err != nil {
			return fmt.Errorf("failed to set hash field: %w", err)
		}
		return nil
	})
	return result, err
}
