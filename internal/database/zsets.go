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

	"astromine-go/internal/store"
)

func (s *Service) ZIncrBy(ctx context.Context, key, member string, delta int64) (int64, error) {
	var score int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := s.ensureKind(ctx, tx, key, kindZSet); err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, queryIncrementZSetMember, key, member, delta).Scan(&score); err != nil {
			return fmt.Errorf("failed to increment member: %w", err)
		}
		return nil
	})
	return score, err
}

func (s *Service) ZScore(ctx context.Context, key, member string) (int64, error) {
	var score int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		score, err = s.memberScore(ctx, tx, key, member)
		return err
	})
	return score, err
}

func (s *Service) ZRevRank(ctx context.Context, key, member string) (int64, error) {
	var rank int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		score, err := s.memberScore(ctx, tx, key, member)
		if err != nil {
			return err
		}
		if err := tx.QueryRowContext(ctx, queryCountZSetAbove, key, score, score, member).Scan(&rank); err != nil {
			return fmt.Errorf("failed to rank member: %w", err)
		}
		return nil
	})
	return rank, err
}

func (s *Service) ZTop(ctx context.Context, key string, n int) ([]store.ScoredMember, error) {
	members := []store.ScoredMember{}
	if n <= 0 {
		return members, nil
	}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		found, err := s.requireKind(ctx, tx, key, kindZSet)
		if err != nil || !found {
			return err
		}

		rows, err := tx.QueryContext(ctx, queryGetZSetTop, key, n)
		if err != nil {
			return fmt.Errorf("failed to query top members: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			var m store.ScoredMember
			if err := rows.Scan(&m.Member, &m.Score); err != nil {
				return fmt.Errorf("failed to scan member: %w", err)
			}
			members = append(members, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return members, nil
}

func (s *Service) ZCard(ctx context.Context, key string) (int64, error) {
	var count int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		found, err := s.requireKind(ctx, tx, key, kindZSet)
		if err != nil || !found {
			return err
		}
		if err := tx.QueryRowContext(ctx, queryCountZSetMembers, key).Scan(&count); err != nil {
			return fmt.Errorf("failed to count members: %w", err)
		}
		return nil
	})
	return count, err
}

func (s *Service) memberScore(ctx context.Context, tx *sql.Tx, key, member string) (int64, error) {
	found, err := s.requireKind(ctx, tx, key, kindZSet)
	if err != nil {
		return 0, err
	}
	if !found {
		return 0, store.ErrNotFound
	}
	var score int64
	err = tx.QueryRowContext(ctx, queryGetZSetScore, key, member).Scan(&score)
	if isNoRows(err) {
		return 0, store.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get member score: %w", err)
	}
	return score, nil
}
