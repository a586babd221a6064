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

package rediskv

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"astromine-go/internal/models"
	"astromine-go/internal/store"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Compile-time check: *Store must satisfy store.KVStore.
var _ store.KVStore = (*Store)(nil)

// revRankScript ranks a member with equal scores ordered by member
// ascending. Redis itself orders ties descending for ZREVRANK.
var revRankScript = redis.NewScript(`
local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
if not score then
	return -1
end
local above = redis.call('ZCOUNT', KEYS[1], '(' .. score, '+inf')
local ties = redis.call('ZRANGEBYSCORE', KEYS[1], score, score)
for i, member in ipairs(ties) do
	if member == ARGV[1] then
		return above + i - 1
	end
end
return -1
`)

type Store struct {
	client *redis.Client
}

func NewStore(ctx context.Context, cfg models.RedisConfig) (*Store, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	zap.L().Info("Connecting to Redis", zap.String("addr", cfg.Addr), zap.Int("db", cfg.DB))
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx := ctx
	if cfg.DialTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
		defer cancel()
	}
	if err := client.Ping(pingCtx).Err(); err != nil {
		if closeErr := client.Close(); closeErr != nil {
			zap.L().Warn("Failed to close Redis client", zap.Error(closeErr))
		}
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}

	return &Store{client: client}, nil
}

// mapErr translates go-redis replies into store sentinels.
func mapErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, redis.Nil):
		return store.ErrNotFound
	case errors.Is(err, redis.ErrClosed):
		return store.ErrClosed
	case strings.Contains(err.Error(), "WRONGTYPE"):
		return store.ErrWrongType
	case strings.Contains(err.Error(), "not an integer"):
		return store.ErrNotInteger
	default:
		return err
	}
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 0
	}
	return ttl
}

func (s *Store) Get(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, key).Result()
	return value, mapErr(err)
}

func (s *Store) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return mapErr(s.client.Set(ctx, key, value, expiration(ttl)).Err())
}

func (s *Store) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := s.client.SetNX(ctx, key, value, expiration(ttl)).Result()
	return ok, mapErr(err)
}

func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		removed, err := s.client.Del(ctx, key).Result()
		return removed > 0, mapErr(err)
	}
	ok, err := s.client.PExpire(ctx, key, ttl).Result()
	return ok, mapErr(err)
}

func (s *Store) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, mapErr(err)
	}
	// PTTL replies -2 for a missing key and -1 for a key without expiry.
	switch ttl {
	case -2:
		return 0, store.ErrNotFound
	case -1:
		return 0, nil
	}
	return ttl, nil
}

func (s *Store) Del(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	removed, err := s.client.Del(ctx, keys...).Result()
	return removed, mapErr(err)
}

func (s *Store) HGet(ctx context.Context, key, field string) (string, error) {
	value, err := s.client.HGet(ctx, key, field).Result()
	return value, mapErr(err)
}

func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	return fields, nil
}

func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	values := make([]interface{}, 0, 2*len(fields))
	for field, value := range fields {
		values = append(values, field, value)
	}
	return mapErr(s.client.HSet(ctx, key, values...).Err())
}

func (s *Store) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	value, err := s.client.HIncrBy(ctx, key, field, delta).Result()
	return value, mapErr(err)
}

func (s *Store) ZIncrBy(ctx context.Context, key, member string, delta int64) (int64, error) {
	score, err := s.client.ZIncrBy(ctx, key, float64(delta), member).Result()
	return int64(score), mapErr(err)
}

func (s *Store) ZScore(ctx context.Context, key, member string) (int64, error) {
	score, err := s.client.ZScore(ctx, key, member).Result()
	return int64(score), mapErr(err)
}

func (s *Store) ZRevRank(ctx context.Context, key, member string) (int64, error) {
	rank, err := revRankScript.Run(ctx, s.client, []string{key}, member).Int64()
	if err != nil {
		return 0, mapErr(err)
	}
	if rank < 0 {
		return 0, store.ErrNotFound
	}
	return rank, nil
}

func (s *Store) ZTop(ctx context.Context, key string, n int) ([]store.ScoredMember, error) {
	if n <= 0 {
		return []store.ScoredMember{}, nil
	}

	top, err := s.client.ZRevRangeWithScores(ctx, key, 0, int64(n-1)).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	members := make([]store.ScoredMember, 0, len(top))
	for _, z := range top {
		members = append(members, store.ScoredMember{Member: z.Member.(string), Score: int64(z.Score)})
	}
	sortMembers(members)

	if len(members) < n {
		return members, nil
	}

	// The cut may fall inside a group of equal scores. Refill that group
	// from the lexicographically smallest members.
	boundary := members[len(members)-1].Score
	above := members[:0]
	for _, m := range members {
		if m.Score > boundary {
			above = append(above, m)
		}
	}
	bound := strconv.FormatInt(boundary, 10)
	ties, err := s.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min:   bound,
		Max:   bound,
		Count: int64(n - len(above)),
	}).Result()
	if err != nil {
		return nil, mapErr(err)
	}
	for _, m := range ties {
		above = append(above, store.ScoredMember{Member: m, Score: boundary})
	}
	return above, nil
}

func (s *Store) ZCard(ctx context.Context, key string) (int64, error) {
	count, err := s.client.ZCard(ctx, key).Result()
	return count, mapErr(err)
}

func (s *Store) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", mapErr(err))
	}
	return nil
}

func (s *Store) Close() error {
	err := s.client.Close()
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

func sortMembers(members []store.ScoredMember) {
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member < members[j].Member
	})
}
