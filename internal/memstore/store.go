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

package memstore

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"astromine-go/internal/models"
	"astromine-go/internal/store"

	cache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Compile-time check: *Store must satisfy store.KVStore.
var _ store.KVStore = (*Store)(nil)

type kind int

const (
	kindString kind = iota
	kindHash
	kindZSet
)

// entry is the value held under one key. Hashes and sorted sets are
// mutated in place so the expiration recorded by the cache is preserved.
type entry struct {
	kind kind
	str  string
	hash map[string]string
	zset map[string]int64
}

// Store is an in-process KVStore. The cache owns expiry and eviction;
// mu serialises every operation so compound updates are atomic.
type Store struct {
	mu     sync.Mutex
	items  *cache.Cache
	closed bool
}

func NewStore(cfg models.MemoryConfig) *Store {
	zap.L().Info("Opening in-memory store", zap.Duration("cleanup_interval", cfg.CleanupInterval))
	return &Store{
		items: cache.New(cache.NoExpiration, cfg.CleanupInterval),
	}
}

func expiration(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return cache.NoExpiration
	}
	return ttl
}

func (s *Store) lookup(key string) (*entry, bool) {
	obj, found := s.items.Get(key)
	if !found {
		return nil, false
	}
	return obj.(*entry), true
}

func (s *Store) lookupKind(key string, k kind) (*entry, error) {
	e, found := s.lookup(key)
	if !found {
		return nil, nil
	}
	if e.kind != k {
		return nil, store.ErrWrongType
	}
	return e, nil
}

func (s *Store) lock() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return store.ErrClosed
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	e, err := s.lookupKind(key, kindString)
	if err != nil {
		return "", err
	}
	if e == nil {
		return "", store.ErrNotFound
	}
	return e.str, nil
}

func (s *Store) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	s.items.Set(key, &entry{kind: kindString, str: value}, expiration(ttl))
	return nil
}

func (s *Store) SetNX(_ context.Context, key, value string, ttl time.Duration) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	if _, found := s.lookup(key); found {
		return false, nil
	}
	s.items.Set(key, &entry{kind: kindString, str: value}, expiration(ttl))
	return true, nil
}

func (s *Store) Expire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	if err := s.lock(); err != nil {
		return false, err
	}
	defer s.mu.Unlock()

	e, found := s.lookup(key)
	if !found {
		return false, nil
	}
	if ttl <= 0 {
		s.items.Delete(key)
		return true, nil
	}
	s.items.Set(key, e, ttl)
	return true, nil
}

func (s *Store) TTL(_ context.Context, key string) (time.Duration, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	_, expiresAt, found := s.items.GetWithExpiration(key)
	if !found {
		return 0, store.ErrNotFound
	}
	if expiresAt.IsZero() {
		return 0, nil
	}
	remaining := time.Until(expiresAt)
	if remaining <= 0 {
		return 0, store.ErrNotFound
	}
	return remaining, nil
}

func (s *Store) Del(_ context.Context, keys ...string) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	var removed int64
	for _, key := range keys {
		if _, found := s.lookup(key); found {
			s.items.Delete(key)
			removed++
		}
	}
	return removed, nil
}

func (s *Store) HGet(_ context.Context, key, field string) (string, error) {
	if err := s.lock(); err != nil {
		return "", err
	}
	defer s.mu.Unlock()

	e, err := s.lookupKind(key, kindHash)
	if err != nil {
		return "", err
	}
	if e == nil {
		return "", store.ErrNotFound
	}
	value, ok := e.hash[field]
	if !ok {
		return "", store.ErrNotFound
	}
	return value, nil
}

func (s *Store) HGetAll(_ context.Context, key string) (map[string]string, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	e, err := s.lookupKind(key, kindHash)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]string)
	if e == nil {
		return fields, nil
	}
	for k, v := range e.hash {
		fields[k] = v
	}
	return fields, nil
}

func (s *Store) hashFor(key string) (*entry, error) {
	e, err := s.lookupKind(key, kindHash)
	if err != nil {
		return nil, err
	}
	if e == nil {
		e = &entry{kind: kindHash, hash: make(map[string]string)}
		s.items.Set(key, e, cache.NoExpiration)
	}
	return e, nil
}

func (s *Store) HSet(_ context.Context, key string, fields map[string]string) error {
	if err := s.lock(); err != nil {
		return err
	}
	defer s.mu.Unlock()

	e, err := s.hashFor(key)
	if err != nil {
		return err
	}
	for k, v := range fields {
		e.hash[k] = v
	}
	return nil
}

func (s *Store) HIncrBy(_ context.Context, key, field string, delta int64) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	e, err := s.hashFor(key)
	if err != nil {
		return 0, err
	}
	var current int64
	if raw, ok := e.hash[field]; ok {
		current, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return 0, store.ErrNotInteger
		}
	}
	current += delta
	e.hash[field] = strconv.FormatInt(current, 10)
	return current, nil
}

func (s *Store) zsetFor(key string) (*entry, error) {
	e, err := s.lookupKind(key, kindZSet)
	if err != nil {
		return nil, err
	}
	if e == nil {
		e = &entry{kind: kindZSet, zset: make(map[string]int64)}
		s.items.Set(key, e, cache.NoExpiration)
	}
	return e, nil
}

func (s *Store) ZIncrBy(_ context.Context, key, member string, delta int64) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	e, err := s.zsetFor(key)
	if err != nil {
		return 0, err
	}
	e.zset[member] += delta
	return e.zset[member], nil
}

func (s *Store) ZScore(_ context.Context, key, member string) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	e, err := s.lookupKind(key, kindZSet)
	if err != nil {
		return 0, err
	}
	if e == nil {
		return 0, store.ErrNotFound
	}
	score, ok := e.zset[member]
	if !ok {
		return 0, store.ErrNotFound
	}
	return score, nil
}

func (s *Store) ZRevRank(_ context.Context, key, member string) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	e, err := s.lookupKind(key, kindZSet)
	if err != nil {
		return 0, err
	}
	if e == nil {
		return 0, store.ErrNotFound
	}
	score, ok := e.zset[member]
	if !ok {
		return 0, store.ErrNotFound
	}
	var rank int64
	for m, sc := range e.zset {
		if sc > score || (sc == score && m < member) {
			rank++
		}
	}
	return rank, nil
}

func (s *Store) ZTop(_ context.Context, key string, n int) ([]store.ScoredMember, error) {
	if err := s.lock(); err != nil {
		return nil, err
	}
	defer s.mu.Unlock()

	e, err := s.lookupKind(key, kindZSet)
	if err != nil {
		return nil, err
	}
	if e == nil || n <= 0 {
		return []store.ScoredMember{}, nil
	}

	members := make([]store.ScoredMember, 0, len(e.zset))
	for m, sc := range e.zset {
		members = append(members, store.ScoredMember{Member: m, Score: sc})
	}
	sort.Slice(members, func(i, j int) bool {
		if members[i].Score != members[j].Score {
			return members[i].Score > members[j].Score
		}
		return members[i].Member < members[j].Member
	})
	if len(members) > n {
		members = members[:n]
	}
	return members, nil
}

func (s *Store) ZCard(_ context.Context, key string) (int64, error) {
	if err := s.lock(); err != nil {
		return 0, err
	}
	defer s.mu.Unlock()

	e, err := s.lookupKind(key, kindZSet)
	if err != nil {
		return 0, err
	}
	if e == nil {
		return 0, nil
	}
	return int64(len(e.zset)), nil
}

func (s *Store) Ping(_ context.Context) error {
	if err := s.lock(); err != nil {
		return err
	}
	s.mu.Unlock()
	return nil
}

// Close drops every key. Subsequent calls fail with store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.items.Flush()
	return nil
}
