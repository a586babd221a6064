package store

//go:generate mockgen -destination=mocks/mock_kvstore.go -package=mocks astromine-go/internal/store KVStore

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound   = errors.New("key not found")
	ErrWrongType  = errors.New("operation against a key holding the wrong kind of value")
	ErrNotInteger = errors.New("hash value is not an integer")
	ErrClosed     = errors.New("store closed")
)

// ScoredMember is one member of a sorted set with its score.
type ScoredMember struct {
	Member string
	Score  int64
}

// KVStore defines the contract that every backend (memory, SQLite, Redis) must satisfy.
//
// Each call is atomic with respect to the key it touches. There are no
// multi-key transactions. A ttl of zero means the key never expires.
type KVStore interface {
	// --- Strings ---
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)

	// --- Keys ---
	Expire(ctx context.Context, key string, ttl time.Duration) (bool, error)
	TTL(ctx context.Context, key string) (time.Duration, error)
	Del(ctx context.Context, keys ...string) (int64, error)

	// --- Hashes ---
	HGet(ctx context.Context, key, field string) (string, error)
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string) error
	HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error)

	// --- Sorted sets ---
	ZIncrBy(ctx context.Context, key, member string, delta int64) (int64, error)
	ZScore(ctx context.Context, key, member string) (int64, error)
	// ZRevRank is 0-based with equal scores ordered by member ascending.
	ZRevRank(ctx context.Context, key, member string) (int64, error)
	// ZTop returns up to n members by score descending, then member ascending.
	ZTop(ctx context.Context, key string, n int) ([]ScoredMember, error)
	ZCard(ctx context.Context, key string) (int64, error)

	// --- Lifecycle ---
	Ping(ctx context.Context) error
	Close() error
}
