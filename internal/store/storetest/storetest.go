// Package storetest holds the behavioural contract every store.KVStore
// backend is tested against.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"astromine-go/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns a fresh, empty store and a function that moves the
// store's notion of time forward by at least d.
type Factory func(t *testing.T) (store.KVStore, func(d time.Duration))

// Run executes the full contract suite against the backend built by newStore.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.KVStore, advance func(time.Duration))
	}{
		{"Strings", testStrings},
		{"SetNX", testSetNX},
		{"Expiry", testExpiry},
		{"Del", testDel},
		{"Hashes", testHashes},
		{"HIncrBy", testHIncrBy},
		{"HashKeepsTTL", testHashKeepsTTL},
		{"WrongType", testWrongType},
		{"SortedSets", testSortedSets},
		{"SortedSetTies", testSortedSetTies},
		{"ConcurrentIncrements", testConcurrentIncrements},
		{"Ping", testPing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, advance := newStore(t)
			tt.fn(t, s, advance)
		})
	}
}

func testStrings(t *testing.T, s store.KVStore, _ func(time.Duration)) {
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.Set(ctx, "greeting", "hello", 0))
	got, err := s.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hello", got)

	require.NoError(t, s.Set(ctx, "greeting", "bonjour", 0))
	got, err = s.Get(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, "bonjour", got)

	ttl, err := s.TTL(ctx, "greeting")
	require.NoError(t, err)
	assert.Equal(t, time.Duration(0), ttl)
}

func testSetNX(t *testing.T, s store.KVStore, _ func(time.Duration)) {
	ctx := context.Background()

	ok, err := s.SetNX(ctx, "flag", "1", 0)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SetNX(ctx, "flag", "2", 0)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Get(ctx, "flag")
	require.NoError(t, err)
	assert.Equal(t, "1", got)
}

func testExpiry(t *testing.T, s store.KVStore, advance func(time.Duration)) {
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "short", "v", 50*time.Millisecond))
	_, err := s.HIncrBy(ctx, "hash", "n", 1)
	require.NoError(t, err)
	ok, err := s.Expire(ctx, "hash", 50*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Expire(ctx, "missing", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	ttl, err := s.TTL(ctx, "short")
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= 50*time.Millisecond, "ttl %v", ttl)

	advance(120 * time.Millisecond)

	_, err = s.Get(ctx, "short")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.TTL(ctx, "short")
	assert.ErrorIs(t, err, store.ErrNotFound)

	fields, err := s.HGetAll(ctx, "hash")
	require.NoError(t, err)
	assert.Empty(t, fields)

	ok, err = s.SetNX(ctx, "short", "again", 0)
	require.NoError(t, err)
	assert.True(t, ok, "expired key should be free for SetNX")
}

func testDel(t *testing.T, s store.KVStore, _ func(time.Duration)) {
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "a", "1", 0))
	require.NoError(t, s.HSet(ctx, "b", map[string]string{"f": "v"}))
	_, err := s.ZIncrBy(ctx, "c", "m", 1)
	require.NoError(t, err)

	n, err := s.Del(ctx, "a", "b", "c", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = s.Get(ctx, "a")
	assert.ErrorIs(t, err, store.ErrNotFound)
	card, err := s.ZCard(ctx, "c")
	require.NoError(t, err)
	assert.Equal(t, int64(0), card)
}

func testHashes(t *testing.T, s store.KVStore, _ func(time.Duration)) {
	ctx := context.Background()

	fields, err := s.HGetAll(ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, fields)
	assert.Empty(t, fields)

	_, err = s.HGet(ctx, "missing", "f")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"a": "1", "b": "two"}))
	require.NoError(t, s.HSet(ctx, "h", map[string]string{"b": "2"}))

	got, err := s.HGet(ctx, "h", "b")
	require.NoError(t, err)
	assert.Equal(t, "2", got)

	_, err = s.HGet(ctx, "h", "c")
	assert.ErrorIs(t, err, store.ErrNotFound)

	fields, err = s.HGetAll(ctx, "h")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, fields)
}

func testHIncrBy(t *testing.T, s store.KVStore, _ func(time.Duration)) {
	ctx := context.Background()

	n, err := s.HIncrBy(ctx, "counter", "x", 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	n, err = s.HIncrBy(ctx, "counter", "x", -7)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), n)

	require.NoError(t, s.HSet(ctx, "counter", map[string]string{"label": "abc"}))
	_, err = s.HIncrBy(ctx, "counter", "label", 1)
	assert.ErrorIs(t, err, store.ErrNotInteger)

	got, err := s.HGet(ctx, "counter", "x")
	require.NoError(t, err)
	assert.Equal(t, "-2", got)
}

func testHashKeepsTTL(t *testing.T, s store.KVStore, _ func(time.Duration)) {
	ctx := context.Background()

	require.NoError(t, s.HSet(ctx, "h", map[string]string{"remaining": "10"}))
	ok, err := s.Expire(ctx, "h", time.Hour)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = s.HIncrBy(ctx, "h", "remaining", -3)
	require.NoError(t, err)
	require.NoError(t, s.HSet(ctx, "h", map[string]string{"other": "x"}))

	ttl, err := s.TTL(ctx, "h")
	require.NoError(t, err)
	assert.True(t, ttl > 59*time.Minute, "ttl %v", ttl)
}

func testWrongType(t *testing.T, s store.KVStore, _ func(time.Duration)) {
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "str", "v", 0))
	_, err := s.HGetAll(ctx, "str")
	assert.ErrorIs(t, err, store.ErrWrongType)
	_, err = s.HIncrBy(ctx, "str", "f", 1)
	assert.ErrorIs(t, err, store.ErrWrongType)
	_, err = s.ZIncrBy(ctx, "str", "m", 1)
	assert.ErrorIs(t, err, store.ErrWrongType)

	require.NoError(t, s.HSet(ctx, "hash", map[string]string{"f": "v"}))
	_, err = s.Get(ctx, "hash")
	assert.ErrorIs(t, err, store.ErrWrongType)
}

func testSortedSets(t *testing.T, s store.KVStore, _ func(time.Duration)) {
	ctx := context.Background()

	top, err := s.ZTop(ctx, "lb", 10)
	require.NoError(t, err)
	assert.Empty(t, top)

	_, err = s.ZScore(ctx, "lb", "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.ZRevRank(ctx, "lb", "nobody")
	assert.ErrorIs(t, err, store.ErrNotFound)

	for member, delta := range map[string]int64{"alice": 30, "bob": 50, "carol": 10} {
		_, err := s.ZIncrBy(ctx, "lb", member, delta)
		require.NoError(t, err)
	}
	score, err := s.ZIncrBy(ctx, "lb", "carol", 45)
	require.NoError(t, err)
	assert.Equal(t, int64(55), score)

	top, err = s.ZTop(ctx, "lb", 2)
	require.NoError(t, err)
	assert.Equal(t, []store.ScoredMember{{Member: "carol", Score: 55}, {Member: "bob", Score: 50}}, top)

	rank, err := s.ZRevRank(ctx, "lb", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rank)

	score, err = s.ZScore(ctx, "lb", "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(50), score)

	card, err := s.ZCard(ctx, "lb")
	require.NoError(t, err)
	assert.Equal(t, int64(3), card)

	top, err = s.ZTop(ctx, "lb", 0)
	require.NoError(t, err)
	assert.Empty(t, top)
}

func testSortedSetTies(t *testing.T, s store.KVStore, _ func(time.Duration)) {
	ctx := context.Background()

	for _, member := range []string{"dave", "bob", "erin", "alice"} {
		_, err := s.ZIncrBy(ctx, "lb", member, 20)
		require.NoError(t, err)
	}
	_, err := s.ZIncrBy(ctx, "lb", "zed", 99)
	require.NoError(t, err)

	top, err := s.ZTop(ctx, "lb", 3)
	require.NoError(t, err)
	assert.Equal(t, []store.ScoredMember{
		{Member: "zed", Score: 99},
		{Member: "alice", Score: 20},
		{Member: "bob", Score: 20},
	}, top)

	rank, err := s.ZRevRank(ctx, "lb", "erin")
	require.NoError(t, err)
	assert.Equal(t, int64(4), rank)
	rank, err = s.ZRevRank(ctx, "lb", "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rank)
}

func testConcurrentIncrements(t *testing.T, s store.KVStore, _ func(time.Duration)) {
	ctx := context.Background()
	const workers = 25

	var wg sync.WaitGroup
	errs := make(chan error, workers*2)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.HIncrBy(ctx, "h", "n", 1); err != nil {
				errs <- err
			}
			if _, err := s.ZIncrBy(ctx, "z", fmt.Sprintf("p%d", i%5), 2); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent increment failed: %v", err)
	}

	got, err := s.HGet(ctx, "h", "n")
	require.NoError(t, err)
	assert.Equal(t, fmt.Sprint(workers), got)

	score, err := s.ZScore(ctx, "z", "p0")
	require.NoError(t, err)
	assert.Equal(t, int64(10), score)
}

func testPing(t *testing.T, s store.KVStore, _ func(time.Duration)) {
	assert.NoError(t, s.Ping(context.Background()))
}
