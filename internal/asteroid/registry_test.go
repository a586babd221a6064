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

package asteroid

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"astromine-go/internal/memstore"
	"astromine-go/internal/models"
	"astromine-go/internal/store"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sequenceRoller replays fixed draws, cycling when exhausted.
type sequenceRoller struct {
	mu    sync.Mutex
	draws []float64
	next  int
}

func (s *sequenceRoller) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.draws[s.next%len(s.draws)]
	s.next++
	return v
}

func setupRegistry(t *testing.T, roller models.Roller) (*Registry, store.KVStore) {
	t.Helper()
	kv := memstore.NewStore(models.MemoryConfig{CleanupInterval: time.Minute})
	t.Cleanup(func() { kv.Close() })
	return NewRegistry(kv, 4*time.Hour, roller), kv
}

func testComposition() models.Composition {
	return models.Composition{
		models.MineralIron:     decimal.RequireFromString("0.4"),
		models.MineralNickel:   decimal.RequireFromString("0.3"),
		models.MineralCarbon:   decimal.RequireFromString("0.2"),
		models.MineralGold:     decimal.RequireFromString("0.05"),
		models.MineralPlatinum: decimal.RequireFromString("0.05"),
	}
}

func TestGenerateProducesNormalizedComposition(t *testing.T) {
	registry, _ := setupRegistry(t, nil)

	for i := 0; i < 500; i++ {
		record := registry.Generate()

		assert.GreaterOrEqual(t, record.Capacity, int64(MinCapacity))
		assert.Less(t, record.Capacity, int64(MinCapacity+CapacitySpan))
		assert.Equal(t, record.Capacity, record.Remaining)

		sum := record.Composition.Sum()
		assert.True(t, sum.Sub(decimal.NewFromInt(1)).Abs().LessThanOrEqual(sumTolerance), "sum %s", sum)
		for _, m := range models.AllMinerals {
			f := record.Composition[m]
			assert.False(t, f.IsNegative(), "%s negative", m)
			assert.True(t, f.Equal(f.Round(FractionScale)), "%s not rounded: %s", m, f)
		}
	}
}

func TestGenerateBounds(t *testing.T) {
	low, _ := setupRegistry(t, &sequenceRoller{draws: []float64{0}})
	assert.Equal(t, int64(MinCapacity), low.Generate().Capacity)

	high, _ := setupRegistry(t, &sequenceRoller{draws: []float64{0.99999999}})
	assert.Equal(t, int64(MinCapacity+CapacitySpan-1), high.Generate().Capacity)
}

func TestCreateAndLoad(t *testing.T) {
	ctx := context.Background()
	registry, _ := setupRegistry(t, nil)

	created, err := registry.Create(ctx, "t3_abc")
	require.NoError(t, err)

	loaded, err := registry.Load(ctx, "t3_abc")
	require.NoError(t, err)
	assert.Equal(t, created.Capacity, loaded.Capacity)
	assert.Equal(t, created.Remaining, loaded.Remaining)
	for _, m := range models.AllMinerals {
		assert.True(t, created.Composition[m].Equal(loaded.Composition[m]), "%s differs", m)
	}

	ttl, err := registry.TTL(ctx, "t3_abc")
	require.NoError(t, err)
	assert.Greater(t, ttl, 3*time.Hour)
}

func TestLoadMissingIsDepleted(t *testing.T) {
	registry, _ := setupRegistry(t, nil)

	_, err := registry.Load(context.Background(), "t3_nothing")
	assert.ErrorIs(t, err, models.ErrAsteroidDepleted)

	_, err = registry.TTL(context.Background(), "t3_nothing")
	assert.ErrorIs(t, err, models.ErrAsteroidDepleted)
}

func TestLoadMalformedIsDepleted(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name   string
		fields map[string]string
	}{
		{"counter only", map[string]string{fieldRemaining: "0"}},
		{"bad capacity", map[string]string{fieldCapacity: "lots", fieldRemaining: "5", fieldComposition: `{}`}},
		{"bad composition", map[string]string{fieldCapacity: "100", fieldRemaining: "5", fieldComposition: `not json`}},
		{"missing mineral", map[string]string{fieldCapacity: "100", fieldRemaining: "5", fieldComposition: `{"iron":"1"}`}},
		{"bad sum", map[string]string{fieldCapacity: "100", fieldRemaining: "5",
			fieldComposition: `{"iron":"0.5","nickel":"0.3","carbon":"0.1","gold":"0.01","platinum":"0.01"}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			registry, kv := setupRegistry(t, nil)
			require.NoError(t, kv.HSet(ctx, store.AsteroidKey("t3_bad"), tt.fields))

			_, err := registry.Load(ctx, "t3_bad")
			assert.ErrorIs(t, err, models.ErrAsteroidDepleted)
		})
	}
}

func TestApplyExtraction(t *testing.T) {
	record := models.AsteroidRecord{Capacity: 100, Remaining: 30, Composition: testComposition()}

	assert.Equal(t, int64(20), ApplyExtraction(record, 10).Remaining)
	assert.Equal(t, int64(0), ApplyExtraction(record, 50).Remaining)
	assert.Equal(t, int64(30), ApplyExtraction(record, -5).Remaining)
	assert.Equal(t, int64(30), record.Remaining, "input must not change")

	assert.Equal(t, int64(10), EffectiveYield(record, 10))
	assert.Equal(t, int64(30), EffectiveYield(record, 50))
}

func TestExtractClampsAtZero(t *testing.T) {
	ctx := context.Background()
	registry, _ := setupRegistry(t, nil)

	require.NoError(t, registry.Persist(ctx, "t3_abc", models.AsteroidRecord{
		Capacity: 100, Remaining: 5, Composition: testComposition(), CreatedAt: time.Now(),
	}))

	taken, remaining, err := registry.Extract(ctx, "t3_abc", 50)
	require.NoError(t, err)
	assert.Equal(t, int64(5), taken)
	assert.Equal(t, int64(0), remaining)

	taken, remaining, err = registry.Extract(ctx, "t3_abc", 10)
	require.NoError(t, err)
	assert.Equal(t, int64(0), taken)
	assert.Equal(t, int64(0), remaining)

	loaded, err := registry.Load(ctx, "t3_abc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), loaded.Remaining)
}

func TestExtractAfterExpiryLeavesNoCounter(t *testing.T) {
	ctx := context.Background()
	registry, kv := setupRegistry(t, nil)

	taken, _, err := registry.Extract(ctx, "t3_gone", 10)
	assert.ErrorIs(t, err, models.ErrAsteroidDepleted)
	assert.Equal(t, int64(0), taken)

	fields, err := kv.HGetAll(ctx, store.AsteroidKey("t3_gone"))
	require.NoError(t, err)
	assert.Empty(t, fields)
}

func TestConcurrentExtractionsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	registry, _ := setupRegistry(t, nil)

	const start = 95
	require.NoError(t, registry.Persist(ctx, "t3_abc", models.AsteroidRecord{
		Capacity: 100, Remaining: start, Composition: testComposition(), CreatedAt: time.Now(),
	}))

	var total atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			taken, _, err := registry.Extract(ctx, "t3_abc", 10)
			if assert.NoError(t, err) {
				total.Add(taken)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(start), total.Load())
	loaded, err := registry.Load(ctx, "t3_abc")
	require.NoError(t, err)
	assert.Equal(t, int64(0), loaded.Remaining)
}
