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

package mining

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"astromine-go/internal/asteroid"
	"astromine-go/internal/config"
	"astromine-go/internal/inventory"
	"astromine-go/internal/leaderboard"
	"astromine-go/internal/memstore"
	"astromine-go/internal/models"
	"astromine-go/internal/store"
	"astromine-go/internal/store/mocks"

	"github.com/golang/mock/gomock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPost = "t3_abc"

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

// commonRoller never hits the rare branch and always lands on iron.
func commonRoller() *sequenceRoller {
	return &sequenceRoller{draws: []float64{0.5, 0.1}}
}

// writeRecorder remembers every key a write was issued against.
type writeRecorder struct {
	store.KVStore
	mu     sync.Mutex
	writes []string
}

func (w *writeRecorder) record(key string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.writes = append(w.writes, key)
}

func (w *writeRecorder) HSet(ctx context.Context, key string, fields map[string]string) error {
	w.record(key)
	return w.KVStore.HSet(ctx, key, fields)
}

func (w *writeRecorder) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	w.record(key)
	return w.KVStore.HIncrBy(ctx, key, field, delta)
}

func (w *writeRecorder) Expire(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	w.record(key)
	return w.KVStore.Expire(ctx, key, ttl)
}

func (w *writeRecorder) wrote(key string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, k := range w.writes {
		if k == key {
			return true
		}
	}
	return false
}

type testEnv struct {
	miner    *Miner
	kv       store.KVStore
	registry *asteroid.Registry
	ledger   *inventory.Ledger
	board    *leaderboard.Leaderboard
}

func setupMiner(t *testing.T, kv store.KVStore, rules *models.Rules, roller models.Roller) *testEnv {
	t.Helper()
	if kv == nil {
		mem := memstore.NewStore(models.MemoryConfig{CleanupInterval: time.Minute})
		t.Cleanup(func() { mem.Close() })
		kv = mem
	}
	if rules == nil {
		rules = config.DefaultRules()
	}
	registry := asteroid.NewRegistry(kv, 4*time.Hour, roller)
	ledger := inventory.NewLedger(kv, rules)
	board := leaderboard.New(kv)
	return &testEnv{
		miner:    NewMiner(registry, ledger, board, rules, roller),
		kv:       kv,
		registry: registry,
		ledger:   ledger,
		board:    board,
	}
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

func (e *testEnv) seedAsteroid(t *testing.T, capacity, remaining int64) {
	t.Helper()
	require.NoError(t, e.registry.Persist(context.Background(), testPost, models.AsteroidRecord{
		Capacity:    capacity,
		Remaining:   remaining,
		Composition: testComposition(),
		CreatedAt:   time.Now(),
	}))
}

func (e *testEnv) seedPlayer(t *testing.T, playerId string) {
	t.Helper()
	_, err := e.ledger.EnsureDefaultEquipment(context.Background(), playerId, testPost)
	require.NoError(t, err)
}

func TestMineCommonBranchDistribution(t *testing.T) {
	ctx := context.Background()
	roller := &sequenceRoller{draws: []float64{0.5, 0.1, 0.5, 0.5, 0.5, 0.8}}
	env := setupMiner(t, nil, nil, roller)
	env.seedAsteroid(t, 10000, 10000)
	env.seedPlayer(t, "alice")

	result, err := env.miner.Mine(ctx, "alice", testPost, "shovel")
	require.NoError(t, err)

	assert.Equal(t, int64(9990), result.Remaining)
	assert.Equal(t, int64(10), result.EffectiveYield)
	assert.Equal(t, int64(10), result.Mined.Total())
	assert.Equal(t, int64(4), result.Mined[models.MineralIron])
	assert.Equal(t, int64(3), result.Mined[models.MineralNickel])
	assert.Equal(t, int64(3), result.Mined[models.MineralCarbon])
	assert.Equal(t, int64(0), result.Mined[models.MineralGold])
	assert.Equal(t, int64(0), result.Mined[models.MineralPlatinum])
	assert.Equal(t, result.Mined, result.Inventory)
	assert.Equal(t, int64(2), result.ToolsLeft)
	assert.Equal(t, int64(4*1+3*2+3*5), result.ScoreDelta)
	assert.Equal(t, result.ScoreDelta, result.Score)
	assert.NotEmpty(t, result.MiningId)

	record, err := env.registry.Load(ctx, testPost)
	require.NoError(t, err)
	assert.Equal(t, int64(9990), record.Remaining)
}

func TestMineWithoutToolsIsRejected(t *testing.T) {
	ctx := context.Background()
	env := setupMiner(t, nil, nil, commonRoller())
	env.seedAsteroid(t, 10000, 10000)
	require.NoError(t, env.kv.HSet(ctx, store.EquipmentKey("alice", testPost), map[string]string{"shovel": "0", "bomb": "1"}))

	_, err := env.miner.Mine(ctx, "alice", testPost, "shovel")
	assert.ErrorIs(t, err, models.ErrNoToolAvailable)
	assert.Equal(t, models.ErrorKindNoToolAvailable, models.ErrorKindOf(err))

	equipment, err := env.ledger.GetEquipment(ctx, "alice", testPost)
	require.NoError(t, err)
	assert.Equal(t, models.Equipment{models.ToolShovel: 0, models.ToolBomb: 1}, equipment)

	inventory, err := env.ledger.GetInventorySnapshot(ctx, "alice", testPost)
	require.NoError(t, err)
	assert.Equal(t, int64(0), inventory.Total())

	record, err := env.registry.Load(ctx, testPost)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), record.Remaining)
}

func TestMineClampsToRemaining(t *testing.T) {
	ctx := context.Background()
	env := setupMiner(t, nil, nil, commonRoller())
	env.seedAsteroid(t, 10000, 5)
	env.seedPlayer(t, "alice")

	result, err := env.miner.Mine(ctx, "alice", testPost, "bomb")
	require.NoError(t, err)

	assert.Equal(t, int64(5), result.EffectiveYield)
	assert.Equal(t, int64(5), result.Mined.Total())
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, int64(0), result.ToolsLeft)
}

func TestMineExhaustedAsteroidWritesNothing(t *testing.T) {
	ctx := context.Background()
	mem := memstore.NewStore(models.MemoryConfig{CleanupInterval: time.Minute})
	t.Cleanup(func() { mem.Close() })
	recorder := &writeRecorder{KVStore: mem}

	env := setupMiner(t, recorder, nil, commonRoller())
	env.seedAsteroid(t, 10000, 0)
	env.seedPlayer(t, "alice")
	require.NoError(t, env.ledger.CreditMinerals(ctx, "alice", testPost, models.Inventory{models.MineralIron: 7}))

	recorder.writes = nil
	result, err := env.miner.Mine(ctx, "alice", testPost, "shovel")
	require.NoError(t, err)

	assert.Equal(t, int64(0), result.Mined.Total())
	assert.Equal(t, int64(0), result.Remaining)
	assert.Equal(t, int64(7), result.Inventory[models.MineralIron])
	assert.False(t, recorder.wrote(store.AsteroidKey(testPost)), "asteroid record must not be written")
	assert.False(t, recorder.wrote(store.InventoryKey("alice", testPost)), "inventory must not be written")
}

func TestConcurrentMinersShareTheLastUnits(t *testing.T) {
	ctx := context.Background()
	env := setupMiner(t, nil, nil, commonRoller())
	env.seedAsteroid(t, 10000, 10)
	env.seedPlayer(t, "alice")
	env.seedPlayer(t, "bob")

	var wg sync.WaitGroup
	results := make([]*models.MiningResult, 2)
	for i, player := range []string{"alice", "bob"} {
		wg.Add(1)
		go func(i int, player string) {
			defer wg.Done()
			result, err := env.miner.Mine(ctx, player, testPost, "shovel")
			if assert.NoError(t, err) {
				results[i] = result
			}
		}(i, player)
	}
	wg.Wait()
	require.NotNil(t, results[0])
	require.NotNil(t, results[1])

	total := results[0].EffectiveYield + results[1].EffectiveYield
	assert.Equal(t, int64(10), total)
	assert.Equal(t, int64(10), results[0].Mined.Total()+results[1].Mined.Total())

	record, err := env.registry.Load(ctx, testPost)
	require.NoError(t, err)
	assert.Equal(t, int64(0), record.Remaining)
}

func TestMineMissingAsteroidSpendsTool(t *testing.T) {
	ctx := context.Background()
	env := setupMiner(t, nil, nil, commonRoller())
	env.seedPlayer(t, "alice")

	_, err := env.miner.Mine(ctx, "alice", testPost, "shovel")
	assert.ErrorIs(t, err, models.ErrAsteroidDepleted)

	count, err := env.ledger.GetToolCount(ctx, "alice", testPost, models.ToolShovel)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMineUnknownToolMutatesNothing(t *testing.T) {
	ctx := context.Background()
	env := setupMiner(t, nil, nil, commonRoller())
	env.seedAsteroid(t, 10000, 10000)
	env.seedPlayer(t, "alice")

	_, err := env.miner.Mine(ctx, "alice", testPost, "laser")
	assert.ErrorIs(t, err, models.ErrUnknownTool)

	equipment, err := env.ledger.GetEquipment(ctx, "alice", testPost)
	require.NoError(t, err)
	assert.Equal(t, models.Equipment{models.ToolShovel: 3, models.ToolBomb: 1}, equipment)
}

func TestMineAcceptsToolAliases(t *testing.T) {
	ctx := context.Background()
	env := setupMiner(t, nil, nil, commonRoller())
	env.seedAsteroid(t, 10000, 10000)
	env.seedPlayer(t, "alice")

	result, err := env.miner.Mine(ctx, "alice", testPost, "boom")
	require.NoError(t, err)
	assert.Equal(t, models.ToolBomb, result.Tool)
	assert.Equal(t, int64(50), result.EffectiveYield)
}

func TestMineHonoursCooldown(t *testing.T) {
	ctx := context.Background()
	rules := config.DefaultRules()
	bomb := rules.Tools[models.ToolBomb]
	bomb.Cooldown = time.Hour
	rules.Tools[models.ToolBomb] = bomb

	env := setupMiner(t, nil, rules, commonRoller())
	env.seedAsteroid(t, 10000, 10000)
	_, err := env.ledger.GrantTools(ctx, "alice", testPost, models.ToolBomb, 1)
	require.NoError(t, err)

	_, err = env.miner.Mine(ctx, "alice", testPost, "bomb")
	require.NoError(t, err)

	_, err = env.miner.Mine(ctx, "alice", testPost, "bomb")
	assert.ErrorIs(t, err, models.ErrToolCoolingDown)

	count, err := env.ledger.GetToolCount(ctx, "alice", testPost, models.ToolBomb)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "cooldown rejection must not spend the tool")
}

// racingStore spends one use of the watched tool right before the
// miner's own decrement reaches the store.
type racingStore struct {
	store.KVStore
	key  string
	tool string
	once sync.Once
}

func (r *racingStore) HIncrBy(ctx context.Context, key, field string, delta int64) (int64, error) {
	if key == r.key && field == r.tool && delta < 0 {
		var err error
		r.once.Do(func() {
			_, err = r.KVStore.HIncrBy(ctx, key, field, -1)
		})
		if err != nil {
			return 0, err
		}
	}
	return r.KVStore.HIncrBy(ctx, key, field, delta)
}

func TestLostReserveReleasesCooldown(t *testing.T) {
	ctx := context.Background()
	rules := config.DefaultRules()
	bomb := rules.Tools[models.ToolBomb]
	bomb.Cooldown = time.Hour
	rules.Tools[models.ToolBomb] = bomb

	mem := memstore.NewStore(models.MemoryConfig{CleanupInterval: time.Minute})
	t.Cleanup(func() { mem.Close() })
	kv := &racingStore{KVStore: mem, key: store.EquipmentKey("alice", testPost), tool: string(models.ToolBomb)}

	env := setupMiner(t, kv, rules, commonRoller())
	env.seedAsteroid(t, 10000, 10000)
	_, err := env.ledger.EnsureDefaultEquipment(ctx, "alice", testPost)
	require.NoError(t, err)

	_, err = env.miner.Mine(ctx, "alice", testPost, "bomb")
	assert.ErrorIs(t, err, models.ErrNoToolAvailable)

	_, err = mem.Get(ctx, store.CooldownKey("alice", testPost, string(models.ToolBomb)))
	assert.ErrorIs(t, err, store.ErrNotFound, "cooldown must be released when no tool was spent")

	// A granted bomb is usable straight away.
	_, err = env.ledger.GrantTools(ctx, "alice", testPost, models.ToolBomb, 1)
	require.NoError(t, err)
	_, err = env.miner.Mine(ctx, "alice", testPost, "bomb")
	assert.NoError(t, err)
}

func TestYieldAndScoreConservation(t *testing.T) {
	ctx := context.Background()
	env := setupMiner(t, nil, nil, models.NewRoller())
	env.seedAsteroid(t, 10000, 437)

	players := []string{"alice", "bob", "carol"}
	for _, p := range players {
		_, err := env.ledger.GrantTools(ctx, p, testPost, models.ToolShovel, 20)
		require.NoError(t, err)
		_, err = env.ledger.GrantTools(ctx, p, testPost, models.ToolBomb, 10)
		require.NoError(t, err)
	}

	remaining := int64(437)
	scores := map[string]int64{}
	mined := map[string]models.Inventory{}
	tools := []string{"shovel", "bomb"}

	for i := 0; i < 40; i++ {
		player := players[i%len(players)]
		tool := tools[i%len(tools)]
		spec, err := env.miner.rules.LookupTool(tool)
		require.NoError(t, err)

		result, err := env.miner.Mine(ctx, player, testPost, tool)
		require.NoError(t, err)

		want := min(spec.Yield, remaining)
		assert.Equal(t, want, result.EffectiveYield)
		assert.Equal(t, want, result.Mined.Total())
		assert.GreaterOrEqual(t, result.Remaining, int64(0))
		remaining -= want
		assert.Equal(t, remaining, result.Remaining)

		scores[player] += env.miner.rules.Score(result.Mined)
		if mined[player] == nil {
			mined[player] = models.Inventory{}.Clone()
		}
		for m, n := range result.Mined {
			mined[player][m] += n
		}
	}

	for _, p := range players {
		score, err := env.board.Score(ctx, testPost, p)
		require.NoError(t, err)
		assert.Equal(t, scores[p], score, "score for %s", p)

		inventory, err := env.ledger.GetInventorySnapshot(ctx, p, testPost)
		require.NoError(t, err)
		assert.Equal(t, mined[p], inventory, "inventory for %s", p)
	}
}

func asteroidFields() map[string]string {
	return map[string]string{
		"capacity":    "100",
		"remaining":   "100",
		"composition": `{"iron":"0.4","nickel":"0.3","carbon":"0.2","gold":"0.05","platinum":"0.05"}`,
		"created_at":  "2025-01-01T00:00:00Z",
	}
}

func TestStorageFaultsAreWrapped(t *testing.T) {
	ctx := context.Background()
	fault := errors.New("connection reset")
	equipmentKey := store.EquipmentKey("alice", testPost)
	asteroidKey := store.AsteroidKey(testPost)
	inventoryKey := store.InventoryKey("alice", testPost)

	tests := []struct {
		name   string
		expect func(kv *mocks.MockKVStore)
	}{
		{
			name: "validate",
			expect: func(kv *mocks.MockKVStore) {
				kv.EXPECT().HGet(gomock.Any(), equipmentKey, "shovel").Return("", fault)
			},
		},
		{
			name: "reserve",
			expect: func(kv *mocks.MockKVStore) {
				kv.EXPECT().HGet(gomock.Any(), equipmentKey, "shovel").Return("3", nil).Times(2)
				kv.EXPECT().HIncrBy(gomock.Any(), equipmentKey, "shovel", int64(-1)).Return(int64(0), fault)
			},
		},
		{
			name: "load",
			expect: func(kv *mocks.MockKVStore) {
				kv.EXPECT().HGet(gomock.Any(), equipmentKey, "shovel").Return("3", nil).Times(2)
				kv.EXPECT().HIncrBy(gomock.Any(), equipmentKey, "shovel", int64(-1)).Return(int64(2), nil)
				kv.EXPECT().HGetAll(gomock.Any(), asteroidKey).Return(nil, fault)
			},
		},
		{
			name: "extract",
			expect: func(kv *mocks.MockKVStore) {
				kv.EXPECT().HGet(gomock.Any(), equipmentKey, "shovel").Return("3", nil).Times(2)
				kv.EXPECT().HIncrBy(gomock.Any(), equipmentKey, "shovel", int64(-1)).Return(int64(2), nil)
				kv.EXPECT().HGetAll(gomock.Any(), asteroidKey).Return(asteroidFields(), nil)
				kv.EXPECT().HIncrBy(gomock.Any(), asteroidKey, "remaining", int64(-10)).Return(int64(0), fault)
			},
		},
		{
			name: "credit",
			expect: func(kv *mocks.MockKVStore) {
				kv.EXPECT().HGet(gomock.Any(), equipmentKey, "shovel").Return("3", nil).Times(2)
				kv.EXPECT().HIncrBy(gomock.Any(), equipmentKey, "shovel", int64(-1)).Return(int64(2), nil)
				kv.EXPECT().HGetAll(gomock.Any(), asteroidKey).Return(asteroidFields(), nil)
				kv.EXPECT().HIncrBy(gomock.Any(), asteroidKey, "remaining", int64(-10)).Return(int64(90), nil)
				kv.EXPECT().HIncrBy(gomock.Any(), inventoryKey, "iron", int64(10)).Return(int64(0), fault)
			},
		},
		{
			name: "score",
			expect: func(kv *mocks.MockKVStore) {
				kv.EXPECT().HGet(gomock.Any(), equipmentKey, "shovel").Return("3", nil).Times(2)
				kv.EXPECT().HIncrBy(gomock.Any(), equipmentKey, "shovel", int64(-1)).Return(int64(2), nil)
				kv.EXPECT().HGetAll(gomock.Any(), asteroidKey).Return(asteroidFields(), nil)
				kv.EXPECT().HIncrBy(gomock.Any(), asteroidKey, "remaining", int64(-10)).Return(int64(90), nil)
				kv.EXPECT().HIncrBy(gomock.Any(), inventoryKey, "iron", int64(10)).Return(int64(10), nil)
				kv.EXPECT().ZIncrBy(gomock.Any(), store.LeaderboardKey(testPost), "alice", int64(10)).Return(int64(0), fault)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			defer ctrl.Finish()

			kv := mocks.NewMockKVStore(ctrl)
			tt.expect(kv)
			env := setupMiner(t, kv, nil, commonRoller())

			_, err := env.miner.Mine(ctx, "alice", testPost, "shovel")
			require.Error(t, err)
			assert.ErrorIs(t, err, models.ErrStorageUnavailable)
			assert.ErrorIs(t, err, fault)
			assert.Contains(t, err.Error(), tt.name)
			assert.Equal(t, models.ErrorKindStorageUnavailable, models.ErrorKindOf(err))
		})
	}
}
