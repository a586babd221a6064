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
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"astromine-go/internal/models"
	"astromine-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	MinCapacity   = 5000
	CapacitySpan  = 10000
	FractionScale = 4

	fieldCapacity    = "capacity"
	fieldRemaining   = "remaining"
	fieldComposition = "composition"
	fieldCreatedAt   = "created_at"
)

// sumTolerance is how far a stored composition may drift from 1.
var sumTolerance = decimal.New(1, -3)

type fractionRange struct {
	low, high float64
}

var compositionRanges = map[models.Mineral]fractionRange{
	models.MineralIron:     {0.35, 0.50},
	models.MineralNickel:   {0.25, 0.35},
	models.MineralCarbon:   {0.10, 0.15},
	models.MineralGold:     {0.005, 0.05},
	models.MineralPlatinum: {0.005, 0.05},
}

type Registry struct {
	store  store.KVStore
	ttl    time.Duration
	roller models.Roller
	now    func() time.Time
}

func NewRegistry(kv store.KVStore, ttl time.Duration, roller models.Roller) *Registry {
	if roller == nil {
		roller = models.NewRoller()
	}
	return &Registry{
		store:  kv,
		ttl:    ttl,
		roller: roller,
		now:    time.Now,
	}
}

// Generate draws a fresh asteroid. It touches no storage.
func (r *Registry) Generate() models.AsteroidRecord {
	capacity := int64(MinCapacity + r.roller.Float64()*CapacitySpan)
	if capacity >= MinCapacity+CapacitySpan {
		capacity = MinCapacity + CapacitySpan - 1
	}

	return models.AsteroidRecord{
		Capacity:    capacity,
		Remaining:   capacity,
		Composition: r.generateComposition(),
		CreatedAt:   r.now().UTC(),
	}
}

func (r *Registry) generateComposition() models.Composition {
	raw := make(models.Composition, len(models.AllMinerals))
	sum := decimal.Zero
	for _, m := range models.AllMinerals {
		rng := compositionRanges[m]
		v := decimal.NewFromFloat(rng.low + r.roller.Float64()*(rng.high-rng.low))
		raw[m] = v
		sum = sum.Add(v)
	}

	// Normalize, then fold the rounding residue into iron so the stored
	// fractions total exactly 1.
	normalized := make(models.Composition, len(raw))
	rest := decimal.Zero
	for _, m := range models.AllMinerals[1:] {
		normalized[m] = raw[m].DivRound(sum, FractionScale)
		rest = rest.Add(normalized[m])
	}
	normalized[models.MineralIron] = decimal.NewFromInt(1).Sub(rest)
	return normalized
}

// Create generates an asteroid for postId and persists it.
func (r *Registry) Create(ctx context.Context, postId string) (*models.AsteroidRecord, error) {
	record := r.Generate()
	record.PostId = postId
	if err := r.Persist(ctx, postId, record); err != nil {
		return nil, err
	}

	zap.L().Info("Asteroid created",
		zap.String("post_id", postId),
		zap.Int64("capacity", record.Capacity))
	return &record, nil
}

// Persist writes the whole record and refreshes its expiry.
func (r *Registry) Persist(ctx context.Context, postId string, record models.AsteroidRecord) error {
	composition, err := json.Marshal(record.Composition)
	if err != nil {
		return fmt.Errorf("failed to encode composition: %w", err)
	}

	key := store.AsteroidKey(postId)
	fields := map[string]string{
		fieldCapacity:    strconv.FormatInt(record.Capacity, 10),
		fieldRemaining:   strconv.FormatInt(record.Remaining, 10),
		fieldComposition: string(composition),
		fieldCreatedAt:   record.CreatedAt.UTC().Format(time.RFC3339),
	}
	if err := r.store.HSet(ctx, key, fields); err != nil {
		return fmt.Errorf("failed to persist asteroid: %w", err)
	}
	if r.ttl > 0 {
		if _, err := r.store.Expire(ctx, key, r.ttl); err != nil {
			return fmt.Errorf("failed to set asteroid expiry: %w", err)
		}
	}
	return nil
}

// Load returns the stored asteroid for postId. A missing or malformed
// record is reported as models.ErrAsteroidDepleted.
func (r *Registry) Load(ctx context.Context, postId string) (*models.AsteroidRecord, error) {
	fields, err := r.store.HGetAll(ctx, store.AsteroidKey(postId))
	if err != nil {
		return nil, fmt.Errorf("failed to read asteroid: %w", err)
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no asteroid for post %s", models.ErrAsteroidDepleted, postId)
	}

	record, err := decodeRecord(postId, fields)
	if err != nil {
		zap.L().Warn("Malformed asteroid record",
			zap.String("post_id", postId),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %v", models.ErrAsteroidDepleted, err)
	}

	zap.L().Debug("Asteroid loaded",
		zap.String("post_id", postId),
		zap.Int64("remaining", record.Remaining))
	return record, nil
}

func decodeRecord(postId string, fields map[string]string) (*models.AsteroidRecord, error) {
	capacity, err := strconv.ParseInt(fields[fieldCapacity], 10, 64)
	if err != nil || capacity <= 0 {
		return nil, fmt.Errorf("invalid capacity %q", fields[fieldCapacity])
	}
	remaining, err := strconv.ParseInt(fields[fieldRemaining], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid remaining %q", fields[fieldRemaining])
	}

	var composition models.Composition
	if err := json.Unmarshal([]byte(fields[fieldComposition]), &composition); err != nil {
		return nil, fmt.Errorf("invalid composition: %w", err)
	}
	for _, m := range models.AllMinerals {
		f, ok := composition[m]
		if !ok || f.IsNegative() || f.GreaterThan(decimal.NewFromInt(1)) {
			return nil, fmt.Errorf("invalid fraction for %s", m)
		}
	}
	if composition.Sum().Sub(decimal.NewFromInt(1)).Abs().GreaterThan(sumTolerance) {
		return nil, fmt.Errorf("composition sums to %s", composition.Sum())
	}

	var createdAt time.Time
	if raw, ok := fields[fieldCreatedAt]; ok {
		createdAt, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return nil, fmt.Errorf("invalid created_at %q", raw)
		}
	}

	// An in-flight extraction may briefly hold the counter below zero.
	remaining = clamp(remaining, 0, capacity)

	return &models.AsteroidRecord{
		PostId:      postId,
		Capacity:    capacity,
		Remaining:   remaining,
		Composition: composition,
		CreatedAt:   createdAt,
	}, nil
}

// ApplyExtraction returns record with amount removed, floored at zero.
func ApplyExtraction(record models.AsteroidRecord, amount int64) models.AsteroidRecord {
	if amount < 0 {
		amount = 0
	}
	record.Remaining = clamp(record.Remaining-amount, 0, record.Capacity)
	return record
}

// EffectiveYield is how much a tool with toolYield can take from record.
func EffectiveYield(record models.AsteroidRecord, toolYield int64) int64 {
	return clamp(toolYield, 0, record.Remaining)
}

// Extract atomically removes up to amount from the asteroid's remaining
// counter and returns how much was taken and what is left. Concurrent
// callers never take more than was available in total.
func (r *Registry) Extract(ctx context.Context, postId string, amount int64) (taken int64, remaining int64, err error) {
	if amount <= 0 {
		return 0, 0, fmt.Errorf("extraction amount must be positive, got %d", amount)
	}

	key := store.AsteroidKey(postId)
	after, err := r.store.HIncrBy(ctx, key, fieldRemaining, -amount)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to decrement asteroid: %w", err)
	}

	taken = clamp(after+amount, 0, amount)
	remaining = max(after, 0)
	if taken == amount {
		return taken, remaining, nil
	}

	// Return what could not be taken so the counter settles at zero.
	surplus := amount - taken
	restored, err := r.store.HIncrBy(ctx, key, fieldRemaining, surplus)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to restore asteroid surplus: %w", err)
	}
	remaining = max(restored, 0)

	if taken == 0 {
		// The key may have expired between load and decrement, leaving a
		// counter-only hash behind.
		if _, err := r.store.HGet(ctx, key, fieldCapacity); errors.Is(err, store.ErrNotFound) {
			if _, err := r.store.Del(ctx, key); err != nil {
				zap.L().Warn("Failed to remove orphaned asteroid counter", zap.String("post_id", postId), zap.Error(err))
			}
			return 0, 0, fmt.Errorf("%w: asteroid for post %s expired", models.ErrAsteroidDepleted, postId)
		}
	}

	zap.L().Warn("Extraction clamped by concurrent miners",
		zap.String("post_id", postId),
		zap.Int64("requested", amount),
		zap.Int64("taken", taken))
	return taken, remaining, nil
}

// TTL reports how long the asteroid for postId has left before eviction.
// Zero means it never expires.
func (r *Registry) TTL(ctx context.Context, postId string) (time.Duration, error) {
	ttl, err := r.store.TTL(ctx, store.AsteroidKey(postId))
	if errors.Is(err, store.ErrNotFound) {
		return 0, fmt.Errorf("%w: no asteroid for post %s", models.ErrAsteroidDepleted, postId)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read asteroid expiry: %w", err)
	}
	return ttl, nil
}

func clamp(v, low, high int64) int64 {
	if v < low {
		return low
	}
	if v > high {
		return high
	}
	return v
}
