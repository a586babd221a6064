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
	"fmt"

	"astromine-go/internal/asteroid"
	"astromine-go/internal/inventory"
	"astromine-go/internal/leaderboard"
	"astromine-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Miner struct {
	registry *asteroid.Registry
	ledger   *inventory.Ledger
	board    *leaderboard.Leaderboard
	rules    *models.Rules
	roller   models.Roller
}

func NewMiner(
	registry *asteroid.Registry,
	ledger *inventory.Ledger,
	board *leaderboard.Leaderboard,
	rules *models.Rules,
	roller models.Roller,
) *Miner {
	if roller == nil {
		roller = models.NewRoller()
	}
	return &Miner{
		registry: registry,
		ledger:   ledger,
		board:    board,
		rules:    rules,
		roller:   roller,
	}
}

func storageFault(step string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrStorageUnavailable, step, err)
}

// Mine performs one mining action for playerId on postId with the named
// tool. Domain rejections are returned as models errors; store failures
// wrap models.ErrStorageUnavailable together with the underlying error.
//
// The tool use is spent before the asteroid is read and is not refunded
// when the asteroid turns out to be depleted.
func (m *Miner) Mine(ctx context.Context, playerId, postId, toolName string) (*models.MiningResult, error) {
	spec, err := m.rules.LookupTool(toolName)
	if err != nil {
		return nil, err
	}

	// Validating
	count, err := m.ledger.GetToolCount(ctx, playerId, postId, spec.Name)
	if err != nil {
		return nil, storageFault("validate", err)
	}
	if count <= 0 {
		return nil, fmt.Errorf("%w: %s", models.ErrNoToolAvailable, spec.Name)
	}
	if err := m.ledger.BeginCooldown(ctx, playerId, postId, spec.Name, spec.Cooldown); err != nil {
		if errors.Is(err, models.ErrToolCoolingDown) {
			return nil, err
		}
		return nil, storageFault("cooldown", err)
	}

	// ToolReserved
	toolsLeft, err := m.ledger.DecrementTool(ctx, playerId, postId, spec.Name)
	if err != nil {
		// No use was spent, so the cooldown claimed above is released.
		if spec.Cooldown > 0 {
			if endErr := m.ledger.EndCooldown(ctx, playerId, postId, spec.Name); endErr != nil {
				zap.L().Warn("Failed to release cooldown",
					zap.String("player_id", playerId),
					zap.String("post_id", postId),
					zap.String("tool", string(spec.Name)),
					zap.Error(endErr))
			}
		}
		if errors.Is(err, models.ErrInsufficientTool) {
			return nil, fmt.Errorf("%w: %w", models.ErrNoToolAvailable, err)
		}
		return nil, storageFault("reserve", err)
	}

	// AsteroidRead
	record, err := m.registry.Load(ctx, postId)
	if err != nil {
		if errors.Is(err, models.ErrAsteroidDepleted) {
			return nil, err
		}
		return nil, storageFault("load", err)
	}

	result := &models.MiningResult{
		MiningId:  uuid.NewString(),
		PlayerId:  playerId,
		PostId:    postId,
		Tool:      spec.Name,
		Mined:     models.Inventory{}.Clone(),
		Remaining: record.Remaining,
		Capacity:  record.Capacity,
		ToolsLeft: toolsLeft,
	}

	if record.Remaining <= 0 {
		return m.finish(ctx, result)
	}

	// YieldComputed
	taken, remaining, err := m.registry.Extract(ctx, postId, asteroid.EffectiveYield(*record, spec.Yield))
	if err != nil {
		if errors.Is(err, models.ErrAsteroidDepleted) {
			return nil, err
		}
		return nil, storageFault("extract", err)
	}
	result.Remaining = remaining
	if taken == 0 {
		return m.finish(ctx, result)
	}

	result.Mined = Simulate(m.roller, spec, record.Composition, taken)
	result.EffectiveYield = taken
	result.ScoreDelta = m.rules.Score(result.Mined)

	// Applied
	if err := m.ledger.CreditMinerals(ctx, playerId, postId, result.Mined); err != nil {
		return nil, storageFault("credit", err)
	}
	if _, err := m.board.IncrementScore(ctx, postId, playerId, result.ScoreDelta); err != nil {
		return nil, storageFault("score", err)
	}

	zap.L().Info("Mining completed",
		zap.String("mining_id", result.MiningId),
		zap.String("player_id", playerId),
		zap.String("post_id", postId),
		zap.String("tool", string(spec.Name)),
		zap.Int64("yield", taken),
		zap.Int64("remaining", remaining),
		zap.Int64("score_delta", result.ScoreDelta))

	return m.finish(ctx, result)
}

// finish re-reads the player's inventory and score so the result reflects
// every increment applied so far.
func (m *Miner) finish(ctx context.Context, result *models.MiningResult) (*models.MiningResult, error) {
	snapshot, err := m.ledger.GetInventorySnapshot(ctx, result.PlayerId, result.PostId)
	if err != nil {
		return nil, storageFault("snapshot", err)
	}
	score, err := m.board.Score(ctx, result.PostId, result.PlayerId)
	if err != nil {
		return nil, storageFault("snapshot", err)
	}

	result.Inventory = snapshot
	result.Score = score
	return result, nil
}
