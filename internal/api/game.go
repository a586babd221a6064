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

package api

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"astromine-go/internal/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var errorMessages = map[string]string{
	models.ErrorKindNoToolAvailable:    "You have none of this tool left.",
	models.ErrorKindAsteroidDepleted:   "This asteroid is exhausted.",
	models.ErrorKindStorageUnavailable: "Something went wrong, please try again.",
	models.ErrorKindUnknownTool:        "That tool does not exist.",
	models.ErrorKindToolCoolingDown:    "That tool is still cooling down.",
	models.ErrorKindBadRequest:         "The request is missing required fields.",
}

// ErrorResponseFor renders err for the presentation layer.
func ErrorResponseFor(err error) models.ErrorResponse {
	kind := models.ErrorKindOf(err)
	return models.ErrorResponse{
		ErrorKind: kind,
		Message:   errorMessages[kind],
	}
}

// InitialData returns everything the webview shows on load for the
// caller in ctx. The caller receives the default loadout on first visit.
func (s *GameService) InitialData(ctx context.Context) (*models.InitialData, error) {
	caller := models.CallerFromContext(ctx)
	if caller.PostId == "" {
		return nil, fmt.Errorf("%w: post id is required", models.ErrBadRequest)
	}

	equipment, err := s.ledger.EnsureDefaultEquipment(ctx, caller.PlayerId, caller.PostId)
	if err != nil {
		zap.L().Error("Failed to initialize equipment",
			zap.String("player_id", caller.PlayerId),
			zap.String("post_id", caller.PostId),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
	}

	data := &models.InitialData{
		Username:  caller.PlayerId,
		PostId:    caller.PostId,
		Equipment: equipment,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		inventory, err := s.ledger.GetInventorySnapshot(gctx, caller.PlayerId, caller.PostId)
		data.Inventory = inventory
		return err
	})
	g.Go(func() error {
		view, err := s.AsteroidView(gctx, caller.PostId)
		if errors.Is(err, models.ErrAsteroidDepleted) {
			return nil
		}
		data.Asteroid = view
		return err
	})
	g.Go(func() error {
		top, err := s.board.TopN(gctx, caller.PostId, s.rules.LeaderboardSize)
		data.LeaderboardTop = top
		return err
	})
	if err := g.Wait(); err != nil {
		zap.L().Error("Failed to load initial data",
			zap.String("player_id", caller.PlayerId),
			zap.String("post_id", caller.PostId),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
	}

	return data, nil
}

// AsteroidView returns the display state of the asteroid on postId.
func (s *GameService) AsteroidView(ctx context.Context, postId string) (*models.AsteroidView, error) {
	record, err := s.registry.Load(ctx, postId)
	if err != nil {
		return nil, err
	}

	view := &models.AsteroidView{
		Capacity:    record.Capacity,
		Remaining:   record.Remaining,
		Composition: make(map[models.Mineral]string, len(record.Composition)),
	}
	for m, f := range record.Composition {
		view.Composition[m] = f.StringFixed(4)
	}

	ttl, err := s.registry.TTL(ctx, postId)
	switch {
	case errors.Is(err, models.ErrAsteroidDepleted):
		return nil, err
	case err != nil:
		zap.L().Warn("Failed to read asteroid expiry", zap.String("post_id", postId), zap.Error(err))
	default:
		view.ExpiresIn = int64(ttl.Seconds())
	}
	return view, nil
}

// Mine runs one mining action for the caller in ctx.
func (s *GameService) Mine(ctx context.Context, req models.MineRequest) (*models.MineResponse, error) {
	caller := models.CallerFromContext(ctx)
	if caller.PostId == "" {
		return nil, fmt.Errorf("%w: post id is required", models.ErrBadRequest)
	}

	if _, err := s.ledger.EnsureDefaultEquipment(ctx, caller.PlayerId, caller.PostId); err != nil {
		zap.L().Error("Failed to initialize equipment",
			zap.String("player_id", caller.PlayerId),
			zap.String("post_id", caller.PostId),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
	}

	result, err := s.miner.Mine(ctx, caller.PlayerId, caller.PostId, req.Tool)
	if err != nil {
		if errors.Is(err, models.ErrStorageUnavailable) {
			zap.L().Error("Mining failed",
				zap.String("player_id", caller.PlayerId),
				zap.String("post_id", caller.PostId),
				zap.String("tool", req.Tool),
				zap.Error(err))
		} else {
			zap.L().Debug("Mining rejected",
				zap.String("player_id", caller.PlayerId),
				zap.String("post_id", caller.PostId),
				zap.String("tool", req.Tool),
				zap.String("error_kind", models.ErrorKindOf(err)))
		}
		return nil, err
	}

	equipment, err := s.ledger.GetEquipment(ctx, caller.PlayerId, caller.PostId)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
	}
	top, err := s.board.TopN(ctx, caller.PostId, s.rules.LeaderboardSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
	}

	return &models.MineResponse{
		MinedThisTurn:     result.Mined,
		RemainingCapacity: result.Remaining,
		Inventory:         result.Inventory,
		Equipment:         equipment,
		LeaderboardTop:    top,
		Score:             result.Score,
	}, nil
}

// Leaderboard returns the top of the post leaderboard. Out-of-range
// limits fall back to the configured size.
func (s *GameService) Leaderboard(ctx context.Context, postId string, limit int) ([]models.LeaderboardEntry, error) {
	if postId == "" {
		return nil, fmt.Errorf("%w: post id is required", models.ErrBadRequest)
	}

	top, err := s.board.TopN(ctx, postId, s.leaderboardLimit(limit))
	if err != nil {
		zap.L().Error("Failed to get leaderboard", zap.String("post_id", postId), zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
	}
	return top, nil
}

// PlayerSummary returns a player's equipment, inventory and standing.
func (s *GameService) PlayerSummary(ctx context.Context, playerId, postId string) (*models.PlayerSummary, error) {
	if playerId == "" || postId == "" {
		return nil, fmt.Errorf("%w: player_id and post_id are required", models.ErrBadRequest)
	}

	if _, err := s.ledger.EnsureDefaultEquipment(ctx, playerId, postId); err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
	}

	summary := &models.PlayerSummary{PlayerId: playerId, PostId: postId}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		summary.Equipment, err = s.ledger.GetEquipment(gctx, playerId, postId)
		return err
	})
	g.Go(func() (err error) {
		summary.Inventory, err = s.ledger.GetInventorySnapshot(gctx, playerId, postId)
		return err
	})
	g.Go(func() (err error) {
		summary.Score, err = s.board.Score(gctx, postId, playerId)
		return err
	})
	g.Go(func() (err error) {
		summary.Rank, err = s.board.Rank(gctx, postId, playerId)
		return err
	})
	if err := g.Wait(); err != nil {
		zap.L().Error("Failed to get player summary",
			zap.String("player_id", playerId),
			zap.String("post_id", postId),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", models.ErrStorageUnavailable, err)
	}

	return summary, nil
}

// GrantTools credits tools to a player. Operator use only.
func (s *GameService) GrantTools(ctx context.Context, playerId, postId, toolName string, count int64) (int64, error) {
	spec, err := s.rules.LookupTool(toolName)
	if err != nil {
		return 0, err
	}
	return s.ledger.GrantTools(ctx, playerId, postId, spec.Name, count)
}

// ToolNames lists the canonical tool names in a stable order.
func (s *GameService) ToolNames() []string {
	names := make([]string, 0, len(s.rules.Tools))
	for tool := range s.rules.Tools {
		names = append(names, string(tool))
	}
	sort.Strings(names)
	return names
}
