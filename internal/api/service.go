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
	"fmt"

	"astromine-go/internal/asteroid"
	"astromine-go/internal/inventory"
	"astromine-go/internal/leaderboard"
	"astromine-go/internal/mining"
	"astromine-go/internal/models"
	"astromine-go/internal/store"
)

const maxLeaderboardLimit = 100

// GameService is the request/response surface used by the webview and
// operator tooling.
type GameService struct {
	store    store.KVStore
	registry *asteroid.Registry
	ledger   *inventory.Ledger
	board    *leaderboard.Leaderboard
	miner    *mining.Miner
	rules    *models.Rules
}

func NewGameService(
	kv store.KVStore,
	registry *asteroid.Registry,
	ledger *inventory.Ledger,
	board *leaderboard.Leaderboard,
	miner *mining.Miner,
	rules *models.Rules,
) *GameService {
	return &GameService{
		store:    kv,
		registry: registry,
		ledger:   ledger,
		board:    board,
		miner:    miner,
		rules:    rules,
	}
}

func (s *GameService) HealthCheck(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store health check failed: %w", err)
	}
	return nil
}

func (s *GameService) leaderboardLimit(limit int) int {
	if limit <= 0 || limit > maxLeaderboardLimit {
		return s.rules.LeaderboardSize
	}
	return limit
}
