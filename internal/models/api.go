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

package models

// MineRequest is the presentation request to mine with a tool
type MineRequest struct {
	Tool string `json:"tool"`
}

// MineResponse is the successful reply to a MineRequest
type MineResponse struct {
	MinedThisTurn     Inventory          `json:"minedThisTurn"`
	RemainingCapacity int64              `json:"remainingCapacity"`
	Inventory         Inventory          `json:"inventory"`
	Equipment         Equipment          `json:"equipment"`
	LeaderboardTop    []LeaderboardEntry `json:"leaderboardTop"`
	Score             int64              `json:"score"`
}

// ErrorResponse is the failed reply to any request
type ErrorResponse struct {
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message,omitempty"`
}

// AsteroidView is the asteroid state shown to players
type AsteroidView struct {
	Capacity    int64              `json:"capacity"`
	Remaining   int64              `json:"remaining"`
	Composition map[Mineral]string `json:"composition"`
	ExpiresIn   int64              `json:"expiresIn"` // seconds, 0 when unknown
}

// InitialData is sent once the webview reports it is ready
type InitialData struct {
	Username       string             `json:"username"`
	PostId         string             `json:"postId"`
	Equipment      Equipment          `json:"equipment"`
	Inventory      Inventory          `json:"inventory"`
	Asteroid       *AsteroidView      `json:"asteroid"`
	LeaderboardTop []LeaderboardEntry `json:"leaderboardTop"`
}

// PlayerSummary is a player's standing on one post
type PlayerSummary struct {
	PlayerId  string    `json:"playerId"`
	PostId    string    `json:"postId"`
	Equipment Equipment `json:"equipment"`
	Inventory Inventory `json:"inventory"`
	Score     int64     `json:"score"`
	Rank      int       `json:"rank"`
}
