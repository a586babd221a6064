package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Mineral is a kind of material extracted from an asteroid
type Mineral string

const (
	MineralIron     Mineral = "iron"
	MineralNickel   Mineral = "nickel"
	MineralCarbon   Mineral = "carbon"
	MineralGold     Mineral = "gold"
	MineralPlatinum Mineral = "platinum"
)

// AllMinerals lists every mineral in composition order.
var AllMinerals = []Mineral{MineralIron, MineralNickel, MineralCarbon, MineralGold, MineralPlatinum}

// Tool is a consumable used to perform one mining action
type Tool string

const (
	ToolShovel Tool = "shovel"
	ToolBomb   Tool = "bomb"
)

// Composition is the probability distribution over minerals for one asteroid
type Composition map[Mineral]decimal.Decimal

// Sum returns the total of all fractions.
func (c Composition) Sum() decimal.Decimal {
	sum := decimal.Zero
	for _, m := range AllMinerals {
		sum = sum.Add(c[m])
	}
	return sum
}

// Fraction returns the share of a mineral as a float, zero when absent.
func (c Composition) Fraction(m Mineral) float64 {
	f, _ := c[m].Float64()
	return f
}

// AsteroidRecord is the resource state of the asteroid attached to a post
type AsteroidRecord struct {
	PostId      string      `json:"post_id"`
	Capacity    int64       `json:"capacity"`
	Remaining   int64       `json:"remaining"`
	Composition Composition `json:"composition"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Equipment maps a tool to the number of uses a player holds
type Equipment map[Tool]int64

// Inventory maps a mineral to a unit count
type Inventory map[Mineral]int64

// Total returns the number of units across all minerals.
func (inv Inventory) Total() int64 {
	var total int64
	for _, n := range inv {
		total += n
	}
	return total
}

// Clone returns an independent copy with every mineral present.
func (inv Inventory) Clone() Inventory {
	out := make(Inventory, len(AllMinerals))
	for _, m := range AllMinerals {
		out[m] = inv[m]
	}
	return out
}

// MiningResult is the snapshot returned after one mining action
type MiningResult struct {
	MiningId       string    `json:"mining_id"`
	PlayerId       string    `json:"player_id"`
	PostId         string    `json:"post_id"`
	Tool           Tool      `json:"tool"`
	Mined          Inventory `json:"mined"`
	EffectiveYield int64     `json:"effective_yield"`
	Remaining      int64     `json:"remaining"`
	Capacity       int64     `json:"capacity"`
	Inventory      Inventory `json:"inventory"`
	ToolsLeft      int64     `json:"tools_left"`
	ScoreDelta     int64     `json:"score_delta"`
	Score          int64     `json:"score"`
}

// LeaderboardEntry is one ranked row of a post leaderboard
type LeaderboardEntry struct {
	Rank     int    `json:"rank"`
	PlayerId string `json:"player_id"`
	Score    int64  `json:"score"`
}

// Post is a piece of content hosting one asteroid
type Post struct {
	Id        string    `json:"id"`
	Community string    `json:"community"`
	Title     string    `json:"title"`
	Capacity  int64     `json:"capacity"`
	CreatedAt time.Time `json:"created_at"`
}
