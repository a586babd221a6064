package models

import (
	"fmt"
	"strings"
	"time"
)

// ToolSpec describes the fixed behaviour of a tool
type ToolSpec struct {
	Name       Tool
	Yield      int64
	RareChance float64
	Cooldown   time.Duration
	Aliases    []string
}

// Rules holds the tunable constants of the game
type Rules struct {
	Tools           map[Tool]ToolSpec
	Weights         map[Mineral]int64
	DefaultLoadout  Equipment
	LeaderboardSize int
}

// LookupTool resolves a tool by name or alias, case-insensitively.
func (r *Rules) LookupTool(name string) (ToolSpec, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if spec, ok := r.Tools[Tool(name)]; ok {
		return spec, nil
	}
	for _, spec := range r.Tools {
		for _, alias := range spec.Aliases {
			if strings.ToLower(alias) == name {
				return spec, nil
			}
		}
	}
	return ToolSpec{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
}

// Score returns the weighted leaderboard value of a set of mined minerals.
func (r *Rules) Score(mined Inventory) int64 {
	var score int64
	for m, n := range mined {
		score += n * r.Weights[m]
	}
	return score
}
