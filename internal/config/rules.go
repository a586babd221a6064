package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"astromine-go/internal/models"

	"gopkg.in/yaml.v2"
)

const defaultLeaderboardSize = 10

type ToolRule struct {
	Name       string        `yaml:"name"`
	Yield      int64         `yaml:"yield"`
	RareChance float64       `yaml:"rare_chance"`
	Cooldown   time.Duration `yaml:"cooldown"`
	Aliases    []string      `yaml:"aliases"`
}

type RulesFile struct {
	Tools           []ToolRule       `yaml:"tools"`
	Weights         map[string]int64 `yaml:"weights"`
	DefaultLoadout  map[string]int64 `yaml:"default_loadout"`
	LeaderboardSize int              `yaml:"leaderboard_size"`
}

// DefaultRules returns the built-in game constants.
func DefaultRules() *models.Rules {
	return &models.Rules{
		Tools: map[models.Tool]models.ToolSpec{
			models.ToolShovel: {Name: models.ToolShovel, Yield: 10, RareChance: 0.05},
			models.ToolBomb:   {Name: models.ToolBomb, Yield: 50, RareChance: 0.15, Aliases: []string{"dynamite", "boom"}},
		},
		Weights: map[models.Mineral]int64{
			models.MineralIron:     1,
			models.MineralNickel:   2,
			models.MineralCarbon:   5,
			models.MineralGold:     10,
			models.MineralPlatinum: 15,
		},
		DefaultLoadout: models.Equipment{
			models.ToolShovel: 3,
			models.ToolBomb:   1,
		},
		LeaderboardSize: defaultLeaderboardSize,
	}
}

// LoadRules reads the rules file, or returns DefaultRules when path is empty.
func LoadRules(rulesFile string) (*models.Rules, error) {
	if rulesFile == "" {
		return DefaultRules(), nil
	}

	var rulesPath string
	if filepath.IsAbs(rulesFile) {
		rulesPath = rulesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		rulesPath = filepath.Join(wd, rulesFile)
	}

	data, err := os.ReadFile(rulesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", rulesFile, err)
	}

	return ParseRules(data)
}

// ParseRules decodes and validates a YAML rules document.
func ParseRules(data []byte) (*models.Rules, error) {
	var file RulesFile
	if err := yaml.UnmarshalStrict(data, &file); err != nil {
		return nil, fmt.Errorf("unable to parse rules: %w", err)
	}

	rules := &models.Rules{
		Tools:           make(map[models.Tool]models.ToolSpec, len(file.Tools)),
		Weights:         make(map[models.Mineral]int64, len(models.AllMinerals)),
		DefaultLoadout:  make(models.Equipment, len(file.DefaultLoadout)),
		LeaderboardSize: file.LeaderboardSize,
	}

	if len(file.Tools) == 0 {
		return nil, fmt.Errorf("rules define no tools")
	}
	for i, tool := range file.Tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("tool at index %d missing name", i)
		}
		if tool.Yield <= 0 {
			return nil, fmt.Errorf("tool %s: yield must be positive, got %d", tool.Name, tool.Yield)
		}
		if tool.RareChance < 0 || tool.RareChance > 1 {
			return nil, fmt.Errorf("tool %s: rare_chance must be within [0,1], got %v", tool.Name, tool.RareChance)
		}
		if tool.Cooldown < 0 {
			return nil, fmt.Errorf("tool %s: cooldown cannot be negative", tool.Name)
		}
		name := models.Tool(tool.Name)
		if _, dup := rules.Tools[name]; dup {
			return nil, fmt.Errorf("tool %s defined twice", tool.Name)
		}
		rules.Tools[name] = models.ToolSpec{
			Name:       name,
			Yield:      tool.Yield,
			RareChance: tool.RareChance,
			Cooldown:   tool.Cooldown,
			Aliases:    tool.Aliases,
		}
	}

	owners := make(map[string]string)
	for _, tool := range file.Tools {
		for _, alias := range tool.Aliases {
			key := strings.ToLower(strings.TrimSpace(alias))
			if key == "" {
				return nil, fmt.Errorf("tool %s: alias cannot be empty", tool.Name)
			}
			if _, shadows := rules.Tools[models.Tool(key)]; shadows {
				return nil, fmt.Errorf("tool %s: alias %q shadows a tool name", tool.Name, alias)
			}
			if owner, dup := owners[key]; dup {
				return nil, fmt.Errorf("tool %s: alias %q already used by %s", tool.Name, alias, owner)
			}
			owners[key] = tool.Name
		}
	}

	for _, m := range models.AllMinerals {
		weight, ok := file.Weights[string(m)]
		if !ok {
			return nil, fmt.Errorf("missing weight for %s", m)
		}
		if weight < 0 {
			return nil, fmt.Errorf("weight for %s cannot be negative", m)
		}
		rules.Weights[m] = weight
	}
	if len(file.Weights) != len(models.AllMinerals) {
		return nil, fmt.Errorf("weights name unknown minerals")
	}

	for name, count := range file.DefaultLoadout {
		if _, ok := rules.Tools[models.Tool(name)]; !ok {
			return nil, fmt.Errorf("default loadout names unknown tool %s", name)
		}
		if count < 0 {
			return nil, fmt.Errorf("default loadout for %s cannot be negative", name)
		}
		rules.DefaultLoadout[models.Tool(name)] = count
	}

	if rules.LeaderboardSize < 0 {
		return nil, fmt.Errorf("leaderboard_size cannot be negative")
	}
	if rules.LeaderboardSize == 0 {
		rules.LeaderboardSize = defaultLeaderboardSize
	}

	return rules, nil
}
