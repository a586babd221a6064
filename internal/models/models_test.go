package models

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
)

func testRules() *Rules {
	return &Rules{
		Tools: map[Tool]ToolSpec{
			ToolShovel: {Name: ToolShovel, Yield: 10, RareChance: 0.05},
			ToolBomb:   {Name: ToolBomb, Yield: 50, RareChance: 0.15, Aliases: []string{"dynamite", "boom"}},
		},
		Weights: map[Mineral]int64{
			MineralIron: 1, MineralNickel: 2, MineralCarbon: 5, MineralGold: 10, MineralPlatinum: 15,
		},
	}
}

func TestLookupTool(t *testing.T) {
	rules := testRules()

	tests := []struct {
		name string
		want Tool
	}{
		{"shovel", ToolShovel},
		{" Shovel ", ToolShovel},
		{"bomb", ToolBomb},
		{"dynamite", ToolBomb},
		{"BOOM", ToolBomb},
	}
	for _, tt := range tests {
		spec, err := rules.LookupTool(tt.name)
		if err != nil {
			t.Errorf("LookupTool(%q) failed: %v", tt.name, err)
			continue
		}
		if spec.Name != tt.want {
			t.Errorf("LookupTool(%q) = %s, want %s", tt.name, spec.Name, tt.want)
		}
	}

	if _, err := rules.LookupTool("laser"); !errors.Is(err, ErrUnknownTool) {
		t.Errorf("Expected ErrUnknownTool, got %v", err)
	}
}

func TestScore(t *testing.T) {
	rules := testRules()
	mined := Inventory{MineralIron: 3, MineralNickel: 2, MineralCarbon: 1, MineralGold: 1, MineralPlatinum: 1}
	if got := rules.Score(mined); got != 3+4+5+10+15 {
		t.Errorf("Score = %d, want 37", got)
	}
}

func TestErrorKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrNoToolAvailable, ErrorKindNoToolAvailable},
		{fmt.Errorf("decrement: %w", ErrInsufficientTool), ErrorKindNoToolAvailable},
		{fmt.Errorf("load: %w", ErrAsteroidDepleted), ErrorKindAsteroidDepleted},
		{ErrUnknownTool, ErrorKindUnknownTool},
		{ErrToolCoolingDown, ErrorKindToolCoolingDown},
		{errors.New("connection refused"), ErrorKindStorageUnavailable},
	}
	for _, tt := range tests {
		if got := ErrorKindOf(tt.err); got != tt.want {
			t.Errorf("ErrorKindOf(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestCompositionSum(t *testing.T) {
	c := Composition{
		MineralIron:     decimal.RequireFromString("0.4"),
		MineralNickel:   decimal.RequireFromString("0.3"),
		MineralCarbon:   decimal.RequireFromString("0.2"),
		MineralGold:     decimal.RequireFromString("0.05"),
		MineralPlatinum: decimal.RequireFromString("0.05"),
	}
	if !c.Sum().Equal(decimal.NewFromInt(1)) {
		t.Errorf("Sum = %s, want 1", c.Sum())
	}
	if c.Fraction(MineralIron) != 0.4 {
		t.Errorf("Fraction(iron) = %v", c.Fraction(MineralIron))
	}
}

func TestInventoryClone(t *testing.T) {
	inv := Inventory{MineralIron: 2}
	clone := inv.Clone()
	clone[MineralIron] = 99

	if inv[MineralIron] != 2 {
		t.Error("Clone shares storage with the original")
	}
	for _, m := range AllMinerals {
		if _, ok := clone[m]; !ok {
			t.Errorf("Clone missing %s", m)
		}
	}
}

func TestCallerContext(t *testing.T) {
	ctx := WithCaller(context.Background(), Caller{PostId: "t3_abc"})
	if got := GetCallerIdentity(ctx); got != AnonymousPlayer {
		t.Errorf("Expected anonymous fallback, got %s", got)
	}
	if got := GetCurrentPostId(ctx); got != "t3_abc" {
		t.Errorf("Expected t3_abc, got %s", got)
	}
	if got := GetCallerIdentity(context.Background()); got != AnonymousPlayer {
		t.Errorf("Expected anonymous for bare context, got %s", got)
	}
}
