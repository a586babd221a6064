package inventory

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"astromine-go/internal/models"
	"astromine-go/internal/store"

	"go.uber.org/zap"
)

// Ledger manages per-player tool equipment and mined minerals, both
// scoped to a post.
type Ledger struct {
	store store.KVStore
	rules *models.Rules
}

func NewLedger(kv store.KVStore, rules *models.Rules) *Ledger {
	return &Ledger{store: kv, rules: rules}
}

// GetToolCount returns how many uses of tool the player holds. A missing
// field counts as zero.
func (l *Ledger) GetToolCount(ctx context.Context, playerId, postId string, tool models.Tool) (int64, error) {
	raw, err := l.store.HGet(ctx, store.EquipmentKey(playerId, postId), string(tool))
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read tool count: %w", err)
	}
	count, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid tool count %q for %s: %w", raw, tool, store.ErrNotInteger)
	}
	return count, nil
}

// GetEquipment returns every known tool with its count.
func (l *Ledger) GetEquipment(ctx context.Context, playerId, postId string) (models.Equipment, error) {
	fields, err := l.store.HGetAll(ctx, store.EquipmentKey(playerId, postId))
	if err != nil {
		return nil, fmt.Errorf("failed to read equipment: %w", err)
	}

	equipment := make(models.Equipment, len(l.rules.Tools))
	for tool := range l.rules.Tools {
		equipment[tool] = 0
	}
	for field, raw := range fields {
		count, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid tool count %q for %s: %w", raw, field, store.ErrNotInteger)
		}
		equipment[models.Tool(field)] = count
	}
	return equipment, nil
}

// DecrementTool consumes one use of tool and returns the new count.
func (l *Ledger) DecrementTool(ctx context.Context, playerId, postId string, tool models.Tool) (int64, error) {
	count, err := l.GetToolCount(ctx, playerId, postId, tool)
	if err != nil {
		return 0, err
	}
	if count <= 0 {
		return 0, fmt.Errorf("%w: %s", models.ErrInsufficientTool, tool)
	}

	key := store.EquipmentKey(playerId, postId)
	remaining, err := l.store.HIncrBy(ctx, key, string(tool), -1)
	if err != nil {
		return 0, fmt.Errorf("failed to decrement tool: %w", err)
	}
	if remaining < 0 {
		// Another request spent the last use between the check and the decrement.
		if _, err := l.store.HIncrBy(ctx, key, string(tool), 1); err != nil {
			return 0, fmt.Errorf("failed to repair tool count: %w", err)
		}
		zap.L().Warn("Tool decrement raced below zero",
			zap.String("player_id", playerId),
			zap.String("post_id", postId),
			zap.String("tool", string(tool)))
		return 0, fmt.Errorf("%w: %s", models.ErrInsufficientTool, tool)
	}
	return remaining, nil
}

// EnsureDefaultEquipment hands out the default loadout the first time a
// player is seen on a post and returns the current equipment.
func (l *Ledger) EnsureDefaultEquipment(ctx context.Context, playerId, postId string) (models.Equipment, error) {
	first, err := l.store.SetNX(ctx, store.EquipmentInitializedKey(playerId, postId), "1", 0)
	if err != nil {
		return nil, fmt.Errorf("failed to mark equipment initialized: %w", err)
	}

	if first && len(l.rules.DefaultLoadout) > 0 {
		fields := make(map[string]string, len(l.rules.DefaultLoadout))
		for tool, count := range l.rules.DefaultLoadout {
			fields[string(tool)] = strconv.FormatInt(count, 10)
		}
		if err := l.store.HSet(ctx, store.EquipmentKey(playerId, postId), fields); err != nil {
			return nil, fmt.Errorf("failed to set default equipment: %w", err)
		}
		zap.L().Info("Default equipment granted",
			zap.String("player_id", playerId),
			zap.String("post_id", postId))
	}

	return l.GetEquipment(ctx, playerId, postId)
}

// CreditMinerals adds mined units to the player's inventory.
func (l *Ledger) CreditMinerals(ctx context.Context, playerId, postId string, mined models.Inventory) error {
	for m, n := range mined {
		if n < 0 {
			return fmt.Errorf("cannot credit negative amount %d of %s", n, m)
		}
	}

	key := store.InventoryKey(playerId, postId)
	for _, m := range models.AllMinerals {
		n := mined[m]
		if n == 0 {
			continue
		}
		if _, err := l.store.HIncrBy(ctx, key, string(m), n); err != nil {
			return fmt.Errorf("failed to credit %s: %w", m, err)
		}
	}
	return nil
}

// GetInventorySnapshot returns every mineral with its count.
func (l *Ledger) GetInventorySnapshot(ctx context.Context, playerId, postId string) (models.Inventory, error) {
	fields, err := l.store.HGetAll(ctx, store.InventoryKey(playerId, postId))
	if err != nil {
		return nil, fmt.Errorf("failed to read inventory: %w", err)
	}

	inventory := make(models.Inventory, len(models.AllMinerals))
	for _, m := range models.AllMinerals {
		raw, ok := fields[string(m)]
		if !ok {
			inventory[m] = 0
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid mineral count %q for %s: %w", raw, m, store.ErrNotInteger)
		}
		inventory[m] = n
	}
	return inventory, nil
}

// BeginCooldown blocks further use of tool for d. It fails with
// models.ErrToolCoolingDown while a previous cooldown is running.
func (l *Ledger) BeginCooldown(ctx context.Context, playerId, postId string, tool models.Tool, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	started, err := l.store.SetNX(ctx, store.CooldownKey(playerId, postId, string(tool)), "1", d)
	if err != nil {
		return fmt.Errorf("failed to start cooldown: %w", err)
	}
	if !started {
		return fmt.Errorf("%w: %s", models.ErrToolCoolingDown, tool)
	}
	return nil
}

// EndCooldown lifts a cooldown started by BeginCooldown.
func (l *Ledger) EndCooldown(ctx context.Context, playerId, postId string, tool models.Tool) error {
	if _, err := l.store.Del(ctx, store.CooldownKey(playerId, postId, string(tool))); err != nil {
		return fmt.Errorf("failed to end cooldown: %w", err)
	}
	return nil
}

// GrantTools credits n uses of tool. Only operator tooling calls this.
func (l *Ledger) GrantTools(ctx context.Context, playerId, postId string, tool models.Tool, n int64) (int64, error) {
	if n <= 0 {
		return 0, fmt.Errorf("grant count must be positive, got %d", n)
	}
	if _, ok := l.rules.Tools[tool]; !ok {
		return 0, fmt.Errorf("%w: %s", models.ErrUnknownTool, tool)
	}
	if _, err := l.EnsureDefaultEquipment(ctx, playerId, postId); err != nil {
		return 0, err
	}

	count, err := l.store.HIncrBy(ctx, store.EquipmentKey(playerId, postId), string(tool), n)
	if err != nil {
		return 0, fmt.Errorf("failed to grant tools: %w", err)
	}
	zap.L().Info("Tools granted",
		zap.String("player_id", playerId),
		zap.String("post_id", postId),
		zap.String("tool", string(tool)),
		zap.Int64("count", count))
	return count, nil
}
