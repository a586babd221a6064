package leaderboard

import (
	"context"
	"errors"
	"fmt"

	"astromine-go/internal/models"
	"astromine-go/internal/store"
)

// Leaderboard ranks players of a post by cumulative score. Equal scores
// are ordered by player id ascending.
type Leaderboard struct {
	store store.KVStore
}

func New(kv store.KVStore) *Leaderboard {
	return &Leaderboard{store: kv}
}

// IncrementScore adds delta to the player's score and returns the new total.
func (l *Leaderboard) IncrementScore(ctx context.Context, postId, playerId string, delta int64) (int64, error) {
	if delta < 0 {
		return 0, fmt.Errorf("score delta cannot be negative, got %d", delta)
	}
	score, err := l.store.ZIncrBy(ctx, store.LeaderboardKey(postId), playerId, delta)
	if err != nil {
		return 0, fmt.Errorf("failed to increment score: %w", err)
	}
	return score, nil
}

// TopN returns up to n entries with 1-based ranks.
func (l *Leaderboard) TopN(ctx context.Context, postId string, n int) ([]models.LeaderboardEntry, error) {
	members, err := l.store.ZTop(ctx, store.LeaderboardKey(postId), n)
	if err != nil {
		return nil, fmt.Errorf("failed to read leaderboard: %w", err)
	}

	entries := make([]models.LeaderboardEntry, len(members))
	for i, m := range members {
		entries[i] = models.LeaderboardEntry{
			Rank:     i + 1,
			PlayerId: m.Member,
			Score:    m.Score,
		}
	}
	return entries, nil
}

// Score returns the player's total, zero when they have not scored.
func (l *Leaderboard) Score(ctx context.Context, postId, playerId string) (int64, error) {
	score, err := l.store.ZScore(ctx, store.LeaderboardKey(postId), playerId)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read score: %w", err)
	}
	return score, nil
}

// Rank returns the player's 1-based position, zero when unranked.
func (l *Leaderboard) Rank(ctx context.Context, postId, playerId string) (int, error) {
	rank, err := l.store.ZRevRank(ctx, store.LeaderboardKey(postId), playerId)
	if errors.Is(err, store.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read rank: %w", err)
	}
	return int(rank) + 1, nil
}

// Size returns how many players have a score on the post.
func (l *Leaderboard) Size(ctx context.Context, postId string) (int64, error) {
	count, err := l.store.ZCard(ctx, store.LeaderboardKey(postId))
	if err != nil {
		return 0, fmt.Errorf("failed to count leaderboard: %w", err)
	}
	return count, nil
}
