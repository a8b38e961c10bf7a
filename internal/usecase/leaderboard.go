package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"MealSignal/internal/domain/models"
	"MealSignal/pkg/cache"
)

const (
	playsPrefix   = "leaderboard:plays"
	correctPrefix = "leaderboard:correct"
)

// Leaderboard keeps per-player counters in the cache.
type Leaderboard struct {
	cache cache.Service
}

func NewLeaderboard(c cache.Service) *Leaderboard {
	return &Leaderboard{cache: c}
}

// Record counts one play for player, and one correct guess when correct.
// Both counters move in one atomic step.
func (lb *Leaderboard) Record(ctx context.Context, player string, correct bool) (models.PlayerStats, error) {
	player = PlayerName(player)
	plays, hits := playsKey(player), correctKey(player)

	if correct {
		n, err := lb.cache.IncrementAll(ctx, plays, hits)
		if err != nil {
			return models.PlayerStats{}, fmt.Errorf("increment counters: %w", err)
		}
		return newStats(player, n[0], n[1]), nil
	}

	n, err := lb.cache.Increment(ctx, plays)
	if err != nil {
		return models.PlayerStats{}, fmt.Errorf("increment plays: %w", err)
	}
	var raw string
	switch err := lb.cache.Get(ctx, hits, &raw); {
	case err == nil:
		h, _ := strconv.ParseInt(raw, 10, 64)
		return newStats(player, n, h), nil
	case errors.Is(err, cache.ErrCacheMiss):
		return newStats(player, n, 0), nil
	default:
		return models.PlayerStats{}, fmt.Errorf("read correct: %w", err)
	}
}

// Top returns every player ranked by win rate, then plays, then name.
// A non-positive limit returns everyone.
func (lb *Leaderboard) Top(ctx context.Context, limit int) ([]models.PlayerStats, error) {
	keys, err := lb.cache.Keys(ctx, cache.BuildPattern(playsPrefix+":"))
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	if len(keys) == 0 {
		return []models.PlayerStats{}, nil
	}

	players := make([]string, len(keys))
	lookup := make([]string, 0, 2*len(keys))
	for i, k := range keys {
		players[i] = cache.TrimKey(playsPrefix, k)
		lookup = append(lookup, k, correctKey(players[i]))
	}
	counts, err := cache.MGetTyped[int64](ctx, lb.cache, lookup...)
	if err != nil {
		return nil, fmt.Errorf("read counters: %w", err)
	}

	out := make([]models.PlayerStats, 0, len(players))
	for i, p := range players {
		plays := counts[keys[i]]
		if plays <= 0 {
			continue
		}
		out = append(out, newStats(p, plays, counts[correctKey(p)]))
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.WinRate != b.WinRate {
			return a.WinRate > b.WinRate
		}
		if a.TotalPlays != b.TotalPlays {
			return a.TotalPlays > b.TotalPlays
		}
		return a.Name < b.Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func playsKey(player string) string   { return cache.GenerateKey(playsPrefix, player) }
func correctKey(player string) string { return cache.GenerateKey(correctPrefix, player) }

func newStats(name string, plays, hits int64) models.PlayerStats {
	s := models.PlayerStats{Name: name, TotalPlays: plays, CorrectGuesses: hits}
	if plays > 0 {
		s.WinRate = float64(hits) / float64(plays) * 100
	}
	return s
}

// PlayerName trims name and falls back to the anonymous player.
func PlayerName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.DefaultPlayerName
	}
	return name
}
