package database

import (
	"context"
	"fmt"
)

// RequiredExpForLevel returns the experience points needed to advance from
// level to level+1. The curve is geometric (base 100, growth 1.35 per
// level) so early levels come quickly and the climb steepens later,
// matching the "climbing curve" shape used by most small multiplayer
// lobbies. This lives entirely behind the gateway so it can be replaced
// without touching any caller.
func RequiredExpForLevel(level int) int {
	if level < 1 {
		level = 1
	}
	required := 100.0
	for i := 1; i < level; i++ {
		required *= 1.35
	}
	return int(required)
}

// ExperienceGain computes the experience points awarded for one finished
// game. Winning and finishing the game both contribute a flat bonus on top
// of a score-proportional base, so an unfinished/abandoned game still
// grants something but far less than a completed one.
func ExperienceGain(won bool, score int, completedGame bool) int {
	gain := score / 4
	if completedGame {
		gain += 20
	}
	if won {
		gain += 50
	}
	if gain < 1 {
		gain = 1
	}
	return gain
}

// CheckAndProcessLevelUp applies any level-ups a user's current experience
// total has earned but not yet converted, persisting the new level. It
// returns the number of levels gained (0 if none).
func (g *Gateway) CheckAndProcessLevelUp(ctx context.Context, userID int64) (int, error) {
	return runBreaker(g, func() (int, error) {
		var level, exp int
		query := fmt.Sprintf("SELECT level, experience_points FROM users WHERE id = %s", g.placeholder(1))
		if err := g.db.QueryRowContext(ctx, query, userID).Scan(&level, &exp); err != nil {
			return 0, fmt.Errorf("read level/exp: %w", err)
		}

		gained := 0
		for exp >= RequiredExpForLevel(level) {
			exp -= RequiredExpForLevel(level)
			level++
			gained++
			if gained > 1000 {
				break // runaway guard; a single game cannot plausibly grant this much exp
			}
		}

		if gained == 0 {
			return 0, nil
		}

		update := fmt.Sprintf("UPDATE users SET level = %s, experience_points = %s WHERE id = %s",
			g.placeholder(1), g.placeholder(2), g.placeholder(3))
		if _, err := g.db.ExecContext(ctx, update, level, exp, userID); err != nil {
			return 0, fmt.Errorf("persist level up: %w", err)
		}
		return gained, nil
	})
}

// UpdatePlayerExperience adds delta experience points to a user's running
// total without itself processing level-ups; callers follow it with
// CheckAndProcessLevelUp.
func (g *Gateway) UpdatePlayerExperience(ctx context.Context, userID int64, delta int) error {
	_, err := runBreaker(g, func() (struct{}, error) {
		query := fmt.Sprintf("UPDATE users SET experience_points = experience_points + %s WHERE id = %s",
			g.placeholder(1), g.placeholder(2))
		_, err := g.db.ExecContext(ctx, query, delta, userID)
		return struct{}{}, err
	})
	return err
}
