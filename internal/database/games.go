package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"blokusserver/internal/authservice"

	"github.com/google/uuid"
)

// GameResult is one finished match: one row per participant, aligned by
// index across PlayerIDs/Scores/IsWinner.
type GameResult struct {
	PlayerIDs []int64
	Scores    []int
	IsWinner  []bool
	IsDraw    bool
}

// SaveGameResults records a finished game and updates every participant's
// running stats and experience in one logical transaction.
func (g *Gateway) SaveGameResults(ctx context.Context, result GameResult) (string, error) {
	return runBreaker(g, func() (string, error) {
		if len(result.PlayerIDs) != len(result.Scores) || len(result.PlayerIDs) != len(result.IsWinner) {
			return "", fmt.Errorf("mismatched result slices: %d players, %d scores, %d winner flags",
				len(result.PlayerIDs), len(result.Scores), len(result.IsWinner))
		}

		tx, err := g.db.BeginTx(ctx, nil)
		if err != nil {
			return "", fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		gameID := uuid.New().String()
		insertGame := fmt.Sprintf("INSERT INTO games (id, is_draw) VALUES (%s, %s)", g.placeholder(1), g.placeholder(2))
		if _, err := tx.ExecContext(ctx, insertGame, gameID, result.IsDraw); err != nil {
			return "", fmt.Errorf("insert game: %w", err)
		}

		for i, userID := range result.PlayerIDs {
			insertParticipant := fmt.Sprintf(
				"INSERT INTO game_participants (game_id, user_id, score, is_winner) VALUES (%s, %s, %s, %s)",
				g.placeholder(1), g.placeholder(2), g.placeholder(3), g.placeholder(4))
			if _, err := tx.ExecContext(ctx, insertParticipant, gameID, userID, result.Scores[i], result.IsWinner[i]); err != nil {
				return "", fmt.Errorf("insert participant: %w", err)
			}

			outcome := "loss"
			switch {
			case result.IsDraw:
				outcome = "draw"
			case result.IsWinner[i]:
				outcome = "win"
			}

			var winInc, lossInc, drawInc int
			switch outcome {
			case "win":
				winInc = 1
			case "loss":
				lossInc = 1
			case "draw":
				drawInc = 1
			}

			updateStats := fmt.Sprintf(`
				UPDATE users SET
					total_games = total_games + 1,
					wins = wins + %s, losses = losses + %s, draws = draws + %s,
					total_score = total_score + %s,
					best_score = CASE WHEN %s > best_score THEN %s ELSE best_score END,
					experience_points = experience_points + %s
				WHERE id = %s`,
				g.placeholder(1), g.placeholder(2), g.placeholder(3), g.placeholder(4),
				g.placeholder(5), g.placeholder(6), g.placeholder(7), g.placeholder(8))
			gain := ExperienceGain(result.IsWinner[i], result.Scores[i], true)
			if _, err := tx.ExecContext(ctx, updateStats,
				winInc, lossInc, drawInc, result.Scores[i], result.Scores[i], result.Scores[i], gain, userID); err != nil {
				return "", fmt.Errorf("update stats for user %d: %w", userID, err)
			}
		}

		if err := tx.Commit(); err != nil {
			return "", fmt.Errorf("commit: %w", err)
		}

		for _, userID := range result.PlayerIDs {
			if _, err := g.CheckAndProcessLevelUp(ctx, userID); err != nil {
				return gameID, fmt.Errorf("process level up for user %d: %w", userID, err)
			}
		}

		return gameID, nil
	})
}

// Stats is a user's lifetime record.
type Stats struct {
	UserID      int64
	TotalGames  int
	Wins        int
	Losses      int
	Draws       int
	Level       int
	Experience  int
	TotalScore  int
	BestScore   int
}

// GetStats returns a user's lifetime record.
func (g *Gateway) GetStats(ctx context.Context, userID int64) (*Stats, error) {
	return runBreaker(g, func() (*Stats, error) {
		query := fmt.Sprintf(`
			SELECT id, total_games, wins, losses, draws, level, experience_points, total_score, best_score
			FROM users WHERE id = %s`, g.placeholder(1))

		s := &Stats{}
		err := g.db.QueryRowContext(ctx, query, userID).Scan(
			&s.UserID, &s.TotalGames, &s.Wins, &s.Losses, &s.Draws, &s.Level, &s.Experience, &s.TotalScore, &s.BestScore)
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %d not found", userID)
		}
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// rankingColumns is the allowlist of columns GetRanking may sort by. Sort
// column cannot be parameterized as a bind value, so it is validated
// against this set instead of interpolated directly from caller input.
var rankingColumns = map[string]string{
	"wins":       "wins",
	"level":      "level",
	"experience": "experience_points",
	"score":      "best_score",
	"total":      "total_score",
}

// RankingEntry is one row of a leaderboard query.
type RankingEntry struct {
	UserID   int64
	Username string
	Value    int
}

// GetRanking returns up to limit users ordered by orderBy (one of the keys
// in rankingColumns) descending, offset by offset.
func (g *Gateway) GetRanking(ctx context.Context, orderBy string, limit, offset int) ([]*RankingEntry, error) {
	column, ok := rankingColumns[orderBy]
	if !ok {
		return nil, fmt.Errorf("unsupported ranking column %q", orderBy)
	}

	return runBreaker(g, func() ([]*RankingEntry, error) {
		query := fmt.Sprintf(
			"SELECT id, username, %s FROM users WHERE is_active = %s ORDER BY %s DESC LIMIT %s OFFSET %s",
			column, g.boolTrue(), column, g.placeholder(1), g.placeholder(2))

		rows, err := g.db.QueryContext(ctx, query, limit, offset)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []*RankingEntry
		for rows.Next() {
			e := &RankingEntry{}
			if err := rows.Scan(&e.UserID, &e.Username, &e.Value); err != nil {
				return nil, err
			}
			out = append(out, e)
		}
		return out, rows.Err()
	})
}

func (g *Gateway) boolTrue() string {
	if g.dialect == "postgres" {
		return "TRUE"
	}
	return "1"
}

// GetOnlineUsers returns the user rows for the given ids, preserving no
// particular order. Presence itself is tracked by the in-memory session
// registry, not the database; this is a bulk lookup for rendering it.
func (g *Gateway) GetOnlineUsers(ctx context.Context, userIDs []int64) ([]*authservice.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	return runBreaker(g, func() ([]*authservice.User, error) {
		placeholders := make([]string, len(userIDs))
		args := make([]interface{}, len(userIDs))
		for i, id := range userIDs {
			placeholders[i] = g.placeholder(i + 1)
			args[i] = id
		}

		query := fmt.Sprintf("SELECT %s FROM users WHERE id IN (%s)", userColumns, strings.Join(placeholders, ", "))
		rows, err := g.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rows.Close()

		var out []*authservice.User
		for rows.Next() {
			u := &authservice.User{}
			if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.IsActive); err != nil {
				return nil, err
			}
			out = append(out, u)
		}
		return out, rows.Err()
	})
}
