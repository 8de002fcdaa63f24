package database

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"blokusserver/internal/authservice"
)

const userColumns = "id, username, display_name, password_hash, is_active"

func scanUser(row *sql.Row) (*authservice.User, error) {
	u := &authservice.User{}
	if err := row.Scan(&u.ID, &u.Username, &u.DisplayName, &u.PasswordHash, &u.IsActive); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return u, nil
}

// GetUserByUsername satisfies authservice.Store.
func (g *Gateway) GetUserByUsername(ctx context.Context, username string) (*authservice.User, error) {
	return runBreaker(g, func() (*authservice.User, error) {
		query := fmt.Sprintf("SELECT %s FROM users WHERE username = %s", userColumns, g.placeholder(1))
		return scanUser(g.db.QueryRowContext(ctx, query, username))
	})
}

// GetUserByID looks a user up by their numeric id.
func (g *Gateway) GetUserByID(ctx context.Context, userID int64) (*authservice.User, error) {
	return runBreaker(g, func() (*authservice.User, error) {
		query := fmt.Sprintf("SELECT %s FROM users WHERE id = %s", userColumns, g.placeholder(1))
		return scanUser(g.db.QueryRowContext(ctx, query, userID))
	})
}

// IsUsernameAvailable satisfies authservice.Store.
func (g *Gateway) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	return runBreaker(g, func() (bool, error) {
		var existing string
		query := fmt.Sprintf("SELECT username FROM users WHERE username = %s", g.placeholder(1))
		err := g.db.QueryRowContext(ctx, query, username).Scan(&existing)
		if err == sql.ErrNoRows {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		return false, nil
	})
}

// CreateUser satisfies authservice.Store. passwordHash is stored verbatim;
// authservice is responsible for salting/hashing before calling this.
func (g *Gateway) CreateUser(ctx context.Context, username, passwordHash string) (int64, error) {
	return runBreaker(g, func() (int64, error) {
		if g.dialect == "postgres" {
			var id int64
			query := "INSERT INTO users (username, display_name, password_hash) VALUES ($1, $1, $2) RETURNING id"
			if err := g.db.QueryRowContext(ctx, query, username, passwordHash).Scan(&id); err != nil {
				return 0, fmt.Errorf("insert user: %w", err)
			}
			if _, err := g.db.ExecContext(ctx, "INSERT INTO user_settings (user_id) VALUES ($1)", id); err != nil {
				return 0, fmt.Errorf("insert default settings: %w", err)
			}
			return id, nil
		}

		result, err := g.db.ExecContext(ctx,
			"INSERT INTO users (username, display_name, password_hash) VALUES (?, ?, ?)",
			username, username, passwordHash)
		if err != nil {
			return 0, fmt.Errorf("insert user: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("read inserted id: %w", err)
		}
		if _, err := g.db.ExecContext(ctx, "INSERT INTO user_settings (user_id) VALUES (?)", id); err != nil {
			return 0, fmt.Errorf("insert default settings: %w", err)
		}
		return id, nil
	})
}

// UpdateLastLogin satisfies authservice.Store.
func (g *Gateway) UpdateLastLogin(ctx context.Context, userID int64) error {
	_, err := runBreaker(g, func() (struct{}, error) {
		query := fmt.Sprintf("UPDATE users SET last_login = %s WHERE id = %s", g.placeholder(1), g.placeholder(2))
		_, err := g.db.ExecContext(ctx, query, time.Now(), userID)
		return struct{}{}, err
	})
	return err
}

// FindOrCreateExternalUser satisfies authservice.Store: the same subject
// always resolves to the same user id, creating a row on first sight.
func (g *Gateway) FindOrCreateExternalUser(ctx context.Context, subject, usernameHint string) (*authservice.User, error) {
	return runBreaker(g, func() (*authservice.User, error) {
		query := fmt.Sprintf("SELECT %s FROM users WHERE external_subject = %s", userColumns, g.placeholder(1))
		if u, err := scanUser(g.db.QueryRowContext(ctx, query, subject)); err != nil {
			return nil, err
		} else if u != nil {
			return u, nil
		}

		username := usernameHint
		for attempt := 0; ; attempt++ {
			candidate := username
			if attempt > 0 {
				candidate = fmt.Sprintf("%s%d", username, attempt)
			}

			var id int64
			var err error
			if g.dialect == "postgres" {
				err = g.db.QueryRowContext(ctx,
					"INSERT INTO users (username, display_name, external_subject) VALUES ($1, $1, $2) RETURNING id",
					candidate, subject).Scan(&id)
			} else {
				var result sql.Result
				result, err = g.db.ExecContext(ctx,
					"INSERT INTO users (username, display_name, external_subject) VALUES (?, ?, ?)",
					candidate, candidate, subject)
				if err == nil {
					id, err = result.LastInsertId()
				}
			}
			if err == nil {
				if _, serr := g.db.ExecContext(ctx, insertSettingsQuery(g.dialect), id); serr != nil {
					return nil, fmt.Errorf("insert default settings: %w", serr)
				}
				return &authservice.User{ID: id, Username: candidate, DisplayName: candidate, IsActive: true}, nil
			}
			if attempt >= 20 {
				return nil, fmt.Errorf("create external user: %w", err)
			}
		}
	})
}

func insertSettingsQuery(dialect string) string {
	if dialect == "postgres" {
		return "INSERT INTO user_settings (user_id) VALUES ($1)"
	}
	return "INSERT INTO user_settings (user_id) VALUES (?)"
}

// AuthenticateUser looks a user up and verifies password against the stored
// salt:hex(SHA256) hash directly, independent of authservice's in-process
// session layer. Agreement on the on-disk hash format is the contract
// between the two packages.
func (g *Gateway) AuthenticateUser(ctx context.Context, username, password string, saltRounds int) (*authservice.User, error) {
	user, err := g.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	if user == nil || !verifyStoredHash(password, user.PasswordHash, saltRounds) {
		return nil, authservice.ErrInvalidCredentials
	}
	if !user.IsActive {
		return nil, authservice.ErrAccountInactive
	}
	return user, nil
}

func verifyStoredHash(password, stored string, rounds int) bool {
	sep := -1
	for i := 0; i < len(stored); i++ {
		if stored[i] == ':' {
			sep = i
			break
		}
	}
	if sep < 0 {
		return false
	}
	saltHex, wantHex := stored[:sep], stored[sep+1:]
	want, err := hex.DecodeString(wantHex)
	if err != nil {
		return false
	}

	if rounds < 1 {
		rounds = 1
	}
	sum := sha256.Sum256([]byte(password + saltHex))
	digest := sum[:]
	for i := 1; i < rounds; i++ {
		next := sha256.Sum256(digest)
		digest = next[:]
	}
	return subtle.ConstantTimeCompare(digest, want) == 1
}

// UpdateGameStats applies the outcome of one finished game to a user's
// running totals. outcome is "win", "loss", or "draw".
func (g *Gateway) UpdateGameStats(ctx context.Context, userID int64, outcome string, score int) error {
	_, err := runBreaker(g, func() (struct{}, error) {
		var winInc, lossInc, drawInc int
		switch outcome {
		case "win":
			winInc = 1
		case "loss":
			lossInc = 1
		case "draw":
			drawInc = 1
		default:
			return struct{}{}, fmt.Errorf("unknown outcome %q", outcome)
		}

		query := `
			UPDATE users SET
				total_games = total_games + 1,
				wins = wins + PH1,
				losses = losses + PH2,
				draws = draws + PH3,
				total_score = total_score + PH4,
				best_score = CASE WHEN PH5 > best_score THEN PH6 ELSE best_score END
			WHERE id = PH7
		`
		query = bindPlaceholders(g.dialect, query, 7)
		_, err := g.db.ExecContext(ctx, query, winInc, lossInc, drawInc, score, score, score, userID)
		return struct{}{}, err
	})
	return err
}

// bindPlaceholders replaces sequential "PHn" markers with the dialect's
// positional parameter syntax.
func bindPlaceholders(dialect, query string, count int) string {
	for i := 1; i <= count; i++ {
		marker := fmt.Sprintf("PH%d", i)
		repl := "?"
		if dialect == "postgres" {
			repl = fmt.Sprintf("$%d", i)
		}
		query = strings.ReplaceAll(query, marker, repl)
	}
	return query
}
