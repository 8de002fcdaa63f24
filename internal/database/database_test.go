package database

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"blokusserver/internal/config"

	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T) *Gateway {
	t.Helper()
	cfg := &config.Config{
		DBType:     "sqlite",
		DBName:     "file::memory:?cache=shared",
		DBPoolSize: 1,
	}
	g, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { g.Close() })
	return g
}

func TestCreateUserThenGetByUsername(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	id, err := g.CreateUser(ctx, "alice", "salt:hash")
	require.NoError(t, err)
	require.Positive(t, id)

	u, err := g.GetUserByUsername(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, u)
	require.Equal(t, id, u.ID)
	require.True(t, u.IsActive)

	available, err := g.IsUsernameAvailable(ctx, "alice")
	require.NoError(t, err)
	require.False(t, available)

	available, err = g.IsUsernameAvailable(ctx, "bob")
	require.NoError(t, err)
	require.True(t, available)
}

func TestGetUserByUsernameMissingReturnsNilNoError(t *testing.T) {
	g := newTestGateway(t)
	u, err := g.GetUserByUsername(context.Background(), "ghost")
	require.NoError(t, err)
	require.Nil(t, u)
}

func TestAuthenticateUserRoundTrip(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	hash := testHash(t, "hunter2", 3)
	_, err := g.CreateUser(ctx, "carol", hash)
	require.NoError(t, err)

	u, err := g.AuthenticateUser(ctx, "carol", "hunter2", 3)
	require.NoError(t, err)
	require.Equal(t, "carol", u.Username)

	_, err = g.AuthenticateUser(ctx, "carol", "wrong", 3)
	require.Error(t, err)
}

func TestFindOrCreateExternalUserIsIdempotent(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	first, err := g.FindOrCreateExternalUser(ctx, "sub-1", "dave")
	require.NoError(t, err)

	second, err := g.FindOrCreateExternalUser(ctx, "sub-1", "dave")
	require.NoError(t, err)

	require.Equal(t, first.ID, second.ID)
}

func TestUserSettingsDefaultsThenUpsert(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	id, err := g.CreateUser(ctx, "erin", "salt:hash")
	require.NoError(t, err)

	s, err := g.GetUserSettings(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "light", s.Theme)
	require.Equal(t, 80, s.BGMVolume)

	s.Theme = "dark"
	s.BGMMute = true
	require.NoError(t, g.UpdateUserSettings(ctx, s))

	reloaded, err := g.GetUserSettings(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "dark", reloaded.Theme)
	require.True(t, reloaded.BGMMute)

	require.NoError(t, g.DeleteUserSettings(ctx, id))
	reverted, err := g.GetUserSettings(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "light", reverted.Theme)
}

func TestSaveGameResultsUpdatesStatsAndLevels(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	aliceID, err := g.CreateUser(ctx, "alice2", "salt:hash")
	require.NoError(t, err)
	bobID, err := g.CreateUser(ctx, "bob2", "salt:hash")
	require.NoError(t, err)

	gameID, err := g.SaveGameResults(ctx, GameResult{
		PlayerIDs: []int64{aliceID, bobID},
		Scores:    []int{80, 40},
		IsWinner:  []bool{true, false},
		IsDraw:    false,
	})
	require.NoError(t, err)
	require.NotEmpty(t, gameID)

	stats, err := g.GetStats(ctx, aliceID)
	require.NoError(t, err)
	require.Equal(t, 1, stats.TotalGames)
	require.Equal(t, 1, stats.Wins)
	require.Equal(t, 80, stats.BestScore)
}

func TestGetRankingRejectsUnknownColumn(t *testing.T) {
	g := newTestGateway(t)
	_, err := g.GetRanking(context.Background(), "nonsense", 10, 0)
	require.Error(t, err)
}

func TestGetRankingOrdersDescending(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	loID, err := g.CreateUser(ctx, "lo", "salt:hash")
	require.NoError(t, err)
	hiID, err := g.CreateUser(ctx, "hi", "salt:hash")
	require.NoError(t, err)

	require.NoError(t, g.UpdateGameStats(ctx, loID, "win", 10))
	require.NoError(t, g.UpdateGameStats(ctx, hiID, "win", 90))

	ranking, err := g.GetRanking(ctx, "score", 10, 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(ranking), 2)
	require.Equal(t, "hi", ranking[0].Username)
}

func TestGetOnlineUsersReturnsRequestedIDs(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	id1, err := g.CreateUser(ctx, "on1", "salt:hash")
	require.NoError(t, err)
	id2, err := g.CreateUser(ctx, "on2", "salt:hash")
	require.NoError(t, err)

	users, err := g.GetOnlineUsers(ctx, []int64{id1, id2})
	require.NoError(t, err)
	require.Len(t, users, 2)
}

func TestRequiredExpForLevelIncreasesWithLevel(t *testing.T) {
	require.Less(t, RequiredExpForLevel(1), RequiredExpForLevel(5))
	require.Less(t, RequiredExpForLevel(5), RequiredExpForLevel(10))
}

func TestExperienceGainRewardsWinsAndCompletion(t *testing.T) {
	base := ExperienceGain(false, 40, false)
	withCompletion := ExperienceGain(false, 40, true)
	withWin := ExperienceGain(true, 40, true)

	require.Less(t, base, withCompletion)
	require.Less(t, withCompletion, withWin)
}

func TestCheckAndProcessLevelUpAdvancesLevel(t *testing.T) {
	g := newTestGateway(t)
	ctx := context.Background()

	id, err := g.CreateUser(ctx, "leveler", "salt:hash")
	require.NoError(t, err)

	require.NoError(t, g.UpdatePlayerExperience(ctx, id, RequiredExpForLevel(1)+5))

	gained, err := g.CheckAndProcessLevelUp(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 1, gained)

	stats, err := g.GetStats(ctx, id)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Level)
	require.Equal(t, 5, stats.Experience)
}

func TestPingSucceedsOnOpenConnection(t *testing.T) {
	g := newTestGateway(t)
	require.NoError(t, g.Ping(context.Background()))
}

func testHash(t *testing.T, password string, rounds int) string {
	t.Helper()
	// Mirrors authservice's salt:hex(SHA256^rounds) format with a fixed salt
	// so the test is deterministic.
	const saltHex = "deadbeefcafef00d"
	sum := sha256.Sum256([]byte(password + saltHex))
	digest := sum[:]
	for i := 1; i < rounds; i++ {
		next := sha256.Sum256(digest)
		digest = next[:]
	}
	return saltHex + ":" + hex.EncodeToString(digest)
}
