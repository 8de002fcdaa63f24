package game

import (
	"bufio"
	"context"
	"net"
	"testing"
	"time"

	"blokusserver/internal/rules"
	"blokusserver/internal/session"

	"github.com/stretchr/testify/require"
)

// testSeat pairs a live *session.Session with a channel draining every line
// written to it, so assertions can read server output without blocking the
// session's own write goroutine.
type testSeat struct {
	sess  *session.Session
	lines chan string
}

func newTestSeat(t *testing.T) *testSeat {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	s := session.New(serverConn, nil)
	t.Cleanup(func() { clientConn.Close() })

	lines := make(chan string, 64)
	go func() {
		reader := bufio.NewReader(clientConn)
		for {
			line, err := reader.ReadString('\n')
			if line != "" {
				lines <- line[:len(line)-1]
			}
			if err != nil {
				return
			}
		}
	}()
	return &testSeat{sess: s, lines: lines}
}

func (ts *testSeat) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-ts.lines:
		require.Equal(t, want, got)
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for line %q", want)
	}
}

func newTestRoom() *Room {
	return NewRoom(1, "Test Room", "classic", false, 30*time.Second, nil, nil, nil)
}

func TestAddPlayerAssignsCanonicalColors(t *testing.T) {
	r := newTestRoom()
	a, b := newTestSeat(t), newTestSeat(t)

	pa, err := r.AddPlayer(a.sess, 1, "alice", "alice")
	require.NoError(t, err)
	require.True(t, pa.IsHost)
	require.True(t, pa.IsReady)
	require.Equal(t, rules.Blue, pa.Color)

	pb, err := r.AddPlayer(b.sess, 2, "bob", "bob")
	require.NoError(t, err)
	require.False(t, pb.IsHost)
	require.Equal(t, rules.Yellow, pb.Color)
}

func TestAddPlayerRejectsFullRoom(t *testing.T) {
	r := newTestRoom()
	for i := int64(1); i <= 4; i++ {
		seat := newTestSeat(t)
		_, err := r.AddPlayer(seat.sess, i, "p", "p")
		require.NoError(t, err)
	}
	seat := newTestSeat(t)
	_, err := r.AddPlayer(seat.sess, 5, "p5", "p5")
	require.ErrorIs(t, err, ErrRoomFull)
}

func TestAddPlayerRejectsDuplicateSeat(t *testing.T) {
	r := newTestRoom()
	seat := newTestSeat(t)
	_, err := r.AddPlayer(seat.sess, 1, "alice", "alice")
	require.NoError(t, err)
	_, err = r.AddPlayer(seat.sess, 1, "alice", "alice")
	require.ErrorIs(t, err, ErrAlreadySeated)
}

func TestRemovePlayerPromotesNewHost(t *testing.T) {
	r := newTestRoom()
	a, b := newTestSeat(t), newTestSeat(t)
	_, _ = r.AddPlayer(a.sess, 1, "alice", "alice")
	_, _ = r.AddPlayer(b.sess, 2, "bob", "bob")

	res := r.RemovePlayer(1)
	require.True(t, res.Removed)
	require.False(t, res.Empty)
	require.True(t, res.HostChanged)
	require.Equal(t, "bob", res.NewHostUsername)
}

func TestRemovePlayerReportsEmpty(t *testing.T) {
	r := newTestRoom()
	a := newTestSeat(t)
	_, _ = r.AddPlayer(a.sess, 1, "alice", "alice")

	res := r.RemovePlayer(1)
	require.True(t, res.Empty)
}

func TestStartRequiresMinPlayersAndReadiness(t *testing.T) {
	r := newTestRoom()
	a := newTestSeat(t)
	_, _ = r.AddPlayer(a.sess, 1, "alice", "alice")

	_, _, err := r.Start(1)
	require.ErrorIs(t, err, ErrNotEnoughPlayers)

	b := newTestSeat(t)
	_, _ = r.AddPlayer(b.sess, 2, "bob", "bob")

	_, _, err = r.Start(1)
	require.ErrorIs(t, err, ErrNotAllReady)

	require.NoError(t, r.SetReady(2, true))
	_, _, err = r.Start(2)
	require.ErrorIs(t, err, ErrNotHost)

	targets, lines, err := r.Start(1)
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Len(t, lines, 3)
	require.Equal(t, "GAME_STARTED", lines[0])
}

func TestHandleBlockPlacementRejectsWrongPlayer(t *testing.T) {
	r := newTestRoom()
	a, b := newTestSeat(t), newTestSeat(t)
	_, _ = r.AddPlayer(a.sess, 1, "alice", "alice")
	_, _ = r.AddPlayer(b.sess, 2, "bob", "bob")
	require.NoError(t, r.SetReady(2, true))
	_, _, err := r.Start(1)
	require.NoError(t, err)

	_, _, err = r.HandleBlockPlacement(context.Background(), 2, rules.Placement{
		BlockType: rules.I1, Row: 19, Col: 19, Player: rules.Yellow,
	})
	require.ErrorIs(t, err, ErrInvalidMove)
}

func TestHandleBlockPlacementAppliesAndAdvancesTurn(t *testing.T) {
	r := newTestRoom()
	a, b := newTestSeat(t), newTestSeat(t)
	_, _ = r.AddPlayer(a.sess, 1, "alice", "alice")
	_, _ = r.AddPlayer(b.sess, 2, "bob", "bob")
	require.NoError(t, r.SetReady(2, true))
	_, _, err := r.Start(1)
	require.NoError(t, err)

	targets, lines, err := r.HandleBlockPlacement(context.Background(), 1, rules.Placement{
		BlockType: rules.I1, Row: 0, Col: 0, Player: rules.Blue,
	})
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Contains(t, lines[0], "BLOCK_PLACED:alice:")
	require.Contains(t, lines[len(lines)-1], "TURN_CHANGED:bob:")
}

func TestChatBroadcastExcludesSender(t *testing.T) {
	r := newTestRoom()
	a, b := newTestSeat(t), newTestSeat(t)
	_, _ = r.AddPlayer(a.sess, 1, "alice", "alice")
	_, _ = r.AddPlayer(b.sess, 2, "bob", "bob")

	require.NoError(t, r.ChatBroadcast(context.Background(), 1, "hello"))
	b.expect(t, "CHAT:alice:hello")

	select {
	case line := <-a.lines:
		t.Fatalf("sender should not receive a chat echo, got %q", line)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestAfkUnblockErrorsWhenGameNotActive(t *testing.T) {
	r := newTestRoom()
	a := newTestSeat(t)
	_, _ = r.AddPlayer(a.sess, 1, "alice", "alice")

	line, err := r.AfkUnblock(1)
	require.NoError(t, err)
	require.Equal(t, "AFK_UNBLOCK_ERROR:game_not_active:game has ended", line)
}
