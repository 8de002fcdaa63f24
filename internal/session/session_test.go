package session

import (
	"bufio"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func pipePair(t *testing.T) (*Session, net.Conn, chan *Session) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	disconnected := make(chan *Session, 1)
	s := New(serverConn, func(s *Session) { disconnected <- s })
	t.Cleanup(func() { clientConn.Close() })
	return s, clientConn, disconnected
}

func TestNewSessionStartsConnectedWithNoRoom(t *testing.T) {
	s, _, _ := pipePair(t)
	require.Equal(t, StateConnected, s.State())
	require.Equal(t, int64(noRoom), s.RoomID())
	require.Equal(t, int64(0), s.UserID())
	require.Equal(t, "", s.Username())
	require.NotEmpty(t, s.ID())
}

func TestBindUserAndRoomID(t *testing.T) {
	s, _, _ := pipePair(t)
	s.BindUser(42, "alice")
	require.Equal(t, int64(42), s.UserID())
	require.Equal(t, "alice", s.Username())

	s.SetRoomID(7)
	require.Equal(t, int64(7), s.RoomID())
	s.SetRoomID(noRoom)
	require.Equal(t, int64(noRoom), s.RoomID())
}

func TestStatePredicates(t *testing.T) {
	require.True(t, StateInLobby.CanCreateRoom())
	require.False(t, StateConnected.CanCreateRoom())
	require.True(t, StateInLobby.CanJoinRoom())
	require.True(t, StateInRoom.CanStartGame())
	require.False(t, StateInLobby.CanStartGame())
	require.True(t, StateInGame.CanMakeGameMove())
	require.False(t, StateInRoom.CanMakeGameMove())
}

func TestSendDeliversFramedLines(t *testing.T) {
	s, clientConn, _ := pipePair(t)
	defer s.Close()

	s.Send("HELLO:1")
	s.Send("HELLO:2")

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reader := bufio.NewReader(clientConn)
	line1, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "HELLO:1\n", line1)

	line2, err := reader.ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "HELLO:2\n", line2)
}

func TestReadLoopDispatchesCompleteLines(t *testing.T) {
	s, clientConn, disconnected := pipePair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	received := make(chan string, 2)
	go s.ReadLoop(ctx, func(ctx context.Context, s *Session, line string) {
		received <- line
	})

	go func() {
		clientConn.Write([]byte("ping\n"))
		clientConn.Write([]byte("chat:hello world\n"))
	}()

	require.Equal(t, "ping", <-received)
	require.Equal(t, "chat:hello world", <-received)

	clientConn.Close()
	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("onDisconnect was not invoked after client closed")
	}
}

func TestReadLoopTouchesActivityClock(t *testing.T) {
	s, clientConn, _ := pipePair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	before := s.IdleFor()
	go s.ReadLoop(ctx, func(ctx context.Context, s *Session, line string) {})
	time.Sleep(20 * time.Millisecond)
	clientConn.Write([]byte("ping\n"))
	time.Sleep(20 * time.Millisecond)

	require.Less(t, s.IdleFor(), before+time.Second)
}

func TestReadLoopDisconnectsOnOverflowLine(t *testing.T) {
	s, clientConn, disconnected := pipePair(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go s.ReadLoop(ctx, func(ctx context.Context, s *Session, line string) {})

	overflow := []byte(strings.Repeat("a", maxLineSize+1))
	go clientConn.Write(overflow)

	select {
	case <-disconnected:
	case <-time.After(2 * time.Second):
		t.Fatal("expected session to disconnect after overflow line")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	s, _, _ := pipePair(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
}
