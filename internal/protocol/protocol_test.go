package protocol

import (
	"context"
	"net"
	"testing"
	"time"

	"blokusserver/internal/session"

	"github.com/stretchr/testify/require"
)

func TestParseLineSimpleOpcode(t *testing.T) {
	m := ParseLine("ping")
	require.Equal(t, "ping", m.Opcode)
	require.Empty(t, m.Fields)
}

func TestParseLineWithParams(t *testing.T) {
	m := ParseLine("auth:alice:secret6")
	require.Equal(t, OpAuth, m.Opcode)
	require.Equal(t, []string{"alice", "secret6"}, m.Fields)
}

func TestParseLinePreservesEmptyOptionalFields(t *testing.T) {
	m := ParseLine("register:alice::secret6")
	require.Equal(t, OpRegister, m.Opcode)
	require.Equal(t, []string{"alice", "", "secret6"}, m.Fields)
	require.Equal(t, "", m.Field(1))
	require.Equal(t, "secret6", m.Field(2))
}

func TestParseLineTwoSegmentOpcodes(t *testing.T) {
	m := ParseLine("lobby:enter")
	require.Equal(t, OpLobbyEnter, m.Opcode)
	require.Empty(t, m.Fields)

	m = ParseLine("room:create:Alice's Room:0:")
	require.Equal(t, OpRoomCreate, m.Opcode)
	require.Equal(t, []string{"Alice's Room", "0", ""}, m.Fields)

	m = ParseLine("game:move:1:0:0:0:0")
	require.Equal(t, OpGameMove, m.Opcode)
	require.Equal(t, []string{"1", "0", "0", "0", "0"}, m.Fields)

	m = ParseLine("version:check:1.2.0")
	require.Equal(t, OpVersionCheck, m.Opcode)
	require.Equal(t, []string{"1.2.0"}, m.Fields)

	m = ParseLine("afk:unblock")
	require.Equal(t, OpAfkUnblock, m.Opcode)
	require.Empty(t, m.Fields)
}

func TestFieldOutOfRangeReturnsEmpty(t *testing.T) {
	m := ParseLine("ping")
	require.Equal(t, "", m.Field(0))
	require.Equal(t, "", m.Field(-1))
}

func TestRouterDispatchesRegisteredHandler(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	s := session.New(serverConn, nil)

	r := NewRouter()
	r.Handle(OpPing, func(ctx context.Context, s *session.Session, msg Message) {
		s.Send(Pong())
	})

	go r.Dispatch(context.Background(), s, "ping")

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := clientConn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "pong\n", string(buf[:n]))
}

func TestRouterDispatchesVersionCheckAndAfkUnblockByLine(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	s := session.New(serverConn, nil)

	r := NewRouter()
	r.Handle(OpVersionCheck, func(ctx context.Context, s *session.Session, msg Message) {
		s.Send(VersionOk())
	})
	r.Handle(OpAfkUnblock, func(ctx context.Context, s *session.Session, msg Message) {
		s.Send("AFK_UNBLOCKED")
	})

	go r.Dispatch(context.Background(), s, "version:check:1.2.0")
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := clientConn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "VERSION_OK\n", string(buf[:n]))

	go r.Dispatch(context.Background(), s, "afk:unblock")
	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	n, err = clientConn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "AFK_UNBLOCKED\n", string(buf[:n]))
}

func TestRouterRejectsUnknownOpcode(t *testing.T) {
	serverConn, clientConn := net.Pipe()
	defer clientConn.Close()
	s := session.New(serverConn, nil)

	r := NewRouter()
	go r.Dispatch(context.Background(), s, "nonsense:opcode")

	clientConn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, err := clientConn.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ERROR:unknown opcode\n", string(buf[:n]))
}

func TestNormalizeColorIndex(t *testing.T) {
	require.Equal(t, 1, NormalizeColorIndex(1))
	require.Equal(t, 4, NormalizeColorIndex(4))
	require.Equal(t, 1, NormalizeColorIndex(5))
	require.Equal(t, 2, NormalizeColorIndex(6))
	require.Equal(t, 4, NormalizeColorIndex(0))
	require.Equal(t, 3, NormalizeColorIndex(-1))
}

func TestRoomListFormat(t *testing.T) {
	got := RoomList([]RoomSummary{{ID: 5, Name: "Alice's Room", Host: "alice", Players: 1, Max: 4, Mode: "classic"}})
	require.Equal(t, "ROOM_LIST:1:5,Alice's Room,alice,1,4,0,0,classic", got)
}

func TestRoomInfoFormat(t *testing.T) {
	got := RoomInfo(5, "Alice's Room", "alice", 2, 4, false, false, "classic", []PlayerSummary{
		{UserID: 10, Username: "alice", DisplayName: "alice", IsHost: true, IsReady: true, ColorIndex: 1},
		{UserID: 11, Username: "bob", DisplayName: "bob", IsHost: false, IsReady: false, ColorIndex: 2},
	})
	require.Equal(t, "ROOM_INFO:5:Alice's Room:alice:2:4:0:0:classic:10,alice,alice,1,1,1:11,bob,bob,0,0,2", got)
}

func TestTurnChangedFormat(t *testing.T) {
	got := TurnChanged("alice", 1, 1, 30, 30, false)
	require.Equal(t, "TURN_CHANGED:alice:1:1:30:30:false", got)
}

func TestBlockPlacedFormat(t *testing.T) {
	got := BlockPlaced("alice", 1, 0, 0, 0, 0, 1, 1)
	require.Equal(t, "BLOCK_PLACED:alice:1:0:0:0:0:1:1", got)
}

func TestAuthAndRegisterSuccessFormats(t *testing.T) {
	require.Equal(t, "REGISTER_SUCCESS:alice:7", RegisterSuccess("alice", 7))
	require.Equal(t, "AUTH_SUCCESS:alice:deadbeef", AuthSuccess("alice", "deadbeef"))
}
