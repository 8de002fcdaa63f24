package game

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestCreateRoomAssignsDenseIDs(t *testing.T) {
	m := NewManager(nil, nil)
	r1 := m.CreateRoom("Room One", "classic", false, 0)
	r2 := m.CreateRoom("Room Two", "classic", false, 0)
	require.Equal(t, int64(1), r1.ID)
	require.Equal(t, int64(2), r2.ID)
}

func TestGetFindsRegisteredRoom(t *testing.T) {
	m := NewManager(nil, nil)
	r := m.CreateRoom("Room", "classic", false, 0)
	got, ok := m.Get(r.ID)
	require.True(t, ok)
	require.Same(t, r, got)

	_, ok = m.Get(999)
	require.False(t, ok)
}

func TestListOmitsPrivateRooms(t *testing.T) {
	m := NewManager(nil, nil)
	m.CreateRoom("Public", "classic", false, 0)
	m.CreateRoom("Secret", "classic", true, 0)

	list := m.List()
	require.Len(t, list, 1)
	require.Equal(t, "Public", list[0].Name)
}

func TestRemoveRoomCallbackDropsFromRegistry(t *testing.T) {
	m := NewManager(nil, nil)
	seat := newTestSeat(t)
	r := m.CreateRoom("Room", "classic", false, 0)
	_, err := r.AddPlayer(seat.sess, 1, "alice", "alice")
	require.NoError(t, err)

	res := r.RemovePlayer(1)
	require.True(t, res.Empty)

	require.Eventually(t, func() bool {
		_, ok := m.Get(r.ID)
		return !ok
	}, 2*time.Second, 10*time.Millisecond)
}

func TestSweepOnceReclaimsEmptyRooms(t *testing.T) {
	m := NewManager(nil, nil)
	r := m.CreateRoom("Room", "classic", false, 0)
	_, ok := m.Get(r.ID)
	require.True(t, ok)

	m.sweepOnce()
	_, ok = m.Get(r.ID)
	require.False(t, ok)
}
