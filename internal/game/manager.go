package game

import (
	"context"
	"strconv"
	"sync"
	"time"

	"blokusserver/internal/bus"
	"blokusserver/internal/database"
	"blokusserver/internal/logging"
	"blokusserver/internal/metrics"
	"blokusserver/internal/protocol"

	"go.uber.org/zap"
)

// inactiveSweepInterval is how often the manager scans for rooms that are
// empty or have sat idle past idleTimeout.
const inactiveSweepInterval = 1 * time.Minute

// idleTimeout is how long a waiting room with no activity may sit before
// the sweep reclaims it, independent of its membership.
const idleTimeout = 30 * time.Minute

// Manager is the registry of live rooms: dense int64 IDs, creation,
// lookup, listing, and background reclamation of rooms nobody is using.
type Manager struct {
	mu       sync.Mutex
	rooms    map[int64]*Room
	nextID   int64
	db       *database.Gateway
	bus      *bus.Service
	lastSeen map[int64]time.Time
}

// NewManager constructs an empty room registry.
func NewManager(db *database.Gateway, busSvc *bus.Service) *Manager {
	return &Manager{
		rooms:    make(map[int64]*Room),
		lastSeen: make(map[int64]time.Time),
		db:       db,
		bus:      busSvc,
	}
}

// CreateRoom allocates the next free room ID and registers a new Room.
func (m *Manager) CreateRoom(name, mode string, private bool, timeLimit time.Duration) *Room {
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.mu.Unlock()

	room := NewRoom(id, name, mode, private, timeLimit, m.db, m.bus, m.removeRoom)

	m.mu.Lock()
	m.rooms[id] = room
	m.lastSeen[id] = time.Now()
	m.mu.Unlock()

	metrics.ActiveRooms.Inc()
	metrics.RoomPlayers.WithLabelValues(strconv.FormatInt(id, 10)).Set(0)
	return room
}

// Get looks up a room by ID.
func (m *Manager) Get(id int64) (*Room, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rooms[id]
	return r, ok
}

// Touch records that id had recent activity, exempting it from the idle sweep.
func (m *Manager) Touch(id int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rooms[id]; ok {
		m.lastSeen[id] = time.Now()
	}
}

// List returns a ROOM_LIST-ready summary of every non-private room.
func (m *Manager) List() []protocol.RoomSummary {
	m.mu.Lock()
	rooms := make([]*Room, 0, len(m.rooms))
	for _, r := range m.rooms {
		rooms = append(rooms, r)
	}
	m.mu.Unlock()

	out := make([]protocol.RoomSummary, 0, len(rooms))
	for _, r := range rooms {
		s := r.Summary()
		if !s.Private {
			out = append(out, s)
		}
	}
	return out
}

// removeRoom drops a room from the registry. Passed to each Room as its
// onEmpty callback, invoked once the last player leaves.
func (m *Manager) removeRoom(id int64) {
	m.mu.Lock()
	_, ok := m.rooms[id]
	delete(m.rooms, id)
	delete(m.lastSeen, id)
	m.mu.Unlock()

	if ok {
		metrics.ActiveRooms.Dec()
		metrics.RoomPlayers.DeleteLabelValues(strconv.FormatInt(id, 10))
	}
}

// RunSweep blocks until ctx is canceled, periodically reclaiming empty or
// long-idle rooms. Intended to run in its own goroutine from cmd/server.
func (m *Manager) RunSweep(ctx context.Context) {
	ticker := time.NewTicker(inactiveSweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce()
		}
	}
}

func (m *Manager) sweepOnce() {
	m.mu.Lock()
	var stale []int64
	now := time.Now()
	for id, r := range m.rooms {
		if r.PlayerCount() == 0 {
			stale = append(stale, id)
			continue
		}
		if r.State() == StateWaiting && now.Sub(m.lastSeen[id]) > idleTimeout {
			stale = append(stale, id)
		}
	}
	m.mu.Unlock()

	for _, id := range stale {
		m.removeRoom(id)
		logging.Info(context.Background(), "reclaimed inactive room", zap.Int64("room_id", id))
	}
}
