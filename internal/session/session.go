// Package session owns the per-connection object: a line-delimited TCP
// socket wrapped with buffered reads, a serialized write queue, and the
// connection-state machine that gates which protocol operations the
// connected client may invoke next.
package session

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"blokusserver/internal/logging"
	"blokusserver/internal/metrics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// maxLineSize bounds a single incoming message; a connection that sends
	// a line longer than this without a newline is disconnected.
	maxLineSize = 8 * 1024

	readChunkSize = 4096
	writeTimeout  = 10 * time.Second
)

// DisconnectFunc is invoked once, after the read loop exits for any reason
// (client close, protocol overflow, or explicit Close), so the owner (the
// room/lobby registry) can remove the session from whatever it belongs to.
type DisconnectFunc func(s *Session)

// Session is one TCP client connection. All exported accessors are safe
// for concurrent use; Send may be called from any goroutine dispatching a
// reply to this connection.
type Session struct {
	id         string
	conn       net.Conn
	remoteAddr string

	state  atomic.Int32
	userID atomic.Int64
	roomID atomic.Int64

	usernameMu sync.RWMutex
	username   string

	lastActivity atomic.Int64 // unix nanos

	writeMu    sync.Mutex
	writeQueue [][]byte
	writing    bool

	closeOnce sync.Once
	closed    atomic.Bool

	onDisconnect DisconnectFunc
}

// noRoom is the sentinel RoomID value meaning "not currently seated in a room".
const noRoom int64 = -1

// New wraps conn in a Session. onDisconnect may be nil.
func New(conn net.Conn, onDisconnect DisconnectFunc) *Session {
	s := &Session{
		id:           uuid.New().String(),
		conn:         conn,
		remoteAddr:   conn.RemoteAddr().String(),
		onDisconnect: onDisconnect,
	}
	s.roomID.Store(noRoom)
	s.state.Store(int32(StateConnected))
	s.Touch()
	metrics.IncSession()
	return s
}

// ID is the server-generated identifier for this connection, stable for
// its lifetime and distinct from the authenticated user id.
func (s *Session) ID() string { return s.id }

// RemoteAddr is the client's address, captured at accept time.
func (s *Session) RemoteAddr() string { return s.remoteAddr }

// State returns the current connection-state stage.
func (s *Session) State() State { return State(s.state.Load()) }

// SetState transitions the connection to a new stage.
func (s *Session) SetState(st State) { s.state.Store(int32(st)) }

// UserID returns the bound user id, or 0 if the session has not authenticated.
func (s *Session) UserID() int64 { return s.userID.Load() }

// Username returns the display name bound at authentication time, or "" if
// not yet authenticated.
func (s *Session) Username() string {
	s.usernameMu.RLock()
	defer s.usernameMu.RUnlock()
	return s.username
}

// BindUser associates this connection with an authenticated account.
func (s *Session) BindUser(userID int64, username string) {
	s.userID.Store(userID)
	s.usernameMu.Lock()
	s.username = username
	s.usernameMu.Unlock()
}

// RoomID returns the id of the room this session currently occupies, or -1
// if it isn't seated in one.
func (s *Session) RoomID() int64 { return s.roomID.Load() }

// SetRoomID records which room this session currently occupies. Pass -1 to
// clear it.
func (s *Session) SetRoomID(roomID int64) { s.roomID.Store(roomID) }

// Touch refreshes the idle-activity clock; called on every inbound line.
func (s *Session) Touch() { s.lastActivity.Store(time.Now().UnixNano()) }

// IdleFor reports how long it has been since the last inbound message.
func (s *Session) IdleFor() time.Duration {
	last := s.lastActivity.Load()
	return time.Since(time.Unix(0, last))
}

// Send enqueues a reply line for delivery. It returns immediately; the
// write happens on a dedicated goroutine that starts if none is already
// draining the queue, and keeps chaining through queued lines until it is
// empty.
func (s *Session) Send(line string) {
	if s.closed.Load() {
		return
	}
	s.writeMu.Lock()
	s.writeQueue = append(s.writeQueue, []byte(line))
	if s.writing {
		s.writeMu.Unlock()
		return
	}
	s.writing = true
	s.writeMu.Unlock()
	go s.drainWrites()
}

func (s *Session) drainWrites() {
	for {
		s.writeMu.Lock()
		if len(s.writeQueue) == 0 {
			s.writing = false
			s.writeMu.Unlock()
			return
		}
		line := s.writeQueue[0]
		s.writeQueue = s.writeQueue[1:]
		s.writeMu.Unlock()

		s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if _, err := s.conn.Write(append(line, '\n')); err != nil {
			logging.Warn(context.Background(), "write failed, closing session",
				zap.String("session_id", s.id), zap.Error(err))
			s.Close()
			return
		}
	}
}

// Dispatch is called once per complete line the client sends.
type Dispatch func(ctx context.Context, s *Session, line string)

// ReadLoop blocks reading lines from the connection until the client
// disconnects, the line cap is exceeded, or ctx is cancelled. It always
// closes the connection and invokes onDisconnect exactly once before
// returning.
func (s *Session) ReadLoop(ctx context.Context, dispatch Dispatch) {
	defer func() {
		s.Close()
		metrics.DecSession()
		if s.onDisconnect != nil {
			s.onDisconnect(s)
		}
	}()

	buf := make([]byte, readChunkSize)
	var pending []byte

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		n, err := s.conn.Read(buf)
		if n > 0 {
			pending = append(pending, buf[:n]...)
			for {
				idx := bytes.IndexByte(pending, '\n')
				if idx < 0 {
					if len(pending) > maxLineSize {
						logging.Warn(ctx, "line too long, disconnecting",
							zap.String("session_id", s.id), zap.Int("size", len(pending)))
						return
					}
					break
				}
				line := strings.TrimRight(string(pending[:idx]), "\r")
				pending = pending[idx+1:]
				if len(line) > maxLineSize {
					logging.Warn(ctx, "line too long, disconnecting",
						zap.String("session_id", s.id), zap.Int("size", len(line)))
					return
				}
				s.Touch()
				dispatch(ctx, s, line)
			}
		}
		if err != nil {
			return
		}
	}
}

// Close shuts down the underlying connection. Safe to call more than once
// and concurrently with ReadLoop/Send.
func (s *Session) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		err = s.conn.Close()
	})
	return err
}

func (s *Session) String() string {
	return fmt.Sprintf("Session{id=%s user=%d room=%d state=%s}", s.id, s.UserID(), s.RoomID(), s.State())
}
