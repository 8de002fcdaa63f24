package game

import (
	"sync"

	"blokusserver/internal/protocol"
	"blokusserver/internal/session"
)

// Lobby tracks every session currently in session.StateInLobby and fans out
// the join/leave/chat notifications spec.md's lobby screen depends on.
// Unlike Room, a Lobby has no readiness or turn-order state: membership is
// the only thing it manages.
type Lobby struct {
	mu       sync.Mutex
	sessions map[int64]*session.Session
}

// NewLobby constructs an empty lobby coordinator.
func NewLobby() *Lobby {
	return &Lobby{sessions: make(map[int64]*session.Session)}
}

// Enter adds userID's session to the lobby and notifies every other member.
func (l *Lobby) Enter(s *session.Session, userID int64, username string) {
	l.mu.Lock()
	l.sessions[userID] = s
	targets := l.othersLocked(userID)
	l.mu.Unlock()

	line := protocol.LobbyUserJoined(username)
	for _, other := range targets {
		other.Send(line)
	}
}

// Leave removes userID from the lobby and notifies the remaining members.
// A no-op if userID was never a member (e.g. it disconnected before
// ever entering the lobby).
func (l *Lobby) Leave(userID int64, username string) {
	l.mu.Lock()
	if _, ok := l.sessions[userID]; !ok {
		l.mu.Unlock()
		return
	}
	delete(l.sessions, userID)
	targets := l.othersLocked(userID)
	l.mu.Unlock()

	line := protocol.LobbyUserLeft(username)
	for _, other := range targets {
		other.Send(line)
	}
}

// BroadcastChat fans a lobby chat line out to every member except the
// sender, mirroring Room.ChatBroadcast's no-echo rule.
func (l *Lobby) BroadcastChat(senderUserID int64, senderUsername, text string) {
	l.mu.Lock()
	targets := l.othersLocked(senderUserID)
	l.mu.Unlock()

	line := protocol.ChatBroadcast(senderUsername, text)
	for _, other := range targets {
		other.Send(line)
	}
}

// Has reports whether userID currently holds a lobby slot.
func (l *Lobby) Has(userID int64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.sessions[userID]
	return ok
}

// Sessions returns every currently-lobbied session, for lobby-wide fan-out
// (e.g. a fresh ROOM_LIST after a room is created or destroyed).
func (l *Lobby) Sessions() []*session.Session {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*session.Session, 0, len(l.sessions))
	for _, s := range l.sessions {
		out = append(out, s)
	}
	return out
}

// Count reports current lobby membership.
func (l *Lobby) Count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sessions)
}

func (l *Lobby) othersLocked(excludeUserID int64) []*session.Session {
	out := make([]*session.Session, 0, len(l.sessions))
	for id, s := range l.sessions {
		if id != excludeUserID {
			out = append(out, s)
		}
	}
	return out
}
