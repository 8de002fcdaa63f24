package session

// State is the lifecycle stage of one TCP connection, gating which
// protocol operations it may invoke next.
type State int32

const (
	// StateConnected is the initial state: socket accepted, not yet
	// authenticated (or authenticated but not yet in the lobby).
	StateConnected State = iota
	// StateInLobby follows a successful auth plus an explicit lobby:enter.
	StateInLobby
	// StateInRoom follows joining or creating a room.
	StateInRoom
	// StateInGame follows that room's game starting.
	StateInGame
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "Connected"
	case StateInLobby:
		return "InLobby"
	case StateInRoom:
		return "InRoom"
	case StateInGame:
		return "InGame"
	default:
		return "Unknown"
	}
}

// CanCreateRoom reports whether a session in this state may create a room:
// only from the lobby, and only when not already seated somewhere.
func (s State) CanCreateRoom() bool { return s == StateInLobby }

// CanJoinRoom reports whether a session in this state may join a room.
func (s State) CanJoinRoom() bool { return s == StateInLobby }

// CanStartGame reports whether a session in this state may start the game
// in its current room (only the host does this, but that check happens at
// the room level; this is just the connection-state precondition).
func (s State) CanStartGame() bool { return s == StateInRoom }

// CanMakeGameMove reports whether a session in this state may submit a
// block placement or other in-game action.
func (s State) CanMakeGameMove() bool { return s == StateInGame }
