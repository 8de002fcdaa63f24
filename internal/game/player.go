package game

import (
	"blokusserver/internal/rules"
	"blokusserver/internal/session"
)

// Player is one seat in a Room. All fields are only ever touched while the
// owning Room's mutex is held.
type Player struct {
	UserID      int64
	Username    string
	DisplayName string
	Session     *session.Session

	IsHost  bool
	IsReady bool

	Color           rules.Color
	Remaining       map[rules.BlockType]bool
	HasPlayedBefore bool
	Score           int

	AFK          bool
	TimeoutCount int
}

func newPlayer(s *session.Session, userID int64, username, displayName string) *Player {
	remaining := make(map[rules.BlockType]bool, len(rules.AllBlockTypes))
	for _, bt := range rules.AllBlockTypes {
		remaining[bt] = true
	}
	return &Player{
		UserID:      userID,
		Username:    username,
		DisplayName: displayName,
		Session:     s,
		Remaining:   remaining,
	}
}

// ready reports whether this player counts toward the start-gating check:
// the host is always considered ready regardless of IsReady.
func (p *Player) ready() bool {
	return p.IsHost || p.IsReady
}

// remainingCount is the number of unplayed blocks left.
func (p *Player) remainingCount() int {
	n := 0
	for _, has := range p.Remaining {
		if has {
			n++
		}
	}
	return n
}

// status adapts a Player into the rules package's minimal per-player view.
func (p *Player) status() rules.PlayerStatus {
	return rules.PlayerStatus{
		Color:           p.Color,
		HasPlayedBefore: p.HasPlayedBefore,
		Remaining:       p.Remaining,
	}
}
