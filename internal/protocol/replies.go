package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

func boolField(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

func textBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// NormalizeColorIndex folds an out-of-range color index back into [1..4].
// This is a defensive tolerance for malformed upstream state, not something
// correct callers should ever need.
func NormalizeColorIndex(c int) int {
	return ((c-1)%4+4)%4 + 1
}

// Error is the generic failure reply; sent only to the requesting session.
func Error(reason string) string { return "ERROR:" + reason }

// System carries a server-originated informational message.
func System(text string) string { return "SYSTEM:" + text }

// Pong answers a ping.
func Pong() string { return "pong" }

// AuthSuccess reports a successful login together with the issued session
// token.
func AuthSuccess(username, token string) string {
	return fmt.Sprintf("AUTH_SUCCESS:%s:%s", username, token)
}

// RegisterSuccess confirms account creation.
func RegisterSuccess(username string, userID int64) string {
	return fmt.Sprintf("REGISTER_SUCCESS:%s:%d", username, userID)
}

// LogoutSuccess confirms an explicit logout.
func LogoutSuccess() string { return "LOGOUT_SUCCESS" }

// LobbyEntered confirms the Connected -> InLobby transition.
func LobbyEntered() string { return "LOBBY_ENTERED" }

// LobbyUserJoined/LobbyUserLeft are fanned out to the lobby on membership changes.
func LobbyUserJoined(username string) string { return "LOBBY_USER_JOINED:" + username }
func LobbyUserLeft(username string) string   { return "LOBBY_USER_LEFT:" + username }

// RoomSummary is one row of a ROOM_LIST reply.
type RoomSummary struct {
	ID      int64
	Name    string
	Host    string
	Players int
	Max     int
	Private bool
	Playing bool
	Mode    string
}

// RoomList formats the full set of currently listable rooms.
func RoomList(rooms []RoomSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ROOM_LIST:%d", len(rooms))
	for _, r := range rooms {
		fmt.Fprintf(&b, ":%d,%s,%s,%d,%d,%s,%s,%s",
			r.ID, r.Name, r.Host, r.Players, r.Max, boolField(r.Private), boolField(r.Playing), r.Mode)
	}
	return b.String()
}

// RoomCreated confirms room creation to the host.
func RoomCreated(id int64, name string) string {
	return fmt.Sprintf("ROOM_CREATED:%d:%s", id, name)
}

// RoomJoined confirms a join to the joining session.
func RoomJoined(id int64, name string) string {
	return fmt.Sprintf("ROOM_JOINED:%d:%s", id, name)
}

// PlayerSummary is one seated player inside a ROOM_INFO reply.
type PlayerSummary struct {
	UserID      int64
	Username    string
	DisplayName string
	IsHost      bool
	IsReady     bool
	ColorIndex  int
}

// RoomInfo describes full room state, broadcast to every member on any
// membership or readiness change.
func RoomInfo(id int64, name, host string, playerCount, max int, private, playing bool, mode string, players []PlayerSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "ROOM_INFO:%d:%s:%s:%d:%d:%s:%s:%s",
		id, name, host, playerCount, max, boolField(private), boolField(playing), mode)
	for _, p := range players {
		fmt.Fprintf(&b, ":%d,%s,%s,%s,%s,%d",
			p.UserID, p.Username, p.DisplayName, boolField(p.IsHost), boolField(p.IsReady), NormalizeColorIndex(p.ColorIndex))
	}
	return b.String()
}

// GameStarted announces the Waiting -> Playing transition.
func GameStarted() string { return "GAME_STARTED" }

// GameStateUpdate carries a JSON snapshot of the board/game state.
func GameStateUpdate(jsonBody string) string { return "GAME_STATE_UPDATE:" + jsonBody }

// TurnChanged announces whose turn it now is.
func TurnChanged(player string, color, turnNo, timeLimit, remaining int, previousTimedOut bool) string {
	return fmt.Sprintf("TURN_CHANGED:%s:%d:%d:%d:%d:%s",
		player, color, turnNo, timeLimit, remaining, textBool(previousTimedOut))
}

// BlockPlaced announces an accepted placement.
func BlockPlaced(player string, blockType, row, col, rot, flip, color, scoreGained int) string {
	return fmt.Sprintf("BLOCK_PLACED:%s:%d:%d:%d:%d:%d:%d:%d",
		player, blockType, row, col, rot, flip, color, scoreGained)
}

// TurnTimeout announces a player's turn expired without a move.
func TurnTimeout(player string, color int) string {
	return fmt.Sprintf("TURN_TIMEOUT:%s:%d", player, color)
}

// AfkModeActivated carries a JSON body: {reason, timeoutCount, maxCount}.
func AfkModeActivated(jsonBody string) string { return "AFK_MODE_ACTIVATED:" + jsonBody }

// AfkUnblockError reports afk:unblock arriving for a player whose game
// already ended.
func AfkUnblockError(reason, msg string) string {
	return fmt.Sprintf("AFK_UNBLOCK_ERROR:%s:%s", reason, msg)
}

// GameResult carries the JSON body: {scores, winners}.
func GameResult(jsonBody string) string { return "GAME_RESULT:" + jsonBody }

// GameEnded announces the Playing -> Waiting transition after a result.
func GameEnded() string { return "GAME_ENDED" }

// HostChanged announces a new host after the previous one left.
func HostChanged(username string) string { return "HOST_CHANGED:" + username }

// VersionOk confirms a compatible client version.
func VersionOk() string { return "VERSION_OK" }

// VersionIncompatible rejects a client below the minimum supported version.
func VersionIncompatible(minRequired, downloadURL string, forceUpdate bool) string {
	return fmt.Sprintf("VERSION_INCOMPATIBLE:%s:%s:%s", minRequired, downloadURL, boolField(forceUpdate))
}

// ChatBroadcast re-sends a chat message to every other recipient in the
// sender's room or lobby. The sender itself is never a recipient.
func ChatBroadcast(sender, text string) string {
	return fmt.Sprintf("CHAT:%s:%s", sender, text)
}

// UserStats formats the user:stats reply body as a colon-separated record.
func UserStats(totalGames, wins, losses, draws, level, experience, totalScore, bestScore int64) string {
	return fmt.Sprintf("USER_STATS:%s:%s:%s:%s:%s:%s:%s:%s",
		strconv.FormatInt(totalGames, 10), strconv.FormatInt(wins, 10), strconv.FormatInt(losses, 10),
		strconv.FormatInt(draws, 10), strconv.FormatInt(level, 10), strconv.FormatInt(experience, 10),
		strconv.FormatInt(totalScore, 10), strconv.FormatInt(bestScore, 10))
}
