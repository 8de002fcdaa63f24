package game

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"sync"
	"time"

	"blokusserver/internal/bus"
	"blokusserver/internal/database"
	"blokusserver/internal/logging"
	"blokusserver/internal/protocol"
	"blokusserver/internal/rules"
	"blokusserver/internal/session"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrRoomNotWaiting reports a room that is not accepting players. No Room
	// method returns it; AddPlayer reports a running game as
	// ErrGameAlreadyStarted.
	ErrRoomNotWaiting = errors.New("room is not accepting players")
	// ErrRoomFull is returned when a fifth player attempts to join.
	ErrRoomFull = errors.New("room is full")
	// ErrAlreadySeated is returned when a user tries to join a room twice.
	ErrAlreadySeated = errors.New("already seated in this room")
	// ErrNotHost is returned when a non-host session attempts a host-only action.
	ErrNotHost = errors.New("only the host may do that")
	// ErrNotEnoughPlayers gates room:start below two seated players.
	ErrNotEnoughPlayers = errors.New("not enough players")
	// ErrNotAllReady gates room:start until every non-host player is ready.
	ErrNotAllReady = errors.New("not all players are ready")
	// ErrGameAlreadyStarted gates room:start/join against a running game.
	ErrGameAlreadyStarted = errors.New("game already started")
	// ErrInvalidMove is the catch-all reply for any illegal game:move.
	ErrInvalidMove = errors.New("invalid move")
	// ErrNotSeated is returned when an action targets a user not in the room.
	ErrNotSeated = errors.New("not seated in this room")
)

// Room is one Blokus table: membership, readiness, and (while StatePlaying)
// the running game. All mutation happens under mu; broadcasting follows
// spec's copy-under-lock, release, then send discipline via the *Locked
// helpers plus sendBroadcast.
type Room struct {
	ID      int64
	Name    string
	Mode    string
	Private bool

	mu               sync.Mutex
	state            RoomState
	players          map[int64]*Player
	order            []int64 // join order, stable membership ordering
	turnOrderUserIDs []int64 // finalized at Start; turnOrder filtered to seated colors
	currentIdx       int
	turnNumber       int
	timeLimit        time.Duration
	board            *rules.Board
	timer            *time.Timer

	db         *database.Gateway
	bus        *bus.Service
	instanceID string
	onEmpty    func(roomID int64)
}

// NewRoom constructs an empty, Waiting room. The creator still needs to be
// seated via AddPlayer.
func NewRoom(id int64, name, mode string, private bool, timeLimit time.Duration, db *database.Gateway, busSvc *bus.Service, onEmpty func(int64)) *Room {
	if timeLimit <= 0 {
		timeLimit = DefaultTimeLimit
	}
	r := &Room{
		ID:         id,
		Name:       name,
		Mode:       mode,
		Private:    private,
		players:    make(map[int64]*Player),
		timeLimit:  timeLimit,
		db:         db,
		bus:        busSvc,
		instanceID: uuid.New().String(),
		onEmpty:    onEmpty,
	}
	if busSvc != nil {
		busSvc.Subscribe(context.Background(), strconv.FormatInt(id, 10), r.relayRemote)
	}
	return r
}

func (r *Room) nextFreeColorLocked() (rules.Color, bool) {
	used := make(map[rules.Color]bool, len(r.players))
	for _, p := range r.players {
		used[p.Color] = true
	}
	for _, c := range turnOrder {
		if !used[c] {
			return c, true
		}
	}
	return rules.None, false
}

// AddPlayer seats a newly joined or created player. The first player seated
// in a fresh room becomes its host.
func (r *Room) AddPlayer(s *session.Session, userID int64, username, displayName string) (*Player, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateWaiting {
		return nil, ErrGameAlreadyStarted
	}
	if len(r.players) >= MaxPlayers {
		return nil, ErrRoomFull
	}
	if _, exists := r.players[userID]; exists {
		return nil, ErrAlreadySeated
	}

	color, ok := r.nextFreeColorLocked()
	if !ok {
		return nil, ErrRoomFull
	}

	p := newPlayer(s, userID, username, displayName)
	p.Color = color
	if len(r.players) == 0 {
		p.IsHost = true
		p.IsReady = true
	}
	r.players[userID] = p
	r.order = append(r.order, userID)
	return p, nil
}

// RemovePlayerResult describes the membership effects of a departure.
type RemovePlayerResult struct {
	Removed         bool
	Empty           bool
	HostChanged     bool
	NewHostUsername string
}

// RemovePlayer removes userID from the room's membership, promoting a new
// host by join order if the departing player held the role. It does not
// distinguish a deliberate room:leave from a mid-game disconnect; callers
// handling a disconnect during StatePlaying should prefer MarkAFK so the
// seat (and turn order) survives.
func (r *Room) RemovePlayer(userID int64) RemovePlayerResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[userID]
	if !ok {
		return RemovePlayerResult{}
	}
	delete(r.players, userID)
	for i, id := range r.order {
		if id == userID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}

	res := RemovePlayerResult{Removed: true}
	if len(r.players) == 0 {
		res.Empty = true
		if r.onEmpty != nil {
			go r.onEmpty(r.ID)
		}
		return res
	}
	if p.IsHost && len(r.order) > 0 {
		newHost := r.players[r.order[0]]
		newHost.IsHost = true
		newHost.IsReady = true
		res.HostChanged = true
		res.NewHostUsername = newHost.Username
	}
	return res
}

// SetReady toggles a non-host player's readiness flag. The host is always
// considered ready and this call is a no-op for them.
func (r *Room) SetReady(userID int64, ready bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[userID]
	if !ok {
		return ErrNotSeated
	}
	if p.IsHost {
		return nil
	}
	p.IsReady = ready
	return nil
}

func (r *Room) validateStartLocked(requesterUserID int64) error {
	if r.state != StateWaiting {
		return ErrGameAlreadyStarted
	}
	host, ok := r.players[requesterUserID]
	if !ok || !host.IsHost {
		return ErrNotHost
	}
	if len(r.players) < MinPlayers {
		return ErrNotEnoughPlayers
	}
	for _, p := range r.players {
		if !p.ready() {
			return ErrNotAllReady
		}
	}
	return nil
}

// Start validates and begins the game, returning the broadcast recipients
// and reply lines (GAME_STARTED, the initial GAME_STATE_UPDATE, and the
// first TURN_CHANGED) for the caller to send.
func (r *Room) Start(requesterUserID int64) ([]*Player, []string, error) {
	r.mu.Lock()
	if err := r.validateStartLocked(requesterUserID); err != nil {
		r.mu.Unlock()
		return nil, nil, err
	}

	var finalOrder []int64
	for _, c := range turnOrder {
		for _, id := range r.order {
			if r.players[id].Color == c {
				finalOrder = append(finalOrder, id)
				break
			}
		}
	}
	r.turnOrderUserIDs = finalOrder
	r.state = StatePlaying
	r.board = rules.NewBoard()
	r.currentIdx = 0
	r.turnNumber = 1

	targets := r.snapshotPlayersLocked()
	first := r.players[r.turnOrderUserIDs[0]]
	lines := []string{
		protocol.GameStarted(),
		protocol.GameStateUpdate(r.gameStateJSONLocked()),
		protocol.TurnChanged(first.Username, int(first.Color), r.turnNumber, int(r.timeLimit.Seconds()), int(r.timeLimit.Seconds()), false),
	}
	firstUserID := first.UserID
	r.mu.Unlock()

	r.scheduleTimer(firstUserID)
	return targets, lines, nil
}

// HandleBlockPlacement validates and applies a placement from userID,
// returning broadcast recipients and reply lines (BLOCK_PLACED, the updated
// GAME_STATE_UPDATE, and the following TURN_CHANGED or GAME_RESULT/
// GAME_ENDED pair) on success, or ErrInvalidMove (sender-only) on failure.
func (r *Room) HandleBlockPlacement(ctx context.Context, userID int64, p rules.Placement) ([]*Player, []string, error) {
	r.mu.Lock()

	if r.state != StatePlaying || len(r.turnOrderUserIDs) == 0 {
		r.mu.Unlock()
		return nil, nil, ErrInvalidMove
	}
	pl, ok := r.players[userID]
	if !ok {
		r.mu.Unlock()
		return nil, nil, ErrInvalidMove
	}
	current := r.players[r.turnOrderUserIDs[r.currentIdx]]
	if current.UserID != userID || pl.Color != p.Player {
		r.mu.Unlock()
		return nil, nil, ErrInvalidMove
	}
	if !r.board.CanPlace(p, pl.HasPlayedBefore) {
		r.mu.Unlock()
		return nil, nil, ErrInvalidMove
	}

	r.board.Apply(p)
	gained := rules.ScoreOf(p.BlockType)
	pl.Score += gained
	pl.Remaining[p.BlockType] = false
	pl.HasPlayedBefore = true
	r.cancelTimerLocked()

	targets := r.snapshotPlayersLocked()
	lines := []string{
		protocol.BlockPlaced(pl.Username, blockTypeIndex(p.BlockType), p.Row, p.Col, int(p.Rotation), int(p.Flip), int(pl.Color), gained),
		protocol.GameStateUpdate(r.gameStateJSONLocked()),
	}

	ended, advLines, result := r.advanceTurnLocked(false)
	lines = append(lines, advLines...)
	var nextUserID int64
	if !ended {
		nextUserID = r.turnOrderUserIDs[r.currentIdx]
	}
	r.mu.Unlock()

	if ended {
		go r.persistResult(ctx, result)
	} else {
		r.scheduleTimer(nextUserID)
	}
	return targets, lines, nil
}

// advanceTurnLocked finds the next eligible (non-AFK, has-a-legal-move)
// player and returns a TURN_CHANGED line for them, or ends the game if none
// qualify. Caller must hold mu and has already applied the triggering move
// or timeout.
func (r *Room) advanceTurnLocked(previousTimedOut bool) (ended bool, lines []string, result database.GameResult) {
	statuses := make([]rules.PlayerStatus, 0, len(r.turnOrderUserIDs))
	for _, id := range r.turnOrderUserIDs {
		statuses = append(statuses, r.players[id].status())
	}
	if r.board.IsGameOver(statuses) {
		lines, result = r.endGameLocked()
		return true, lines, result
	}

	n := len(r.turnOrderUserIDs)
	for i := 1; i <= n; i++ {
		idx := (r.currentIdx + i) % n
		candidate := r.players[r.turnOrderUserIDs[idx]]
		if candidate.AFK {
			continue
		}
		if !r.board.HasAnyLegalMove(candidate.Color, candidate.Remaining, candidate.HasPlayedBefore) {
			continue
		}
		r.currentIdx = idx
		r.turnNumber++
		limit := int(r.timeLimit.Seconds())
		line := protocol.TurnChanged(candidate.Username, int(candidate.Color), r.turnNumber, limit, limit, previousTimedOut)
		return false, []string{line}, database.GameResult{}
	}

	// Every seated player is either AFK or out of legal moves; IsGameOver
	// only checks legality, not AFK status, so this branch covers the case
	// where remaining legal moves all belong to AFK players.
	lines, result = r.endGameLocked()
	return true, lines, result
}

type gameResultBody struct {
	Scores  map[string]int `json:"scores"`
	Winners []string       `json:"winners"`
}

// endGameLocked freezes the board, computes final scores and winners,
// resets the room to Waiting, and clears non-host ready flags. It returns
// the GAME_RESULT/GAME_ENDED lines plus the persistence payload; the caller
// persists it outside the lock.
func (r *Room) endGameLocked() ([]string, database.GameResult) {
	r.state = StateWaiting
	r.cancelTimerLocked()

	scores := make(map[string]int, len(r.turnOrderUserIDs))
	finals := make(map[int64]int, len(r.turnOrderUserIDs))
	maxScore := 0
	for i, id := range r.turnOrderUserIDs {
		p := r.players[id]
		fs := finalScore(p.Score, p.remainingCount())
		finals[id] = fs
		scores[p.Username] = fs
		if i == 0 || fs > maxScore {
			maxScore = fs
		}
	}

	var winners []string
	playerIDs := make([]int64, 0, len(r.turnOrderUserIDs))
	scoreList := make([]int, 0, len(r.turnOrderUserIDs))
	isWinner := make([]bool, 0, len(r.turnOrderUserIDs))
	winnerCount := 0
	for _, id := range r.turnOrderUserIDs {
		p := r.players[id]
		fs := finals[id]
		win := fs == maxScore
		if win {
			winners = append(winners, p.Username)
			winnerCount++
		}
		playerIDs = append(playerIDs, id)
		scoreList = append(scoreList, fs)
		isWinner = append(isWinner, win)

		p.Score = 0
		p.HasPlayedBefore = false
		p.AFK = false
		p.TimeoutCount = 0
		if !p.IsHost {
			p.IsReady = false
		}
		for bt := range p.Remaining {
			p.Remaining[bt] = true
		}
	}

	body, _ := json.Marshal(gameResultBody{Scores: scores, Winners: winners})
	lines := []string{protocol.GameResult(string(body)), protocol.GameEnded()}

	result := database.GameResult{
		PlayerIDs: playerIDs,
		Scores:    scoreList,
		IsWinner:  isWinner,
		IsDraw:    winnerCount > 1,
	}
	return lines, result
}

func (r *Room) persistResult(ctx context.Context, result database.GameResult) {
	if r.db == nil {
		return
	}
	if _, err := r.db.SaveGameResults(ctx, result); err != nil {
		logging.Error(ctx, "failed to persist game result", zap.Int64("room_id", r.ID), zap.Error(err))
	}
}

// onTimerFire runs when a turn's single-shot timer expires without a move.
func (r *Room) onTimerFire(ctx context.Context, userID int64) {
	r.mu.Lock()
	if r.state != StatePlaying || len(r.turnOrderUserIDs) == 0 || r.turnOrderUserIDs[r.currentIdx] != userID {
		r.mu.Unlock()
		return
	}
	p, ok := r.players[userID]
	if !ok {
		r.mu.Unlock()
		return
	}

	p.TimeoutCount++
	afkTriggered := p.TimeoutCount >= AfkThreshold
	var afkLine string
	if afkTriggered {
		p.AFK = true
		body, _ := json.Marshal(struct {
			Reason       string `json:"reason"`
			TimeoutCount int    `json:"timeoutCount"`
			MaxCount     int    `json:"maxCount"`
		}{"timeout", p.TimeoutCount, AfkThreshold})
		afkLine = protocol.AfkModeActivated(string(body))
	}

	targets := r.snapshotPlayersLocked()
	lines := []string{protocol.TurnTimeout(p.Username, int(p.Color))}
	ended, advLines, result := r.advanceTurnLocked(true)
	lines = append(lines, advLines...)
	var nextUserID int64
	if !ended {
		nextUserID = r.turnOrderUserIDs[r.currentIdx]
	}
	recipient := p.Session
	r.mu.Unlock()

	r.sendBroadcast(ctx, targets, lines)
	if afkTriggered && recipient != nil {
		recipient.Send(afkLine)
	}
	if ended {
		go r.persistResult(ctx, result)
	} else {
		r.scheduleTimer(nextUserID)
	}
}

// AfkUnblock clears a player's AFK state. If their game has already ended,
// it returns an AFK_UNBLOCK_ERROR line to send to the caller instead.
func (r *Room) AfkUnblock(userID int64) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.players[userID]
	if !ok {
		return "", ErrNotSeated
	}
	if r.state != StatePlaying {
		return protocol.AfkUnblockError("game_not_active", "game has ended"), nil
	}
	p.AFK = false
	p.TimeoutCount = 0
	return "", nil
}

// MarkAFK puts userID into AFK mode without altering membership, used when
// a session disconnects mid-game so its seat survives; the turn loop then
// skips it.
func (r *Room) MarkAFK(userID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.players[userID]; ok {
		p.AFK = true
	}
}

// ChatBroadcast re-sends text to every other seated player; the sender
// receives no local echo, per spec's chat invariant.
func (r *Room) ChatBroadcast(ctx context.Context, senderUserID int64, text string) error {
	r.mu.Lock()
	sender, ok := r.players[senderUserID]
	if !ok {
		r.mu.Unlock()
		return ErrNotSeated
	}
	targets := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		if id != senderUserID {
			targets = append(targets, r.players[id])
		}
	}
	line := protocol.ChatBroadcast(sender.Username, text)
	r.mu.Unlock()

	r.sendBroadcast(ctx, targets, []string{line})
	return nil
}

// Players returns a snapshot of currently seated players, in join order.
func (r *Room) Players() []*Player {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshotPlayersLocked()
}

// HasPlayer reports whether userID currently holds a seat.
func (r *Room) HasPlayer(userID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.players[userID]
	return ok
}

func (r *Room) scheduleTimer(userID int64) {
	r.mu.Lock()
	if r.timer != nil {
		r.timer.Stop()
	}
	limit := r.timeLimit
	r.timer = time.AfterFunc(limit, func() { r.onTimerFire(context.Background(), userID) })
	r.mu.Unlock()
}

func (r *Room) cancelTimerLocked() {
	if r.timer != nil {
		r.timer.Stop()
		r.timer = nil
	}
}

func (r *Room) snapshotPlayersLocked() []*Player {
	out := make([]*Player, 0, len(r.order))
	for _, id := range r.order {
		if p, ok := r.players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// sendBroadcast delivers lines to every local target and relays them to
// other instances hosting this room over the bus, tagged with this room's
// instance id so the relay handler can ignore its own publishes.
func (r *Room) sendBroadcast(ctx context.Context, targets []*Player, lines []string) {
	for _, p := range targets {
		for _, line := range lines {
			p.Session.Send(line)
		}
	}
	if r.bus == nil || len(lines) == 0 {
		return
	}
	if err := r.bus.Publish(ctx, strconv.FormatInt(r.ID, 10), "broadcast", lines, r.instanceID); err != nil {
		logging.Warn(ctx, "failed to publish room broadcast", zap.Int64("room_id", r.ID), zap.Error(err))
	}
}

func (r *Room) relayRemote(p bus.RoomEventPayload) {
	if p.SenderID == r.instanceID {
		return
	}
	var lines []string
	if err := json.Unmarshal(p.Payload, &lines); err != nil {
		return
	}
	r.mu.Lock()
	targets := r.snapshotPlayersLocked()
	r.mu.Unlock()
	for _, p := range targets {
		for _, line := range lines {
			p.Session.Send(line)
		}
	}
}

type gameStateDTO struct {
	CurrentPlayer int              `json:"currentPlayer"`
	TurnNumber    int              `json:"turnNumber"`
	Players       []playerStateDTO `json:"players"`
	Board         [][]int          `json:"board"`
}

type playerStateDTO struct {
	Username        string `json:"username"`
	Color           int    `json:"color"`
	Score           int    `json:"score"`
	RemainingBlocks int    `json:"remainingBlocks"`
	AFK             bool   `json:"afk"`
}

func (r *Room) gameStateJSONLocked() string {
	current := r.players[r.turnOrderUserIDs[r.currentIdx]]
	dto := gameStateDTO{
		CurrentPlayer: int(current.Color),
		TurnNumber:    r.turnNumber,
	}
	for _, id := range r.turnOrderUserIDs {
		p := r.players[id]
		dto.Players = append(dto.Players, playerStateDTO{
			Username:        p.Username,
			Color:           int(p.Color),
			Score:           p.Score,
			RemainingBlocks: p.remainingCount(),
			AFK:             p.AFK,
		})
	}
	dto.Board = make([][]int, rules.BoardSize)
	for row := 0; row < rules.BoardSize; row++ {
		dto.Board[row] = make([]int, rules.BoardSize)
		for col := 0; col < rules.BoardSize; col++ {
			dto.Board[row][col] = int(r.board.At(row, col))
		}
	}
	body, _ := json.Marshal(dto)
	return string(body)
}

// Summary returns the ROOM_LIST row for this room.
func (r *Room) Summary() protocol.RoomSummary {
	r.mu.Lock()
	defer r.mu.Unlock()
	host := ""
	for _, id := range r.order {
		if r.players[id].IsHost {
			host = r.players[id].Username
			break
		}
	}
	return protocol.RoomSummary{
		ID: r.ID, Name: r.Name, Host: host, Players: len(r.players), Max: MaxPlayers,
		Private: r.Private, Playing: r.state == StatePlaying, Mode: r.Mode,
	}
}

// InfoLine returns the full ROOM_INFO reply for this room's current state.
func (r *Room) InfoLine() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	host := ""
	summaries := make([]protocol.PlayerSummary, 0, len(r.order))
	for _, id := range r.order {
		p := r.players[id]
		if p.IsHost {
			host = p.Username
		}
		summaries = append(summaries, protocol.PlayerSummary{
			UserID: p.UserID, Username: p.Username, DisplayName: p.DisplayName,
			IsHost: p.IsHost, IsReady: p.ready(), ColorIndex: int(p.Color),
		})
	}
	return protocol.RoomInfo(r.ID, r.Name, host, len(r.players), MaxPlayers, r.Private, r.state == StatePlaying, r.Mode, summaries)
}

// PlayerCount reports current membership, used by the manager's empty-room sweep.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.players)
}

// State reports the room's current lifecycle stage.
func (r *Room) State() RoomState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// SendBroadcast is the exported entry point handlers use to broadcast
// arbitrary lines (e.g. room:create/room:join ROOM_INFO updates) computed
// outside of a game-state transition.
func (r *Room) SendBroadcast(ctx context.Context, lines ...string) {
	r.mu.Lock()
	targets := r.snapshotPlayersLocked()
	r.mu.Unlock()
	r.sendBroadcast(ctx, targets, lines)
}

// DeliverTo sends lines to exactly the given players, without re-snapshotting
// membership. Used by callers relaying the (targets, lines) pair returned by
// Start/HandleBlockPlacement, where the target snapshot was already taken at
// the moment the lines were produced.
func (r *Room) DeliverTo(ctx context.Context, targets []*Player, lines []string) {
	r.sendBroadcast(ctx, targets, lines)
}

var blockOrder = rules.AllBlockTypes

func blockTypeIndex(bt rules.BlockType) int {
	for i, t := range blockOrder {
		if t == bt {
			return i + 1
		}
	}
	return 0
}

// BlockTypeFromIndex reverses blockTypeIndex for parsing game:move input.
func BlockTypeFromIndex(i int) (rules.BlockType, bool) {
	if i < 1 || i > len(blockOrder) {
		return "", false
	}
	return blockOrder[i-1], true
}
