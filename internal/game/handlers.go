package game

import (
	"context"
	"strconv"
	"strings"

	"blokusserver/internal/authservice"
	"blokusserver/internal/config"
	"blokusserver/internal/database"
	"blokusserver/internal/metrics"
	"blokusserver/internal/protocol"
	"blokusserver/internal/rules"
	"blokusserver/internal/session"
	"blokusserver/internal/version"

	"github.com/prometheus/client_golang/prometheus"
)

// Deps bundles everything the opcode handlers need, wired together once at
// boot and registered onto a protocol.Router.
type Deps struct {
	Auth  *authservice.Service
	DB    *database.Gateway
	Rooms *Manager
	Lobby *Lobby
	Cfg   *config.Config
}

// Register binds every opcode spec.md's dispatch table names onto r.
func Register(r *protocol.Router, d *Deps) {
	r.Handle(protocol.OpVersionCheck, d.withMetrics(protocol.OpVersionCheck, d.handleVersionCheck))
	r.Handle(protocol.OpAuth, d.withMetrics(protocol.OpAuth, d.handleAuth))
	r.Handle(protocol.OpRegister, d.withMetrics(protocol.OpRegister, d.handleRegister))
	r.Handle(protocol.OpGuest, d.withMetrics(protocol.OpGuest, d.handleGuest))
	r.Handle(protocol.OpJWT, d.withMetrics(protocol.OpJWT, d.handleJWT))
	r.Handle(protocol.OpLogout, d.withMetrics(protocol.OpLogout, d.handleLogout))
	r.Handle(protocol.OpPing, d.withMetrics(protocol.OpPing, d.handlePing))
	r.Handle(protocol.OpUserStats, d.withMetrics(protocol.OpUserStats, d.handleUserStats))
	r.Handle(protocol.OpLobbyEnter, d.withMetrics(protocol.OpLobbyEnter, d.handleLobbyEnter))
	r.Handle(protocol.OpRoomCreate, d.withMetrics(protocol.OpRoomCreate, d.handleRoomCreate))
	r.Handle(protocol.OpRoomJoin, d.withMetrics(protocol.OpRoomJoin, d.handleRoomJoin))
	r.Handle(protocol.OpRoomLeave, d.withMetrics(protocol.OpRoomLeave, d.handleRoomLeave))
	r.Handle(protocol.OpRoomList, d.withMetrics(protocol.OpRoomList, d.handleRoomList))
	r.Handle(protocol.OpRoomReady, d.withMetrics(protocol.OpRoomReady, d.handleRoomReady))
	r.Handle(protocol.OpRoomStart, d.withMetrics(protocol.OpRoomStart, d.handleRoomStart))
	r.Handle(protocol.OpGameMove, d.withMetrics(protocol.OpGameMove, d.handleGameMove))
	r.Handle(protocol.OpChat, d.withMetrics(protocol.OpChat, d.handleChat))
	r.Handle(protocol.OpAfkUnblock, d.withMetrics(protocol.OpAfkUnblock, d.handleAfkUnblock))
}

func (d *Deps) withMetrics(opcode string, fn protocol.HandlerFunc) protocol.HandlerFunc {
	return func(ctx context.Context, s *session.Session, msg protocol.Message) {
		timer := prometheus.NewTimer(metrics.MessageProcessingDuration.WithLabelValues(opcode))
		defer timer.ObserveDuration()
		metrics.ProtocolEvents.WithLabelValues(opcode, "received").Inc()
		fn(ctx, s, msg)
	}
}

// --- Auth / handshake ---

func (d *Deps) handleVersionCheck(ctx context.Context, s *session.Session, msg protocol.Message) {
	clientVersion := msg.Field(0)
	if version.Satisfies(clientVersion, d.Cfg.MinClientVersion) {
		s.Send(protocol.VersionOk())
		return
	}
	s.Send(protocol.VersionIncompatible(d.Cfg.MinClientVersion, d.Cfg.DownloadURL, d.Cfg.ForceUpdate))
}

func (d *Deps) handleAuth(ctx context.Context, s *session.Session, msg protocol.Message) {
	username, password := msg.Field(0), msg.Field(1)
	if username == "" || password == "" {
		s.Send(protocol.Error("auth requires username and password"))
		return
	}
	result, err := d.Auth.LoginUser(ctx, username, password)
	if err != nil {
		s.Send(protocol.Error(authError(err)))
		return
	}
	s.BindUser(result.UserID, result.Username)
	s.Send(protocol.AuthSuccess(result.Username, result.Token))
}

func (d *Deps) handleRegister(ctx context.Context, s *session.Session, msg protocol.Message) {
	username, _, password := msg.Field(0), msg.Field(1), msg.Field(2)
	if username == "" || password == "" {
		s.Send(protocol.Error("register requires username and password"))
		return
	}
	userID, err := d.Auth.RegisterUser(ctx, username, password)
	if err != nil {
		s.Send(protocol.Error(authError(err)))
		return
	}
	s.Send(protocol.RegisterSuccess(username, userID))
}

func (d *Deps) handleGuest(ctx context.Context, s *session.Session, msg protocol.Message) {
	name := msg.Field(0)
	result, err := d.Auth.LoginGuest(ctx, name)
	if err != nil {
		s.Send(protocol.Error(authError(err)))
		return
	}
	s.BindUser(result.UserID, result.Username)
	s.Send(protocol.AuthSuccess(result.Username, result.Token))
}

func (d *Deps) handleJWT(ctx context.Context, s *session.Session, msg protocol.Message) {
	token := msg.Field(0)
	if token == "" {
		s.Send(protocol.Error("jwt requires a token"))
		return
	}
	result, err := d.Auth.LoginWithJWT(ctx, token)
	if err != nil {
		s.Send(protocol.Error(authError(err)))
		return
	}
	s.BindUser(result.UserID, result.Username)
	s.Send(protocol.AuthSuccess(result.Username, result.Token))
}

func (d *Deps) handleLogout(ctx context.Context, s *session.Session, msg protocol.Message) {
	d.leaveCurrentScope(ctx, s)
	s.Send(protocol.LogoutSuccess())
	s.SetState(session.StateConnected)
}

func (d *Deps) handlePing(ctx context.Context, s *session.Session, msg protocol.Message) {
	s.Send(protocol.Pong())
}

func (d *Deps) handleUserStats(ctx context.Context, s *session.Session, msg protocol.Message) {
	stats, err := d.DB.GetStats(ctx, s.UserID())
	if err != nil {
		s.Send(protocol.Error("stats unavailable"))
		return
	}
	s.Send(protocol.UserStats(
		int64(stats.TotalGames), int64(stats.Wins), int64(stats.Losses), int64(stats.Draws),
		int64(stats.Level), int64(stats.Experience), int64(stats.TotalScore), int64(stats.BestScore),
	))
}

// --- Lobby ---

func (d *Deps) handleLobbyEnter(ctx context.Context, s *session.Session, msg protocol.Message) {
	if s.State() != session.StateConnected {
		s.Send(protocol.Error("already past the lobby gate"))
		return
	}
	if s.UserID() == 0 {
		s.Send(protocol.Error("authenticate first"))
		return
	}
	d.Lobby.Enter(s, s.UserID(), s.Username())
	s.SetState(session.StateInLobby)
	s.Send(protocol.LobbyEntered())
	s.Send(protocol.RoomList(d.Rooms.List()))
}

func (d *Deps) handleRoomList(ctx context.Context, s *session.Session, msg protocol.Message) {
	s.Send(protocol.RoomList(d.Rooms.List()))
}

// --- Room membership ---

func (d *Deps) handleRoomCreate(ctx context.Context, s *session.Session, msg protocol.Message) {
	if !s.State().CanCreateRoom() {
		s.Send(protocol.Error("must be in the lobby to create a room"))
		return
	}
	name := msg.Field(0)
	if name == "" {
		name = s.Username() + "'s Room"
	}
	private := msg.Field(1) == "1"
	mode := msg.Field(2)
	if mode == "" {
		mode = "classic"
	}

	room := d.Rooms.CreateRoom(name, mode, private, d.Cfg.TurnTimeLimit)
	if _, err := room.AddPlayer(s, s.UserID(), s.Username(), s.Username()); err != nil {
		s.Send(protocol.Error("could not join created room"))
		return
	}

	d.Lobby.Leave(s.UserID(), s.Username())
	s.SetRoomID(room.ID)
	s.SetState(session.StateInRoom)
	s.Send(protocol.RoomCreated(room.ID, name))
	d.broadcastLobbyRoomList(ctx)
}

func (d *Deps) handleRoomJoin(ctx context.Context, s *session.Session, msg protocol.Message) {
	if !s.State().CanJoinRoom() {
		s.Send(protocol.Error("must be in the lobby to join a room"))
		return
	}
	roomID, err := strconv.ParseInt(msg.Field(0), 10, 64)
	if err != nil {
		s.Send(protocol.Error("invalid room id"))
		return
	}
	room, ok := d.Rooms.Get(roomID)
	if !ok {
		s.Send(protocol.Error("room not found"))
		return
	}
	if _, err := room.AddPlayer(s, s.UserID(), s.Username(), s.Username()); err != nil {
		s.Send(protocol.Error(roomError(err)))
		return
	}

	d.Lobby.Leave(s.UserID(), s.Username())
	s.SetRoomID(room.ID)
	s.SetState(session.StateInRoom)
	s.Send(protocol.RoomJoined(room.ID, room.Name))
	room.SendBroadcast(ctx, room.InfoLine())
	d.broadcastLobbyRoomList(ctx)
}

func (d *Deps) handleRoomLeave(ctx context.Context, s *session.Session, msg protocol.Message) {
	room, ok := d.Rooms.Get(s.RoomID())
	if !ok {
		s.Send(protocol.Error("not in a room"))
		return
	}
	d.leaveRoom(ctx, s, room)
	s.Send(protocol.LobbyEntered())
}

func (d *Deps) handleRoomReady(ctx context.Context, s *session.Session, msg protocol.Message) {
	room, ok := d.Rooms.Get(s.RoomID())
	if !ok {
		s.Send(protocol.Error("not in a room"))
		return
	}
	ready := msg.Field(0) != "0"
	if err := room.SetReady(s.UserID(), ready); err != nil {
		s.Send(protocol.Error(roomError(err)))
		return
	}
	room.SendBroadcast(ctx, room.InfoLine())
}

func (d *Deps) handleRoomStart(ctx context.Context, s *session.Session, msg protocol.Message) {
	if !s.State().CanStartGame() {
		s.Send(protocol.Error("must be in a room to start a game"))
		return
	}
	room, ok := d.Rooms.Get(s.RoomID())
	if !ok {
		s.Send(protocol.Error("not in a room"))
		return
	}
	targets, lines, err := room.Start(s.UserID())
	if err != nil {
		s.Send(protocol.Error(roomError(err)))
		return
	}
	for _, p := range targets {
		p.Session.SetState(session.StateInGame)
	}
	room.DeliverTo(ctx, targets, lines)
}

// --- Game ---

func (d *Deps) handleGameMove(ctx context.Context, s *session.Session, msg protocol.Message) {
	if !s.State().CanMakeGameMove() {
		s.Send(protocol.Error("no game in progress"))
		return
	}
	room, ok := d.Rooms.Get(s.RoomID())
	if !ok {
		s.Send(protocol.Error("not in a room"))
		return
	}

	blockIdx, err1 := strconv.Atoi(msg.Field(0))
	row, err2 := strconv.Atoi(msg.Field(1))
	col, err3 := strconv.Atoi(msg.Field(2))
	rot, err4 := strconv.Atoi(msg.Field(3))
	flip, err5 := strconv.Atoi(msg.Field(4))
	if err1 != nil || err2 != nil || err3 != nil || err4 != nil || err5 != nil {
		s.Send(protocol.Error("invalid move"))
		return
	}
	blockType, ok := BlockTypeFromIndex(blockIdx)
	if !ok {
		s.Send(protocol.Error("invalid move"))
		return
	}

	placement := rules.Placement{
		BlockType: blockType,
		Row:       row,
		Col:       col,
		Rotation:  rules.Rotation(rot),
		Flip:      rules.Flip(flip),
		Player:    playerColor(room, s.UserID()),
	}

	targets, lines, err := room.HandleBlockPlacement(ctx, s.UserID(), placement)
	if err != nil {
		s.Send(protocol.Error("invalid move"))
		return
	}
	room.DeliverTo(ctx, targets, lines)
}

func (d *Deps) handleAfkUnblock(ctx context.Context, s *session.Session, msg protocol.Message) {
	room, ok := d.Rooms.Get(s.RoomID())
	if !ok {
		s.Send(protocol.Error("not in a room"))
		return
	}
	line, err := room.AfkUnblock(s.UserID())
	if err != nil {
		s.Send(protocol.Error("not seated in this room"))
		return
	}
	if line != "" {
		s.Send(line)
	}
}

// --- Chat ---

func (d *Deps) handleChat(ctx context.Context, s *session.Session, msg protocol.Message) {
	text := strings.Join(msg.Fields, ":")
	if text == "" {
		return
	}
	switch s.State() {
	case session.StateInRoom, session.StateInGame:
		if room, ok := d.Rooms.Get(s.RoomID()); ok {
			_ = room.ChatBroadcast(ctx, s.UserID(), text)
		}
	case session.StateInLobby:
		d.Lobby.BroadcastChat(s.UserID(), s.Username(), text)
	}
}

// --- Disconnect wiring ---

// OnDisconnect is passed to session.New so that membership and AFK state
// stay consistent with a closed socket: a lobby member is dropped outright,
// a room member mid-game is marked AFK instead of removed so the seat and
// turn order survive. No later connection is rebound to that seat.
func (d *Deps) OnDisconnect(s *session.Session) {
	ctx := context.Background()
	switch s.State() {
	case session.StateInLobby:
		d.Lobby.Leave(s.UserID(), s.Username())
	case session.StateInRoom:
		if room, ok := d.Rooms.Get(s.RoomID()); ok {
			d.leaveRoom(ctx, s, room)
		}
	case session.StateInGame:
		if room, ok := d.Rooms.Get(s.RoomID()); ok {
			room.MarkAFK(s.UserID())
		}
	}
}

func (d *Deps) leaveCurrentScope(ctx context.Context, s *session.Session) {
	switch s.State() {
	case session.StateInLobby:
		d.Lobby.Leave(s.UserID(), s.Username())
	case session.StateInRoom, session.StateInGame:
		if room, ok := d.Rooms.Get(s.RoomID()); ok {
			d.leaveRoom(ctx, s, room)
		}
	}
}

func (d *Deps) leaveRoom(ctx context.Context, s *session.Session, room *Room) {
	res := room.RemovePlayer(s.UserID())
	s.SetRoomID(-1)
	s.SetState(session.StateInLobby)
	d.Lobby.Enter(s, s.UserID(), s.Username())

	if !res.Removed || res.Empty {
		d.broadcastLobbyRoomList(ctx)
		return
	}
	lines := []string{room.InfoLine()}
	if res.HostChanged {
		lines = append(lines, protocol.HostChanged(res.NewHostUsername))
	}
	room.SendBroadcast(ctx, lines...)
	d.broadcastLobbyRoomList(ctx)
}

func (d *Deps) broadcastLobbyRoomList(ctx context.Context) {
	line := protocol.RoomList(d.Rooms.List())
	for _, s := range d.Lobby.Sessions() {
		s.Send(line)
	}
}

func playerColor(room *Room, userID int64) rules.Color {
	for _, p := range room.Players() {
		if p.UserID == userID {
			return p.Color
		}
	}
	return rules.None
}

func authError(err error) string {
	switch err {
	case authservice.ErrUsernameInvalid:
		return "invalid username"
	case authservice.ErrUsernameTaken:
		return "username taken"
	case authservice.ErrPasswordTooShort:
		return "password too short"
	case authservice.ErrInvalidCredentials:
		return "invalid credentials"
	case authservice.ErrAccountInactive:
		return "account inactive"
	case authservice.ErrJWTRejected:
		return "jwt rejected"
	default:
		return "authentication failed"
	}
}

func roomError(err error) string {
	switch err {
	case ErrRoomNotWaiting:
		return "room is not waiting"
	case ErrRoomFull:
		return "room is full"
	case ErrAlreadySeated:
		return "already seated"
	case ErrNotHost:
		return "only the host may do that"
	case ErrNotEnoughPlayers:
		return "not enough players"
	case ErrNotAllReady:
		return "not all players are ready"
	case ErrGameAlreadyStarted:
		return "game already started"
	case ErrNotSeated:
		return "not seated in this room"
	default:
		return "request failed"
	}
}
