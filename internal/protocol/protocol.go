// Package protocol implements the line-delimited wire format: opcode
// parsing, a fixed dispatch table, and the reply encoders for every
// response opcode the server emits.
package protocol

import (
	"context"
	"strings"

	"blokusserver/internal/session"
)

// Opcode strings accepted from clients.
const (
	OpAuth         = "auth"
	OpRegister     = "register"
	OpGuest        = "guest"
	OpJWT          = "jwt"
	OpLogout       = "logout"
	OpLobbyEnter   = "lobby:enter"
	OpRoomCreate   = "room:create"
	OpRoomJoin     = "room:join"
	OpRoomLeave    = "room:leave"
	OpRoomList     = "room:list"
	OpRoomReady    = "room:ready"
	OpRoomStart    = "room:start"
	OpGameMove     = "game:move"
	OpChat         = "chat"
	OpPing         = "ping"
	OpUserStats    = "user:stats"
	OpVersionCheck = "version:check"
	OpAfkUnblock   = "afk:unblock"
)

// Message is one parsed client line: the leading opcode and its `:`
// separated parameters.
type Message struct {
	Opcode string
	Fields []string
	Raw    string
}

// Field returns the i'th parameter, or "" if the line didn't carry one.
func (m Message) Field(i int) string {
	if i < 0 || i >= len(m.Fields) {
		return ""
	}
	return m.Fields[i]
}

// ParseLine splits a raw client line into an opcode and its fields.
// Opcodes with a `:` in their own name (lobby:enter, room:create, ...) are
// matched against the known two-segment opcode set first so their first
// parameter isn't mistaken for part of the opcode.
func ParseLine(line string) Message {
	parts := strings.Split(line, ":")
	if len(parts) == 0 {
		return Message{Raw: line}
	}

	if len(parts) >= 2 {
		if candidate := parts[0] + ":" + parts[1]; knownTwoSegmentOpcodes[candidate] {
			return Message{Opcode: candidate, Fields: parts[2:], Raw: line}
		}
	}

	return Message{Opcode: parts[0], Fields: parts[1:], Raw: line}
}

var knownTwoSegmentOpcodes = map[string]bool{
	OpLobbyEnter:   true,
	OpRoomCreate:   true,
	OpRoomJoin:     true,
	OpRoomLeave:    true,
	OpRoomList:     true,
	OpRoomReady:    true,
	OpRoomStart:    true,
	OpGameMove:     true,
	OpUserStats:    true,
	OpVersionCheck: true,
	OpAfkUnblock:   true,
}

// HandlerFunc processes one parsed message for a session.
type HandlerFunc func(ctx context.Context, s *session.Session, msg Message)

// Router dispatches parsed lines to the registered handler for their
// opcode; an unregistered opcode yields ERROR:unknown opcode to the sender.
type Router struct {
	handlers map[string]HandlerFunc
}

// NewRouter builds an empty router; callers register handlers with Handle.
func NewRouter() *Router {
	return &Router{handlers: make(map[string]HandlerFunc)}
}

// Handle registers fn as the handler for opcode, replacing any previous one.
func (r *Router) Handle(opcode string, fn HandlerFunc) {
	r.handlers[opcode] = fn
}

// Dispatch parses line and invokes its handler. It is the function passed
// as a session.Dispatch callback to Session.ReadLoop.
func (r *Router) Dispatch(ctx context.Context, s *session.Session, line string) {
	msg := ParseLine(line)
	handler, ok := r.handlers[msg.Opcode]
	if !ok {
		s.Send(Error("unknown opcode"))
		return
	}
	handler(ctx, s, msg)
}
