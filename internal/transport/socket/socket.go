// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

// Package socket implements the WebSocket transport described in §4.9 and
// §6: on upgrade a session is registered under a fresh UUID, each inbound
// {action:"query"} frame runs through the Pipeline Orchestrator, and on
// close the session is deregistered and the peer notified.
package socket

import (
	"context"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/sqlgate/sqlgate/internal/domain"
	"github.com/sqlgate/sqlgate/internal/pipeline"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Session is one long-lived client link, bound to a socket connection and
// keyed by a server-assigned UUID (§3).
type Session struct {
	ID   string
	conn *websocket.Conn
	rc   domain.RequestContext

	writeMu sync.Mutex
}

func (s *Session) writeJSON(v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(v)
}

// Registry tracks every live Session, so it can be inspected or torn down
// from outside the connection's own goroutine.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewRegistry constructs an empty session Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

func (r *Registry) add(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *Registry) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// Len reports the number of currently-registered sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// inboundMessage is the shape of every frame a client sends on the socket.
type inboundMessage struct {
	Action string `json:"action"`
	SQL    string `json:"sql"`
	Params []any  `json:"params"`
}

type outboundMessage struct {
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handler upgrades HTTP connections to WebSocket and services their
// lifetime.
type Handler struct {
	registry     *Registry
	orchestrator *pipeline.Orchestrator
}

// NewHandler constructs a socket Handler bound to the given orchestrator.
func NewHandler(orchestrator *pipeline.Orchestrator) *Handler {
	return &Handler{registry: NewRegistry(), orchestrator: orchestrator}
}

// Registry exposes the live session registry, mainly for /status-style
// introspection.
func (h *Handler) Registry() *Registry {
	return h.registry
}

// ServeHTTP upgrades the connection and runs the session loop until the
// peer disconnects.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request, rc domain.RequestContext) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("socket upgrade failed")
		return
	}

	session := &Session{ID: uuid.NewString(), conn: conn, rc: rc}
	h.registry.add(session)
	log.Debug().Str("session", session.ID).Msg("socket session opened")

	defer func() {
		h.registry.remove(session.ID)
		closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session closed")
		_ = conn.WriteMessage(websocket.CloseMessage, closeMsg)
		conn.Close()
		log.Debug().Str("session", session.ID).Msg("socket session closed")
	}()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn().Err(err).Str("session", session.ID).Msg("socket read error")
			}
			return
		}

		if msg.Action != "query" {
			_ = session.writeJSON(outboundMessage{Error: "unsupported action: " + msg.Action})
			continue
		}

		h.handleQuery(r.Context(), session, msg)
	}
}

func (h *Handler) handleQuery(ctx context.Context, session *Session, msg inboundMessage) {
	stmt := domain.Statement{SQL: msg.SQL, Params: msg.Params}
	rows, _, err := h.orchestrator.Run(ctx, stmt, session.rc, false)
	if err != nil {
		_ = session.writeJSON(outboundMessage{Error: err.Error()})
		return
	}
	_ = session.writeJSON(outboundMessage{Result: rows})
}
