// Package webchat serves the chat widget over a websocket.
package webchat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/net/websocket"

	"github.com/wolfman30/realty-lead-agent/internal/blocks"
	"github.com/wolfman30/realty-lead-agent/internal/conversation"
	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

// Handler manages websocket chat connections.
type Handler struct {
	engine  conversation.Engine
	contact string
	logger  *logging.Logger

	mu       sync.RWMutex
	sessions map[string]*wsConn // sessionID -> active connection
}

type wsConn struct {
	conn *websocket.Conn
	// serializes writes from the read loop and SendToSession
	mu sync.Mutex
}

func (c *wsConn) send(msg OutboundMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return websocket.JSON.Send(c.conn, msg)
}

// InboundMessage is what the widget sends.
type InboundMessage struct {
	Type string `json:"type"` // "message", "ping", "reset"
	Text string `json:"text"`
}

// OutboundMessage is what we send to the widget.
type OutboundMessage struct {
	Type      string         `json:"type"` // "session", "typing", "blocks", "pong", "error"
	SessionID string         `json:"session_id,omitempty"`
	Blocks    []blocks.Block `json:"blocks,omitempty"`
	Stage     string         `json:"stage,omitempty"`
	Text      string         `json:"text,omitempty"`
}

// NewHandler creates a websocket chat handler. contact is quoted in
// degraded replies.
func NewHandler(engine conversation.Engine, contact string, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("webchat: engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine:   engine,
		contact:  contact,
		logger:   logger,
		sessions: make(map[string]*wsConn),
	}
}

// generateSessionID creates a random session identifier.
func generateSessionID() string {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return uuid.New().String()
	}
	return hex.EncodeToString(b)
}

// HandleWebSocket upgrades to WebSocket and handles real-time messaging.
// The optional ?session= query resumes an existing session.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	websocket.Handler(func(conn *websocket.Conn) {
		h.serveWS(conn, r)
	}).ServeHTTP(w, r)
}

func (h *Handler) serveWS(conn *websocket.Conn, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session"))
	if sessionID == "" {
		sessionID = generateSessionID()
	}

	wsc := &wsConn{conn: conn}
	h.mu.Lock()
	h.sessions[sessionID] = wsc
	h.mu.Unlock()
	defer func() {
		h.mu.Lock()
		if h.sessions[sessionID] == wsc {
			delete(h.sessions, sessionID)
		}
		h.mu.Unlock()
	}()

	_ = wsc.send(OutboundMessage{Type: "session", SessionID: sessionID})
	h.logger.Info("webchat: connection opened", "session_id", sessionID)

	for {
		var msg InboundMessage
		if err := websocket.JSON.Receive(conn, &msg); err != nil {
			h.logger.Debug("webchat: connection closed", "session_id", sessionID, "error", err)
			return
		}

		switch msg.Type {
		case "ping":
			_ = wsc.send(OutboundMessage{Type: "pong"})
		case "reset":
			if err := h.engine.Reset(r.Context(), sessionID); err != nil {
				h.logger.Error("webchat: reset failed", "session_id", sessionID, "error", err)
			}
			_ = wsc.send(OutboundMessage{Type: "session", SessionID: sessionID})
		case "message":
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			h.processMessage(r.Context(), wsc, sessionID, msg.Text)
		}
	}
}

func (h *Handler) processMessage(ctx context.Context, wsc *wsConn, sessionID, text string) {
	_ = wsc.send(OutboundMessage{Type: "typing", SessionID: sessionID})

	res, err := h.engine.HandleTurn(ctx, sessionID, text)
	if err != nil {
		if !errors.Is(err, conversation.ErrEmptyMessage) {
			h.logger.Error("webchat: turn failed", "session_id", sessionID, "error", err)
		}
		_ = wsc.send(fallbackMessage(sessionID, h.contact))
		return
	}
	if err := wsc.send(blocksMessage(res)); err != nil {
		h.logger.Warn("webchat: failed to deliver reply", "session_id", sessionID, "error", err)
	}
}

// SendToSession sends a message to an active WebSocket session.
func (h *Handler) SendToSession(sessionID string, msg OutboundMessage) bool {
	h.mu.RLock()
	wsc, ok := h.sessions[sessionID]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	return wsc.send(msg) == nil
}

// ActiveSessions reports how many sessions have an open connection.
func (h *Handler) ActiveSessions() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.sessions)
}
