package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wolfman30/realty-lead-agent/internal/blocks"
	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

// Engine is the orchestrator surface used by transports.
type Engine interface {
	HandleTurn(ctx context.Context, sessionID, message string) (*TurnResult, error)
	Status(ctx context.Context, sessionID string) (*StatusSnapshot, error)
	Reset(ctx context.Context, sessionID string) error
}

var _ Engine = (*Orchestrator)(nil)

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message   string `json:"message" validate:"required,max=4000"`
	SessionID string `json:"session_id" validate:"omitempty,max=128"`
}

// ChatResponse is the block payload returned to the widget.
type ChatResponse struct {
	SessionID         string         `json:"session_id"`
	Blocks            []blocks.Block `json:"blocks"`
	Stage             string         `json:"stage,omitempty"`
	OTPEchoedForDebug string         `json:"otp_echoed_for_debug,omitempty"`
}

type resetRequest struct {
	SessionID string `json:"session_id" validate:"required,max=128"`
}

// Handler wires HTTP requests to the conversation engine.
type Handler struct {
	engine   Engine
	contact  string
	validate *validator.Validate
	logger   *logging.Logger
}

// NewHandler creates a conversation handler. contact is quoted in degraded replies.
func NewHandler(engine Engine, contact string, logger *logging.Logger) *Handler {
	if engine == nil {
		panic("conversation: engine cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		engine:   engine,
		contact:  contact,
		validate: validator.New(),
		logger:   logger,
	}
}

// Chat handles POST /chat.
func (h *Handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode chat request", "error", err)
		h.writeJSON(w, http.StatusBadRequest, ChatResponse{Blocks: blocks.NewText("Please send a message to continue.").Blocks})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := h.validate.Struct(req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, ChatResponse{
			SessionID: req.SessionID,
			Blocks:    blocks.NewText("Please send a message to continue.").Blocks,
		})
		return
	}

	res, err := h.engine.HandleTurn(r.Context(), req.SessionID, req.Message)
	if err != nil {
		if errors.Is(err, ErrEmptyMessage) {
			h.writeJSON(w, http.StatusBadRequest, ChatResponse{
				SessionID: req.SessionID,
				Blocks:    blocks.NewText("Please send a message to continue.").Blocks,
			})
			return
		}
		h.logger.Error("failed to handle chat turn", "session_id", req.SessionID, "error", err)
		h.writeJSON(w, http.StatusOK, ChatResponse{
			SessionID: req.SessionID,
			Blocks:    blocks.Fallback(h.contact).Blocks,
		})
		return
	}

	h.writeJSON(w, http.StatusOK, ChatResponse{
		SessionID:         res.SessionID,
		Blocks:            res.Payload.Blocks,
		Stage:             string(res.Stage),
		OTPEchoedForDebug: res.OTPEchoedForDebug,
	})
}

// Status handles GET /chat/status?session_id=...
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := strings.TrimSpace(r.URL.Query().Get("session_id"))
	if sessionID == "" {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	snap, err := h.engine.Status(r.Context(), sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			http.Error(w, "Session not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load session status", "session_id", sessionID, "error", err)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// Reset handles POST /chat/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	var req resetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "session_id is required", http.StatusBadRequest)
		return
	}
	if err := h.engine.Reset(r.Context(), req.SessionID); err != nil {
		h.logger.Error("failed to reset session", "session_id", req.SessionID, "error", err)
		http.Error(w, "Failed to reset session", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
