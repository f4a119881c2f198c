package chatlog

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

// Reader is the read side of the conversation log.
type Reader interface {
	All(ctx context.Context) ([]Entry, error)
	Session(ctx context.Context, sessionID string) ([]Entry, error)
	Recent(ctx context.Context, n int) ([]Entry, error)
	Sessions(ctx context.Context) ([]SessionSummary, error)
	Analytics(ctx context.Context) (Analytics, error)
}

// Handler serves analytics and exports over HTTP.
type Handler struct {
	reader   Reader
	archiver *S3Archiver
	logger   *logging.Logger
}

// NewHandler creates an analytics handler. archiver may be nil.
func NewHandler(reader Reader, archiver *S3Archiver, logger *logging.Logger) *Handler {
	if reader == nil {
		panic("chatlog: reader cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{reader: reader, archiver: archiver, logger: logger}
}

// Analytics handles GET /admin/analytics.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	a, err := h.reader.Analytics(r.Context())
	if err != nil {
		h.logger.Error("failed to compute analytics", "error", err)
		http.Error(w, "Failed to compute analytics", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, a)
}

// Sessions handles GET /admin/sessions.
func (h *Handler) Sessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.reader.Sessions(r.Context())
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		http.Error(w, "Failed to list sessions", http.StatusInternalServerError)
		return
	}
	if sessions == nil {
		sessions = []SessionSummary{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

// Session handles GET /admin/sessions/{sessionID}.
func (h *Handler) Session(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	entries, err := h.reader.Session(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to load session log", "session_id", id, "error", err)
		http.Error(w, "Failed to load session", http.StatusInternalServerError)
		return
	}
	if len(entries) == 0 {
		http.Error(w, "Session not found", http.StatusNotFound)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"session_id": id, "entries": entries})
}

// Recent handles GET /admin/recent?limit=N.
func (h *Handler) Recent(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
			return
		}
		limit = n
	}
	entries, err := h.reader.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to load recent entries", "error", err)
		http.Error(w, "Failed to load recent conversations", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

// Export handles GET /admin/export.csv. With ?archive=true the export is
// also uploaded to S3 when archival is configured.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	entries, err := h.reader.All(r.Context())
	if err != nil {
		h.logger.Error("failed to read log for export", "error", err)
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := WriteCSV(&buf, entries); err != nil {
		h.logger.Error("failed to render csv", "error", err)
		http.Error(w, "Failed to export", http.StatusInternalServerError)
		return
	}

	name := ExportName(time.Now())
	if r.URL.Query().Get("archive") == "true" && h.archiver.Enabled() {
		key, err := h.archiver.Upload(r.Context(), name, buf.Bytes())
		if err != nil {
			h.logger.Error("failed to archive export", "error", err)
		} else {
			w.Header().Set("X-Archive-Key", key)
		}
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", "error", err)
	}
}
