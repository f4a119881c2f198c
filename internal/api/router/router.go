package router

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/wolfman30/realty-lead-agent/internal/chatlog"
	"github.com/wolfman30/realty-lead-agent/internal/conversation"
	httpmiddleware "github.com/wolfman30/realty-lead-agent/internal/http/middleware"
	"github.com/wolfman30/realty-lead-agent/internal/webchat"
	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger              *logging.Logger
	ConversationHandler *conversation.Handler
	WebChatHandler      *webchat.Handler
	ChatLogHandler      *chatlog.Handler
	MetricsHandler      http.Handler
	CORSAllowedOrigins  []string
	// RequestTimeout bounds plain HTTP handlers. The websocket route is exempt.
	RequestTimeout time.Duration
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	if cfg.ConversationHandler == nil {
		panic("router: conversation handler cannot be nil")
	}
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(httpmiddleware.CORS(cfg.CORSAllowedOrigins))
	}
	r.Use(httpmiddleware.RequestLogger(cfg.Logger))

	r.Get("/health", healthCheck)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}
	if cfg.WebChatHandler != nil {
		r.Get("/ws", cfg.WebChatHandler.HandleWebSocket)
	}

	r.Group(func(api chi.Router) {
		if cfg.RequestTimeout > 0 {
			api.Use(middleware.Timeout(cfg.RequestTimeout))
		}
		api.Post("/chat", cfg.ConversationHandler.Chat)
		api.Get("/chat/status", cfg.ConversationHandler.Status)
		api.Post("/chat/reset", cfg.ConversationHandler.Reset)
		if cfg.ChatLogHandler != nil {
			api.Route("/admin", func(admin chi.Router) {
				admin.Get("/analytics", cfg.ChatLogHandler.Analytics)
				admin.Get("/sessions", cfg.ChatLogHandler.Sessions)
				admin.Get("/sessions/{sessionID}", cfg.ChatLogHandler.Session)
				admin.Get("/recent", cfg.ChatLogHandler.Recent)
				admin.Get("/export.csv", cfg.ChatLogHandler.Export)
			})
		}
	})

	return r
}

func healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
