package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wolfman30/realty-lead-agent/internal/api/router"
	"github.com/wolfman30/realty-lead-agent/internal/app/bootstrap"
	"github.com/wolfman30/realty-lead-agent/internal/chatlog"
	appconfig "github.com/wolfman30/realty-lead-agent/internal/config"
	"github.com/wolfman30/realty-lead-agent/internal/conversation"
	"github.com/wolfman30/realty-lead-agent/internal/observability/metrics"
	"github.com/wolfman30/realty-lead-agent/internal/webchat"
	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting realty-lead-agent API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"llm_provider", cfg.LLMProvider,
	)

	metricsHandler, leadMetrics := setupMetrics()

	agent, err := bootstrap.BuildAgent(context.Background(), cfg, logger, leadMetrics)
	if err != nil {
		logger.Error("failed to build agent", "error", err)
		os.Exit(1)
	}
	defer agent.Close()

	srv := newServer(cfg, buildRouter(cfg, agent, metricsHandler, logger))

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
	fmt.Println("Server exited gracefully")
}

// setupMetrics registers the lead metrics on a private registry alongside the
// Go runtime and process collectors.
func setupMetrics() (http.Handler, *metrics.LeadMetrics) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{}), metrics.NewLeadMetrics(reg)
}

func buildRouter(cfg *appconfig.Config, agent *bootstrap.Agent, metricsHandler http.Handler, logger *logging.Logger) http.Handler {
	return router.New(&router.Config{
		Logger:              logger,
		ConversationHandler: conversation.NewHandler(agent.Orchestrator, cfg.SalesContactNumber, logger),
		WebChatHandler:      webchat.NewHandler(agent.Orchestrator, cfg.SalesContactNumber, logger),
		ChatLogHandler:      chatlog.NewHandler(agent.ChatLog, agent.Archiver, logger),
		MetricsHandler:      metricsHandler,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		RequestTimeout:      requestTimeout(cfg),
	})
}

// requestTimeout leaves room for a full model call plus catalog and CRM I/O.
func requestTimeout(cfg *appconfig.Config) time.Duration {
	llm := cfg.LLMTimeout
	if llm <= 0 {
		llm = 30 * time.Second
	}
	return llm + 15*time.Second
}

// newServer leaves WriteTimeout unset: hijacked websocket connections keep
// the deadline and would be cut mid-conversation. Plain routes are bounded by
// the router's timeout middleware instead.
func newServer(cfg *appconfig.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}
