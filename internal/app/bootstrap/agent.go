package bootstrap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/realty-lead-agent/cmd/mainconfig"
	"github.com/wolfman30/realty-lead-agent/internal/catalog"
	"github.com/wolfman30/realty-lead-agent/internal/chatlog"
	appconfig "github.com/wolfman30/realty-lead-agent/internal/config"
	"github.com/wolfman30/realty-lead-agent/internal/conversation"
	"github.com/wolfman30/realty-lead-agent/internal/crm"
	"github.com/wolfman30/realty-lead-agent/internal/observability/metrics"
	"github.com/wolfman30/realty-lead-agent/internal/otp"
	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

const defaultPhoneRegion = "IN"

// Agent bundles the conversation engine with the stores the binaries expose.
type Agent struct {
	Orchestrator *conversation.Orchestrator
	ChatLog      *chatlog.FileStore
	Archiver     *chatlog.S3Archiver

	closers []func()
}

// Close releases database, cache and SDK clients in reverse order.
func (a *Agent) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// BuildAgent wires the lead-qualification engine from configuration. Redis
// and Postgres are optional; without them sessions, codes and the CRM
// ledger live in memory.
func BuildAgent(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, m *metrics.LeadMetrics) (*Agent, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	agent := &Agent{}

	llm, closeLLM, err := BuildLLMClient(ctx, cfg, logger, m)
	if err != nil {
		return nil, err
	}
	agent.closers = append(agent.closers, closeLLM)

	redisClient := BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		agent.closers = append(agent.closers, func() { _ = redisClient.Close() })
	}
	pool := ConnectPostgresPool(ctx, cfg.DatabaseURL, logger)
	if pool != nil {
		agent.closers = append(agent.closers, pool.Close)
	}

	agent.ChatLog = chatlog.NewFileStore(cfg.ChatLogPath, logger)
	archiver, err := BuildArchiver(ctx, cfg, logger)
	if err != nil {
		agent.Close()
		return nil, err
	}
	agent.Archiver = archiver

	opts := []conversation.OrchestratorOption{
		conversation.WithSessionStore(BuildSessionStore(redisClient, cfg.SessionTTL)),
		conversation.WithCatalog(catalog.NewClient(cfg.CatalogBaseURL, cfg.CatalogTimeout, logger)),
		conversation.WithTurnLogger(agent.ChatLog),
		conversation.WithMetrics(m),
		conversation.WithBranding(cfg.CompanyName, cfg.SalesContactNumber),
		conversation.WithModel("", cfg.LLMTemperature, cfg.LLMTimeout),
	}
	agent.Orchestrator = conversation.NewOrchestrator(
		llm,
		BuildOTPService(cfg, redisClient, logger),
		BuildSubmitter(cfg, pool, logger),
		logger,
		opts...,
	)

	logger.Info("agent ready",
		"redis", redisClient != nil,
		"postgres", pool != nil,
		"s3_export", archiver != nil,
	)
	return agent, nil
}

// BuildSessionStore prefers Redis so sessions survive restarts.
func BuildSessionStore(redisClient *redis.Client, ttl time.Duration) conversation.SessionStore {
	if redisClient == nil {
		return conversation.NewMemorySessionStore(ttl)
	}
	return conversation.NewRedisSessionStore(redisClient, ttl)
}

// BuildOTPService picks Twilio SMS delivery when credentials are present and
// falls back to logging codes. Codes are never echoed in production.
func BuildOTPService(cfg *appconfig.Config, redisClient *redis.Client, logger *logging.Logger) *otp.Service {
	var store otp.Store = otp.NewMemoryStore()
	if redisClient != nil {
		store = otp.NewRedisStore(redisClient)
	}

	var sender otp.Sender
	if cfg.TwilioAccountSID != "" && cfg.TwilioAuthToken != "" && cfg.TwilioFromNumber != "" {
		sender = otp.NewTwilioSender(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromNumber, defaultPhoneRegion, logger)
	} else {
		logger.Warn("twilio not configured; otp codes are only logged")
		sender = otp.NewLogSender(logger)
	}

	debugEcho := cfg.OTPDebugEcho
	if debugEcho && cfg.IsProduction() {
		logger.Warn("OTP_DEBUG_ECHO ignored in production")
		debugEcho = false
	}

	return otp.NewService(store, sender, otp.Config{
		TTL:         cfg.OTPTTL,
		MaxAttempts: cfg.OTPMaxAttempts,
		DebugEcho:   debugEcho,
	}, logger)
}

// BuildSubmitter wires the CRM client behind the idempotency ledger.
func BuildSubmitter(cfg *appconfig.Config, pool *pgxpool.Pool, logger *logging.Logger) *crm.Submitter {
	client := crm.NewClient(crm.Config{
		URL:            cfg.CRMURL,
		Timeout:        cfg.CRMTimeout,
		CreatedBy:      cfg.CRMCreatedBy,
		UserID:         cfg.CRMUserID,
		GeneratedBy:    cfg.CRMGeneratedBy,
		SourceID:       cfg.CRMSourceID,
		Through:        cfg.CRMThrough,
		CountryCode:    cfg.CRMCountryCode,
		Region:         defaultPhoneRegion,
		WhatsAppNotify: cfg.CRMWhatsAppNotify,
	}, logger)

	var ledger crm.Ledger = crm.NewMemoryLedger()
	if pool != nil {
		ledger = crm.NewPostgresLedger(pool)
	}
	return crm.NewSubmitter(client, ledger, logger)
}

// BuildArchiver returns nil when no export bucket is configured.
func BuildArchiver(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) (*chatlog.S3Archiver, error) {
	bucket := strings.TrimSpace(cfg.ExportS3Bucket)
	if bucket == "" {
		return nil, nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: load aws config: %w", err)
	}
	return chatlog.NewS3Archiver(mainconfig.NewS3Client(awsCfg, cfg), bucket, logger), nil
}
