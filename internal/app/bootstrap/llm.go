package bootstrap

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/realty-lead-agent/cmd/mainconfig"
	appconfig "github.com/wolfman30/realty-lead-agent/internal/config"
	"github.com/wolfman30/realty-lead-agent/internal/conversation"
	"github.com/wolfman30/realty-lead-agent/internal/observability/metrics"
	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

const (
	ProviderOpenAI  = "openai"
	ProviderBedrock = "bedrock"
	ProviderGemini  = "gemini"
)

// BuildLLMClient wires the configured primary provider, with an optional
// fallback provider behind it. The returned close func releases SDK clients.
func BuildLLMClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, m *metrics.LeadMetrics) (conversation.LLMClient, func(), error) {
	if cfg == nil {
		return nil, nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	primaryName := providerName(cfg.LLMProvider)
	primary, closePrimary, err := buildProvider(ctx, primaryName, cfg)
	if err != nil {
		return nil, nil, err
	}
	closers := []func(){closePrimary}
	closeAll := func() {
		for _, c := range closers {
			c()
		}
	}

	var fallback conversation.LLMClient
	if name := providerName(cfg.LLMFallbackProvider); cfg.LLMFallbackProvider != "" && name != primaryName {
		client, closeFallback, err := buildProvider(ctx, name, cfg)
		if err != nil {
			logger.Warn("fallback llm provider unavailable", "provider", name, "error", err)
		} else {
			fallback = conversation.NewInstrumentedLLMClient(name, client, m)
			closers = append(closers, closeFallback)
		}
	}

	client := conversation.NewInstrumentedLLMClient(primaryName, primary, m)
	logger.Info("llm configured", "provider", primaryName, "fallback", fallback != nil)
	if fallback == nil {
		return client, closeAll, nil
	}
	return conversation.NewFallbackLLMClient(client, fallback, logger), closeAll, nil
}

func providerName(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	if name == "" {
		return ProviderOpenAI
	}
	return name
}

func buildProvider(ctx context.Context, name string, cfg *appconfig.Config) (conversation.LLMClient, func(), error) {
	noop := func() {}
	switch name {
	case ProviderOpenAI:
		client, err := conversation.NewOpenAIClientFromKey(cfg.OpenAIAPIKey, cfg.OpenAIModel)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		return client, noop, nil
	case ProviderBedrock:
		if strings.TrimSpace(cfg.BedrockModelID) == "" {
			return nil, nil, fmt.Errorf("bootstrap: BEDROCK_MODEL_ID is required for the bedrock provider")
		}
		awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: load aws config: %w", err)
		}
		return conversation.NewBedrockLLMClient(mainconfig.NewBedrockClient(awsCfg, cfg), cfg.BedrockModelID), noop, nil
	case ProviderGemini:
		client, err := conversation.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModel)
		if err != nil {
			return nil, nil, fmt.Errorf("bootstrap: %w", err)
		}
		return client, func() { _ = client.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("bootstrap: unknown llm provider %q", name)
	}
}
