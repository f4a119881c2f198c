package conversation

import (
	"context"
	"time"

	"github.com/wolfman30/realty-lead-agent/internal/observability/metrics"
)

const (
	ChatRoleSystem    = "system"
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is an internal message representation that can include system prompts.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
	// JSONOutput asks providers that support it to constrain the reply to a
	// JSON object.
	JSONOutput bool
}

type LLMResponse struct {
	Text       string
	Usage      TokenUsage
	StopReason string
}

type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}

// instrumentedLLMClient records call latency per provider.
type instrumentedLLMClient struct {
	provider string
	inner    LLMClient
	metrics  *metrics.LeadMetrics
}

// NewInstrumentedLLMClient wraps client with latency metrics labelled by provider.
func NewInstrumentedLLMClient(provider string, client LLMClient, m *metrics.LeadMetrics) LLMClient {
	if client == nil {
		panic("conversation: llm client cannot be nil")
	}
	if m == nil {
		return client
	}
	return &instrumentedLLMClient{provider: provider, inner: client, metrics: m}
}

func (c *instrumentedLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	start := time.Now()
	resp, err := c.inner.Complete(ctx, req)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.ObserveLLMLatency(c.provider, status, time.Since(start).Seconds())
	return resp, err
}
