package conversation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/realty-lead-agent/pkg/logging"
)

var fallbackTracer = otel.Tracer("realty.internal.conversation.fallback")

// FallbackLLMClient wraps a primary LLM client with a fallback provider.
// If the primary fails, it automatically retries with the fallback.
type FallbackLLMClient struct {
	primary  LLMClient
	fallback LLMClient
	logger   *logging.Logger
}

// NewFallbackLLMClient creates a new fallback-enabled LLM client.
// If fallback is nil, the client will only use the primary provider.
func NewFallbackLLMClient(primary, fallback LLMClient, logger *logging.Logger) *FallbackLLMClient {
	if primary == nil {
		panic("conversation: primary llm client cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &FallbackLLMClient{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
	}
}

// Complete tries the primary provider, then the fallback. A cancelled or
// expired context is not retried.
func (c *FallbackLLMClient) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	ctx, span := fallbackTracer.Start(ctx, "conversation.llm_fallback")
	defer span.End()

	resp, err := c.primary.Complete(ctx, req)
	if err == nil {
		span.SetAttributes(attribute.String("realty.llm.served_by", "primary"))
		return resp, nil
	}
	span.RecordError(err)

	if c.fallback == nil || ctx.Err() != nil {
		c.logger.Warn("primary llm failed", "error", err, "fallback_available", c.fallback != nil)
		return LLMResponse{}, err
	}
	c.logger.Warn("primary llm failed, attempting fallback", "error", err)

	// the fallback provider has its own model id
	req.Model = ""
	fallbackResp, fallbackErr := c.fallback.Complete(ctx, req)
	if fallbackErr != nil {
		span.RecordError(fallbackErr)
		c.logger.Error("fallback llm also failed",
			"primary_error", err,
			"fallback_error", fallbackErr,
		)
		return LLMResponse{}, fallbackErr
	}

	span.SetAttributes(attribute.String("realty.llm.served_by", "fallback"))
	c.logger.Info("fallback llm succeeded after primary failure")
	return fallbackResp, nil
}
