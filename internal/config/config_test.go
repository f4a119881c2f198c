package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENV", "LOG_LEVEL", "LLM_PROVIDER", "OTP_TTL", "OTP_MAX_ATTEMPTS", "CORS_ALLOWED_ORIGINS", "LLM_TEMPERATURE"} {
		t.Setenv(key, "")
	}
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.LLMProvider != "openai" || cfg.OpenAIModel != "gpt-4o-mini" {
		t.Fatalf("unexpected llm defaults: %s/%s", cfg.LLMProvider, cfg.OpenAIModel)
	}
	if cfg.LLMTemperature != 0.3 {
		t.Fatalf("expected temperature 0.3, got %v", cfg.LLMTemperature)
	}
	if cfg.OTPTTL != 5*time.Minute || cfg.OTPMaxAttempts != 5 {
		t.Fatalf("unexpected otp defaults: %s/%d", cfg.OTPTTL, cfg.OTPMaxAttempts)
	}
	if cfg.CRMTimeout != 10*time.Second || cfg.CatalogTimeout != 10*time.Second {
		t.Fatalf("expected 10s upstream timeouts")
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("expected wildcard cors, got %v", cfg.CORSAllowedOrigins)
	}
	if !cfg.CRMWhatsAppNotify {
		t.Fatalf("expected whatsapp notification on by default")
	}
	if cfg.IsProduction() {
		t.Fatalf("development config reported production")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("ENV", "production")
	t.Setenv("LLM_PROVIDER", " Bedrock ")
	t.Setenv("LLM_TEMPERATURE", "0.7")
	t.Setenv("OTP_TTL", "90s")
	t.Setenv("OTP_MAX_ATTEMPTS", "3")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")
	t.Setenv("CRM_WHATSAPP_NOTIFY", "false")
	t.Setenv("SESSION_TTL", "not-a-duration")

	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if !cfg.IsProduction() {
		t.Fatalf("expected production")
	}
	if cfg.LLMProvider != "bedrock" {
		t.Fatalf("expected normalized provider, got %q", cfg.LLMProvider)
	}
	if cfg.LLMTemperature < 0.69 || cfg.LLMTemperature > 0.71 {
		t.Fatalf("expected temperature override, got %v", cfg.LLMTemperature)
	}
	if cfg.OTPTTL != 90*time.Second || cfg.OTPMaxAttempts != 3 {
		t.Fatalf("unexpected otp overrides: %s/%d", cfg.OTPTTL, cfg.OTPMaxAttempts)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected cors list: %v", cfg.CORSAllowedOrigins)
	}
	if cfg.CRMWhatsAppNotify {
		t.Fatalf("expected whatsapp notification disabled")
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Fatalf("invalid duration should fall back to default, got %s", cfg.SessionTTL)
	}
}
