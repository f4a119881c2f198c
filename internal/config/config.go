package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds application configuration
type Config struct {
	Port               string
	Env                string
	LogLevel           string
	CORSAllowedOrigins []string
	CompanyName        string
	SalesContactNumber string

	// Language model
	LLMProvider         string
	LLMFallbackProvider string
	LLMTemperature      float32
	LLMTimeout          time.Duration
	OpenAIAPIKey        string
	OpenAIModel         string
	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModel         string

	// AWS (Bedrock, S3 exports)
	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string
	ExportS3Bucket      string

	// Project catalog
	CatalogBaseURL string
	CatalogTimeout time.Duration

	// CRM ingestion
	CRMURL            string
	CRMTimeout        time.Duration
	CRMCreatedBy      string
	CRMUserID         string
	CRMGeneratedBy    string
	CRMSourceID       string
	CRMThrough        string
	CRMCountryCode    string
	CRMWhatsAppNotify bool

	// Storage
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	SessionTTL    time.Duration
	ChatLogPath   string

	// OTP
	OTPTTL           time.Duration
	OTPMaxAttempts   int
	OTPDebugEcho     bool
	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:               getEnv("PORT", "8080"),
		Env:                getEnv("ENV", "development"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CompanyName:        getEnv("COMPANY_NAME", "Amogh Buildtech"),
		SalesContactNumber: getEnv("SALES_CONTACT_NUMBER", "+91 92500-94500"),

		LLMProvider:         strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", "openai"))),
		LLMFallbackProvider: strings.ToLower(strings.TrimSpace(getEnv("LLM_FALLBACK_PROVIDER", ""))),
		LLMTemperature:      getEnvAsFloat32("LLM_TEMPERATURE", 0.3),
		LLMTimeout:          getEnvAsDuration("LLM_TIMEOUT", 30*time.Second),
		OpenAIAPIKey:        getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:         getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModel:         getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		AWSRegion:           getEnv("AWS_REGION", "ap-south-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ExportS3Bucket:      getEnv("EXPORT_S3_BUCKET", ""),

		CatalogBaseURL: getEnv("CATALOG_BASE_URL", "https://www.amoghbuildtech.com"),
		CatalogTimeout: getEnvAsDuration("CATALOG_TIMEOUT", 10*time.Second),

		CRMURL:            getEnv("CRM_URL", "https://uat-service.amoghbuildtech.com/v1/customer"),
		CRMTimeout:        getEnvAsDuration("CRM_TIMEOUT", 10*time.Second),
		CRMCreatedBy:      getEnv("CRM_CREATED_BY", "65117eec2db74f7ad11029bc"),
		CRMUserID:         getEnv("CRM_USER_ID", "67c308471c1562fbc61a043b"),
		CRMGeneratedBy:    getEnv("CRM_GENERATED_BY", "656c6499f48e45d123d6d8c5"),
		CRMSourceID:       getEnv("CRM_SOURCE_ID", "678209623f4bb7c1d6caac4f"),
		CRMThrough:        getEnv("CRM_THROUGH", "Website"),
		CRMCountryCode:    getEnv("CRM_COUNTRY_CODE", "+91"),
		CRMWhatsAppNotify: getEnvAsBool("CRM_WHATSAPP_NOTIFY", true),

		DatabaseURL:   getEnv("DATABASE_URL", ""),
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		SessionTTL:    getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		ChatLogPath:   getEnv("CHAT_LOG_PATH", "conversation_logs.jsonl"),

		OTPTTL:           getEnvAsDuration("OTP_TTL", 5*time.Minute),
		OTPMaxAttempts:   getEnvAsInt("OTP_MAX_ATTEMPTS", 5),
		OTPDebugEcho:     getEnvAsBool("OTP_DEBUG_ECHO", false),
		TwilioAccountSID: getEnv("TWILIO_ACCOUNT_SID", ""),
		TwilioAuthToken:  getEnv("TWILIO_AUTH_TOKEN", ""),
		TwilioFromNumber: getEnv("TWILIO_FROM_NUMBER", ""),
	}
}

// IsProduction reports whether the service runs with ENV=production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat32(key string, defaultValue float32) float32 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 32); err == nil {
		return float32(value)
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits a comma separated variable, dropping empty entries.
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
