// Package config loads and validates app config from env and an optional .env file using Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"eviction-tracker/efiling/internal/resilience/retry"
	"eviction-tracker/efiling/internal/security"
)

// Draft storage backends.
const (
	DraftBackendMemory   = "memory"
	DraftBackendFile     = "file"
	DraftBackendPostgres = "postgres"
	DraftBackendSQLite   = "sqlite"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// HTTPAddr is where the filing API listens.
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// GRPCAddr is where the gRPC health service listens.
	GRPCAddr string `mapstructure:"GRPC_ADDR"`
	// DatabaseURL is the Postgres DSN. Empty keeps cases and events in memory.
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	// Env is the application environment (e.g. "development", "production").
	Env string `mapstructure:"APP_ENV"`

	// E-filing service.
	EFileBaseURL     string        `mapstructure:"EFILE_BASE_URL"`
	EFileState       string        `mapstructure:"EFILE_STATE"`
	EFileClientToken string        `mapstructure:"EFILE_CLIENT_TOKEN"`
	EFileUsername    string        `mapstructure:"EFILE_USERNAME"`
	EFilePassword    string        `mapstructure:"EFILE_PASSWORD"`
	EFileTimeout     time.Duration `mapstructure:"EFILE_TIMEOUT"`
	// TokenTTL is assumed when the login response carries no expiry.
	TokenTTL          time.Duration `mapstructure:"EFILE_TOKEN_TTL"`
	TokenSafetyBuffer time.Duration `mapstructure:"EFILE_TOKEN_SAFETY_BUFFER"`
	Retries           int           `mapstructure:"EFILE_RETRIES"`
	RetryBaseDelay    time.Duration `mapstructure:"EFILE_RETRY_BASE_DELAY"`
	RetryMaxDelay     time.Duration `mapstructure:"EFILE_RETRY_MAX_DELAY"`
	// RetryableCodes is a comma-separated allow-list of upstream message codes worth retrying.
	RetryableCodes   string        `mapstructure:"EFILE_RETRYABLE_CODES"`
	BreakerThreshold int           `mapstructure:"EFILE_BREAKER_THRESHOLD"`
	BreakerCooldown  time.Duration `mapstructure:"EFILE_BREAKER_COOLDOWN"`
	// FallbackXrefNumber and FallbackXrefCode form the cross reference joint-action filings get
	// when the user supplies none.
	FallbackXrefNumber string `mapstructure:"EFILE_FALLBACK_XREF_NUMBER"`
	FallbackXrefCode   string `mapstructure:"EFILE_FALLBACK_XREF_CODE"`
	MaxAttachmentBytes int64  `mapstructure:"EFILE_MAX_ATTACHMENT_BYTES"`
	// Jurisdictions is a comma-separated allow-list checked by the filing policy. Empty allows all.
	Jurisdictions string `mapstructure:"EFILE_JURISDICTIONS"`
	// PolicyPath is a Rego file or directory whose deny rules extend the built-in filing policy.
	PolicyPath string `mapstructure:"EFILE_POLICY_PATH"`

	// Drafts.
	DraftBackend       string        `mapstructure:"DRAFT_BACKEND"`
	DraftPath          string        `mapstructure:"DRAFT_PATH"`
	DraftMaxAge        time.Duration `mapstructure:"DRAFT_MAX_AGE"`
	DraftEncryptionKey string        `mapstructure:"DRAFT_ENCRYPTION_KEY"`

	// Telemetry (optional).
	OTLPEndpoint string `mapstructure:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OTLPInsecure bool   `mapstructure:"OTEL_EXPORTER_OTLP_INSECURE"`
	ServiceName  string `mapstructure:"OTEL_SERVICE_NAME"`
	// KafkaBrokers is a comma-separated list of Kafka broker addresses (e.g. "localhost:9092").
	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	EventsTopic  string `mapstructure:"EFILE_EVENTS_TOPIC"`

	// Worker-only: Loki URL the event worker pushes to (e.g. http://localhost:3100).
	LokiURL string `mapstructure:"LOKI_URL"`
	// KafkaGroupID is the consumer group ID for the event worker.
	KafkaGroupID string `mapstructure:"KAFKA_GROUP_ID"`
}

var defaults = map[string]any{
	"HTTP_ADDR":                   ":8080",
	"GRPC_ADDR":                   ":9090",
	"DATABASE_URL":                "",
	"APP_ENV":                     "",
	"EFILE_BASE_URL":              "https://api.uslegalpro.com/v4",
	"EFILE_STATE":                 "il",
	"EFILE_CLIENT_TOKEN":          "",
	"EFILE_USERNAME":              "",
	"EFILE_PASSWORD":              "",
	"EFILE_TIMEOUT":               "30s",
	"EFILE_TOKEN_TTL":             "1h",
	"EFILE_TOKEN_SAFETY_BUFFER":   "60s",
	"EFILE_RETRIES":               retry.DefaultRetries,
	"EFILE_RETRY_BASE_DELAY":      "500ms",
	"EFILE_RETRY_MAX_DELAY":       "30s",
	"EFILE_RETRYABLE_CODES":       "",
	"EFILE_BREAKER_THRESHOLD":     5,
	"EFILE_BREAKER_COOLDOWN":      "30s",
	"EFILE_FALLBACK_XREF_NUMBER":  "44113",
	"EFILE_FALLBACK_XREF_CODE":    "190860",
	"EFILE_MAX_ATTACHMENT_BYTES":  10 << 20,
	"EFILE_JURISDICTIONS":         "",
	"EFILE_POLICY_PATH":           "",
	"DRAFT_BACKEND":               DraftBackendMemory,
	"DRAFT_PATH":                  "",
	"DRAFT_MAX_AGE":               "168h",
	"DRAFT_ENCRYPTION_KEY":        "",
	"OTEL_EXPORTER_OTLP_ENDPOINT": "",
	"OTEL_EXPORTER_OTLP_INSECURE": false,
	"OTEL_SERVICE_NAME":           "efiling",
	"KAFKA_BROKERS":               "",
	"EFILE_EVENTS_TOPIC":          "efile-events",
	"LOKI_URL":                    "",
	"KAFKA_GROUP_ID":              "efile-events-worker",
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Missing .env is ignored (e.g. in CI). Env vars override .env.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigFile(".env")
	v.SetConfigType("env")
	_ = v.ReadInConfig() // ignore ErrConfigFileNotFound

	v.AutomaticEnv()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and combinations Load cannot express as defaults.
func (c *Config) Validate() error {
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.GRPCAddr == "" {
		return errors.New("config: GRPC_ADDR must be set")
	}
	for name, d := range map[string]time.Duration{
		"EFILE_TIMEOUT":          c.EFileTimeout,
		"EFILE_TOKEN_TTL":        c.TokenTTL,
		"EFILE_RETRY_BASE_DELAY": c.RetryBaseDelay,
		"EFILE_RETRY_MAX_DELAY":  c.RetryMaxDelay,
		"EFILE_BREAKER_COOLDOWN": c.BreakerCooldown,
		"DRAFT_MAX_AGE":          c.DraftMaxAge,
	} {
		if d <= 0 {
			return fmt.Errorf("config: %s must be a positive duration", name)
		}
	}
	if c.TokenSafetyBuffer < 0 || c.TokenSafetyBuffer >= c.TokenTTL {
		return errors.New("config: EFILE_TOKEN_SAFETY_BUFFER must be non-negative and shorter than EFILE_TOKEN_TTL")
	}
	if c.Retries < 0 {
		return errors.New("config: EFILE_RETRIES must not be negative")
	}
	if c.BreakerThreshold < 1 {
		return errors.New("config: EFILE_BREAKER_THRESHOLD must be at least 1")
	}
	if c.MaxAttachmentBytes <= 0 {
		return errors.New("config: EFILE_MAX_ATTACHMENT_BYTES must be positive")
	}
	switch c.DraftBackend {
	case DraftBackendMemory:
	case DraftBackendFile, DraftBackendSQLite:
		if c.DraftPath == "" {
			return fmt.Errorf("config: DRAFT_PATH is required for DRAFT_BACKEND=%s", c.DraftBackend)
		}
	case DraftBackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for DRAFT_BACKEND=postgres")
		}
	default:
		return fmt.Errorf("config: unknown DRAFT_BACKEND %q", c.DraftBackend)
	}
	if c.DraftEncryptionKey != "" {
		if _, err := security.ParseSealKey(c.DraftEncryptionKey); err != nil {
			return fmt.Errorf("config: DRAFT_ENCRYPTION_KEY: %w", err)
		}
	}
	if c.Env == "production" && (c.EFileUsername == "" || c.EFilePassword == "" || c.EFileClientToken == "") {
		return errors.New("config: EFILE_USERNAME, EFILE_PASSWORD and EFILE_CLIENT_TOKEN are required when APP_ENV=production")
	}
	return nil
}

// KafkaBrokersList returns Kafka broker addresses from the comma-separated config.
// An empty list disables the Kafka producer.
func (c *Config) KafkaBrokersList() []string {
	if c == nil {
		return nil
	}
	return splitList(c.KafkaBrokers)
}

// RetryableCodesList returns the retryable upstream codes.
func (c *Config) RetryableCodesList() []string {
	return splitList(c.RetryableCodes)
}

// JurisdictionsList returns the jurisdiction allow-list.
func (c *Config) JurisdictionsList() []string {
	return splitList(c.Jurisdictions)
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
