package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the aigate governance gateway.
type Config struct {
	Port      int
	Version   string
	Upstream  UpstreamConfig
	Polling   PollingConfig
	Retry     RetryConfig
	Telemetry TelemetryConfig
	UIOrigin  string
}

type UpstreamConfig struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type PollingConfig struct {
	StatusInterval  time.Duration
	PendingInterval time.Duration
}

type RetryConfig struct {
	MaxAttempts int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("AIGATE_PORT", 7430),
		Version: envStr("AIGATE_VERSION", "0.2.0"),
		Upstream: UpstreamConfig{
			BaseURL: envStr("AIGATE_UPSTREAM_URL", "http://localhost:8080/api/v1"),
			Token:   envStr("AIGATE_UPSTREAM_TOKEN", ""),
			Timeout: envDur("AIGATE_UPSTREAM_TIMEOUT", 30*time.Second),
		},
		Polling: PollingConfig{
			StatusInterval:  envDur("AIGATE_STATUS_POLL_INTERVAL", 60*time.Second),
			PendingInterval: envDur("AIGATE_PENDING_POLL_INTERVAL", 30*time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts: envInt("AIGATE_RETRY_MAX_ATTEMPTS", 3),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "aigate"),
		},
		UIOrigin: envStr("AIGATE_UI_ORIGIN", "*"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDur(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
