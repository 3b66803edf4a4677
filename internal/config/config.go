package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the verigate service settings, loaded from the environment.
type Config struct {
	HTTPAddr       string
	DatabaseURL    string
	MigrateOnStart bool

	// VerifyWindow is how long after intake a submission stays eligible for
	// matching. WebhookTimeout bounds the single outbound delivery attempt.
	VerifyWindow   time.Duration
	WebhookTimeout time.Duration

	// Connection establishment and liveness settings for the store manager.
	ConnectAttempts   int
	ConnectRetryDelay time.Duration
	ConnectTimeout    time.Duration
	PingTimeout       time.Duration
	ProbeInterval     time.Duration

	// Kafka event fan-out; disabled when KafkaBrokers is empty.
	KafkaBrokers     string
	KafkaEventsTopic string

	AdminToken         string
	CORSAllowedOrigins string

	// OTelEndpoint is the OTLP gRPC collector address; empty disables tracing export.
	OTelEndpoint string
}

// Load builds Config from the environment. Defaults match the relay's
// documented behavior (5-minute window, 10s webhook timeout, 5 connect
// attempts). DATABASE_URL is the only hard requirement.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPAddr:           getEnv("HTTP_ADDR", ":8080"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		MigrateOnStart:     getBool("MIGRATE_ON_START", true),
		VerifyWindow:       getDuration("VERIFY_WINDOW", 5*time.Minute),
		WebhookTimeout:     getDuration("WEBHOOK_TIMEOUT", 10*time.Second),
		ConnectAttempts:    getInt("CONNECT_ATTEMPTS", 5),
		ConnectRetryDelay:  getDuration("CONNECT_RETRY_DELAY", 500*time.Millisecond),
		ConnectTimeout:     getDuration("CONNECT_TIMEOUT", 5*time.Second),
		PingTimeout:        getDuration("PING_TIMEOUT", time.Second),
		ProbeInterval:      getDuration("PROBE_INTERVAL", 30*time.Second),
		KafkaBrokers:       os.Getenv("KAFKA_BROKERS"),
		KafkaEventsTopic:   getEnv("KAFKA_EVENTS_TOPIC", "verigate-events"),
		AdminToken:         os.Getenv("ADMIN_TOKEN"),
		CORSAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		OTelEndpoint:       os.Getenv("OTEL_COLLECTOR_ENDPOINT"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("config: DATABASE_URL must be set")
	}
	if cfg.VerifyWindow <= 0 {
		return nil, errors.New("config: VERIFY_WINDOW must be positive")
	}
	if cfg.ConnectAttempts < 1 {
		cfg.ConnectAttempts = 1
	}
	return cfg, nil
}

// KafkaBrokersList splits the comma-separated broker config. An empty result
// means event fan-out is disabled.
func (c *Config) KafkaBrokersList() []string {
	if c == nil || c.KafkaBrokers == "" {
		return nil
	}
	parts := strings.Split(c.KafkaBrokers, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// AllowedOrigins splits the CORS origin config; "*" stays a single wildcard.
func (c *Config) AllowedOrigins() []string {
	parts := strings.Split(c.CORSAllowedOrigins, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil {
		return def
	}
	return v
}
