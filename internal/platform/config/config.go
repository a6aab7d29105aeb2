package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is centralized process configuration.
// Keep infra values here and pass typed config into builders.
type Config struct {
	ServiceName string
	HTTPPort    string
	PostgresDSN string
	RedisAddr   string

	SlowQueryThreshold  time.Duration
	StoreAttemptTimeout time.Duration
	StoreTotalTimeout   time.Duration
	StoreMaxRetries     int

	InvitePreviewRate  float64 // previews per minute per (ip, code)
	InvitePreviewBurst int
	FeedFanoutLimit    int
	SweepInterval      time.Duration
}

func Load() (Config, error) {
	service := os.Getenv("SERVICE_NAME")
	if service == "" {
		service = "inviter"
	}

	return Config{
		ServiceName: service,
		HTTPPort:    os.Getenv("HTTP_PORT"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),
		RedisAddr:   os.Getenv("REDIS_ADDR"),

		SlowQueryThreshold:  envDuration("SLOW_QUERY_THRESHOLD_MS", 500*time.Millisecond),
		StoreAttemptTimeout: envDuration("STORE_ATTEMPT_TIMEOUT_MS", 5*time.Second),
		StoreTotalTimeout:   envDuration("STORE_TOTAL_TIMEOUT_MS", 10*time.Second),
		StoreMaxRetries:     envInt("STORE_MAX_RETRIES", 3),

		InvitePreviewRate:  envFloat("INVITE_PREVIEW_RATE", 10),
		InvitePreviewBurst: envInt("INVITE_PREVIEW_BURST", 20),
		FeedFanoutLimit:    envInt("FEED_FANOUT_LIMIT", 8),
		SweepInterval:      envDuration("SWEEP_INTERVAL_MS", 15*time.Minute),
	}, nil
}

func envInt(name string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

func envFloat(name string, fallback float64) float64 {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return value
}

func envDuration(name string, fallback time.Duration) time.Duration {
	millis := envInt(name, -1)
	if millis < 0 {
		return fallback
	}
	return time.Duration(millis) * time.Millisecond
}
