package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/examclient"
	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Environment    string
	ExamAPIBaseURL string
	RedisURL       string
	ResultCacheTTL time.Duration
	HTTPTimeout    time.Duration
	SubmitTimeout  time.Duration
	CompletedGrace time.Duration
	IdleSessionTTL time.Duration
	Poll           examclient.PollPolicy
	Events         EventConfig
}

// LoadConfig reads .env when present and then the process environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	defaults := examclient.DefaultPollPolicy()

	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		Environment:    getEnv("ENVIRONMENT", "development"),
		ExamAPIBaseURL: getEnv("EXAM_API_BASE_URL", "http://localhost:3000"),
		RedisURL:       getEnv("REDIS_URL", ""),
		Events: EventConfig{
			Enabled:      getEnv("EVENTS_ENABLED", "true") == "true",
			Publisher:    getEnv("EVENTS_PUBLISHER", "channel"),
			KafkaBrokers: getEnv("KAFKA_BROKERS", "localhost:9092"),
			SessionTopic: getEnv("SESSION_EVENTS_TOPIC", "exam-sessions"),
		},
	}

	var err error
	if cfg.ResultCacheTTL, err = getDuration("RESULT_CACHE_TTL", 24*time.Hour); err != nil {
		return nil, err
	}
	if cfg.HTTPTimeout, err = getDuration("HTTP_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SubmitTimeout, err = getDuration("SUBMIT_TIMEOUT", 6*time.Minute); err != nil {
		return nil, err
	}
	if cfg.CompletedGrace, err = getDuration("COMPLETED_SESSION_GRACE", 5*time.Minute); err != nil {
		return nil, err
	}
	if cfg.IdleSessionTTL, err = getDuration("SESSION_IDLE_TTL", 30*time.Minute); err != nil {
		return nil, err
	}
	if cfg.Poll.WarmUp, err = getDuration("POLL_WARMUP", defaults.WarmUp); err != nil {
		return nil, err
	}
	if cfg.Poll.Interval, err = getDuration("POLL_INTERVAL", defaults.Interval); err != nil {
		return nil, err
	}
	if cfg.Poll.MaxAttempts, err = getInt("POLL_MAX_ATTEMPTS", defaults.MaxAttempts); err != nil {
		return nil, err
	}
	if cfg.Poll.MaxAttempts < 1 {
		return nil, fmt.Errorf("POLL_MAX_ATTEMPTS must be at least 1")
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}
