package config

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "ENVIRONMENT", "REDIS_URL", "POLL_WARMUP", "POLL_INTERVAL", "POLL_MAX_ATTEMPTS", "EVENTS_ENABLED", "COMPLETED_SESSION_GRACE", "SESSION_IDLE_TTL"} {
		t.Setenv(key, "")
	}

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "development", cfg.Environment)
	assert.Empty(t, cfg.RedisURL)
	assert.Equal(t, 10*time.Second, cfg.Poll.WarmUp)
	assert.Equal(t, 5*time.Second, cfg.Poll.Interval)
	assert.Equal(t, 60, cfg.Poll.MaxAttempts)
	assert.True(t, cfg.Events.Enabled)
	assert.Equal(t, 5*time.Minute, cfg.CompletedGrace)
	assert.Equal(t, 30*time.Minute, cfg.IdleSessionTTL)
	assert.False(t, cfg.IsProduction())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("POLL_WARMUP", "2s")
	t.Setenv("POLL_MAX_ATTEMPTS", "5")
	t.Setenv("RESULT_CACHE_TTL", "1h")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("EVENTS_ENABLED", "false")
	t.Setenv("SESSION_IDLE_TTL", "10m")

	cfg, err := FromEnv()

	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
	assert.Equal(t, 2*time.Second, cfg.Poll.WarmUp)
	assert.Equal(t, 5, cfg.Poll.MaxAttempts)
	assert.Equal(t, time.Hour, cfg.ResultCacheTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.GetKafkaBrokers())
	assert.False(t, cfg.Events.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.IdleSessionTTL)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	t.Setenv("POLL_INTERVAL", "soon")
	_, err := FromEnv()
	assert.ErrorContains(t, err, "POLL_INTERVAL")

	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("POLL_MAX_ATTEMPTS", "0")
	_, err = FromEnv()
	assert.Error(t, err)
}

func TestCreateEventPublisher(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	disabled := EventConfig{Enabled: false, Publisher: "kafka"}
	pub, err := disabled.CreateEventPublisher(logger)
	require.NoError(t, err)
	assert.IsType(t, events.NopEventPublisher{}, pub)
	require.NoError(t, pub.PublishSessionEvent(context.Background(), events.NewTimeWarningEvent("s", 300)))

	channel := EventConfig{Enabled: true, Publisher: "channel", SessionTopic: "t"}
	pub, err = channel.CreateEventPublisher(logger)
	require.NoError(t, err)
	assert.IsType(t, &events.WatermillEventPublisher{}, pub)
	require.NoError(t, pub.PublishSessionEvent(context.Background(), events.NewTimeWarningEvent("s", 300)))
	assert.NoError(t, pub.Close())

	unknown := EventConfig{Enabled: true, Publisher: "carrier-pigeon"}
	pub, err = unknown.CreateEventPublisher(logger)
	require.NoError(t, err)
	assert.IsType(t, &events.MockEventPublisher{}, pub)
}
