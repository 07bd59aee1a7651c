package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChannelEventPublisherDeliversJSON(t *testing.T) {
	pub, sub := NewChannelEventPublisher(PublisherConfig{TopicName: "exam-sessions", Logger: testLogger()})
	defer pub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	messages, err := sub.Subscribe(ctx, "exam-sessions")
	require.NoError(t, err)

	exam := &models.Exam{Level: models.LevelA1, Module: models.ModuleReading, Fallback: true, Questions: make([]models.Question, 15)}
	event := NewSessionLoadedEvent("s-1", exam)
	require.NoError(t, pub.PublishSessionEvent(ctx, event))

	select {
	case msg := <-messages:
		msg.Ack()
		assert.Equal(t, event.ID, msg.UUID)
		assert.Equal(t, string(EventSessionLoaded), msg.Metadata.Get("event_type"))
		assert.Equal(t, "s-1", msg.Metadata.Get("session_id"))

		var decoded struct {
			Type EventType         `json:"type"`
			Data SessionLoadedData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(msg.Payload, &decoded))
		assert.Equal(t, EventSessionLoaded, decoded.Type)
		assert.Equal(t, 15, decoded.Data.Questions)
		assert.True(t, decoded.Data.Fallback)
	case <-ctx.Done():
		t.Fatal("no message received")
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestLogSessionEventsConsumesChannelTopic(t *testing.T) {
	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))
	pub, sub := NewChannelEventPublisher(PublisherConfig{TopicName: "exam-sessions", Logger: testLogger()})
	defer pub.Close()

	require.NoError(t, LogSessionEvents(context.Background(), sub, "exam-sessions", logger))
	require.NoError(t, pub.PublishSessionEvent(context.Background(), NewTimeWarningEvent("s-3", 300)))

	assert.Eventually(t, func() bool {
		logged := out.String()
		return strings.Contains(logged, "session_id=s-3") && strings.Contains(logged, "event_type="+string(EventSessionTimeWarning))
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNopEventPublisher(t *testing.T) {
	var pub EventPublisher = NopEventPublisher{}
	assert.NoError(t, pub.PublishSessionEvent(context.Background(), NewTimeWarningEvent("s", 1)))
	assert.NoError(t, pub.Close())
}

func TestMockEventPublisher(t *testing.T) {
	pub := NewMockEventPublisher(testLogger())
	ctx := context.Background()

	require.NoError(t, pub.PublishSessionEvent(ctx, NewTimeWarningEvent("s", 300)))
	require.NoError(t, pub.PublishSessionEvent(ctx, NewEvaluationFallbackEvent("s", "q", errors.New("boom"))))
	require.NoError(t, pub.PublishSessionEvent(ctx, NewTimeWarningEvent("s", 299)))

	assert.Len(t, pub.Events(), 3)
	warnings := pub.EventsOfType(EventSessionTimeWarning)
	require.Len(t, warnings, 2)
	assert.Equal(t, TimeWarningData{RemainingSeconds: 300}, warnings[0].Data)

	pub.ClearEvents()
	assert.Empty(t, pub.Events())
}

func TestEventFactoriesFillEnvelope(t *testing.T) {
	res := &models.SessionResult{Level: models.LevelB2, Module: models.ModuleWriting, Percentage: 65, Pass: true, ProvisionalEvaluation: true}

	event := NewSessionCompletedEvent("s-9", res)

	assert.NotEmpty(t, event.ID)
	assert.Equal(t, "s-9", event.SessionID)
	assert.Equal(t, eventSource, event.Source)
	assert.Equal(t, eventVersion, event.Version)
	data := event.Data.(SessionCompletedData)
	assert.True(t, data.Provisional)
	assert.Equal(t, 65, data.Percentage)

	other := NewSessionCompletedEvent("s-9", res)
	assert.NotEqual(t, event.ID, other.ID)
}
