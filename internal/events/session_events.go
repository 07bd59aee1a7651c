package events

import (
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/google/uuid"
)

type EventType string

const (
	EventSessionLoaded      EventType = "session.loaded"
	EventSessionLoadFailed  EventType = "session.load_failed"
	EventSessionStarted     EventType = "session.started"
	EventSessionTimeWarning EventType = "session.time_warning"
	EventSessionCompleted   EventType = "session.completed"
	EventEvaluationFallback EventType = "evaluation.fallback_used"
)

const (
	eventSource  = "exam-session-service"
	eventVersion = "1.0"
)

// SessionEvent is the envelope of every session lifecycle event.
type SessionEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	SessionID string                 `json:"session_id"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

type SessionLoadedData struct {
	Level     models.Level  `json:"level"`
	Module    models.Module `json:"module"`
	QueueID   string        `json:"queue_id,omitempty"`
	Fallback  bool          `json:"fallback"`
	Questions int           `json:"questions"`
}

type SessionLoadFailedData struct {
	Level     models.Level  `json:"level"`
	Module    models.Module `json:"module"`
	Error     string        `json:"error"`
	Retryable bool          `json:"retryable"`
}

type SessionStartedData struct {
	Level           models.Level  `json:"level"`
	Module          models.Module `json:"module"`
	DurationSeconds int           `json:"duration_seconds"`
	StartedAt       time.Time     `json:"started_at"`
}

type TimeWarningData struct {
	RemainingSeconds int `json:"remaining_seconds"`
}

type SessionCompletedData struct {
	Level        models.Level        `json:"level"`
	Module       models.Module       `json:"module"`
	Score        float64             `json:"score"`
	Percentage   int                 `json:"percentage"`
	Pass         bool                `json:"pass"`
	FinishReason models.FinishReason `json:"finish_reason"`
	Provisional  bool                `json:"provisional"`
}

type EvaluationFallbackData struct {
	QueueID string `json:"queue_id"`
	Error   string `json:"error"`
}

func newSessionEvent(t EventType, sessionID string, data interface{}) *SessionEvent {
	return &SessionEvent{
		ID:        uuid.NewString(),
		Type:      t,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Source:    eventSource,
		Version:   eventVersion,
		Data:      data,
	}
}

func NewSessionLoadedEvent(sessionID string, exam *models.Exam) *SessionEvent {
	return newSessionEvent(EventSessionLoaded, sessionID, SessionLoadedData{
		Level:     exam.Level,
		Module:    exam.Module,
		QueueID:   exam.QueueID,
		Fallback:  exam.Fallback,
		Questions: len(exam.Questions),
	})
}

func NewSessionLoadFailedEvent(sessionID string, level models.Level, module models.Module, err error, retryable bool) *SessionEvent {
	return newSessionEvent(EventSessionLoadFailed, sessionID, SessionLoadFailedData{
		Level:     level,
		Module:    module,
		Error:     err.Error(),
		Retryable: retryable,
	})
}

func NewSessionStartedEvent(sessionID string, level models.Level, module models.Module, durationSeconds int, startedAt time.Time) *SessionEvent {
	return newSessionEvent(EventSessionStarted, sessionID, SessionStartedData{
		Level:           level,
		Module:          module,
		DurationSeconds: durationSeconds,
		StartedAt:       startedAt,
	})
}

func NewTimeWarningEvent(sessionID string, remaining int) *SessionEvent {
	return newSessionEvent(EventSessionTimeWarning, sessionID, TimeWarningData{RemainingSeconds: remaining})
}

func NewSessionCompletedEvent(sessionID string, res *models.SessionResult) *SessionEvent {
	return newSessionEvent(EventSessionCompleted, sessionID, SessionCompletedData{
		Level:        res.Level,
		Module:       res.Module,
		Score:        res.Score,
		Percentage:   res.Percentage,
		Pass:         res.Pass,
		FinishReason: res.FinishReason,
		Provisional:  res.ProvisionalEvaluation,
	})
}

func NewEvaluationFallbackEvent(sessionID, queueID string, err error) *SessionEvent {
	return newSessionEvent(EventEvaluationFallback, sessionID, EvaluationFallbackData{
		QueueID: queueID,
		Error:   err.Error(),
	})
}
