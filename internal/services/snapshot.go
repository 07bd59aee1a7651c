package services

import (
	"github.com/SAP-F-2025/exam-session-service/internal/content"
	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

// Snapshot is a read-only view of a session for rendering.
type Snapshot struct {
	ID               string                `json:"id"`
	Level            models.Level          `json:"level"`
	Module           models.Module         `json:"module"`
	State            SessionState          `json:"state"`
	Job              *models.ExamJob       `json:"job,omitempty"`
	Questions        []models.Question     `json:"questions,omitempty"`
	Listening        *models.ListeningExam `json:"listening,omitempty"`
	CurrentIndex     int                   `json:"current_index"`
	Answers          []*models.Answer      `json:"answers,omitempty"`
	Answered         []bool                `json:"answered,omitempty"`
	RemainingSeconds int                   `json:"remaining_seconds"`
	DurationSeconds  int                   `json:"duration_seconds"`
	TimeWarning      bool                  `json:"time_warning"`
	Evaluating       bool                  `json:"evaluating"`
	LoadError        string                `json:"load_error,omitempty"`
	Retryable        bool                  `json:"retryable,omitempty"`
	Fallback         bool                  `json:"fallback"`
	WordHints        []content.WordHint    `json:"word_hints,omitempty"`
	Result           *models.SessionResult `json:"result,omitempty"`
}

func (s *ExamSession) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *ExamSession) snapshotLocked() Snapshot {
	snap := Snapshot{
		ID:               s.id,
		Level:            s.level,
		Module:           s.module,
		State:            s.state,
		CurrentIndex:     s.current,
		RemainingSeconds: s.remaining,
		DurationSeconds:  s.config.DurationSeconds(),
		TimeWarning:      s.warned,
		Evaluating:       s.evaluating,
		Result:           s.result,
	}
	if s.job != nil {
		job := *s.job
		snap.Job = &job
	}
	if s.loadErr != nil {
		snap.LoadError = s.loadErr.Error()
		snap.Retryable = isRetryable(s.loadErr)
	}
	if s.exam == nil {
		return snap
	}

	n := len(s.exam.Questions)
	snap.Questions = s.exam.Questions
	snap.Listening = s.exam.Listening
	snap.Fallback = s.exam.Fallback
	snap.Answers = s.answers.List(n)
	snap.Answered = make([]bool, n)
	for i := range snap.Answered {
		snap.Answered[i] = s.answers.Answered(i)
	}
	if s.current < n {
		if ft, ok := s.exam.Questions[s.current].(*models.FreeTextQuestion); ok {
			snap.WordHints = content.WordHints(ft.Task, snap.Answers[s.current])
		}
	}
	return snap
}

// Subscribe returns a channel that receives the latest snapshot after every
// change. Slow readers only see the most recent one. The channel is closed
// when the session closes or cancel is called.
func (s *ExamSession) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ch := make(chan Snapshot, 1)
	if s.closed {
		close(ch)
		return ch, func() {}
	}

	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	ch <- s.snapshotLocked()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			close(c)
			delete(s.subs, id)
		}
	}
	return ch, cancel
}

func (s *ExamSession) notifyLocked() {
	if len(s.subs) == 0 {
		return
	}
	snap := s.snapshotLocked()
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
