package models

import "time"

type JobState string

const (
	JobRequested JobState = "requested"
	JobPolling   JobState = "polling"
	JobReady     JobState = "ready"
	JobFailed    JobState = "failed"
	JobTimedOut  JobState = "timed_out"
)

// ExamJob tracks one remote content-generation request for a session.
type ExamJob struct {
	QueueID     string    `json:"queue_id,omitempty"`
	Level       Level     `json:"level"`
	Module      Module    `json:"module"`
	State       JobState  `json:"state"`
	RequestedAt time.Time `json:"requested_at"`
}

// Exam is the normalized content of one session.
type Exam struct {
	Level     Level          `json:"level"`
	Module    Module         `json:"module"`
	QueueID   string         `json:"queue_id,omitempty"`
	Fallback  bool           `json:"fallback"`
	Questions []Question     `json:"questions"`
	Listening *ListeningExam `json:"listening,omitempty"`
}

// ListeningExam keeps the part → scenario → question hierarchy of listening
// content next to the flattened question list.
type ListeningExam struct {
	Parts []ListeningPart `json:"parts"`
}

type ListeningPart struct {
	Number       int                 `json:"number"`
	Instructions string              `json:"instructions,omitempty"`
	Scenarios    []ListeningScenario `json:"scenarios"`
}

type ListeningScenario struct {
	Description string `json:"description,omitempty"`
	// Audio is the base64 payload as delivered by the backend.
	Audio     string               `json:"-"`
	HasAudio  bool                 `json:"has_audio"`
	Questions []*ListeningQuestion `json:"questions"`
}

// Scenario looks up a scenario by part and scenario index.
func (l *ListeningExam) Scenario(part, scenario int) (*ListeningScenario, bool) {
	if l == nil || part < 0 || part >= len(l.Parts) {
		return nil, false
	}
	p := l.Parts[part]
	if scenario < 0 || scenario >= len(p.Scenarios) {
		return nil, false
	}
	return &p.Scenarios[scenario], true
}
