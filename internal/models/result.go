package models

import "time"

type FinishReason string

const (
	FinishManual  FinishReason = "manual"
	FinishTimeout FinishReason = "timeout"
)

// SessionResult is the terminal outcome of one exam session.
type SessionResult struct {
	SessionID             string             `json:"session_id,omitempty"`
	Level                 Level              `json:"level"`
	Module                Module             `json:"module"`
	Score                 float64            `json:"score"`
	Percentage            int                `json:"percentage"`
	Pass                  bool               `json:"pass"`
	MaxPoints             int                `json:"max_points"`
	PassScore             int                `json:"pass_score"`
	TotalItems            int                `json:"total_items"`
	Items                 []ReviewItem       `json:"items"`
	ListeningGroups       []ReviewGroup      `json:"listening_groups,omitempty"`
	WritingEvaluation     *WritingEvaluation `json:"writing_evaluation,omitempty"`
	ProvisionalEvaluation bool               `json:"provisional_evaluation"`
	FallbackContent       bool               `json:"fallback_content"`
	FinishReason          FinishReason       `json:"finish_reason,omitempty"`
	CompletedAt           time.Time          `json:"completed_at"`
}

// ReviewItem is one per-question row of the post-exam review.
type ReviewItem struct {
	Position     int          `json:"position"`
	Type         QuestionType `json:"type"`
	Prompt       string       `json:"prompt"`
	Context      string       `json:"context,omitempty"`
	Options      []string     `json:"options,omitempty"`
	CorrectIndex *int         `json:"correct_index,omitempty"`
	Answer       *Answer      `json:"answer"`
	Correct      *bool        `json:"correct,omitempty"`
	Points       float64      `json:"points"`
	Part         *int         `json:"part,omitempty"`
	Scenario     *int         `json:"scenario,omitempty"`
}

// ReviewGroup lists the review positions that belong to one listening scenario.
type ReviewGroup struct {
	Part        int    `json:"part"`
	Scenario    int    `json:"scenario"`
	Description string `json:"description,omitempty"`
	Positions   []int  `json:"positions"`
}

// WritingEvaluation is the remote assessment of a writing submission. Field
// names follow the backend payload.
type WritingEvaluation struct {
	Criteria       []EvaluationCriterion `json:"criteria"`
	CorrectedText  string                `json:"correctedText"`
	EstimatedScore float64               `json:"estimatedScore"`
	Feedback       string                `json:"feedback"`
}

type EvaluationCriterion struct {
	Name     string  `json:"name"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"maxScore"`
	Feedback string  `json:"feedback"`
}
