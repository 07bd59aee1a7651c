package models

type NavAction string

const (
	NavNext     NavAction = "next"
	NavPrevious NavAction = "previous"
	NavJump     NavAction = "jump"
)

type CreateSessionRequest struct {
	Level  string `json:"level" validate:"required,cefr_level"`
	Module string `json:"module" validate:"required,exam_module"`
}

type NavigateRequest struct {
	Action NavAction `json:"action" validate:"required,nav_action"`
	Index  *int      `json:"index" validate:"required_if=Action jump,omitempty,min=0"`
}

// AnswerRequest overwrites the answer at Index, or at the current question
// when Index is omitted.
type AnswerRequest struct {
	Answer *Answer `json:"answer" validate:"required"`
	Index  *int    `json:"index" validate:"omitempty,min=0"`
}
