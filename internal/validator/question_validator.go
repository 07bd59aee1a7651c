package validator

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

const maxOptions = 10

// QuestionValidator checks the structure of normalized exam questions.
type QuestionValidator struct{}

func NewQuestionValidator() *QuestionValidator {
	return &QuestionValidator{}
}

// ValidateQuestion validates a single question.
func (v *QuestionValidator) ValidateQuestion(q models.Question) error {
	if q == nil {
		return fmt.Errorf("question cannot be nil")
	}
	if q.Position() < 0 {
		return fmt.Errorf("question position cannot be negative")
	}

	switch question := q.(type) {
	case *models.MultipleChoiceQuestion:
		if strings.TrimSpace(question.Prompt) == "" {
			return fmt.Errorf("question prompt is required")
		}
		return v.validateOptions(question.Options, question.CorrectIndex)
	case *models.ListeningQuestion:
		if strings.TrimSpace(question.Prompt) == "" {
			return fmt.Errorf("question prompt is required")
		}
		if question.Part < 0 || question.Scenario < 0 || question.Index < 0 {
			return fmt.Errorf("listening question has invalid part/scenario reference")
		}
		return v.validateOptions(question.Options, question.CorrectIndex)
	case *models.FreeTextQuestion:
		return v.validateTask(question)
	default:
		return fmt.Errorf("unsupported question type: %s", q.Type())
	}
}

// ValidateBatch validates questions and that positions run 0..n-1 in order.
func (v *QuestionValidator) ValidateBatch(questions []models.Question) error {
	if len(questions) == 0 {
		return fmt.Errorf("question batch cannot be empty")
	}

	for i, q := range questions {
		if err := v.ValidateQuestion(q); err != nil {
			return fmt.Errorf("validation failed for question %d: %w", i+1, err)
		}
		if q.Position() != i {
			return fmt.Errorf("question %d has position %d", i+1, q.Position())
		}
	}
	return nil
}

func (v *QuestionValidator) validateOptions(options []string, correct int) error {
	if len(options) < 2 {
		return fmt.Errorf("must have at least 2 options")
	}
	if len(options) > maxOptions {
		return fmt.Errorf("cannot have more than %d options", maxOptions)
	}
	for _, o := range options {
		if strings.TrimSpace(o) == "" {
			return fmt.Errorf("option text cannot be empty")
		}
	}
	if correct < 0 || correct >= len(options) {
		return fmt.Errorf("correct index %d is out of range for %d options", correct, len(options))
	}
	return nil
}

func (v *QuestionValidator) validateTask(q *models.FreeTextQuestion) error {
	if q.Task == nil {
		if strings.TrimSpace(q.Prompt) == "" {
			return fmt.Errorf("free text question needs a prompt or a task")
		}
		return nil
	}

	t := q.Task
	switch t.Kind {
	case models.TaskForm:
		if len(t.Fields) == 0 {
			return fmt.Errorf("form task must name at least one field")
		}
	case models.TaskMessage, models.TaskSpeaking:
	default:
		return fmt.Errorf("unknown task kind %q", t.Kind)
	}

	if t.MinWords < 0 || t.MaxWords < 0 {
		return fmt.Errorf("word counts cannot be negative")
	}
	if t.MaxWords > 0 && t.MinWords > t.MaxWords {
		return fmt.Errorf("minimum word count cannot be greater than maximum")
	}
	return nil
}
