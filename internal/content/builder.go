// Package content turns backend payloads and local fixtures into the uniform
// question model used by exam sessions.
package content

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/SAP-F-2025/exam-session-service/internal/utils"
	"github.com/SAP-F-2025/exam-session-service/internal/validator"
)

var (
	ErrNoQuestions = errors.New("payload yields no valid questions")
	ErrNoFallback  = errors.New("module has no local fallback content")
	ErrNoPrompts   = errors.New("no speaking prompts for level")
)

//go:embed fixtures
var fixtures embed.FS

// Builder normalizes content for one module at one level.
type Builder struct {
	catalog   *models.Catalog
	questions *validator.QuestionValidator
	logger    utils.Logger
}

func NewBuilder(catalog *models.Catalog, questions *validator.QuestionValidator, logger utils.Logger) *Builder {
	if catalog == nil {
		catalog = models.DefaultCatalog()
	}
	if questions == nil {
		questions = validator.NewQuestionValidator()
	}
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &Builder{
		catalog:   catalog,
		questions: questions,
		logger:    logger.With("component", "content_builder"),
	}
}

// Build converts a backend payload into an exam. Speaking ignores the payload
// and uses the local prompts.
func (b *Builder) Build(level models.Level, module models.Module, queueID string, payload json.RawMessage) (*models.Exam, error) {
	exam := &models.Exam{Level: level, Module: module, QueueID: queueID}

	var err error
	switch module {
	case models.ModuleReading:
		exam.Questions, err = b.buildReading(payload)
	case models.ModuleWriting:
		exam.Questions, err = b.buildWriting(payload)
	case models.ModuleListening:
		exam.Questions, exam.Listening, err = b.buildListening(payload)
	case models.ModuleSpeaking:
		return b.Speaking(level)
	default:
		return nil, fmt.Errorf("unknown module %q", module)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build %s content: %w", module, err)
	}
	if err := b.check(exam.Questions); err != nil {
		return nil, fmt.Errorf("failed to build %s content: %w", module, err)
	}
	return exam, nil
}

// HasFallback reports whether a failed load may be replaced by local content.
// Only reading and writing have samples.
func HasFallback(module models.Module) bool {
	return module == models.ModuleReading || module == models.ModuleWriting
}

// Fallback returns the fixed local sample for reading or writing. The exam
// carries no queue id.
func (b *Builder) Fallback(level models.Level, module models.Module) (*models.Exam, error) {
	var name string
	switch module {
	case models.ModuleReading:
		name = "fixtures/reading_sample.json"
	case models.ModuleWriting:
		name = "fixtures/writing_sample.json"
	default:
		return nil, fmt.Errorf("%w: %s", ErrNoFallback, module)
	}

	data, err := fixtures.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", name, err)
	}
	exam, err := b.Build(level, module, "", data)
	if err != nil {
		return nil, err
	}
	exam.Fallback = true
	return exam, nil
}

// SampleEvaluation is the fixed local writing evaluation used when the remote
// evaluator fails.
func SampleEvaluation() (*models.WritingEvaluation, error) {
	data, err := fixtures.ReadFile("fixtures/writing_evaluation_sample.json")
	if err != nil {
		return nil, err
	}
	var eval models.WritingEvaluation
	if err := json.Unmarshal(data, &eval); err != nil {
		return nil, fmt.Errorf("failed to parse sample evaluation: %w", err)
	}
	return &eval, nil
}

func (b *Builder) check(questions []models.Question) error {
	if len(questions) == 0 {
		return ErrNoQuestions
	}
	return b.questions.ValidateBatch(questions)
}
