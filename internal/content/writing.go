package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

const (
	defaultMinWords = 20
	defaultMaxWords = 40
	formFieldMin    = 1
	formFieldMax    = 2
)

type writingPayload struct {
	Parts []writingPart `json:"parts"`
}

type writingPart struct {
	Type         string   `json:"type"`
	Title        string   `json:"title"`
	Instructions string   `json:"instructions"`
	Context      string   `json:"context"`
	Fields       []string `json:"fields"`
	Points       []string `json:"points"`
	MinWords     int      `json:"min_words"`
	MaxWords     int      `json:"max_words"`
}

func (b *Builder) buildWriting(payload json.RawMessage) ([]models.Question, error) {
	var p writingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid writing payload: %w", err)
	}

	var out []models.Question
	for i, part := range p.Parts {
		task := &models.Task{
			Title:        strings.TrimSpace(part.Title),
			Instructions: strings.TrimSpace(part.Instructions),
			Context:      strings.TrimSpace(part.Context),
		}

		switch models.TaskKind(strings.ToLower(part.Type)) {
		case models.TaskForm:
			task.Kind = models.TaskForm
			task.Fields = part.Fields
			task.MinWords, task.MaxWords = formFieldMin, formFieldMax
		case models.TaskMessage:
			task.Kind = models.TaskMessage
			task.Points = part.Points
			task.MinWords, task.MaxWords = part.MinWords, part.MaxWords
			if task.MinWords == 0 && task.MaxWords == 0 {
				task.MinWords, task.MaxWords = defaultMinWords, defaultMaxWords
			}
		default:
			b.logger.Warn("Skipping writing part", "part", i, "type", part.Type)
			continue
		}

		prompt := task.Instructions
		if prompt == "" {
			prompt = task.Title
		}
		out = append(out, models.NewFreeTextQuestion(len(out), prompt, task))
	}
	return out, nil
}
