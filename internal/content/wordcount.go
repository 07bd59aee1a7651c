package content

import (
	"sort"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

// WordHint reports how an answer relates to a task's target word count. Hints
// are advisory and never affect scoring.
type WordHint struct {
	Field   string `json:"field,omitempty"`
	Words   int    `json:"words"`
	Min     int    `json:"min"`
	Max     int    `json:"max"`
	InRange bool   `json:"in_range"`
}

func CountWords(s string) int {
	return len(strings.Fields(s))
}

// WordHints returns one hint per form field, or a single hint for a message
// task. Speaking tasks and tasks without targets get none.
func WordHints(task *models.Task, answer *models.Answer) []WordHint {
	if task == nil || task.MaxWords == 0 {
		return nil
	}

	switch task.Kind {
	case models.TaskForm:
		fields := append([]string(nil), task.Fields...)
		sort.Strings(fields)
		hints := make([]WordHint, 0, len(fields))
		for _, f := range fields {
			var value string
			if answer != nil && answer.Kind == models.AnswerFields {
				value = answer.Fields[f]
			}
			hints = append(hints, newHint(f, CountWords(value), task.MinWords, task.MaxWords))
		}
		return hints
	case models.TaskMessage:
		var text string
		if answer != nil {
			text = answer.String()
		}
		return []WordHint{newHint("", CountWords(text), task.MinWords, task.MaxWords)}
	}
	return nil
}

func newHint(field string, words, min, max int) WordHint {
	return WordHint{
		Field:   field,
		Words:   words,
		Min:     min,
		Max:     max,
		InRange: words >= min && words <= max,
	}
}
