package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

const (
	formatTrueFalse      = "true_false"
	formatMultipleChoice = "multiple_choice"
)

// TrueFalseOptions are the two options of a binary item; "true" is index 0.
var TrueFalseOptions = []string{"Richtig", "Falsch"}

type readingPayload struct {
	Parts []readingPart `json:"parts"`
}

type readingPart struct {
	Instruction string        `json:"instruction"`
	Texts       []readingText `json:"texts"`
	Format      string        `json:"format"`
	Items       []readingItem `json:"items"`
}

type readingText struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type readingItem struct {
	Question string          `json:"question"`
	Options  orderedOptions  `json:"options"`
	Answer   json.RawMessage `json:"answer"`
}

func (b *Builder) buildReading(payload json.RawMessage) ([]models.Question, error) {
	var p readingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, fmt.Errorf("invalid reading payload: %w", err)
	}

	var out []models.Question
	for pi, part := range p.Parts {
		context := partContext(part)
		format := part.Format

		for ii, item := range part.Items {
			itemFormat := format
			if itemFormat == "" {
				itemFormat = formatTrueFalse
				if len(item.Options) > 0 {
					itemFormat = formatMultipleChoice
				}
			}

			var (
				options []string
				correct int
				err     error
			)
			switch itemFormat {
			case formatTrueFalse:
				options = append([]string(nil), TrueFalseOptions...)
				correct, err = resolveTrueFalse(item.Answer)
			case formatMultipleChoice:
				options = item.Options.texts()
				correct, err = item.Options.resolve(item.Answer)
			default:
				err = fmt.Errorf("unknown format %q", itemFormat)
			}
			if err != nil {
				b.logger.Warn("Skipping reading item", "part", pi, "item", ii, "error", err)
				continue
			}

			out = append(out, models.NewMultipleChoiceQuestion(len(out), strings.TrimSpace(item.Question), context, options, correct))
		}
	}
	return out, nil
}

// partContext joins the part instruction with its source texts, each text
// prefixed by its title when present.
func partContext(p readingPart) string {
	var sections []string
	if s := strings.TrimSpace(p.Instruction); s != "" {
		sections = append(sections, s)
	}
	for _, t := range p.Texts {
		body := strings.TrimSpace(t.Content)
		if title := strings.TrimSpace(t.Title); title != "" {
			body = title + "\n" + body
		}
		if body != "" {
			sections = append(sections, body)
		}
	}
	return strings.Join(sections, "\n\n")
}

func resolveTrueFalse(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		if b {
			return 0, nil
		}
		return 1, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		switch strings.ToLower(strings.TrimSpace(s)) {
		case "richtig", "true", "wahr", "ja", "r", "a":
			return 0, nil
		case "falsch", "false", "nein", "f", "b":
			return 1, nil
		}
		return 0, fmt.Errorf("unknown true/false solution %q", s)
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil && (n == 0 || n == 1) {
		return n, nil
	}
	return 0, fmt.Errorf("unsupported true/false solution %s", raw)
}
