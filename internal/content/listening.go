package content

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

type listeningPayload struct {
	Parts []struct {
		Instructions string `json:"instructions"`
		Scenarios    []struct {
			Description string `json:"description"`
			Audio       string `json:"audio"`
			Questions   []struct {
				Question string          `json:"question"`
				Options  orderedOptions  `json:"options"`
				Answer   json.RawMessage `json:"answer"`
			} `json:"questions"`
		} `json:"scenarios"`
	} `json:"parts"`
}

// buildListening flattens part → scenario → question into one ordered list
// while keeping the hierarchy for audio grouping.
func (b *Builder) buildListening(payload json.RawMessage) ([]models.Question, *models.ListeningExam, error) {
	var p listeningPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, nil, fmt.Errorf("invalid listening payload: %w", err)
	}

	var (
		flat []models.Question
		exam = &models.ListeningExam{}
	)
	for pi, part := range p.Parts {
		lp := models.ListeningPart{
			Number:       pi + 1,
			Instructions: strings.TrimSpace(part.Instructions),
		}

		for si, sc := range part.Scenarios {
			ls := models.ListeningScenario{
				Description: strings.TrimSpace(sc.Description),
				Audio:       sc.Audio,
				HasAudio:    strings.TrimSpace(sc.Audio) != "",
			}

			for qi, q := range sc.Questions {
				correct, err := q.Options.resolve(q.Answer)
				if err != nil {
					b.logger.Warn("Skipping listening question", "part", pi, "scenario", si, "question", qi, "error", err)
					continue
				}
				lq := models.NewListeningQuestion(len(flat), pi, si, len(ls.Questions), strings.TrimSpace(q.Question), q.Options.texts(), correct)
				lq.Context = ls.Description
				ls.Questions = append(ls.Questions, lq)
				flat = append(flat, lq)
			}
			lp.Scenarios = append(lp.Scenarios, ls)
		}
		exam.Parts = append(exam.Parts, lp)
	}
	return flat, exam, nil
}
