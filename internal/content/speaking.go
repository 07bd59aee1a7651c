package content

import (
	"fmt"
	"sync"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"gopkg.in/yaml.v3"
)

type speakingPrompt struct {
	Title        string   `yaml:"title"`
	Instructions string   `yaml:"instructions"`
	Points       []string `yaml:"points"`
}

var (
	promptsOnce sync.Once
	prompts     map[models.Level][]speakingPrompt
	promptsErr  error
)

func loadPrompts() (map[models.Level][]speakingPrompt, error) {
	promptsOnce.Do(func() {
		data, err := fixtures.ReadFile("fixtures/speaking_prompts.yaml")
		if err != nil {
			promptsErr = err
			return
		}
		var doc struct {
			Levels map[models.Level][]speakingPrompt `yaml:"levels"`
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			promptsErr = fmt.Errorf("failed to parse speaking prompts: %w", err)
			return
		}
		prompts = doc.Levels
	})
	return prompts, promptsErr
}

// Speaking builds the static speaking tasks for a level. The number of tasks
// is capped by the level's speaking task count.
func (b *Builder) Speaking(level models.Level) (*models.Exam, error) {
	all, err := loadPrompts()
	if err != nil {
		return nil, err
	}
	list := all[level]
	if len(list) == 0 {
		return nil, fmt.Errorf("%w %s", ErrNoPrompts, level)
	}

	if lc, ok := b.catalog.Level(level); ok {
		if mc, ok := lc.Module(models.ModuleSpeaking); ok && mc.Tasks < len(list) {
			list = list[:mc.Tasks]
		}
	}

	questions := make([]models.Question, 0, len(list))
	for i, p := range list {
		task := &models.Task{
			Kind:         models.TaskSpeaking,
			Title:        p.Title,
			Instructions: p.Instructions,
			Points:       p.Points,
		}
		questions = append(questions, models.NewFreeTextQuestion(i, p.Instructions, task))
	}
	if err := b.check(questions); err != nil {
		return nil, err
	}

	return &models.Exam{Level: level, Module: models.ModuleSpeaking, Questions: questions}, nil
}
