package scoring

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func choiceExam(level models.Level, module models.Module, n int) *models.Exam {
	exam := &models.Exam{Level: level, Module: module}
	for i := 0; i < n; i++ {
		exam.Questions = append(exam.Questions,
			models.NewMultipleChoiceQuestion(i, fmt.Sprintf("Q%d", i), "", []string{"a", "b", "c"}, i%3))
	}
	return exam
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		score float64
		total int
		want  int
	}{
		{0, 0, 0},
		{5, 0, 0},
		{0, 15, 0},
		{15, 15, 100},
		{9, 15, 60},
		{2, 3, 67},
		{1, 3, 33},
		{1, 8, 13}, // 12.5 rounds up
		{0.8, 1, 80},
		{1.6, 3, 53},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v/%d", tt.score, tt.total), func(t *testing.T) {
			assert.Equal(t, tt.want, Percentage(tt.score, tt.total))
		})
	}
}

func TestIsPassMatchesCatalogForEveryLevelAndModule(t *testing.T) {
	catalog := models.DefaultCatalog()

	for _, lc := range catalog.All() {
		for _, m := range models.Modules() {
			_, ok := lc.Module(m)
			require.True(t, ok)
			for _, pct := range []int{0, lc.PassScore - 1, lc.PassScore, 100} {
				assert.Equal(t, pct >= lc.PassScore, IsPass(pct, lc.PassScore), "%s/%s at %d", lc.Level, m, pct)
			}
		}
	}
}

func TestScoreChoiceQuestions(t *testing.T) {
	engine := NewEngine(nil)
	exam := choiceExam(models.LevelA1, models.ModuleReading, 15)

	answers := models.AnswerMap{}
	for i := 0; i < 9; i++ {
		answers[i] = models.OptionAnswer(i % 3)
	}
	answers[9] = models.OptionAnswer(2) // wrong: correct is 0

	res, err := engine.Score(Input{Exam: exam, Answers: answers, FinishReason: models.FinishManual})

	require.NoError(t, err)
	assert.Equal(t, 9.0, res.Score)
	assert.Equal(t, 60, res.Percentage)
	assert.True(t, res.Pass)
	assert.Equal(t, 25, res.MaxPoints)
	assert.Equal(t, 60, res.PassScore)
	assert.Equal(t, 15, res.TotalItems)
	assert.Equal(t, models.FinishManual, res.FinishReason)
	require.Len(t, res.Items, 15)

	assert.True(t, *res.Items[0].Correct)
	assert.False(t, *res.Items[9].Correct)
	assert.Equal(t, 0, *res.Items[9].CorrectIndex)
	assert.Nil(t, res.Items[14].Answer)
	assert.False(t, *res.Items[14].Correct)
}

func TestScoreFreeTextCredit(t *testing.T) {
	engine := NewEngine(nil)
	exam := &models.Exam{Level: models.LevelB1, Module: models.ModuleSpeaking, Questions: []models.Question{
		models.NewFreeTextQuestion(0, "a", &models.Task{Kind: models.TaskSpeaking}),
		models.NewFreeTextQuestion(1, "b", &models.Task{Kind: models.TaskSpeaking}),
		models.NewFreeTextQuestion(2, "c", &models.Task{Kind: models.TaskSpeaking}),
	}}
	answers := models.AnswerMap{
		0: models.TextAnswer("Ich heiße Paul."),
		1: models.TextAnswer("   "),
		2: models.FieldsAnswer(map[string]string{"Name": "Paul"}),
	}

	res, err := engine.Score(Input{Exam: exam, Answers: answers})

	require.NoError(t, err)
	assert.InDelta(t, 1.6, res.Score, 1e-9)
	assert.Equal(t, 53, res.Percentage)
	assert.False(t, res.Pass)
	assert.Nil(t, res.Items[0].Correct)
	assert.Equal(t, 0.0, res.Items[1].Points)
}

func TestScoreZeroItems(t *testing.T) {
	engine := NewEngine(nil)
	exam := &models.Exam{Level: models.LevelC2, Module: models.ModuleListening}

	res, err := engine.Score(Input{Exam: exam})

	require.NoError(t, err)
	assert.Equal(t, 0, res.Percentage)
	assert.False(t, res.Pass)
	assert.Empty(t, res.Items)
}

func TestScoreEvaluation(t *testing.T) {
	tests := []struct {
		name      string
		level     models.Level
		estimated float64
		wantPct   int
		wantScore float64
		wantPass  bool
	}{
		{"A1 pass", models.LevelA1, 65, 65, 16, true},
		{"B1 borderline", models.LevelB1, 59.5, 60, 60, true},
		{"B2 fail", models.LevelB2, 59.4, 59, 59, false},
		{"clamped", models.LevelC1, 130, 100, 100, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := NewEngine(nil)
			exam := &models.Exam{Level: tt.level, Module: models.ModuleWriting, QueueID: "q", Questions: []models.Question{
				models.NewFreeTextQuestion(0, "Schreiben", &models.Task{Kind: models.TaskMessage}),
			}}
			eval := &models.WritingEvaluation{EstimatedScore: tt.estimated}

			res, err := engine.ScoreEvaluation(Input{Exam: exam, Answers: models.AnswerMap{0: models.TextAnswer("Hallo")}}, eval, true)

			require.NoError(t, err)
			assert.Equal(t, tt.wantPct, res.Percentage)
			assert.Equal(t, tt.wantScore, res.Score)
			assert.Equal(t, tt.wantPass, res.Pass)
			assert.True(t, res.ProvisionalEvaluation)
			assert.Same(t, eval, res.WritingEvaluation)
			assert.Equal(t, 0.0, res.Items[0].Points)
		})
	}
}

func TestScoreUnknownLevel(t *testing.T) {
	_, err := NewEngine(nil).Score(Input{Exam: &models.Exam{Level: "X1", Module: models.ModuleReading}})
	assert.Error(t, err)

	_, err = NewEngine(nil).ScoreEvaluation(Input{Exam: choiceExam(models.LevelA1, models.ModuleWriting, 1)}, nil, false)
	assert.Error(t, err)
}

func TestScoreListeningGroups(t *testing.T) {
	q0 := models.NewListeningQuestion(0, 0, 0, 0, "a", []string{"x", "y"}, 1)
	q1 := models.NewListeningQuestion(1, 0, 0, 1, "b", []string{"x", "y"}, 0)
	q2 := models.NewListeningQuestion(2, 1, 0, 0, "c", []string{"x", "y"}, 1)
	exam := &models.Exam{
		Level:     models.LevelA2,
		Module:    models.ModuleListening,
		Questions: []models.Question{q0, q1, q2},
		Listening: &models.ListeningExam{Parts: []models.ListeningPart{
			{Number: 1, Scenarios: []models.ListeningScenario{{Description: "Bahnhof", Questions: []*models.ListeningQuestion{q0, q1}}}},
			{Number: 2, Scenarios: []models.ListeningScenario{{Description: "Radio", Questions: []*models.ListeningQuestion{q2}}}},
		}},
	}

	res, err := NewEngine(nil).Score(Input{Exam: exam, Answers: models.AnswerMap{0: models.OptionAnswer(1), 2: models.OptionAnswer(1)}})

	require.NoError(t, err)
	assert.Equal(t, 67, res.Percentage)
	require.Len(t, res.ListeningGroups, 2)
	assert.Equal(t, []int{0, 1}, res.ListeningGroups[0].Positions)
	assert.Equal(t, "Radio", res.ListeningGroups[1].Description)
	assert.Equal(t, 1, *res.Items[2].Part)
}

func TestSessionResultRoundTrip(t *testing.T) {
	res, err := NewEngine(nil).Score(Input{
		Exam:    choiceExam(models.LevelA1, models.ModuleReading, 2),
		Answers: models.AnswerMap{0: models.OptionAnswer(0)},
	})
	require.NoError(t, err)

	data, err := json.Marshal(res)
	require.NoError(t, err)

	var decoded models.SessionResult
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, res.Percentage, decoded.Percentage)
	assert.Equal(t, models.OptionAnswer(0), *decoded.Items[0].Answer)
	assert.Nil(t, decoded.Items[1].Answer)
	assert.True(t, res.CompletedAt.Equal(decoded.CompletedAt))
}
