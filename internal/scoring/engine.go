// Package scoring converts a finished answer set into a SessionResult.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
)

// FreeTextCredit is the flat credit for any non-empty free-text answer. It is
// a placeholder policy, not an assessment.
const FreeTextCredit = 0.8

type Input struct {
	Exam         *models.Exam
	Answers      models.AnswerMap
	FinishReason models.FinishReason
}

type Engine struct {
	catalog *models.Catalog
	now     func() time.Time
}

func NewEngine(catalog *models.Catalog) *Engine {
	if catalog == nil {
		catalog = models.DefaultCatalog()
	}
	return &Engine{catalog: catalog, now: time.Now}
}

// Percentage is round(100*score/total) with half-up rounding; 0 when there is
// nothing to grade.
func Percentage(score float64, total int) int {
	if total <= 0 {
		return 0
	}
	return int(math.Floor(100*score/float64(total) + 0.5))
}

func IsPass(percentage, passScore int) bool {
	return percentage >= passScore
}

// IsCorrect reports whether a choice question was answered with its correct
// option. Free-text questions are never correct.
func IsCorrect(q models.Question, a *models.Answer) bool {
	correct, ok := models.CorrectOption(q)
	if !ok || a == nil || a.Kind != models.AnswerOption {
		return false
	}
	return a.Option == correct
}

// Points is the per-question credit under local scoring.
func Points(q models.Question, a *models.Answer) float64 {
	if _, ok := models.CorrectOption(q); ok {
		if IsCorrect(q, a) {
			return 1
		}
		return 0
	}
	if a != nil && !a.IsEmpty() {
		return FreeTextCredit
	}
	return 0
}

// Score applies local per-question scoring.
func (e *Engine) Score(in Input) (*models.SessionResult, error) {
	res, err := e.base(in)
	if err != nil {
		return nil, err
	}

	var total float64
	for i := range res.Items {
		total += res.Items[i].Points
	}
	res.Score = total
	res.Percentage = Percentage(total, res.TotalItems)
	res.Pass = IsPass(res.Percentage, res.PassScore)
	return res, nil
}

// ScoreEvaluation derives the result from a writing evaluation. Local
// per-question scoring is bypassed; the evaluator's estimated score is the
// percentage.
func (e *Engine) ScoreEvaluation(in Input, eval *models.WritingEvaluation, provisional bool) (*models.SessionResult, error) {
	if eval == nil {
		return nil, fmt.Errorf("writing evaluation is required")
	}
	res, err := e.base(in)
	if err != nil {
		return nil, err
	}

	for i := range res.Items {
		res.Items[i].Points = 0
		res.Items[i].Correct = nil
	}

	pct := int(math.Floor(eval.EstimatedScore + 0.5))
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	res.Percentage = pct
	res.Score = math.Floor(float64(pct)/100*float64(res.MaxPoints) + 0.5)
	res.Pass = IsPass(pct, res.PassScore)
	res.WritingEvaluation = eval
	res.ProvisionalEvaluation = provisional
	return res, nil
}

func (e *Engine) base(in Input) (*models.SessionResult, error) {
	if in.Exam == nil {
		return nil, fmt.Errorf("exam is required")
	}
	lc, ok := e.catalog.Level(in.Exam.Level)
	if !ok {
		return nil, fmt.Errorf("level %s is not configured", in.Exam.Level)
	}
	mc, ok := lc.Module(in.Exam.Module)
	if !ok {
		return nil, fmt.Errorf("module %s is not configured for level %s", in.Exam.Module, in.Exam.Level)
	}

	answers := in.Answers
	if answers == nil {
		answers = models.AnswerMap{}
	}

	res := &models.SessionResult{
		Level:           in.Exam.Level,
		Module:          in.Exam.Module,
		MaxPoints:       mc.MaxPoints,
		PassScore:       lc.PassScore,
		TotalItems:      len(in.Exam.Questions),
		Items:           make([]models.ReviewItem, 0, len(in.Exam.Questions)),
		FallbackContent: in.Exam.Fallback,
		FinishReason:    in.FinishReason,
		CompletedAt:     e.now().UTC(),
	}
	for _, q := range in.Exam.Questions {
		res.Items = append(res.Items, reviewItem(q, answers))
	}
	res.ListeningGroups = listeningGroups(in.Exam.Listening)
	return res, nil
}

func reviewItem(q models.Question, answers models.AnswerMap) models.ReviewItem {
	item := models.ReviewItem{
		Position: q.Position(),
		Type:     q.Type(),
		Prompt:   q.PromptText(),
		Options:  models.Choices(q),
	}
	if a, ok := answers.Get(q.Position()); ok {
		item.Answer = &a
	}

	switch v := q.(type) {
	case *models.MultipleChoiceQuestion:
		item.Context = v.Context
	case *models.ListeningQuestion:
		item.Context = v.Context
		part, scenario := v.Part, v.Scenario
		item.Part, item.Scenario = &part, &scenario
	case *models.FreeTextQuestion:
		if v.Task != nil {
			item.Context = v.Task.Context
		}
	}

	if correct, ok := models.CorrectOption(q); ok {
		c := correct
		item.CorrectIndex = &c
		isCorrect := IsCorrect(q, item.Answer)
		item.Correct = &isCorrect
	}
	item.Points = Points(q, item.Answer)
	return item
}

func listeningGroups(l *models.ListeningExam) []models.ReviewGroup {
	if l == nil {
		return nil
	}
	var groups []models.ReviewGroup
	for pi, part := range l.Parts {
		for si, sc := range part.Scenarios {
			g := models.ReviewGroup{Part: pi, Scenario: si, Description: sc.Description, Positions: []int{}}
			for _, q := range sc.Questions {
				g.Positions = append(g.Positions, q.Position())
			}
			groups = append(groups, g)
		}
	}
	return groups
}
