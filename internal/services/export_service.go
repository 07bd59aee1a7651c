package services

import (
	"fmt"
	"strings"

	"github.com/SAP-F-2025/exam-session-service/internal/models"
	"github.com/xuri/excelize/v2"
)

const (
	summarySheet    = "Summary"
	reviewSheet     = "Review"
	evaluationSheet = "Evaluation"
)

// ExportResult renders a session result as an xlsx workbook with a summary
// sheet, one review row per item and, for writing, the evaluation criteria.
func ExportResult(res *models.SessionResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, fmt.Errorf("failed to create summary sheet: %w", err)
	}

	summary := [][]interface{}{
		{"Session", res.SessionID},
		{"Level", string(res.Level)},
		{"Module", string(res.Module)},
		{"Score", res.Score},
		{"Max points", res.MaxPoints},
		{"Percentage", res.Percentage},
		{"Pass score", res.PassScore},
		{"Passed", res.Pass},
		{"Items", res.TotalItems},
		{"Finished by", string(res.FinishReason)},
		{"Completed at", res.CompletedAt.Format("2006-01-02 15:04:05 MST")},
	}
	if res.FallbackContent {
		summary = append(summary, []interface{}{"Content", "local sample"})
	}
	if res.ProvisionalEvaluation {
		summary = append(summary, []interface{}{"Evaluation", "provisional"})
	}
	if err := writeRows(f, summarySheet, summary); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(reviewSheet); err != nil {
		return nil, fmt.Errorf("failed to create review sheet: %w", err)
	}
	rows := [][]interface{}{{"#", "Type", "Part", "Scenario", "Prompt", "Answer", "Correct answer", "Correct", "Points"}}
	for _, item := range res.Items {
		rows = append(rows, reviewRow(item))
	}
	if err := writeRows(f, reviewSheet, rows); err != nil {
		return nil, err
	}

	if eval := res.WritingEvaluation; eval != nil {
		if _, err := f.NewSheet(evaluationSheet); err != nil {
			return nil, fmt.Errorf("failed to create evaluation sheet: %w", err)
		}
		rows := [][]interface{}{{"Criterion", "Score", "Max score", "Feedback"}}
		for _, c := range eval.Criteria {
			rows = append(rows, []interface{}{c.Name, c.Score, c.MaxScore, c.Feedback})
		}
		rows = append(rows,
			[]interface{}{},
			[]interface{}{"Estimated score", eval.EstimatedScore},
			[]interface{}{"Feedback", eval.Feedback},
			[]interface{}{"Corrected text", eval.CorrectedText},
		)
		if err := writeRows(f, evaluationSheet, rows); err != nil {
			return nil, err
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("failed to write Excel file: %w", err)
	}
	return buf.Bytes(), nil
}

func reviewRow(item models.ReviewItem) []interface{} {
	answer := ""
	if item.Answer != nil {
		answer = displayAnswer(*item.Answer, item.Options)
	}
	correctAnswer := ""
	if item.CorrectIndex != nil && *item.CorrectIndex < len(item.Options) {
		correctAnswer = item.Options[*item.CorrectIndex]
	}
	correct := ""
	if item.Correct != nil {
		correct = "no"
		if *item.Correct {
			correct = "yes"
		}
	}
	part, scenario := "", ""
	if item.Part != nil {
		part = fmt.Sprint(*item.Part + 1)
	}
	if item.Scenario != nil {
		scenario = fmt.Sprint(*item.Scenario + 1)
	}
	return []interface{}{
		item.Position + 1,
		string(item.Type),
		part,
		scenario,
		item.Prompt,
		answer,
		correctAnswer,
		correct,
		item.Points,
	}
}

func displayAnswer(a models.Answer, options []string) string {
	if a.Kind == models.AnswerOption && a.Option >= 0 && a.Option < len(options) {
		return options[a.Option]
	}
	return strings.TrimSuffix(a.String(), "; ")
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		if len(row) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
