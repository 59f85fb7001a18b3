package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/signalnine/verifierbench/internal/result"
)

const (
	summarySheet = "Summary"
	runsSheet    = "Runs"
)

// WriteXLSX writes a workbook with the summary table and every run record,
// the layout the human labeling pass works from.
func WriteXLSX(path string, summaries []Summary, records []result.RunRecord) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return fmt.Errorf("naming summary sheet: %w", err)
	}
	rows := [][]any{{"Backend", "Variant", "Units", "Passed", "Failed", "No Verdict", "Errors",
		"Pass Rate", "Mean Latency (ms)", "Mean Tokens", "Cost (USD)", "FP Rate", "Accuracy", "Precision"}}
	for _, s := range summaries {
		row := []any{s.Backend, s.Variant, s.Units, s.Passed, s.Failed, s.NoVerdict, s.Errors,
			s.PassRate, s.MeanLatencyMS, s.MeanTokens, s.CostUSD}
		if s.Scores != nil && s.Scores.Labeled > 0 {
			row = append(row, s.Scores.FPRate, s.Scores.Accuracy, s.Scores.Precision)
		}
		rows = append(rows, row)
	}
	if err := writeRows(f, summarySheet, rows); err != nil {
		return err
	}

	if _, err := f.NewSheet(runsSheet); err != nil {
		return fmt.Errorf("creating runs sheet: %w", err)
	}
	rows = [][]any{{"Goal ID", "Goal", "Variant", "Backend", "Model", "Task", "Checklist",
		"Raw Output", "Verdict", "Judgments", "Rationale", "Latency (ms)", "Input Tokens", "Output Tokens", "Error"}}
	for _, r := range records {
		judgments, err := json.Marshal(r.Judgments)
		if err != nil {
			return fmt.Errorf("encoding judgments: %w", err)
		}
		rows = append(rows, []any{r.GoalID, r.Goal, r.Variant, r.Backend, r.Model, r.Task,
			strings.Join(r.Checklist, "\n"), r.RawOutput, r.Verdict, string(judgments), r.Rationale,
			r.LatencyMS, r.InputTokens, r.OutputTokens, r.Error})
	}
	if err := writeRows(f, runsSheet, rows); err != nil {
		return err
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("saving workbook: %w", err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("writing %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
