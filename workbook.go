package gel_api

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/xuri/excelize/v2"
)

const (
	casesSheet   = "Cases"
	samplesSheet = "Samples"
)

// WorkbookWriter writes the run as pilot_cases_<date>.xlsx with a case
// sheet and a sheet of the samples appended by the run.
type WorkbookWriter struct {
	outputDir string
}

func NewWorkbookWriter(outputDir string) *WorkbookWriter {
	return &WorkbookWriter{outputDir: outputDir}
}

func (w *WorkbookWriter) Name() string {
	return "workbook"
}

func (w *WorkbookWriter) Path(report RunReport) string {
	return filepath.Join(w.outputDir, CaseFileName(report.RunDate, "xlsx"))
}

func (w *WorkbookWriter) Publish(_ context.Context, report RunReport) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", casesSheet); err != nil {
		return err
	}
	if _, err := f.NewSheet(samplesSheet); err != nil {
		return err
	}

	caseRows := make([][]string, 0, len(report.Cases)+1)
	caseRows = append(caseRows, CaseColumns)
	for _, nc := range report.Cases {
		caseRows = append(caseRows, CaseRecord(nc))
	}
	if err := writeRows(f, casesSheet, caseRows); err != nil {
		return err
	}

	sampleRows := make([][]string, 0, len(report.Samples)+1)
	sampleRows = append(sampleRows, SampleColumns)
	for _, row := range report.Samples {
		sampleRows = append(sampleRows, row.record())
	}
	if err := writeRows(f, samplesSheet, sampleRows); err != nil {
		return err
	}

	path := w.Path(report)
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("Failed to save workbook '%s': %w", path, err)
	}
	return nil
}

func writeRows(f *excelize.File, sheet string, rows [][]string) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		values := make([]interface{}, len(row))
		for j, v := range row {
			values[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return fmt.Errorf("Failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return nil
}
