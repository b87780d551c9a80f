// Package export renders batch outcomes as an XLSX report for the operator
// who audits what the sorter did to their mailbox scans.
package export

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/lukasedel/docsorter/internal/pipeline"
)

type Service struct {
	logger *slog.Logger
}

func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{logger: logger}
}

// BatchReportXLSX returns an XLSX workbook (as bytes) with one row per
// document from the batch run.
func (s *Service) BatchReportXLSX(results []pipeline.Result) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	const sheet = "Batch"
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// Drop the default sheet excelize creates.
	_ = f.DeleteSheet("Sheet1")

	headers := []string{
		"Document ID",
		"Original Name",
		"New Name",
		"Target Box",
		"Confidence",
		"Stage",
		"OCR Method",
		"Insurer",
		"Document Type",
		"Duration (s)",
		"Error",
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	row := 2
	for _, r := range results {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}

		c := r.Outcome.Classification
		write(1, r.DocumentID.String())
		write(2, r.SourceName)
		write(3, r.NewName)
		write(4, string(c.TargetBox))
		write(5, string(c.Confidence))
		write(6, string(r.Stage))
		write(7, r.OCRMethod)
		write(8, c.Insurer)
		write(9, c.DocumentType)
		write(10, fmt.Sprintf("%.1f", r.Duration.Seconds()))
		if r.Err != nil {
			write(11, truncate(r.Err.Error(), 200))
		}

		row++
	}

	_ = f.SetColWidth(sheet, "A", "A", 38) // id
	_ = f.SetColWidth(sheet, "B", "C", 42) // names
	_ = f.SetColWidth(sheet, "D", "G", 14)
	_ = f.SetColWidth(sheet, "H", "I", 28)
	_ = f.SetColWidth(sheet, "K", "K", 60) // error

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(results),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
