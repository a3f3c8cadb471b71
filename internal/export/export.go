// Package export renders assembled batch results as XLSX workbooks.
package export

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"

	"github.com/jackzampolin/dwcbatch/internal/batch"
	"github.com/jackzampolin/dwcbatch/internal/prompts/darwincore"
)

const (
	RecordsSheet  = "Records"
	FailuresSheet = "Failures"

	IDHeader = "custom_id"

	// Excel rejects cells longer than this.
	maxCellLength = 32767
)

// Service writes batch results to XLSX.
type Service struct {
	terms  []string
	logger *slog.Logger
}

// NewService creates an exporter. Columns follow terms (the Darwin Core
// terms when nil); keys outside that list are appended sorted.
func NewService(terms []string, logger *slog.Logger) *Service {
	if terms == nil {
		terms = darwincore.TermNames()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{terms: terms, logger: logger}
}

// Columns returns the record column headers for a result.
func (s *Service) Columns(result *batch.Result) []string {
	known := make(map[string]bool, len(s.terms))
	for _, t := range s.terms {
		known[t] = true
	}
	var extra []string
	seen := make(map[string]bool)
	for _, fields := range result.Records {
		for k := range fields {
			if !known[k] && !seen[k] {
				seen[k] = true
				extra = append(extra, k)
			}
		}
	}
	slices.Sort(extra)

	cols := make([]string, 0, 1+len(s.terms)+len(extra))
	cols = append(cols, IDHeader)
	cols = append(cols, s.terms...)
	return append(cols, extra...)
}

// XLSX returns a workbook with one row per record, sorted by custom_id,
// plus a failures sheet listing failed and missing records.
func (s *Service) XLSX(result *batch.Result) ([]byte, error) {
	start := time.Now()

	f := excelize.NewFile()
	defer f.Close()

	// Rename the default sheet rather than leaving an empty "Sheet1".
	if err := f.SetSheetName(f.GetSheetName(0), RecordsSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	cols := s.Columns(result)
	if err := writeRow(f, RecordsSheet, 1, toAny(cols)); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(result.Records))
	for id := range result.Records {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for i, id := range ids {
		fields := result.Records[id]
		row := make([]any, len(cols))
		row[0] = id
		for c, name := range cols[1:] {
			row[c+1] = cellValue(fields[name])
		}
		if err := writeRow(f, RecordsSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	if err := f.SetColWidth(RecordsSheet, "A", "A", 40); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetPanes(RecordsSheet, &excelize.Panes{
		Freeze:      true,
		XSplit:      1,
		YSplit:      1,
		TopLeftCell: "B2",
		ActivePane:  "bottomRight",
	}); err != nil {
		return nil, fmt.Errorf("freeze header: %w", err)
	}

	if err := s.writeFailures(f, result); err != nil {
		return nil, err
	}

	idx, err := f.GetSheetIndex(RecordsSheet)
	if err != nil {
		return nil, fmt.Errorf("lookup %s sheet: %w", RecordsSheet, err)
	}
	f.SetActiveSheet(idx)

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"batch_id", result.BatchID,
		"rows", len(ids),
		"failed", len(result.Failed),
		"missing", len(result.Missing),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// WriteFile renders the workbook to path, creating parent directories.
func (s *Service) WriteFile(path string, result *batch.Result) error {
	data, err := s.XLSX(result)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}
	return nil
}

func (s *Service) writeFailures(f *excelize.File, result *batch.Result) error {
	if _, err := f.NewSheet(FailuresSheet); err != nil {
		return fmt.Errorf("create failures sheet: %w", err)
	}
	if err := writeRow(f, FailuresSheet, 1, []any{IDHeader, "source", "line", "error"}); err != nil {
		return err
	}

	row := 2
	for _, fail := range result.Failed {
		line := any(fail.Line)
		if fail.Line == 0 {
			line = ""
		}
		if err := writeRow(f, FailuresSheet, row, []any{fail.CustomID, fail.Source, line, truncate(fail.Message, maxCellLength)}); err != nil {
			return err
		}
		row++
	}
	for _, id := range result.Missing {
		if err := writeRow(f, FailuresSheet, row, []any{id, "missing", "", "no output returned for request"}); err != nil {
			return err
		}
		row++
	}
	if err := f.SetColWidth(FailuresSheet, "A", "A", 40); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	if err := f.SetColWidth(FailuresSheet, "D", "D", 80); err != nil {
		return fmt.Errorf("set column width: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

// cellValue flattens a decoded JSON value into something a cell can hold.
func cellValue(v any) any {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return truncate(val, maxCellLength)
	case float64, bool, int, int64:
		return val
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return truncate(string(b), maxCellLength)
	}
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// truncate limits s to n characters, ending with an ellipsis when cut.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	if n == 1 {
		return string(runes[:1])
	}
	return string(runes[:n-1]) + "…"
}
