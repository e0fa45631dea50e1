package formats

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/docstream/internal/core/domain"
)

// extractExcel flattens every sheet into "header: value" lines so the
// downstream text analysis sees labelled values.
func extractExcel(raw []byte) (domain.ExtractedContent, error) {
	file, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("open workbook: %w", err)
	}
	defer file.Close()

	var b strings.Builder
	for _, sheet := range file.GetSheetList() {
		rows, err := file.GetRows(sheet)
		if err != nil {
			return domain.ExtractedContent{}, fmt.Errorf("read sheet %s: %w", sheet, err)
		}
		writeRows(&b, rows)
	}

	return domain.ExtractedContent{
		Text:   strings.TrimSpace(b.String()),
		Method: "excel",
	}, nil
}

func extractCSV(raw []byte) (domain.ExtractedContent, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return domain.ExtractedContent{}, fmt.Errorf("parse csv: %w", err)
	}

	var b strings.Builder
	writeRows(&b, rows)
	return domain.ExtractedContent{
		Text:   strings.TrimSpace(b.String()),
		Method: "csv",
	}, nil
}

// writeRows treats the first row as headers and emits one "header: value"
// line per cell of each following record, records separated by blank lines.
func writeRows(b *strings.Builder, rows [][]string) {
	if len(rows) == 0 {
		return
	}
	headers := rows[0]
	if len(rows) == 1 {
		b.WriteString(strings.Join(headers, " "))
		b.WriteString("\n")
		return
	}
	for _, row := range rows[1:] {
		for i, cell := range row {
			if strings.TrimSpace(cell) == "" {
				continue
			}
			if i < len(headers) && strings.TrimSpace(headers[i]) != "" {
				fmt.Fprintf(b, "%s: %s\n", strings.TrimSpace(headers[i]), strings.TrimSpace(cell))
			} else {
				b.WriteString(strings.TrimSpace(cell))
				b.WriteString("\n")
			}
		}
		b.WriteString("\n")
	}
}
