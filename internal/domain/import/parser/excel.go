package parser

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrNoSheet is returned for workbooks without any worksheet.
var ErrNoSheet = errors.New("no suitable sheet found")

// ReadExcel reads the transaction sheet of an XLSX workbook into rows.
// The first non-empty row of the sheet is the header.
func ReadExcel(r io.Reader) ([]Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := findTransactionSheet(f)
	if sheet == "" {
		return nil, ErrNoSheet
	}

	records, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheet, err)
	}

	header := -1
	for i, rec := range records {
		if strings.TrimSpace(strings.Join(rec, "")) != "" {
			header = i
			break
		}
	}
	if header < 0 {
		return []Row{}, nil
	}

	rows := make([]Row, 0, len(records)-header-1)
	for _, rec := range records[header+1:] {
		if row := zipRow(records[header], rec); !row.blank() {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

// findTransactionSheet prefers sheets with transaction-related names and
// falls back to the first one.
func findTransactionSheet(f *excelize.File) string {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return ""
	}

	for _, preferred := range []string{"transactions", "statement", "orders", "data", "sheet1"} {
		for _, sheet := range sheets {
			if strings.EqualFold(sheet, preferred) {
				return sheet
			}
		}
	}
	return sheets[0]
}
