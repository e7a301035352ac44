// Package parser reads uploaded CSV and Excel statements into header-keyed rows
// and maps them onto canonical expense records through per-source adapters.
package parser

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/gocarina/gocsv"

	"github.com/FACorreiaa/monexa/internal/domain/expense"
	"github.com/FACorreiaa/monexa/internal/domain/import/sniffer"
)

// Row is one input row keyed by header name.
type Row map[string]string

var utf8BOM = []byte("\xef\xbb\xbf")

// ReadCSV reads a delimited file into rows using the layout found by the sniffer.
// A nil cfg means comma separated with the header on the first line.
func ReadCSV(data []byte, cfg *sniffer.FileConfig) ([]Row, error) {
	delimiter, skip := ',', 0
	if cfg != nil {
		if cfg.Delimiter != 0 {
			delimiter = cfg.Delimiter
		}
		skip = cfg.SkipLines
	}

	data = bytes.TrimPrefix(data, utf8BOM)
	body := func() io.Reader {
		var r io.Reader = bytes.NewReader(data)
		if skip > 0 {
			r = skipLines(r, skip)
		}
		return r
	}

	if delimiter == ',' {
		maps, err := gocsv.CSVToMaps(body())
		if err == nil {
			return toRows(maps), nil
		}
		// ragged or loosely quoted exports fall through to the tolerant reader
	}
	return readDelimited(body(), delimiter)
}

func toRows(maps []map[string]string) []Row {
	rows := make([]Row, 0, len(maps))
	for _, m := range maps {
		row := make(Row, len(m))
		for k, v := range m {
			row[strings.TrimSpace(k)] = strings.TrimSpace(v)
		}
		if !row.blank() {
			rows = append(rows, row)
		}
	}
	return rows
}

func readDelimited(r io.Reader, delimiter rune) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse CSV: %w", err)
		}
		if row := zipRow(headers, record); !row.blank() {
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func zipRow(headers, record []string) Row {
	row := make(Row, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if i < len(record) {
			row[h] = strings.TrimSpace(record[i])
		} else {
			row[h] = ""
		}
	}
	return row
}

func (r Row) blank() bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

// rowLookup resolves header aliases exactly first and then case-insensitively.
type rowLookup struct {
	row   Row
	lower map[string]string
}

func newRowLookup(row Row) rowLookup {
	keys := make([]string, 0, len(row))
	for k := range row {
		keys = append(keys, k)
	}
	// sorted so that colliding headers resolve the same way on every run
	sort.Strings(keys)

	lower := make(map[string]string, len(row))
	for _, k := range keys {
		lk := strings.ToLower(strings.TrimSpace(k))
		if _, exists := lower[lk]; !exists {
			lower[lk] = row[k]
		}
	}
	return rowLookup{row: row, lower: lower}
}

// first returns the first non-empty value among aliases.
func (l rowLookup) first(aliases []string) string {
	for _, a := range aliases {
		if v := strings.TrimSpace(l.row[a]); v != "" {
			return v
		}
		if v := strings.TrimSpace(l.lower[strings.ToLower(a)]); v != "" {
			return v
		}
	}
	return ""
}

// ParseText is the entry point for free-text bills and invoices. No text
// extraction exists yet, so it always yields an empty batch.
func ParseText(source, text string) []expense.Record {
	return []expense.Record{}
}

// cleanDescription normalizes a transaction description
func cleanDescription(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// skipLines returns a reader that skips the first n lines
func skipLines(r io.Reader, n int) io.Reader {
	return &lineSkipper{reader: r, skip: n}
}

type lineSkipper struct {
	reader  io.Reader
	skip    int
	skipped bool
}

func (ls *lineSkipper) Read(p []byte) (int, error) {
	if !ls.skipped {
		buf := make([]byte, 1)
		lines := 0
		for lines < ls.skip {
			n, err := ls.reader.Read(buf)
			if err != nil {
				return 0, err
			}
			if n > 0 && buf[0] == '\n' {
				lines++
			}
		}
		ls.skipped = true
	}
	return ls.reader.Read(p)
}
