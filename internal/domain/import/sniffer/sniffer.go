// Package sniffer detects the delimiter and header row of uploaded statement files.
// Bank exports often carry account metadata above the real header, so the
// header is located by scoring the first lines against known column names.
package sniffer

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"io"
	"strings"
	"unicode"
)

// headerKeywords are column names seen across wallet, marketplace and bank exports.
var headerKeywords = []string{
	"date", "txn date", "transaction date", "tx_datetime", "timestamp",
	"description", "narration", "details", "remarks", "merchant", "note",
	"amount", "amt", "total_amount", "value", "debit", "credit", "withdrawal", "deposit",
	"ref", "txnid", "txn id", "txn_id", "orderid", "order id", "transaction_id",
	"quantity", "item total", "balance",
}

// maxHeaderSearch bounds how far down the file the header may sit.
const maxHeaderSearch = 20

var (
	ErrEmptyFile        = errors.New("file is empty")
	ErrNoHeadersFound   = errors.New("could not find data headers")
	ErrInvalidDelimiter = errors.New("could not detect valid delimiter")
)

// FileConfig holds the detected layout of a delimited file.
type FileConfig struct {
	Delimiter   rune       `json:"-"`
	SkipLines   int        `json:"skip_lines"`
	Headers     []string   `json:"headers"`
	Fingerprint string     `json:"fingerprint"`
	SampleRows  [][]string `json:"sample_rows,omitempty"`
}

// DetectOptions allows callers to override header row or delimiter detection.
type DetectOptions struct {
	// HeaderRowIndex is a 0-based index for the header row. Set to -1 to auto-detect.
	HeaderRowIndex int
	// Delimiter overrides the detected delimiter when non-zero.
	Delimiter rune
}

// DetectConfig analyzes a CSV/TSV file and returns its configuration
func DetectConfig(data []byte) (*FileConfig, error) {
	return DetectConfigWithOptions(data, nil)
}

// DetectConfigWithOptions analyzes a file with optional overrides.
func DetectConfigWithOptions(data []byte, opts *DetectOptions) (*FileConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmptyFile
	}

	lines := strings.Split(string(data), "\n")

	var (
		delimiter rune
		skipLines int
		err       error
	)
	if opts != nil && opts.HeaderRowIndex >= 0 {
		if opts.HeaderRowIndex >= len(lines) {
			return nil, ErrNoHeadersFound
		}
		skipLines = opts.HeaderRowIndex
		delimiter = opts.Delimiter
		if delimiter == 0 {
			delimiter, _ = detectDelimiter(cleanLine(lines[skipLines], skipLines == 0))
		}
		if delimiter == 0 {
			return nil, ErrInvalidDelimiter
		}
	} else {
		delimiter, skipLines, err = findHeaderRow(lines)
		if err != nil {
			return nil, err
		}
		if opts != nil && opts.Delimiter != 0 {
			delimiter = opts.Delimiter
		}
	}

	reader := csv.NewReader(strings.NewReader(cleanLine(lines[skipLines], skipLines == 0)))
	reader.Comma = delimiter
	reader.LazyQuotes = true

	headers, err := reader.Read()
	if err != nil {
		return nil, err
	}
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}

	return &FileConfig{
		Delimiter:   delimiter,
		SkipLines:   skipLines,
		Headers:     headers,
		Fingerprint: Fingerprint(headers),
		SampleRows:  sampleRows(lines[skipLines+1:], delimiter, 5),
	}, nil
}

// findHeaderRow locates the header row and its delimiter. Lines that mention
// known column names win over lines that merely have many fields.
func findHeaderRow(lines []string) (rune, int, error) {
	bestIdx, bestDelim, bestScore := -1, rune(0), 0
	fallbackIdx, fallbackDelim, fallbackCount := -1, rune(0), 0

	for i, line := range lines {
		if i > maxHeaderSearch {
			break
		}
		line = cleanLine(line, i == 0)
		if line == "" {
			continue
		}

		delimiter, count := detectDelimiter(line)
		if count < 1 {
			continue
		}

		matches := keywordMatches(line, delimiter)
		if matches > 0 {
			score := count*10 + matches
			if bestIdx == -1 || score > bestScore {
				bestIdx, bestDelim, bestScore = i, delimiter, score
			}
			continue
		}
		if count > fallbackCount {
			fallbackIdx, fallbackDelim, fallbackCount = i, delimiter, count
		}
	}

	if bestIdx >= 0 {
		return bestDelim, bestIdx, nil
	}
	if fallbackIdx >= 0 && fallbackCount >= 2 {
		return fallbackDelim, fallbackIdx, nil
	}
	return 0, 0, ErrNoHeadersFound
}

// keywordMatches counts cells that are exactly a known header name.
func keywordMatches(line string, delimiter rune) int {
	n := 0
	for _, cell := range strings.Split(line, string(delimiter)) {
		cell = strings.ToLower(strings.Trim(strings.TrimSpace(cell), `"`))
		for _, kw := range headerKeywords {
			if cell == kw {
				n++
				break
			}
		}
	}
	return n
}

func cleanLine(line string, firstLine bool) string {
	line = strings.TrimRight(line, "\r")
	if firstLine {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return strings.TrimSpace(line)
}

func detectDelimiter(line string) (rune, int) {
	delimiters := []rune{',', ';', '\t', '|'}
	bestDelimiter := rune(0)
	bestCount := 0
	for _, d := range delimiters {
		count := strings.Count(line, string(d))
		if count > bestCount {
			bestCount = count
			bestDelimiter = d
		}
	}
	return bestDelimiter, bestCount
}

// Fingerprint hashes the normalized header names so repeat uploads of the
// same export layout can be recognised in logs and import results.
func Fingerprint(headers []string) string {
	var normalized []string
	for _, h := range headers {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				return unicode.ToLower(r)
			}
			return -1
		}, h)
		if clean != "" {
			normalized = append(normalized, clean)
		}
	}

	hash := sha256.Sum256([]byte(strings.Join(normalized, "|")))
	return hex.EncodeToString(hash[:])
}

func sampleRows(lines []string, delimiter rune, maxRows int) [][]string {
	reader := csv.NewReader(strings.NewReader(strings.Join(lines, "\n")))
	reader.Comma = delimiter
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	var rows [][]string
	for len(rows) < maxRows {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		rows = append(rows, record)
	}
	return rows
}
