// Package normalizer turns raw amount and date strings into canonical values and
// infers spending categories from free-text descriptions.
package normalizer

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/FACorreiaa/monexa/internal/domain/expense"
)

var (
	amountNoise = strings.NewReplacer(
		"₹", "", "$", "", "€", "", "£", "",
		"INR", "", "USD", "", "EUR", "", "GBP", "", "CAD", "", "Rs.", "", "Rs", "",
		",", "", " ", "", "\u00a0", "", "\t", "",
	)
	plainNumber   = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)
	signedNumber  = regexp.MustCompile(`-?\d+(\.\d+)?`)
	fractionalSec = regexp.MustCompile(`(\d{1,2}:\d{2}:\d{2})\.\d+`)
)

// datetimeLayouts is tried in order after the raw value has had "T" replaced
// by a space and fractional seconds dropped.
var datetimeLayouts = []string{
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2",
	"2006/1/2 15:04:05",
	"2006/1/2",
}

// NormalizeAmount parses a monetary string. Currency markers and thousands
// separators are ignored and a value wrapped in parentheses is negative.
// ok is false only when the input carries no numeric content at all.
func NormalizeAmount(raw string) (float64, bool) {
	s := amountNoise.Replace(strings.TrimSpace(raw))
	if s == "" {
		return 0, false
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.Trim(s, "()")
	}

	var v float64
	if plainNumber.MatchString(s) {
		parsed, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	} else {
		m := signedNumber.FindString(s)
		if m == "" {
			return 0, false
		}
		parsed, err := strconv.ParseFloat(m, 64)
		if err != nil {
			return 0, false
		}
		v = parsed
	}

	if negative {
		v = -math.Abs(v)
	}
	return v, true
}

// AmountOrZero is NormalizeAmount with absence mapped to 0.0.
func AmountOrZero(raw string) float64 {
	v, _ := NormalizeAmount(raw)
	return v
}

// NormalizeDatetime returns raw in the canonical "YYYY-MM-DD HH:MM:SS" form.
// Date-only values get a midnight time. ok is false when nothing parses.
func NormalizeDatetime(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}

	cleaned := fractionalSec.ReplaceAllString(strings.Replace(s, "T", " ", 1), "$1")
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format(expense.DatetimeLayout), true
		}
	}

	// generic ISO fallback, offsets and a trailing Z included
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05Z07:00", "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(expense.DatetimeLayout), true
		}
		if t, err := time.Parse(layout, cleaned); err == nil {
			return t.Format(expense.DatetimeLayout), true
		}
	}
	return "", false
}

// ParseDateWithLayouts tries a source's own layouts first and then the generic ones.
func ParseDateWithLayouts(raw string, layouts []string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(expense.DatetimeLayout), true
		}
	}
	return NormalizeDatetime(s)
}

// DaysInMonth returns the number of days in the given month.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
