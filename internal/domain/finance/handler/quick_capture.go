package handler

import (
	"regexp"
	"strconv"
	"strings"
)

// quickAmountPattern matches $1, 1$, ₹50, 50 INR, Rs. 120, 10,50€ and plain numbers.
var quickAmountPattern = regexp.MustCompile(`(?i)(?:(\$|€|£|₹|rs\.?|inr|usd|eur|gbp)\s*)?(\d+(?:[.,]\d{1,2})?)\s*(\$|€|£|₹|rs\.?|inr|usd|eur|gbp)?`)

type quickEntry struct {
	Note     string
	Amount   float64
	Currency string
	HasValue bool
}

// parseQuickEntry reads a one-line capture such as "Coffee 120" or "+Salary 2000$".
// Amounts are expenses (negative) unless the text starts with "+".
func parseQuickEntry(rawText, defaultCurrency string) quickEntry {
	result := quickEntry{Currency: defaultCurrency}

	rawText = strings.TrimSpace(rawText)
	if rawText == "" {
		return result
	}

	isIncome := false
	if strings.HasPrefix(rawText, "+") {
		isIncome = true
		rawText = strings.TrimSpace(strings.TrimPrefix(rawText, "+"))
	}

	matches := quickAmountPattern.FindAllStringSubmatchIndex(rawText, -1)
	if len(matches) == 0 {
		result.Note = rawText
		return result
	}

	// the last number is most likely the amount
	match := matches[len(matches)-1]
	amountStr := rawText[match[4]:match[5]]

	switch {
	case match[2] != -1:
		result.Currency = normalizeCurrency(rawText[match[2]:match[3]], defaultCurrency)
	case match[6] != -1:
		result.Currency = normalizeCurrency(rawText[match[6]:match[7]], defaultCurrency)
	}

	amountStr = strings.Replace(amountStr, ",", ".", 1)
	if amount, err := strconv.ParseFloat(amountStr, 64); err == nil {
		if !isIncome {
			amount = -amount
		}
		result.Amount = amount
		result.HasValue = true
	}

	note := strings.Join(strings.Fields(rawText[:match[0]]+" "+rawText[match[1]:]), " ")
	if len(note) > 0 {
		note = strings.ToUpper(note[:1]) + note[1:]
	}
	result.Note = note
	return result
}

func normalizeCurrency(symbol, fallback string) string {
	switch strings.TrimSuffix(strings.ToUpper(symbol), ".") {
	case "$", "USD":
		return "USD"
	case "€", "EUR":
		return "EUR"
	case "£", "GBP":
		return "GBP"
	case "₹", "RS", "INR":
		return "INR"
	default:
		return fallback
	}
}
