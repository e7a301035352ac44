// Package finance turns free-form spending questions into structured queries.
package finance

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/FACorreiaa/monexa/internal/domain/import/normalizer"
)

// Intent is the kind of question being asked.
type Intent string

const (
	IntentSumByTerm       Intent = "sum_by_term"
	IntentCategorySummary Intent = "category_summary"
	IntentTopMerchants    Intent = "top_merchants"
	IntentLargeTxn        Intent = "large_txn"
)

const queryDateLayout = "2006-01-02"

// StructuredQuery is the interpreted form of a question.
// StartDate and EndDate always cover exactly one calendar month.
type StructuredQuery struct {
	Intent    Intent   `json:"intent"`
	Keyword   *string  `json:"keyword"`
	Threshold *float64 `json:"threshold"`
	StartDate string   `json:"start_date"`
	EndDate   string   `json:"end_date"`
}

// Month returns the year and month the query covers.
func (q StructuredQuery) Month() (int, time.Month) {
	t, err := time.Parse(queryDateLayout, q.StartDate)
	if err != nil {
		return 0, 0
	}
	return t.Year(), t.Month()
}

type intentRule struct {
	intent Intent
	match  func(s string) bool
}

func matchAny(patterns ...string) func(string) bool {
	re := regexp.MustCompile(strings.Join(patterns, "|"))
	return re.MatchString
}

// intentRules are tried in order; the first match wins.
var intentRules = []intentRule{
	{IntentTopMerchants, matchAny(`\btop\s+(?:\d+\s+)?merchants?\b`)},
	{IntentCategorySummary, matchAny(`\bcategory summary\b`, `\bby category\b`, `\bshow categories\b`, `\bcategory totals?\b`, `\bcategory breakdown\b`)},
	{IntentLargeTxn, matchAny(`\babove\b`, `\bover\b`, `\bgreater than\b`, `\bmore than\b`, `>`, `\blarge transactions?\b`)},
	{IntentSumByTerm, matchAny(`\bhow much\b`, `\bspent\b`, `\bspend\b`, `\btotal\b`, `\bsum\b`)},
}

const monthNames = `jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?`

var (
	thresholdPattern  = regexp.MustCompile(`(?:\babove|\bover|\bgreater than|\bmore than|>)\s*(?:₹|\$|€|£|rs\.?|inr)?\s*([0-9][0-9,]*(?:\.\d+)?)`)
	bareNumberPattern = regexp.MustCompile(`\b(\d{3,}(?:\.\d+)?)\b`)

	explicitTermPattern = regexp.MustCompile(`\b(?:on|for|about)\s+([^.?!,;]+)`)
	spentTermPattern    = regexp.MustCompile(`\bspent\s+(?:on|with|for)\s+([^.?!,;]+)`)
	// trailingTimePattern cuts a phrase at the first time expression and drops the rest.
	trailingTimePattern = regexp.MustCompile(`\s*\b(?:` +
		`(?:this|last|previous|current)\s+(?:month|week|year)\b` +
		`|today\b|yesterday\b` +
		`|(?:in|during|since|from|between)\s+(?:` + monthNames + `|\d{4})\b` +
		`|(?:` + monthNames + `)\.?\s+\d{4}\b` +
		`|\d{4}[-/]\d{1,2}\b` +
		`).*$`)
	termToken = regexp.MustCompile(`[a-z0-9]+`)

	yearMonthPattern = regexp.MustCompile(`\b(\d{4})[-/](\d{1,2})\b`)
	monthNamePattern = regexp.MustCompile(`\b(` + monthNames + `)\.?\s+(\d{4})\b`)
)

var queryStopwords = toSet(
	"how", "much", "did", "do", "does", "i", "we", "my", "me", "our", "the", "a", "an", "is", "are", "was", "were",
	"what", "whats", "show", "list", "give", "tell", "spend", "spent", "spending", "on", "for", "about", "with",
	"in", "at", "of", "to", "and", "all", "total", "sum", "transactions", "transaction", "txn", "txns",
	"above", "over", "greater", "more", "than", "large", "category", "categories", "summary", "totals",
	"breakdown", "by", "top", "merchant", "merchants", "expenses", "expense", "money", "please",
	"like", "would", "want", "see", "know", "can", "you", "it", "be", "so", "far",
)

var timeWords = toSet(
	"this", "last", "month", "months", "today", "yesterday", "week", "year", "now", "current", "previous",
	"jan", "january", "feb", "february", "mar", "march", "apr", "april", "may", "jun", "june", "jul", "july",
	"aug", "august", "sep", "sept", "september", "oct", "october", "nov", "november", "dec", "december",
)

var monthAbbrev = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

// QueryInterpreter maps a question to a StructuredQuery using fixed rules.
type QueryInterpreter struct {
	vocab Vocabulary
	now   func() time.Time
}

// InterpreterOption configures a QueryInterpreter.
type InterpreterOption func(*QueryInterpreter)

// WithClock overrides the clock used to resolve relative months.
func WithClock(now func() time.Time) InterpreterOption {
	return func(q *QueryInterpreter) {
		q.now = now
	}
}

// NewQueryInterpreter creates an interpreter. vocab may be nil.
func NewQueryInterpreter(vocab Vocabulary, opts ...InterpreterOption) *QueryInterpreter {
	q := &QueryInterpreter{vocab: vocab, now: time.Now}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Interpret never fails. Text that matches nothing becomes a sum_by_term
// query with no keyword over the current month.
func (q *QueryInterpreter) Interpret(ctx context.Context, text string) StructuredQuery {
	s := strings.ToLower(strings.TrimSpace(text))

	query := StructuredQuery{Intent: IntentSumByTerm}
	for _, rule := range intentRules {
		if rule.match(s) {
			query.Intent = rule.intent
			break
		}
	}

	year, month := q.resolveMonth(s)
	query.StartDate = fmt.Sprintf("%04d-%02d-01", year, int(month))
	query.EndDate = fmt.Sprintf("%04d-%02d-%02d", year, int(month), normalizer.DaysInMonth(year, month))

	if query.Intent == IntentLargeTxn {
		query.Threshold = extractThreshold(s)
	}
	if query.Intent != IntentTopMerchants {
		query.Keyword = q.extractKeyword(ctx, s)
	}
	return query
}

func (q *QueryInterpreter) resolveMonth(s string) (int, time.Month) {
	now := q.now()
	switch {
	case strings.Contains(s, "this month"):
		return now.Year(), now.Month()
	case strings.Contains(s, "last month"):
		if now.Month() == time.January {
			return now.Year() - 1, time.December
		}
		return now.Year(), now.Month() - 1
	}

	if m := yearMonthPattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		if month >= 1 && month <= 12 {
			return year, time.Month(month)
		}
	}
	if m := monthNamePattern.FindStringSubmatch(s); m != nil {
		year, _ := strconv.Atoi(m[2])
		return year, monthAbbrev[m[1][:3]]
	}
	return now.Year(), now.Month()
}

func extractThreshold(s string) *float64 {
	if m := thresholdPattern.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", ""), 64); err == nil {
			return &v
		}
	}

	// Any 3+ digit number counts, years included.
	if m := bareNumberPattern.FindStringSubmatch(s); m != nil {
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return &v
		}
	}
	return nil
}

func (q *QueryInterpreter) extractKeyword(ctx context.Context, s string) *string {
	for _, pattern := range []*regexp.Regexp{explicitTermPattern, spentTermPattern} {
		for _, m := range pattern.FindAllStringSubmatch(s, -1) {
			if term, ok := cleanTerm(m[1]); ok {
				term = q.snapTerm(ctx, term)
				return &term
			}
		}
	}
	return q.fallbackKeyword(ctx, s)
}

// cleanTerm trims trailing time phrases and filler from a captured phrase.
func cleanTerm(phrase string) (string, bool) {
	phrase = trailingTimePattern.ReplaceAllString(phrase, "")
	phrase = yearMonthPattern.ReplaceAllString(phrase, " ")
	phrase = monthNamePattern.ReplaceAllString(phrase, " ")

	tokens := termToken.FindAllString(phrase, -1)
	for len(tokens) > 0 && isFiller(tokens[0]) {
		tokens = tokens[1:]
	}
	for len(tokens) > 0 && isFiller(tokens[len(tokens)-1]) {
		tokens = tokens[:len(tokens)-1]
	}
	if len(tokens) == 0 {
		return "", false
	}
	return strings.Join(tokens, " "), true
}

func isFiller(tok string) bool {
	if _, ok := queryStopwords[tok]; ok {
		return true
	}
	_, ok := timeWords[tok]
	return ok
}

// snapTerm replaces a single unknown word with the closest known keyword.
func (q *QueryInterpreter) snapTerm(ctx context.Context, term string) string {
	if q.vocab == nil || strings.Contains(term, " ") {
		return term
	}
	keywords := q.vocab.Keywords(ctx)
	if _, ok := keywords[term]; ok {
		return term
	}
	if snapped, ok := snapToVocabulary(term, sortedKeys(keywords)); ok {
		return snapped
	}
	return term
}

// fallbackKeyword picks the first plausible token, preferring one the
// vocabulary knows about.
func (q *QueryInterpreter) fallbackKeyword(ctx context.Context, s string) *string {
	s = yearMonthPattern.ReplaceAllString(s, " ")
	s = monthNamePattern.ReplaceAllString(s, " ")

	var candidates []string
	for _, tok := range termToken.FindAllString(s, -1) {
		if len(tok) <= 1 || isFiller(tok) || strings.Trim(tok, "0123456789.,") == "" {
			continue
		}
		candidates = append(candidates, tok)
	}
	if len(candidates) == 0 {
		return nil
	}

	if q.vocab != nil {
		keywords := q.vocab.Keywords(ctx)
		for _, tok := range candidates {
			if _, ok := keywords[tok]; ok {
				return &tok
			}
		}
		known := sortedKeys(keywords)
		for _, tok := range candidates {
			if snapped, ok := snapToVocabulary(tok, known); ok {
				return &snapped
			}
		}
	}
	return &candidates[0]
}

// maxSnapDistance bounds how far a misspelt token may be from a known keyword.
const maxSnapDistance = 2

func snapToVocabulary(tok string, known []string) (string, bool) {
	if len(tok) < 4 {
		return "", false
	}
	ranks := fuzzy.RankFindNormalizedFold(tok, known)
	if len(ranks) == 0 {
		return "", false
	}
	sort.Stable(ranks)
	if best := ranks[0]; best.Distance <= maxSnapDistance {
		return best.Target, true
	}
	return "", false
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
