package insights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/monexa/internal/domain/finance"
	"github.com/FACorreiaa/monexa/pkg/money"
)

const (
	// DefaultLargeThreshold applies when a large_txn question names no amount.
	DefaultLargeThreshold = 1000.0

	topMerchantsLimit      = 5
	largeTransactionsLimit = 20
)

// ErrInvalidMonth is returned for months outside 1..12.
var ErrInvalidMonth = errors.New("month must be between 1 and 12")

// Answer is the reply to an interpreted question.
type Answer struct {
	Reply string                  `json:"reply"`
	Query finance.StructuredQuery `json:"query"`
	Data  any                     `json:"data,omitempty"`
}

type MonthlyReport struct {
	Year       int             `json:"year"`
	Month      int             `json:"month"`
	ByCategory []CategoryTotal `json:"by_category"`
	ByDay      []DayTotal      `json:"by_day"`
}

type CategoryDiff struct {
	ExpType string  `json:"exp_type"`
	Total1  float64 `json:"total1"`
	Total2  float64 `json:"total2"`
	Diff    float64 `json:"diff"`
}

type Comparison struct {
	Month1         *MonthlyReport `json:"month1"`
	Month2         *MonthlyReport `json:"month2"`
	DiffByCategory []CategoryDiff `json:"diff_by_category"`
}

// Service handles insights business logic
type Service struct {
	repo     Reader
	currency string
	logger   *slog.Logger
	tracer   trace.Tracer
}

// NewService creates a new insights service. Amounts in replies are
// formatted in currency.
func NewService(repo Reader, currency string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     repo,
		currency: currency,
		logger:   logger,
		tracer:   otel.Tracer("monexa/insights"),
	}
}

// Execute runs the query behind q and renders a reply. An empty result is
// answered in text, not reported as an error.
func (s *Service) Execute(ctx context.Context, q finance.StructuredQuery) (*Answer, error) {
	ctx, span := s.tracer.Start(ctx, "insights.Execute", trace.WithAttributes(
		attribute.String("intent", string(q.Intent)),
		attribute.String("start_date", q.StartDate),
		attribute.String("end_date", q.EndDate),
	))
	defer span.End()

	p, err := ParsePeriod(q.StartDate, q.EndDate)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var answer *Answer
	switch q.Intent {
	case finance.IntentCategorySummary:
		answer, err = s.categorySummary(ctx, p)
	case finance.IntentTopMerchants:
		answer, err = s.topMerchants(ctx, p)
	case finance.IntentLargeTxn:
		answer, err = s.largeTransactions(ctx, q.Threshold, p)
	default:
		answer, err = s.sumByTerm(ctx, q.Keyword, p)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "query execution failed",
			slog.String("intent", string(q.Intent)),
			slog.Any("error", err))
		return nil, err
	}

	answer.Query = q
	return answer, nil
}

func (s *Service) sumByTerm(ctx context.Context, keyword *string, p Period) (*Answer, error) {
	total, err := s.repo.SumByTerm(ctx, keyword, p)
	if err != nil {
		return nil, err
	}

	var reply string
	switch {
	case keyword != nil && total.Count == 0:
		reply = fmt.Sprintf("No expenses found for '%s' in %s.", *keyword, p.Label())
	case keyword != nil:
		reply = fmt.Sprintf("You spent %s on '%s' in %s across %d transaction(s).",
			s.format(math.Abs(total.Total)), *keyword, p.Label(), total.Count)
	case total.Count == 0:
		reply = fmt.Sprintf("No expenses recorded in %s.", p.Label())
	default:
		reply = fmt.Sprintf("Your total spend in %s is %s across %d transaction(s).",
			p.Label(), s.format(math.Abs(total.Total)), total.Count)
	}
	return &Answer{Reply: reply, Data: total}, nil
}

func (s *Service) categorySummary(ctx context.Context, p Period) (*Answer, error) {
	rows, err := s.repo.CategorySummary(ctx, p)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Answer{Reply: fmt.Sprintf("No category data available for %s.", p.Label()), Data: rows}, nil
	}

	lines := []string{fmt.Sprintf("Category summary for %s:", p.Label())}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("- %s: %s (%d txns)", r.ExpType, s.format(r.Total), r.Count))
	}
	return &Answer{Reply: strings.Join(lines, "\n"), Data: rows}, nil
}

func (s *Service) topMerchants(ctx context.Context, p Period) (*Answer, error) {
	rows, err := s.repo.TopMerchants(ctx, p, topMerchantsLimit)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Answer{Reply: fmt.Sprintf("No merchant data found for %s.", p.Label()), Data: rows}, nil
	}

	lines := []string{fmt.Sprintf("Top merchants for %s:", p.Label())}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("- %s: %s (%d txns)", r.Merchant, s.format(r.Total), r.Count))
	}
	return &Answer{Reply: strings.Join(lines, "\n"), Data: rows}, nil
}

func (s *Service) largeTransactions(ctx context.Context, threshold *float64, p Period) (*Answer, error) {
	thr := DefaultLargeThreshold
	if threshold != nil {
		thr = *threshold
	}

	rows, err := s.repo.LargeTransactions(ctx, thr, p, largeTransactionsLimit)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &Answer{
			Reply: fmt.Sprintf("No transactions above %s found in %s.", s.format(thr), p.Label()),
			Data:  rows,
		}, nil
	}

	lines := []string{fmt.Sprintf("Transactions >= %s in %s:", s.format(thr), p.Label())}
	for _, r := range rows {
		when := "unknown date"
		if r.TxDatetime != nil {
			when = r.TxDatetime.Format(time.DateTime)
		}
		lines = append(lines, fmt.Sprintf("- %s: %s %s", when, s.format(r.Amount), strings.TrimSpace(r.Note)))
	}
	return &Answer{Reply: strings.Join(lines, "\n"), Data: rows}, nil
}

// KeywordAmount is the month total of expenses matching one keyword.
type KeywordAmount struct {
	Keyword string  `json:"keyword"`
	Year    int     `json:"year"`
	Month   int     `json:"month"`
	Total   float64 `json:"total"`
	Count   int     `json:"tx_count"`
}

// AmountForKeyword sums the expenses of one month whose note, category or
// source contains keyword.
func (s *Service) AmountForKeyword(ctx context.Context, keyword string, year, month int) (*KeywordAmount, error) {
	if month < 1 || month > 12 {
		return nil, ErrInvalidMonth
	}
	keyword = strings.ToLower(strings.TrimSpace(keyword))

	var kw *string
	if keyword != "" {
		kw = &keyword
	}
	total, err := s.repo.SumByTerm(ctx, kw, MonthPeriod(year, time.Month(month)))
	if err != nil {
		return nil, err
	}
	return &KeywordAmount{Keyword: keyword, Year: year, Month: month, Total: total.Total, Count: total.Count}, nil
}

// MonthlyReport returns per-category and per-day totals for one month.
func (s *Service) MonthlyReport(ctx context.Context, year, month int) (*MonthlyReport, error) {
	if month < 1 || month > 12 {
		return nil, ErrInvalidMonth
	}
	p := MonthPeriod(year, time.Month(month))

	byCategory, err := s.repo.CategorySummary(ctx, p)
	if err != nil {
		return nil, err
	}
	sortByAbsTotal(byCategory)

	byDay, err := s.repo.DailyTotals(ctx, p)
	if err != nil {
		return nil, err
	}

	return &MonthlyReport{Year: year, Month: month, ByCategory: byCategory, ByDay: byDay}, nil
}

// CompareMonths reports both months and the per-category change from the
// first to the second, largest absolute change first.
func (s *Service) CompareMonths(ctx context.Context, y1, m1, y2, m2 int) (*Comparison, error) {
	first, err := s.MonthlyReport(ctx, y1, m1)
	if err != nil {
		return nil, err
	}
	second, err := s.MonthlyReport(ctx, y2, m2)
	if err != nil {
		return nil, err
	}

	totals1 := categoryTotals(first.ByCategory)
	totals2 := categoryTotals(second.ByCategory)

	keys := make([]string, 0, len(totals1)+len(totals2))
	for k := range totals1 {
		keys = append(keys, k)
	}
	for k := range totals2 {
		if _, ok := totals1[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	diffs := make([]CategoryDiff, 0, len(keys))
	for _, k := range keys {
		t1, t2 := totals1[k], totals2[k]
		diff := money.Sum(s.currency, t2, -t1).ToFloat64()
		diffs = append(diffs, CategoryDiff{ExpType: k, Total1: t1, Total2: t2, Diff: diff})
	}
	sort.SliceStable(diffs, func(i, j int) bool {
		return math.Abs(diffs[i].Diff) > math.Abs(diffs[j].Diff)
	})

	return &Comparison{Month1: first, Month2: second, DiffByCategory: diffs}, nil
}

func (s *Service) format(amount float64) string {
	return money.Format(amount, s.currency)
}

func sortByAbsTotal(rows []CategoryTotal) {
	sort.SliceStable(rows, func(i, j int) bool {
		return math.Abs(rows[i].Total) > math.Abs(rows[j].Total)
	})
}

func categoryTotals(rows []CategoryTotal) map[string]float64 {
	out := make(map[string]float64, len(rows))
	for _, r := range rows {
		out[r.ExpType] += r.Total
	}
	return out
}
