package insights

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/FACorreiaa/monexa/internal/domain/expense"
)

// Period is an inclusive range of calendar days.
type Period struct {
	Start time.Time
	End   time.Time
}

// MonthPeriod covers every day of the given month.
func MonthPeriod(year int, month time.Month) Period {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return Period{Start: start, End: start.AddDate(0, 1, -1)}
}

// ParsePeriod reads YYYY-MM-DD bounds.
func ParsePeriod(start, end string) (Period, error) {
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return Period{}, fmt.Errorf("parse start date: %w", err)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return Period{}, fmt.Errorf("parse end date: %w", err)
	}
	if e.Before(s) {
		return Period{}, fmt.Errorf("end date %s is before start date %s", end, start)
	}
	return Period{Start: s, End: e}, nil
}

// Label is YYYY-MM for single-month periods and start..end otherwise.
func (p Period) Label() string {
	if p.Start.Day() == 1 && p.End.Equal(p.Start.AddDate(0, 1, -1)) {
		return p.Start.Format("2006-01")
	}
	return p.Start.Format(time.DateOnly) + ".." + p.End.Format(time.DateOnly)
}

// bounds returns the half-open timestamp range used in SQL.
func (p Period) bounds() (time.Time, time.Time) {
	return p.Start, p.End.AddDate(0, 0, 1)
}

type TermTotal struct {
	Keyword *string `json:"keyword"`
	Total   float64 `json:"total"`
	Count   int     `json:"tx_count"`
}

type CategoryTotal struct {
	ExpType string  `json:"exp_type"`
	Total   float64 `json:"total"`
	Count   int     `json:"count"`
}

type MerchantTotal struct {
	Merchant string  `json:"merchant"`
	Total    float64 `json:"total"`
	Count    int     `json:"count"`
}

type DayTotal struct {
	Day   string  `json:"day"`
	Total float64 `json:"total"`
}

type LargeTransaction struct {
	ID         int64      `json:"id"`
	TxDatetime *time.Time `json:"tx_datetime"`
	ExpType    string     `json:"exp_type"`
	Amount     float64    `json:"total_amount"`
	Note       string     `json:"note"`
}

// Reader runs the aggregate queries behind answers and reports.
type Reader interface {
	SumByTerm(ctx context.Context, keyword *string, p Period) (TermTotal, error)
	CategorySummary(ctx context.Context, p Period) ([]CategoryTotal, error)
	TopMerchants(ctx context.Context, p Period, limit int) ([]MerchantTotal, error)
	LargeTransactions(ctx context.Context, threshold float64, p Period, limit int) ([]LargeTransaction, error)
	DailyTotals(ctx context.Context, p Period) ([]DayTotal, error)
}

var _ Reader = (*Repository)(nil)

// Repository handles database queries for insights
type Repository struct {
	db expense.DBTX
}

// NewRepository creates a new insights repository
func NewRepository(db expense.DBTX) *Repository {
	return &Repository{db: db}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SumByTerm totals records whose note, type or source contains keyword.
// A nil keyword totals the whole period.
func (r *Repository) SumByTerm(ctx context.Context, keyword *string, p Period) (TermTotal, error) {
	var pattern *string
	if keyword != nil && strings.TrimSpace(*keyword) != "" {
		s := "%" + likeEscaper.Replace(strings.TrimSpace(*keyword)) + "%"
		pattern = &s
	}

	from, to := p.bounds()
	out := TermTotal{Keyword: keyword}
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(total_amount), 0), COUNT(*)
		FROM expenses
		WHERE tx_datetime >= $1
		  AND tx_datetime < $2
		  AND ($3::text IS NULL
		       OR note ILIKE $3
		       OR exp_type ILIKE $3
		       OR source ILIKE $3)
	`, from, to, pattern).Scan(&out.Total, &out.Count)
	if err != nil {
		return TermTotal{}, fmt.Errorf("sum by term: %w", err)
	}
	return out, nil
}

// CategorySummary returns per-type totals, largest absolute total first.
func (r *Repository) CategorySummary(ctx context.Context, p Period) ([]CategoryTotal, error) {
	from, to := p.bounds()
	rows, err := r.db.Query(ctx, `
		SELECT COALESCE(NULLIF(exp_type, ''), 'misc') AS exp_type,
		       SUM(total_amount) AS total,
		       COUNT(*) AS tx_count
		FROM expenses
		WHERE tx_datetime >= $1
		  AND tx_datetime < $2
		GROUP BY 1
		ORDER BY ABS(SUM(total_amount)) DESC, 1
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("category summary: %w", err)
	}
	defer rows.Close()

	out := []CategoryTotal{}
	for rows.Next() {
		var c CategoryTotal
		if err := rows.Scan(&c.ExpType, &c.Total, &c.Count); err != nil {
			return nil, fmt.Errorf("scan category total: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TopMerchants groups by note, which is where adapters put the counterparty.
func (r *Repository) TopMerchants(ctx context.Context, p Period, limit int) ([]MerchantTotal, error) {
	from, to := p.bounds()
	rows, err := r.db.Query(ctx, `
		SELECT COALESCE(NULLIF(note, ''), 'unknown') AS merchant,
		       SUM(total_amount) AS total,
		       COUNT(*) AS tx_count
		FROM expenses
		WHERE tx_datetime >= $1
		  AND tx_datetime < $2
		GROUP BY 1
		ORDER BY ABS(SUM(total_amount)) DESC, 1
		LIMIT $3
	`, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("top merchants: %w", err)
	}
	defer rows.Close()

	out := []MerchantTotal{}
	for rows.Next() {
		var m MerchantTotal
		if err := rows.Scan(&m.Merchant, &m.Total, &m.Count); err != nil {
			return nil, fmt.Errorf("scan merchant total: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// LargeTransactions returns records whose absolute amount is at least threshold.
func (r *Repository) LargeTransactions(ctx context.Context, threshold float64, p Period, limit int) ([]LargeTransaction, error) {
	from, to := p.bounds()
	rows, err := r.db.Query(ctx, `
		SELECT id, tx_datetime, exp_type, total_amount, note
		FROM expenses
		WHERE tx_datetime >= $1
		  AND tx_datetime < $2
		  AND ABS(total_amount) >= $3
		ORDER BY ABS(total_amount) DESC, id
		LIMIT $4
	`, from, to, threshold, limit)
	if err != nil {
		return nil, fmt.Errorf("large transactions: %w", err)
	}

	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (LargeTransaction, error) {
		var t LargeTransaction
		var note *string
		err := row.Scan(&t.ID, &t.TxDatetime, &t.ExpType, &t.Amount, &note)
		if note != nil {
			t.Note = *note
		}
		return t, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan large transaction: %w", err)
	}
	return out, nil
}

// DailyTotals returns one entry per day that has records, in day order.
func (r *Repository) DailyTotals(ctx context.Context, p Period) ([]DayTotal, error) {
	from, to := p.bounds()
	rows, err := r.db.Query(ctx, `
		SELECT to_char(tx_datetime, 'DD') AS day, SUM(total_amount) AS total
		FROM expenses
		WHERE tx_datetime >= $1
		  AND tx_datetime < $2
		GROUP BY 1
		ORDER BY 1
	`, from, to)
	if err != nil {
		return nil, fmt.Errorf("daily totals: %w", err)
	}
	defer rows.Close()

	out := []DayTotal{}
	for rows.Next() {
		var d DayTotal
		if err := rows.Scan(&d.Day, &d.Total); err != nil {
			return nil, fmt.Errorf("scan day total: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
