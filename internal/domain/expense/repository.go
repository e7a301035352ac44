package expense

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of pgxpool.Pool the store needs. pgxmock pools satisfy it too.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Writer is the write side used by the ingestion caller.
type Writer interface {
	Insert(ctx context.Context, source string, rec Record) (int64, error)
	InsertBatch(ctx context.Context, source string, recs []Record) ([]int64, error)
}

// Repository persists canonical records in Postgres.
type Repository struct {
	db DBTX
}

// NewRepository creates a new expense repository
func NewRepository(db DBTX) *Repository {
	return &Repository{db: db}
}

const selectColumns = `id, tx_datetime, exp_type, total_amount, note, source, txn_id`

// Insert writes one record and its line items in a single transaction.
func (r *Repository) Insert(ctx context.Context, source string, rec Record) (int64, error) {
	ids, err := r.InsertBatch(ctx, source, []Record{rec})
	if err != nil {
		return 0, err
	}
	return ids[0], nil
}

// InsertBatch writes all records in one transaction; either every row lands or none does.
func (r *Repository) InsertBatch(ctx context.Context, source string, recs []Record) ([]int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin insert batch: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	ids := make([]int64, 0, len(recs))
	for _, rec := range recs {
		rec = rec.WithDefaults()

		var txnID *string
		if rec.TxnID != "" {
			txnID = &rec.TxnID
		}

		var id int64
		err := tx.QueryRow(ctx, `
			INSERT INTO expenses (tx_datetime, exp_type, total_amount, note, source, txn_id)
			VALUES ($1::timestamp, $2, $3, $4, $5, $6)
			RETURNING id
		`, rec.TxDatetime, rec.ExpType, rec.TotalAmount, rec.Note, source, txnID).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("insert expense: %w", err)
		}

		for _, it := range rec.Items {
			if _, err := tx.Exec(ctx,
				`INSERT INTO expense_items (expense_id, quantity, amount) VALUES ($1, $2, $3)`,
				id, it.Quantity, it.Amount,
			); err != nil {
				return nil, fmt.Errorf("insert expense item: %w", err)
			}
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit insert batch: %w", err)
	}
	return ids, nil
}

// Recent returns the most recent stored records, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]Stored, error) {
	query := `SELECT ` + selectColumns + `
		FROM expenses
		ORDER BY tx_datetime DESC NULLS LAST, id DESC
		LIMIT $1`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent expenses: %w", err)
	}
	return scanStored(rows)
}

// ByMonth returns records whose timestamp falls in the given calendar month.
// An empty source matches every source.
func (r *Repository) ByMonth(ctx context.Context, year int, month time.Month, source string) ([]Stored, error) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	query := `SELECT ` + selectColumns + `
		FROM expenses
		WHERE tx_datetime >= $1 AND tx_datetime < $2
		  AND ($3 = '' OR lower(source) = lower($3))
		ORDER BY tx_datetime, id`

	rows, err := r.db.Query(ctx, query, start, end, source)
	if err != nil {
		return nil, fmt.Errorf("query expenses by month: %w", err)
	}
	return scanStored(rows)
}

// List pages through every stored record, newest first.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Stored, error) {
	query := `SELECT ` + selectColumns + `
		FROM expenses
		ORDER BY tx_datetime DESC NULLS LAST, id DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return scanStored(rows)
}

// DistinctVocabulary returns the distinct non-empty note, source and exp_type values.
func (r *Repository) DistinctVocabulary(ctx context.Context) ([]string, error) {
	query := `
		SELECT DISTINCT note AS val FROM expenses WHERE coalesce(note, '') <> ''
		UNION
		SELECT DISTINCT source FROM expenses WHERE coalesce(source, '') <> ''
		UNION
		SELECT DISTINCT exp_type FROM expenses WHERE coalesce(exp_type, '') <> ''
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query vocabulary: %w", err)
	}
	defer rows.Close()

	var values []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, v)
	}
	return values, rows.Err()
}

// Count returns the total number of stored records.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM expenses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return n, nil
}

func scanStored(rows pgx.Rows) ([]Stored, error) {
	defer rows.Close()

	var out []Stored
	for rows.Next() {
		var (
			s      Stored
			ts     *time.Time
			note   *string
			source *string
			txnID  *string
		)
		if err := rows.Scan(&s.ID, &ts, &s.ExpType, &s.TotalAmount, &note, &source, &txnID); err != nil {
			return nil, err
		}
		if ts != nil {
			formatted := ts.Format(DatetimeLayout)
			s.TxDatetime = &formatted
		}
		s.Note = deref(note)
		s.Source = deref(source)
		s.TxnID = deref(txnID)
		out = append(out, s)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
