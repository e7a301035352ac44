package insights

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPeriod(t *testing.T) {
	feb := MonthPeriod(2024, time.February)
	assert.Equal(t, 29, feb.End.Day())
	assert.Equal(t, "2024-02", feb.Label())

	from, to := feb.bounds()
	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), to)

	p, err := ParsePeriod("2025-09-10", "2025-09-20")
	require.NoError(t, err)
	assert.Equal(t, "2025-09-10..2025-09-20", p.Label())

	_, err = ParsePeriod("2025-09-20", "2025-09-10")
	assert.Error(t, err)
	_, err = ParsePeriod("20/09/2025", "2025-09-10")
	assert.Error(t, err)
}

func TestRepository_SumByTerm(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := MonthPeriod(2025, time.September)
	from, to := p.bounds()
	keyword := "50%_off"

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(total_amount\), 0\), COUNT\(\*\)`).
		WithArgs(from, to, strPtr(`%50\%\_off%`)).
		WillReturnRows(pgxmock.NewRows([]string{"sum", "count"}).AddRow(-120.5, 3))

	repo := NewRepository(mock)
	got, err := repo.SumByTerm(context.Background(), &keyword, p)

	require.NoError(t, err)
	assert.InDelta(t, -120.5, got.Total, 1e-9)
	assert.Equal(t, 3, got.Count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_SumByTermWithoutKeyword(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	p := MonthPeriod(2025, time.September)
	from, to := p.bounds()

	mock.ExpectQuery(`FROM expenses`).
		WithArgs(from, to, (*string)(nil)).
		WillReturnRows(pgxmock.NewRows([]string{"sum", "count"}).AddRow(0.0, 0))

	got, err := NewRepository(mock).SumByTerm(context.Background(), nil, p)

	require.NoError(t, err)
	assert.Nil(t, got.Keyword)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_CategorySummary(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`GROUP BY 1`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"exp_type", "total", "tx_count"}).
			AddRow("groceries", -1500.0, 3).
			AddRow("misc", -20.0, 1))

	got, err := NewRepository(mock).CategorySummary(context.Background(), MonthPeriod(2025, time.September))

	require.NoError(t, err)
	assert.Equal(t, []CategoryTotal{{"groceries", -1500, 3}, {"misc", -20, 1}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_TopMerchants(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`LIMIT \$3`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), 5).
		WillReturnRows(pgxmock.NewRows([]string{"merchant", "total", "tx_count"}).AddRow("Swiggy", -900.0, 6))

	got, err := NewRepository(mock).TopMerchants(context.Background(), MonthPeriod(2025, time.September), 5)

	require.NoError(t, err)
	assert.Equal(t, []MerchantTotal{{"Swiggy", -900, 6}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_LargeTransactions(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	when := time.Date(2025, 9, 3, 9, 30, 0, 0, time.UTC)
	mock.ExpectQuery(`ABS\(total_amount\) >= \$3`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), 5000.0, 20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "tx_datetime", "exp_type", "total_amount", "note"}).
			AddRow(int64(9), &when, "rent", -6200.0, strPtr("Rent")).
			AddRow(int64(4), (*time.Time)(nil), "misc", 5100.0, (*string)(nil)))

	got, err := NewRepository(mock).LargeTransactions(context.Background(), 5000, MonthPeriod(2025, time.September), 20)

	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Rent", got[0].Note)
	assert.Equal(t, when, *got[0].TxDatetime)
	assert.Nil(t, got[1].TxDatetime)
	assert.Empty(t, got[1].Note)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepository_DailyTotals(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`to_char\(tx_datetime, 'DD'\)`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"day", "total"}).AddRow("01", -10.0).AddRow("15", -25.5))

	got, err := NewRepository(mock).DailyTotals(context.Background(), MonthPeriod(2025, time.September))

	require.NoError(t, err)
	assert.Equal(t, []DayTotal{{"01", -10}, {"15", -25.5}}, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func strPtr(s string) *string { return &s }
