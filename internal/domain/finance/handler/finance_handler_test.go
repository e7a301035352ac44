package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/monexa/internal/domain/expense"
	"github.com/FACorreiaa/monexa/internal/domain/finance"
	"github.com/FACorreiaa/monexa/internal/domain/import/normalizer"
	"github.com/FACorreiaa/monexa/internal/domain/insights"
	"github.com/FACorreiaa/monexa/pkg/metrics"
)

var september14 = time.Date(2025, time.September, 14, 10, 30, 0, 0, time.UTC)

type stubExecutor struct {
	got *finance.StructuredQuery
	err error
}

func (s *stubExecutor) Execute(_ context.Context, q finance.StructuredQuery) (*insights.Answer, error) {
	s.got = &q
	if s.err != nil {
		return nil, s.err
	}
	return &insights.Answer{Reply: "You spent ₹320.00 on 'coffee' in 2025-09 across 4 transaction(s).", Query: q}, nil
}

type memExpenses struct {
	stored          []expense.Stored
	gotLimit, gotOf int
	err             error

	monthCalls int
	gotYear    int
	gotMonth   time.Month
	gotSource  string
}

func (m *memExpenses) ByMonth(_ context.Context, year int, month time.Month, source string) ([]expense.Stored, error) {
	m.monthCalls++
	m.gotYear, m.gotMonth, m.gotSource = year, month, source
	return m.stored, m.err
}

func (m *memExpenses) List(_ context.Context, limit, offset int) ([]expense.Stored, error) {
	m.gotLimit, m.gotOf = limit, offset
	return m.stored, m.err
}

func (m *memExpenses) Insert(_ context.Context, source string, rec expense.Record) (int64, error) {
	if m.err != nil {
		return 0, m.err
	}
	id := int64(len(m.stored) + 1)
	m.stored = append(m.stored, expense.Stored{Record: rec, ID: id, Source: source})
	return id, nil
}

type memRules struct {
	rules  []normalizer.Rule
	nextID int64
}

func (m *memRules) Save(_ context.Context, keyword, category string) (*normalizer.Rule, error) {
	m.nextID++
	r := normalizer.Rule{ID: m.nextID, Keyword: strings.ToLower(keyword), Category: category}
	m.rules = append(m.rules, r)
	return &r, nil
}

func (m *memRules) List(context.Context) ([]normalizer.Rule, error) {
	return append([]normalizer.Rule(nil), m.rules...), nil
}

func (m *memRules) Delete(_ context.Context, id int64) error {
	for i, r := range m.rules {
		if r.ID == id {
			m.rules = append(m.rules[:i], m.rules[i+1:]...)
			return nil
		}
	}
	return normalizer.ErrRuleNotFound
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) Invalidate() { c.calls++ }

type fixture struct {
	handler    *FinanceHandler
	router     http.Handler
	executor   *stubExecutor
	expenses   *memExpenses
	rules      *memRules
	classifier *normalizer.Classifier
	vocabulary *countingInvalidator
}

func newFixture() *fixture {
	f := &fixture{
		executor:   &stubExecutor{},
		expenses:   &memExpenses{},
		rules:      &memRules{},
		classifier: normalizer.NewClassifier(normalizer.DefaultCategoryTables),
		vocabulary: &countingInvalidator{},
	}
	interp := finance.NewQueryInterpreter(nil, finance.WithClock(func() time.Time { return september14 }))
	f.handler = NewFinanceHandler(interp, f.executor, f.expenses, "INR", slog.New(slog.NewTextHandler(io.Discard, nil))).
		WithRules(f.rules, f.classifier).
		WithVocabulary(f.vocabulary).
		WithMetrics(metrics.New())
	f.handler.now = func() time.Time { return september14 }

	r := chi.NewRouter()
	f.handler.Routes(r)
	f.router = r
	return f
}

func (f *fixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestChat(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/v1/chat", `{"message":"How much did I spend on coffee this month?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, f.executor.got)
	assert.Equal(t, finance.IntentSumByTerm, f.executor.got.Intent)
	assert.Equal(t, "coffee", *f.executor.got.Keyword)
	assert.Equal(t, "2025-09-01", f.executor.got.StartDate)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "db", resp.Source)
	assert.Contains(t, resp.Reply, "coffee")
}

func TestChat_TextField(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/v1/chat", `{"text":"top 5 merchants"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, finance.IntentTopMerchants, f.executor.got.Intent)
}

func TestChat_EmptyMessage(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/v1/chat", `{"message":"   "}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), emptyChatReply)
	assert.Nil(t, f.executor.got)
}

func TestChat_Errors(t *testing.T) {
	f := newFixture()
	f.executor.err = errors.New("pq: relation \"expenses\" does not exist")

	rec := f.do(http.MethodPost, "/api/v1/chat", `{"message":"category summary"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "relation")

	rec = f.do(http.MethodPost, "/api/v1/chat", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestInterpret(t *testing.T) {
	f := newFixture()

	rec := f.do(http.MethodPost, "/api/v1/interpret", `{"message":"Show me transactions above 5000"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"intent":"large_txn","keyword":null,"threshold":5000,"start_date":"2025-09-01","end_date":"2025-09-30"}`,
		rec.Body.String())
	assert.Nil(t, f.executor.got, "interpret does not run the query")
}

func TestListExpenses(t *testing.T) {
	f := newFixture()
	f.expenses.stored = expense.NewGenerator(7, "INR").Stored(3, "gpay", 2025, time.September)

	rec := f.do(http.MethodGet, "/expenses/?skip=10&limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, f.expenses.gotLimit)
	assert.Equal(t, 10, f.expenses.gotOf)

	var got []expense.Stored
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 3)

	rec = f.do(http.MethodGet, "/expenses/", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultListLimit, f.expenses.gotLimit)
	assert.Equal(t, 0, f.expenses.gotOf)

	rec = f.do(http.MethodGet, "/expenses/?limit=100000", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, maxListLimit, f.expenses.gotLimit)

	for _, target := range []string{"/expenses/?skip=-1", "/expenses/?limit=0", "/expenses/?limit=ten"} {
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, target, "").Code, target)
	}
	assert.Zero(t, f.expenses.monthCalls, "unfiltered listing pages the whole store")
}

func TestListExpensesByMonth(t *testing.T) {
	t.Run("year month and source", func(t *testing.T) {
		f := newFixture()
		f.expenses.stored = expense.NewGenerator(7, "INR").Stored(5, "hdfc", 2025, time.March)

		rec := f.do(http.MethodGet, "/expenses/?year=2025&month=3&source=HDFC&skip=1&limit=2", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, f.expenses.monthCalls)
		assert.Equal(t, 2025, f.expenses.gotYear)
		assert.Equal(t, time.March, f.expenses.gotMonth)
		assert.Equal(t, "HDFC", f.expenses.gotSource)

		var got []expense.Stored
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		require.Len(t, got, 2)
		assert.Equal(t, f.expenses.stored[1].ID, got[0].ID)
	})

	t.Run("source alone defaults to current month", func(t *testing.T) {
		f := newFixture()

		rec := f.do(http.MethodGet, "/expenses/?source=gpay", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 2025, f.expenses.gotYear)
		assert.Equal(t, time.September, f.expenses.gotMonth)
		assert.Equal(t, "gpay", f.expenses.gotSource)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	})

	t.Run("month without source matches every source", func(t *testing.T) {
		f := newFixture()

		rec := f.do(http.MethodGet, "/expenses/?month=8", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, time.August, f.expenses.gotMonth)
		assert.Empty(t, f.expenses.gotSource)
	})

	t.Run("skip past the end", func(t *testing.T) {
		f := newFixture()
		f.expenses.stored = expense.NewGenerator(7, "INR").Stored(2, "gpay", 2025, time.September)

		rec := f.do(http.MethodGet, "/expenses/?month=9&skip=5", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
	})

	t.Run("invalid filters", func(t *testing.T) {
		f := newFixture()
		for _, target := range []string{"/expenses/?month=13", "/expenses/?month=0", "/expenses/?year=abc", "/expenses/?year=-1&month=2"} {
			assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, target, "").Code, target)
		}
		assert.Zero(t, f.expenses.monthCalls)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture()
		f.expenses.err = errors.New("connection reset")

		rec := f.do(http.MethodGet, "/expenses/?year=2025&month=9", "")
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection reset")
	})
}

func TestCreateExpense(t *testing.T) {
	t.Run("explicit fields", func(t *testing.T) {
		f := newFixture()

		rec := f.do(http.MethodPost, "/expenses/",
			`{"tx_datetime":"2025-09-03T09:30:00","total_amount":-6200,"note":"Rent","items":[{"quantity":1,"amount":6200}]}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		require.Len(t, f.expenses.stored, 1)
		got := f.expenses.stored[0]
		assert.Equal(t, "manual", got.Source)
		assert.Equal(t, "2025-09-03 09:30:00", got.Datetime())
		assert.Equal(t, expense.DefaultExpType, got.ExpType)
		assert.Len(t, got.Items, 1)
		assert.Equal(t, 1, f.vocabulary.calls)
	})

	t.Run("quick capture", func(t *testing.T) {
		f := newFixture()

		rec := f.do(http.MethodPost, "/expenses/", `{"raw_text":"latte at blue tokai 240"}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		got := f.expenses.stored[0]
		assert.Equal(t, -240.0, got.TotalAmount)
		assert.Equal(t, "Latte at blue tokai", got.Note)
		assert.Equal(t, "coffee", got.ExpType)
		assert.Equal(t, "2025-09-14 10:30:00", got.Datetime())
		assert.Contains(t, rec.Body.String(), `"currency":"INR"`)
	})

	t.Run("validation", func(t *testing.T) {
		f := newFixture()

		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/expenses/", `{"note":"nothing"}`).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/expenses/", `{"raw_text":"groceries"}`).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/expenses/", `{"total_amount":1,"tx_datetime":"someday"}`).Code)
		assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/expenses/", `{"total_amount":1,"colour":"red"}`).Code)
		assert.Empty(t, f.expenses.stored)
		assert.Zero(t, f.vocabulary.calls)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newFixture()
		f.expenses.err = errors.New("connection reset")

		rec := f.do(http.MethodPost, "/expenses/", `{"total_amount":-10}`)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Zero(t, f.vocabulary.calls)
	})
}

func TestCategoryRules(t *testing.T) {
	f := newFixture()
	assert.Equal(t, expense.DefaultExpType, f.classifier.Classify("NETFLIX.COM subscription"))

	rec := f.do(http.MethodPost, "/api/v1/rules", `{"keyword":"Netflix","category":"entertainment"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Contains(t, rec.Body.String(), `"keyword":"netflix"`)
	assert.Equal(t, "entertainment", f.classifier.Classify("NETFLIX.COM subscription"))

	rec = f.do(http.MethodGet, "/api/v1/rules", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var rules []normalizer.Rule
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rules))
	require.Len(t, rules, 1)

	rec = f.do(http.MethodDelete, "/api/v1/rules/1", "")
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, expense.DefaultExpType, f.classifier.Classify("NETFLIX.COM subscription"))

	assert.Equal(t, http.StatusNotFound, f.do(http.MethodDelete, "/api/v1/rules/1", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodDelete, "/api/v1/rules/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodPost, "/api/v1/rules", `{"keyword":"x"}`).Code)
}

func TestRoutes_WithoutRules(t *testing.T) {
	h := NewFinanceHandler(finance.NewQueryInterpreter(nil), &stubExecutor{}, &memExpenses{}, "INR", slog.New(slog.NewTextHandler(io.Discard, nil)))
	r := chi.NewRouter()
	h.Routes(r)

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/rules", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
