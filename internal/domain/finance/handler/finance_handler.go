// Package handler serves the spending chat, the expense list and the custom
// category rules over HTTP.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/monexa/internal/domain/expense"
	"github.com/FACorreiaa/monexa/internal/domain/finance"
	"github.com/FACorreiaa/monexa/internal/domain/import/normalizer"
	"github.com/FACorreiaa/monexa/internal/domain/insights"
	"github.com/FACorreiaa/monexa/pkg/httpx"
	"github.com/FACorreiaa/monexa/pkg/metrics"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500

	// manualSource is the source recorded for expenses entered by hand.
	manualSource = "manual"

	emptyChatReply = "Please send a message in the request body (message or text field)."
)

// Interpreter turns a question into a structured query.
type Interpreter interface {
	Interpret(ctx context.Context, text string) finance.StructuredQuery
}

// QueryExecutor answers a structured query; insights.Service implements it.
type QueryExecutor interface {
	Execute(ctx context.Context, q finance.StructuredQuery) (*insights.Answer, error)
}

// ExpenseStore is the part of the expense repository the handler uses.
type ExpenseStore interface {
	List(ctx context.Context, limit, offset int) ([]expense.Stored, error)
	ByMonth(ctx context.Context, year int, month time.Month, source string) ([]expense.Stored, error)
	Insert(ctx context.Context, source string, rec expense.Record) (int64, error)
}

// RuleStore persists custom category rules.
type RuleStore interface {
	Save(ctx context.Context, keyword, category string) (*normalizer.Rule, error)
	List(ctx context.Context) ([]normalizer.Rule, error)
	Delete(ctx context.Context, id int64) error
}

// Categorizer is the in-memory classifier the rules are installed on.
type Categorizer interface {
	Classify(text string) string
	SetRules(rules []normalizer.Rule)
}

// FinanceHandler serves the chat, expense and rule endpoints.
type FinanceHandler struct {
	interpreter Interpreter
	answers     QueryExecutor
	expenses    ExpenseStore
	rules       RuleStore
	classifier  Categorizer
	vocabulary  interface{ Invalidate() }
	metrics     *metrics.Metrics
	currency    string
	logger      *slog.Logger
	now         func() time.Time
}

// NewFinanceHandler constructs a new handler.
func NewFinanceHandler(interpreter Interpreter, answers QueryExecutor, expenses ExpenseStore, currency string, logger *slog.Logger) *FinanceHandler {
	return &FinanceHandler{
		interpreter: interpreter,
		answers:     answers,
		expenses:    expenses,
		currency:    currency,
		logger:      logger,
		now:         time.Now,
	}
}

// WithRules enables the category rule endpoints. Every change is installed on classifier.
func (h *FinanceHandler) WithRules(rules RuleStore, classifier Categorizer) *FinanceHandler {
	h.rules = rules
	h.classifier = classifier
	return h
}

// WithVocabulary registers the keyword cache to invalidate after manual entries.
func (h *FinanceHandler) WithVocabulary(v interface{ Invalidate() }) *FinanceHandler {
	h.vocabulary = v
	return h
}

func (h *FinanceHandler) WithMetrics(m *metrics.Metrics) *FinanceHandler {
	h.metrics = m
	return h
}

func (h *FinanceHandler) Routes(r chi.Router) {
	r.Post("/api/v1/chat", h.Chat)
	r.Post("/api/v1/interpret", h.Interpret)

	r.Get("/expenses/", h.ListExpenses)
	r.Post("/expenses/", h.CreateExpense)

	if h.rules != nil {
		r.Get("/api/v1/rules", h.ListCategoryRules)
		r.Post("/api/v1/rules", h.CreateCategoryRule)
		r.Delete("/api/v1/rules/{id}", h.DeleteCategoryRule)
	}
}

type chatRequest struct {
	Message string `json:"message"`
	Text    string `json:"text"`
}

func (c chatRequest) question() string {
	if s := strings.TrimSpace(c.Message); s != "" {
		return s
	}
	return strings.TrimSpace(c.Text)
}

type chatResponse struct {
	Reply  string                   `json:"reply"`
	Source string                   `json:"source"`
	Query  *finance.StructuredQuery `json:"query,omitempty"`
	Data   any                      `json:"data,omitempty"`
}

// Chat answers a spending question in plain text.
func (h *FinanceHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	text := req.question()
	if text == "" {
		httpx.WriteJSON(w, http.StatusOK, chatResponse{Reply: emptyChatReply, Source: "db"})
		return
	}

	q := h.interpret(r.Context(), text)
	answer, err := h.answers.Execute(r.Context(), q)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "chat query failed",
			slog.String("intent", string(q.Intent)),
			slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to answer question")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, chatResponse{
		Reply:  answer.Reply,
		Source: "db",
		Query:  &answer.Query,
		Data:   answer.Data,
	})
}

// Interpret returns the structured query for a question without running it.
func (h *FinanceHandler) Interpret(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, h.interpret(r.Context(), req.question()))
}

func (h *FinanceHandler) interpret(ctx context.Context, text string) finance.StructuredQuery {
	q := h.interpreter.Interpret(ctx, text)
	h.metrics.QueryInterpreted(string(q.Intent))
	h.logger.DebugContext(ctx, "question interpreted",
		slog.String("intent", string(q.Intent)),
		slog.String("start_date", q.StartDate))
	return q
}

// ListExpenses handles GET /expenses/?skip=0&limit=50.
func (h *FinanceHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	skip, err := queryInt(r, "skip", 0)
	if err != nil || skip < 0 {
		httpx.WriteError(w, http.StatusBadRequest, "skip must be a non-negative integer")
		return
	}
	limit, err := queryInt(r, "limit", defaultListLimit)
	if err != nil || limit <= 0 {
		httpx.WriteError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	limit = min(limit, maxListLimit)

	q := r.URL.Query()
	if q.Has("year") || q.Has("month") || q.Has("source") {
		h.listMonth(w, r, skip, limit)
		return
	}

	rows, err := h.expenses.List(r.Context(), limit, skip)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list expenses", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rows)
}

// listMonth serves GET /expenses/?year=&month=&source=. Missing year or month
// default to the current one; an empty source matches every source.
func (h *FinanceHandler) listMonth(w http.ResponseWriter, r *http.Request, skip, limit int) {
	now := h.now()
	year, err := queryInt(r, "year", now.Year())
	if err != nil || year < 1 {
		httpx.WriteError(w, http.StatusBadRequest, "year must be a positive integer")
		return
	}
	month, err := queryInt(r, "month", int(now.Month()))
	if err != nil || month < 1 || month > 12 {
		httpx.WriteError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}
	source := strings.TrimSpace(r.URL.Query().Get("source"))

	rows, err := h.expenses.ByMonth(r.Context(), year, time.Month(month), source)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list expenses by month",
			slog.Int("year", year),
			slog.Int("month", month),
			slog.String("source", source),
			slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list expenses")
		return
	}

	if rows == nil {
		rows = []expense.Stored{}
	}
	rows = rows[min(skip, len(rows)):]
	rows = rows[:min(limit, len(rows))]
	httpx.WriteJSON(w, http.StatusOK, rows)
}

type createExpenseRequest struct {
	// RawText is a one-line capture such as "Coffee 120"; it fills the fields left empty.
	RawText     string         `json:"raw_text"`
	TxDatetime  string         `json:"tx_datetime"`
	ExpType     string         `json:"exp_type"`
	TotalAmount *float64       `json:"total_amount"`
	Note        string         `json:"note"`
	Items       []expense.Item `json:"items"`
}

type createExpenseResponse struct {
	expense.Stored
	Currency string `json:"currency"`
}

// CreateExpense stores one hand-entered expense.
func (h *FinanceHandler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	var req createExpenseRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rec, currency, err := h.buildRecord(req)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	id, err := h.expenses.Insert(r.Context(), manualSource, rec)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to create expense", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create expense")
		return
	}
	if h.vocabulary != nil {
		h.vocabulary.Invalidate()
	}

	httpx.WriteJSON(w, http.StatusCreated, createExpenseResponse{
		Stored:   expense.Stored{Record: rec, ID: id, Source: manualSource},
		Currency: currency,
	})
}

func (h *FinanceHandler) buildRecord(req createExpenseRequest) (expense.Record, string, error) {
	rec := expense.Record{
		ExpType: strings.ToLower(strings.TrimSpace(req.ExpType)),
		Note:    strings.TrimSpace(req.Note),
		Items:   req.Items,
	}
	currency := h.currency

	switch {
	case req.TotalAmount != nil:
		rec.TotalAmount = *req.TotalAmount
	case strings.TrimSpace(req.RawText) != "":
		entry := parseQuickEntry(req.RawText, h.currency)
		if !entry.HasValue {
			return rec, "", errors.New("raw_text has no amount")
		}
		rec.TotalAmount = entry.Amount
		currency = entry.Currency
		if rec.Note == "" {
			rec.Note = entry.Note
		}
	default:
		return rec, "", errors.New("total_amount or raw_text is required")
	}

	if req.TxDatetime != "" {
		ts, ok := normalizer.NormalizeDatetime(req.TxDatetime)
		if !ok {
			return rec, "", errors.New("tx_datetime is not a recognised date")
		}
		rec.TxDatetime = &ts
	} else {
		rec.TxDatetime = expense.StringPtr(h.now().Format(expense.DatetimeLayout))
	}

	if rec.ExpType == "" && h.classifier != nil {
		rec.ExpType = h.classifier.Classify(rec.Note)
	}
	return rec.WithDefaults(), currency, nil
}

type createRuleRequest struct {
	Keyword  string `json:"keyword"`
	Category string `json:"category"`
}

// CreateCategoryRule creates or updates a keyword rule and applies it to new imports.
func (h *FinanceHandler) CreateCategoryRule(w http.ResponseWriter, r *http.Request) {
	var req createRuleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Keyword) == "" || strings.TrimSpace(req.Category) == "" {
		httpx.WriteError(w, http.StatusBadRequest, "keyword and category are required")
		return
	}

	rule, err := h.rules.Save(r.Context(), req.Keyword, req.Category)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to save category rule", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to create rule")
		return
	}
	h.reloadRules(r.Context())

	httpx.WriteJSON(w, http.StatusCreated, rule)
}

// ListCategoryRules lists every custom rule.
func (h *FinanceHandler) ListCategoryRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.rules.List(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list category rules", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to list rules")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, rules)
}

// DeleteCategoryRule removes a rule by id.
func (h *FinanceHandler) DeleteCategoryRule(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid rule id")
		return
	}

	if err := h.rules.Delete(r.Context(), id); err != nil {
		if errors.Is(err, normalizer.ErrRuleNotFound) {
			httpx.WriteError(w, http.StatusNotFound, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to delete category rule", slog.Any("error", err))
		httpx.WriteError(w, http.StatusInternalServerError, "failed to delete rule")
		return
	}
	h.reloadRules(r.Context())

	w.WriteHeader(http.StatusNoContent)
}

// reloadRules installs the stored rules on the classifier. On failure the
// classifier keeps its previous rules.
func (h *FinanceHandler) reloadRules(ctx context.Context) {
	rules, err := h.rules.List(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to reload category rules", slog.Any("error", err))
		return
	}
	h.classifier.SetRules(rules)
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}
