// Package handler serves the monthly spending reports over HTTP.
package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/FACorreiaa/monexa/internal/domain/insights"
	"github.com/FACorreiaa/monexa/pkg/httpx"
)

// ReportService is the part of insights.Service the handler uses.
type ReportService interface {
	MonthlyReport(ctx context.Context, year, month int) (*insights.MonthlyReport, error)
	CompareMonths(ctx context.Context, y1, m1, y2, m2 int) (*insights.Comparison, error)
	AmountForKeyword(ctx context.Context, keyword string, year, month int) (*insights.KeywordAmount, error)
}

// InsightsHandler serves /reports and /query_amount.
type InsightsHandler struct {
	svc    ReportService
	logger *slog.Logger
	now    func() time.Time
}

// NewInsightsHandler constructs a new handler.
func NewInsightsHandler(svc ReportService, logger *slog.Logger) *InsightsHandler {
	return &InsightsHandler{svc: svc, logger: logger, now: time.Now}
}

func (h *InsightsHandler) Routes(r chi.Router) {
	r.Get("/reports/monthly", h.MonthlyReport)
	r.Get("/reports/compare", h.CompareMonths)
	r.Post("/query_amount", h.QueryAmount)
}

// MonthlyReport handles GET /reports/monthly?year=2025&month=9.
func (h *InsightsHandler) MonthlyReport(w http.ResponseWriter, r *http.Request) {
	params, err := intParams(r, "year", "month")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.svc.MonthlyReport(r.Context(), params[0], params[1])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, report)
}

// CompareMonths handles GET /reports/compare?y1=2025&m1=8&y2=2025&m2=9.
func (h *InsightsHandler) CompareMonths(w http.ResponseWriter, r *http.Request) {
	params, err := intParams(r, "y1", "m1", "y2", "m2")
	if err != nil {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	cmp, err := h.svc.CompareMonths(r.Context(), params[0], params[1], params[2], params[3])
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, cmp)
}

type queryAmountRequest struct {
	Keyword string `json:"keyword"`
	Year    *int   `json:"year"`
	Month   *int   `json:"month"`
}

// QueryAmount handles POST /query_amount with {"keyword":"coffee","year":2025,"month":9}.
// Year and month default to the current month.
func (h *InsightsHandler) QueryAmount(w http.ResponseWriter, r *http.Request) {
	var req queryAmountRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	now := h.now()
	year, month := now.Year(), int(now.Month())
	if req.Year != nil {
		year = *req.Year
	}
	if req.Month != nil {
		month = *req.Month
	}

	amount, err := h.svc.AmountForKeyword(r.Context(), req.Keyword, year, month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, amount)
}

func (h *InsightsHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, insights.ErrInvalidMonth) {
		httpx.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.ErrorContext(r.Context(), "report failed", slog.String("path", r.URL.Path), slog.Any("error", err))
	httpx.WriteError(w, http.StatusInternalServerError, "failed to build report")
}

func intParams(r *http.Request, names ...string) ([]int, error) {
	out := make([]int, len(names))
	q := r.URL.Query()
	for i, name := range names {
		raw := q.Get(name)
		if raw == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return nil, fmt.Errorf("%s must be an integer", name)
		}
		out[i] = v
	}
	return out, nil
}
