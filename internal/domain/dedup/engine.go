// Package dedup flags probable duplicates between an incoming import batch and
// recently stored expenses. It never merges or deletes anything; callers
// decide what to do with the reported candidates.
package dedup

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/monexa/internal/domain/expense"
)

// StoreReader is the part of the expense store the engine reads.
type StoreReader interface {
	Recent(ctx context.Context, limit int) ([]expense.Stored, error)
	Count(ctx context.Context) (int, error)
}

// Config holds the matching thresholds.
type Config struct {
	// Window is how many of the most recent stored records each preview scans.
	Window int
	// AmountEpsilon is the exclusive upper bound on the absolute amount difference.
	AmountEpsilon float64
	// SimilarityThreshold is the exclusive lower bound on note similarity.
	SimilarityThreshold float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		Window:              500,
		AmountEpsilon:       1.0,
		SimilarityThreshold: 0.6,
	}
}

// Candidate is a stored record that probably duplicates an incoming one.
type Candidate struct {
	Existing   expense.Stored `json:"existing"`
	Similarity float64        `json:"similarity"`
}

// Result pairs an incoming record with its candidates.
type Result struct {
	Incoming expense.Record `json:"incoming"`
	Matches  []Candidate    `json:"matches"`
}

// Scan is the outcome of the store diagnostic.
type Scan struct {
	Scanned int `json:"scanned"`
}

// Engine compares incoming records against a bounded window of stored ones.
type Engine struct {
	store  StoreReader
	cfg    Config
	logger *slog.Logger
	tracer trace.Tracer
}

// NewEngine creates an engine. Non-positive config values fall back to DefaultConfig.
func NewEngine(store StoreReader, cfg Config, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.AmountEpsilon <= 0 {
		cfg.AmountEpsilon = def.AmountEpsilon
	}
	if cfg.SimilarityThreshold <= 0 {
		cfg.SimilarityThreshold = def.SimilarityThreshold
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		cfg:    cfg,
		logger: logger,
		tracer: otel.Tracer("github.com/FACorreiaa/monexa/internal/domain/dedup"),
	}
}

// Config returns the effective thresholds.
func (e *Engine) Config() Config { return e.cfg }

// Preview loads the recent window once and reports, for each incoming record,
// every stored record within the amount epsilon whose note is similar enough.
func (e *Engine) Preview(ctx context.Context, incoming []expense.Record) ([]Result, error) {
	ctx, span := e.tracer.Start(ctx, "dedup.Preview")
	defer span.End()

	existing, err := e.store.Recent(ctx, e.cfg.Window)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load recent expenses: %w", err)
	}

	eps := decimal.NewFromFloat(e.cfg.AmountEpsilon)
	results := make([]Result, 0, len(incoming))
	flagged := 0
	for _, rec := range incoming {
		matches := e.match(rec, existing, eps)
		if len(matches) > 0 {
			flagged++
		}
		results = append(results, Result{Incoming: rec, Matches: matches})
	}

	span.SetAttributes(
		attribute.Int("dedup.incoming", len(incoming)),
		attribute.Int("dedup.window", len(existing)),
		attribute.Int("dedup.flagged", flagged),
	)
	e.logger.DebugContext(ctx, "dedup preview complete",
		slog.Int("incoming", len(incoming)),
		slog.Int("scanned", len(existing)),
		slog.Int("flagged", flagged))

	return results, nil
}

func (e *Engine) match(rec expense.Record, existing []expense.Stored, eps decimal.Decimal) []Candidate {
	matches := []Candidate{}
	amount := decimal.NewFromFloat(rec.TotalAmount)
	for _, s := range existing {
		if amount.Sub(decimal.NewFromFloat(s.TotalAmount)).Abs().GreaterThanOrEqual(eps) {
			continue
		}
		sim := Similarity(rec.Note, s.Note)
		if sim > e.cfg.SimilarityThreshold {
			matches = append(matches, Candidate{Existing: s, Similarity: sim})
		}
	}
	return matches
}

// FindInDB reports how many records are stored.
func (e *Engine) FindInDB(ctx context.Context) (Scan, error) {
	n, err := e.store.Count(ctx)
	if err != nil {
		return Scan{}, fmt.Errorf("count expenses: %w", err)
	}
	return Scan{Scanned: n}, nil
}

// Similarity is the Ratcliff/Obershelp ratio 2*M/T of the lowercased, trimmed
// strings, compared character by character. Two empty strings score 1.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	return difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, "")).Ratio()
}
