// Package cron provides scheduled background jobs using robfig/cron.
package cron

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/FACorreiaa/monexa/internal/domain/dedup"
	"github.com/FACorreiaa/monexa/pkg/metrics"
)

// VocabularyLoader re-mines the keyword vocabulary.
type VocabularyLoader interface {
	Reload(ctx context.Context) error
}

// DuplicateScanner reports how many stored rows a duplicate scan would cover.
type DuplicateScanner interface {
	FindInDB(ctx context.Context) (dedup.Scan, error)
}

// Scheduler manages background scheduled jobs using robfig/cron.
type Scheduler struct {
	cron       *cron.Cron
	vocabulary VocabularyLoader
	scanner    DuplicateScanner
	metrics    *metrics.Metrics
	warmupSpec string
	logger     *slog.Logger
}

// NewScheduler creates a new job scheduler. warmupSpec is a standard
// 5-field cron expression for the vocabulary warm-up.
func NewScheduler(vocabulary VocabularyLoader, scanner DuplicateScanner, m *metrics.Metrics, warmupSpec string, logger *slog.Logger) *Scheduler {
	c := cron.New(cron.WithLogger(cron.VerbosePrintfLogger(slog.NewLogLogger(logger.Handler(), slog.LevelDebug))))

	return &Scheduler{
		cron:       c,
		vocabulary: vocabulary,
		scanner:    scanner,
		metrics:    m,
		warmupSpec: warmupSpec,
		logger:     logger,
	}
}

// Start registers the jobs and begins running them.
func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.warmupSpec, s.warmVocabulary); err != nil {
		return err
	}
	// Duplicate scan report: daily at 3:00 AM
	if _, err := s.cron.AddFunc("0 3 * * *", s.reportDuplicateScan); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("cron scheduler started",
		slog.Int("jobs", len(s.cron.Entries())),
	)
	return nil
}

// Stop gracefully stops all scheduled jobs.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("cron scheduler stopping")
	return s.cron.Stop()
}

// RunNow warms the vocabulary immediately, used at startup.
func (s *Scheduler) RunNow() {
	go s.warmVocabulary()
}

func (s *Scheduler) warmVocabulary() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	err := s.vocabulary.Reload(ctx)
	s.metrics.VocabularyWarmup(err == nil)
	if err != nil {
		s.logger.Warn("vocabulary warm-up failed", slog.Any("error", err))
		return
	}
	s.logger.Debug("vocabulary warmed", slog.Duration("elapsed", time.Since(start)))
}

func (s *Scheduler) reportDuplicateScan() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	scan, err := s.scanner.FindInDB(ctx)
	if err != nil {
		s.logger.Error("duplicate scan failed", slog.Any("error", err))
		return
	}
	s.logger.Info("duplicate scan completed", slog.Int("scanned", scan.Scanned))
}
