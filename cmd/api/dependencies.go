package api

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/FACorreiaa/monexa/internal/domain/dedup"
	"github.com/FACorreiaa/monexa/internal/domain/expense"
	"github.com/FACorreiaa/monexa/internal/domain/finance"
	financehandler "github.com/FACorreiaa/monexa/internal/domain/finance/handler"
	importhandler "github.com/FACorreiaa/monexa/internal/domain/import/handler"
	"github.com/FACorreiaa/monexa/internal/domain/import/normalizer"
	"github.com/FACorreiaa/monexa/internal/domain/import/parser"
	importservice "github.com/FACorreiaa/monexa/internal/domain/import/service"
	"github.com/FACorreiaa/monexa/internal/domain/insights"
	insightshandler "github.com/FACorreiaa/monexa/internal/domain/insights/handler"

	"github.com/FACorreiaa/monexa/pkg/config"
	"github.com/FACorreiaa/monexa/pkg/cron"
	"github.com/FACorreiaa/monexa/pkg/db"
	"github.com/FACorreiaa/monexa/pkg/metrics"
	"github.com/FACorreiaa/monexa/pkg/storage"
)

// Dependencies holds all application dependencies
type Dependencies struct {
	Config  *config.Config
	DB      *db.DB
	Logger  *slog.Logger
	Metrics *metrics.Metrics

	// Repositories
	ExpenseRepo  *expense.Repository
	RuleStore    *normalizer.RuleStore
	InsightsRepo *insights.Repository

	// Services
	Classifier       *normalizer.Classifier
	Registry         *parser.Registry
	DedupEngine      *dedup.Engine
	Vocabulary       *finance.KeywordCache
	QueryInterpreter *finance.QueryInterpreter
	ImportService    *importservice.ImportService
	InsightsService  *insights.Service
	Archive          storage.Archive
	Scheduler        *cron.Scheduler

	// Handlers
	FinanceHandler  *financehandler.FinanceHandler
	ImportHandler   *importhandler.ImportHandler
	InsightsHandler *insightshandler.InsightsHandler
}

// InitDependencies initializes all application dependencies
func InitDependencies(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}
	if cfg.Observability.MetricsEnabled {
		deps.Metrics = metrics.New()
	}

	if err := deps.initDatabase(); err != nil {
		return nil, fmt.Errorf("failed to init database: %w", err)
	}

	if err := deps.initRepositories(); err != nil {
		return nil, fmt.Errorf("failed to init repositories: %w", err)
	}

	if err := deps.initServices(ctx); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init services: %w", err)
	}

	if err := deps.initHandlers(); err != nil {
		deps.Cleanup()
		return nil, fmt.Errorf("failed to init handlers: %w", err)
	}

	logger.Info("all dependencies initialized successfully")

	return deps, nil
}

// initDatabase initializes the database connection and runs migrations
func (d *Dependencies) initDatabase() error {
	database, err := db.New(db.Config{
		DSN:             d.Config.Database.DSN(),
		MaxConns:        int32(d.Config.Database.MaxConns),
		MinConns:        2,
		MaxConnLifetime: 5 * time.Minute,
		MaxConnIdleTime: 10 * time.Minute,
	}, d.Logger)
	if err != nil {
		return err
	}

	d.DB = database

	if err := d.DB.RunMigrations(); err != nil {
		d.DB.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	d.Logger.Info("database connected and migrations completed successfully")
	return nil
}

// initRepositories initializes all repository layer dependencies
func (d *Dependencies) initRepositories() error {
	d.ExpenseRepo = expense.NewRepository(d.DB.Pool)
	d.RuleStore = normalizer.NewRuleStore(d.DB.Pool)
	d.InsightsRepo = insights.NewRepository(d.DB.Pool)

	d.Logger.Info("repositories initialized")
	return nil
}

// initServices initializes all service layer dependencies
func (d *Dependencies) initServices(ctx context.Context) error {
	d.Classifier = newClassifier(ctx, d.RuleStore, d.Logger)
	d.Registry = parser.NewRegistry(d.Classifier)

	d.DedupEngine = dedup.NewEngine(d.ExpenseRepo, dedup.Config{
		Window:              d.Config.Dedup.Window,
		AmountEpsilon:       d.Config.Dedup.AmountEpsilon,
		SimilarityThreshold: d.Config.Dedup.SimilarityThreshold,
	}, d.Logger)

	d.Vocabulary = finance.NewKeywordCache(d.ExpenseRepo, d.Config.Vocabulary.TTL, d.Logger)
	d.QueryInterpreter = finance.NewQueryInterpreter(d.Vocabulary)

	archive, err := storage.NewLocalArchive(d.Config.Ingest.ArchivePath)
	if err != nil {
		return fmt.Errorf("failed to init upload archive: %w", err)
	}
	d.Archive = archive

	// Import service with dedup, archive and vocabulary invalidation wired in
	d.ImportService = importservice.NewImportService(d.Registry, d.ExpenseRepo, d.Logger).
		WithDuplicateChecker(d.DedupEngine).
		WithArchive(d.Archive).
		WithVocabulary(d.Vocabulary).
		WithMetrics(d.Metrics)

	d.InsightsService = insights.NewService(d.InsightsRepo, d.Config.Currency, d.Logger)

	d.Scheduler = cron.NewScheduler(d.Vocabulary, d.DedupEngine, d.Metrics, d.Config.Vocabulary.WarmupSpec, d.Logger)

	d.Logger.Info("services initialized")
	return nil
}

// initHandlers initializes all handler dependencies
func (d *Dependencies) initHandlers() error {
	d.FinanceHandler = financehandler.NewFinanceHandler(d.QueryInterpreter, d.InsightsService, d.ExpenseRepo, d.Config.Currency, d.Logger).
		WithRules(d.RuleStore, d.Classifier).
		WithVocabulary(d.Vocabulary).
		WithMetrics(d.Metrics)
	d.ImportHandler = importhandler.NewImportHandler(d.ImportService, d.Config.Ingest.MaxUploadBytes, d.Logger)
	d.InsightsHandler = insightshandler.NewInsightsHandler(d.InsightsService, d.Logger)

	d.Logger.Info("handlers initialized")
	return nil
}

// Cleanup closes all resources
func (d *Dependencies) Cleanup() {
	if d.DB != nil {
		d.DB.Close()
	}
	d.Logger.Info("cleanup completed")
}
