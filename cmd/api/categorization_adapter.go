package api

import (
	"context"
	"log/slog"
	"time"

	"github.com/FACorreiaa/monexa/internal/domain/import/normalizer"
)

// ruleLoader is the part of normalizer.RuleStore needed at startup.
type ruleLoader interface {
	LoadInto(ctx context.Context, c *normalizer.Classifier) error
}

// newClassifier builds the classifier shared by the generic source adapter and
// manual entries, with the stored custom rules installed ahead of the
// built-in keyword tables. Without the rules it still classifies from the tables.
func newClassifier(ctx context.Context, rules ruleLoader, logger *slog.Logger) *normalizer.Classifier {
	classifier := normalizer.NewClassifier(normalizer.DefaultCategoryTables)

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := rules.LoadInto(ctx, classifier); err != nil {
		logger.Warn("failed to load custom category rules", slog.Any("error", err))
	}
	return classifier
}
