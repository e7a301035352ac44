package normalizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/FACorreiaa/monexa/internal/domain/expense"
)

// ErrRuleNotFound is returned when deleting a rule that does not exist.
var ErrRuleNotFound = errors.New("category rule not found")

// Rule is a user-defined keyword to category mapping.
type Rule struct {
	ID        int64     `json:"id"`
	Keyword   string    `json:"keyword"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"created_at"`
}

// RuleStore manages custom category rules in the database
type RuleStore struct {
	db expense.DBTX
}

// NewRuleStore creates a new rule store
func NewRuleStore(db expense.DBTX) *RuleStore {
	return &RuleStore{db: db}
}

// Save creates a rule or updates the category of an existing keyword.
func (s *RuleStore) Save(ctx context.Context, keyword, category string) (*Rule, error) {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	category = strings.TrimSpace(category)
	if keyword == "" || category == "" {
		return nil, fmt.Errorf("keyword and category are required")
	}

	query := `
		INSERT INTO category_rules (keyword, category)
		VALUES ($1, $2)
		ON CONFLICT (keyword) DO UPDATE SET
			category = EXCLUDED.category
		RETURNING id, keyword, category, created_at
	`

	var r Rule
	if err := s.db.QueryRow(ctx, query, keyword, category).Scan(&r.ID, &r.Keyword, &r.Category, &r.CreatedAt); err != nil {
		return nil, fmt.Errorf("save category rule: %w", err)
	}
	return &r, nil
}

// List returns all rules, newest first.
func (s *RuleStore) List(ctx context.Context) ([]Rule, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, keyword, category, created_at
		FROM category_rules
		ORDER BY created_at DESC, id DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list category rules: %w", err)
	}
	defer rows.Close()

	var rules []Rule
	for rows.Next() {
		var r Rule
		if err := rows.Scan(&r.ID, &r.Keyword, &r.Category, &r.CreatedAt); err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, rows.Err()
}

// Delete removes a rule.
func (s *RuleStore) Delete(ctx context.Context, id int64) error {
	result, err := s.db.Exec(ctx, `DELETE FROM category_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete category rule: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRuleNotFound
	}
	return nil
}

// LoadInto reads every rule and installs them on the classifier.
func (s *RuleStore) LoadInto(ctx context.Context, c *Classifier) error {
	rules, err := s.List(ctx)
	if err != nil {
		return err
	}
	c.SetRules(rules)
	return nil
}
