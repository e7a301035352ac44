package normalizer

import (
	"strings"
	"sync"

	"github.com/cloudflare/ahocorasick"

	"github.com/FACorreiaa/monexa/internal/domain/expense"
)

// CategoryTable maps a set of keywords to one spending category.
type CategoryTable struct {
	Category string
	Keywords []string
}

// DefaultCategoryTables are checked in order; the first table with a hit wins.
var DefaultCategoryTables = []CategoryTable{
	{Category: "coffee", Keywords: []string{"coffee", "cafe", "starbucks", "barista", "latte", "espresso"}},
	{Category: "tea", Keywords: []string{"tea", "chai"}},
	{Category: "groceries", Keywords: []string{
		"rice", "wheat", "tomato", "onion", "oil", "sugar", "milk", "bread", "butter", "fruits", "vegetables",
	}},
}

// Classifier infers a category from a free-text description.
//
// All keywords are compiled into one Aho-Corasick automaton so a description is
// scanned once regardless of how many keywords exist. Every keyword carries the
// rank of its table and the lowest rank among the hits is chosen, which gives
// the same answer as checking the tables one after another.
// Custom rules rank ahead of every built-in table.
type Classifier struct {
	mu         sync.Mutex
	tables     []CategoryTable
	matcher    *ahocorasick.Matcher
	patterns   []string
	ranks      []int
	categories []string
}

// NewClassifier builds a classifier over the given tables.
func NewClassifier(tables []CategoryTable) *Classifier {
	c := &Classifier{tables: tables}
	c.build(nil)
	return c
}

// SetRules rebuilds the automaton with custom rules placed ahead of the
// built-in tables. Rules are ranked in the order given.
func (c *Classifier) SetRules(rules []Rule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.build(rules)
}

func (c *Classifier) build(rules []Rule) {
	index := make(map[string]int)
	c.patterns = c.patterns[:0]
	c.ranks = c.ranks[:0]
	c.categories = c.categories[:0]

	add := func(keyword, category string, rank int) {
		keyword = strings.ToLower(strings.TrimSpace(keyword))
		if keyword == "" {
			return
		}
		if _, exists := index[keyword]; exists {
			// lower rank was added first
			return
		}
		index[keyword] = len(c.patterns)
		c.patterns = append(c.patterns, keyword)
		c.ranks = append(c.ranks, rank)
		c.categories = append(c.categories, category)
	}

	for i, r := range rules {
		add(r.Keyword, r.Category, i)
	}
	for i, t := range c.tables {
		for _, kw := range t.Keywords {
			add(kw, t.Category, len(rules)+i)
		}
	}

	if len(c.patterns) == 0 {
		c.matcher = nil
		return
	}
	c.matcher = ahocorasick.NewStringMatcher(c.patterns)
}

// Classify returns the inferred category for text, or expense.DefaultExpType.
func (c *Classifier) Classify(text string) string {
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return expense.DefaultExpType
	}

	// the matcher keeps per-call scratch state, so matches are serialized
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.matcher == nil {
		return expense.DefaultExpType
	}

	best := -1
	for _, idx := range c.matcher.Match([]byte(text)) {
		if idx < 0 || idx >= len(c.ranks) {
			continue
		}
		if best < 0 || c.ranks[idx] < c.ranks[best] {
			best = idx
		}
	}
	if best < 0 {
		return expense.DefaultExpType
	}
	return c.categories[best]
}
