package finance

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"sync"
	"time"
)

// DefaultVocabularyTTL is how long a mined vocabulary is served before refreshing.
const DefaultVocabularyTTL = 300 * time.Second

// KeywordSource yields the raw strings the vocabulary is mined from.
type KeywordSource interface {
	DistinctVocabulary(ctx context.Context) ([]string, error)
}

// Vocabulary is what the query interpreter needs from the cache.
type Vocabulary interface {
	Keywords(ctx context.Context) map[string]struct{}
}

// staticSeed is always part of the vocabulary.
var staticSeed = []string{"coffee", "cafe", "starbuck", "starbucks", "tea", "latte", "espresso", "chai", "beer", "wine"}

var vocabularyStopwords = toSet(
	"the", "and", "for", "with", "from", "to", "on", "in", "at", "by", "of", "a", "an",
	"txn", "gpay", "upi", "pay", "paytm", "google", "amazon", "order", "online", "cash", "debit", "credit",
)

var vocabularyToken = regexp.MustCompile(`[A-Za-z0-9]+`)

// KeywordCache holds the known keyword set mined from stored expenses.
//
// Reads are served from memory while the set is younger than the TTL. A stale
// or empty set triggers a refresh on the calling goroutine. Concurrent callers
// may refresh at the same time; whichever finishes last wins, which is fine for
// a best-effort hint. A failed refresh keeps the previous set, or the static
// seed when there is none, and is never reported to the caller.
type KeywordCache struct {
	source KeywordSource
	ttl    time.Duration
	logger *slog.Logger
	now    func() time.Time

	mu          sync.RWMutex
	keywords    map[string]struct{}
	refreshedAt time.Time
}

// NewKeywordCache creates a cache over source. A non-positive ttl uses DefaultVocabularyTTL.
func NewKeywordCache(source KeywordSource, ttl time.Duration, logger *slog.Logger) *KeywordCache {
	if ttl <= 0 {
		ttl = DefaultVocabularyTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &KeywordCache{
		source: source,
		ttl:    ttl,
		logger: logger,
		now:    time.Now,
	}
}

// Keywords returns the current keyword set. The map is shared and must not be modified.
func (c *KeywordCache) Keywords(ctx context.Context) map[string]struct{} {
	c.mu.RLock()
	keywords, refreshedAt := c.keywords, c.refreshedAt
	c.mu.RUnlock()

	if len(keywords) > 0 && c.now().Sub(refreshedAt) < c.ttl {
		return keywords
	}
	return c.Refresh(ctx)
}

// Contains reports whether word, lowercased, is a known keyword.
func (c *KeywordCache) Contains(ctx context.Context, word string) bool {
	_, ok := c.Keywords(ctx)[strings.ToLower(strings.TrimSpace(word))]
	return ok
}

// Invalidate forces the next Keywords call to refresh.
func (c *KeywordCache) Invalidate() {
	c.mu.Lock()
	c.refreshedAt = time.Time{}
	c.mu.Unlock()
}

// Refresh mines the source now and returns the published set.
func (c *KeywordCache) Refresh(ctx context.Context) map[string]struct{} {
	_ = c.Reload(ctx)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.keywords
}

// Reload is Refresh for callers that want to know whether mining failed.
// The fallback set is published either way.
func (c *KeywordCache) Reload(ctx context.Context) error {
	values, err := c.source.DistinctVocabulary(ctx)
	if err != nil {
		c.mu.Lock()
		if len(c.keywords) == 0 {
			c.keywords = seedKeywords()
		}
		c.refreshedAt = c.now()
		n := len(c.keywords)
		c.mu.Unlock()

		c.logger.WarnContext(ctx, "vocabulary refresh failed, serving last known keywords",
			slog.Int("keywords", n),
			slog.Any("error", err))
		return fmt.Errorf("load vocabulary: %w", err)
	}

	keywords := seedKeywords()
	for _, v := range values {
		for _, tok := range vocabularyToken.FindAllString(v, -1) {
			tok = strings.ToLower(tok)
			if validKeyword(tok) {
				keywords[tok] = struct{}{}
			}
		}
	}

	c.mu.Lock()
	c.keywords = keywords
	c.refreshedAt = c.now()
	c.mu.Unlock()

	c.logger.DebugContext(ctx, "vocabulary refreshed",
		slog.Int("sources", len(values)),
		slog.Int("keywords", len(keywords)))
	return nil
}

func validKeyword(tok string) bool {
	if len(tok) < 3 {
		return false
	}
	if _, stop := vocabularyStopwords[tok]; stop {
		return false
	}
	return strings.Trim(tok, "0123456789") != ""
}

func seedKeywords() map[string]struct{} {
	return toSet(staticSeed...)
}

func toSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}
