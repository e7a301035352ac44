package finance

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu     sync.Mutex
	values []string
	err    error
	calls  int
}

func (f *fakeSource) DistinctVocabulary(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.values, f.err
}

func (f *fakeSource) set(values []string, err error) {
	f.mu.Lock()
	f.values, f.err = values, err
	f.mu.Unlock()
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestCache(src KeywordSource, ttl time.Duration) (*KeywordCache, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, time.September, 14, 10, 0, 0, 0, time.UTC)}
	cache := NewKeywordCache(src, ttl, nil)
	cache.now = clock.now
	return cache, clock
}

func TestKeywordCache_Tokenization(t *testing.T) {
	src := &fakeSource{values: []string{
		"Blue Tokai Coffee #221",
		"UPI/GPAY txn to Swiggy",
		"hdfc",
		"ref 123456",
		"groceries",
		"ab",
	}}
	cache, _ := newTestCache(src, time.Minute)

	kw := cache.Keywords(context.Background())

	for _, want := range []string{"blue", "tokai", "coffee", "swiggy", "hdfc", "groceries", "ref"} {
		assert.Contains(t, kw, want)
	}
	for _, unwanted := range []string{"upi", "gpay", "txn", "to", "221", "123456", "ab"} {
		assert.NotContains(t, kw, unwanted)
	}
	for _, seed := range staticSeed {
		assert.Contains(t, kw, seed)
	}
}

func TestKeywordCache_TTL(t *testing.T) {
	src := &fakeSource{values: []string{"swiggy"}}
	cache, clock := newTestCache(src, 5*time.Minute)
	ctx := context.Background()

	assert.True(t, cache.Contains(ctx, "Swiggy"))
	assert.Equal(t, 1, src.calls)

	src.set([]string{"zomato"}, nil)
	clock.advance(4 * time.Minute)
	assert.False(t, cache.Contains(ctx, "zomato"), "fresh set is served from memory")
	assert.Equal(t, 1, src.calls)

	clock.advance(2 * time.Minute)
	assert.True(t, cache.Contains(ctx, "zomato"))
	assert.False(t, cache.Contains(ctx, "swiggy"))
	assert.Equal(t, 2, src.calls)
}

func TestKeywordCache_Invalidate(t *testing.T) {
	src := &fakeSource{values: []string{"swiggy"}}
	cache, _ := newTestCache(src, time.Hour)
	ctx := context.Background()

	cache.Keywords(ctx)
	src.set([]string{"zomato"}, nil)
	cache.Invalidate()

	assert.True(t, cache.Contains(ctx, "zomato"))
	assert.Equal(t, 2, src.calls)
}

func TestKeywordCache_RefreshFailure(t *testing.T) {
	t.Run("no previous set serves the seed", func(t *testing.T) {
		cache, _ := newTestCache(&fakeSource{err: errors.New("db down")}, time.Minute)

		kw := cache.Keywords(context.Background())

		assert.Len(t, kw, len(staticSeed))
		assert.Contains(t, kw, "espresso")
	})

	t.Run("previous set is kept", func(t *testing.T) {
		src := &fakeSource{values: []string{"swiggy"}}
		cache, clock := newTestCache(src, time.Minute)
		ctx := context.Background()
		require.True(t, cache.Contains(ctx, "swiggy"))

		src.set(nil, errors.New("db down"))
		clock.advance(2 * time.Minute)

		assert.True(t, cache.Contains(ctx, "swiggy"))
		assert.Equal(t, 2, src.calls)

		// the failed attempt counts as a refresh
		assert.True(t, cache.Contains(ctx, "swiggy"))
		assert.Equal(t, 2, src.calls)
	})
}

func TestKeywordCache_ConcurrentReads(t *testing.T) {
	cache, _ := newTestCache(&fakeSource{values: []string{"swiggy", "zomato"}}, time.Minute)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%4 == 0 {
				cache.Invalidate()
			}
			assert.True(t, cache.Contains(ctx, "coffee"))
		}()
	}
	wg.Wait()
}

func TestKeywordCache_Reload(t *testing.T) {
	src := &fakeSource{err: errors.New("db down")}
	cache, _ := newTestCache(src, time.Minute)
	ctx := context.Background()

	err := cache.Reload(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load vocabulary")
	assert.True(t, cache.Contains(ctx, "beer"))

	src.set([]string{"Swiggy"}, nil)
	require.NoError(t, cache.Reload(ctx))
	assert.True(t, cache.Contains(ctx, "swiggy"))
}
