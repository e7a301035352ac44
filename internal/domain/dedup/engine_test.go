package dedup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FACorreiaa/monexa/internal/domain/expense"
	"github.com/FACorreiaa/monexa/pkg/money"
)

type fakeStore struct {
	recent    []expense.Stored
	count     int
	err       error
	lastLimit int
}

func (f *fakeStore) Recent(_ context.Context, limit int) ([]expense.Stored, error) {
	f.lastLimit = limit
	if f.err != nil {
		return nil, f.err
	}
	if limit < len(f.recent) {
		return f.recent[:limit], nil
	}
	return f.recent, nil
}

func (f *fakeStore) Count(_ context.Context) (int, error) {
	return f.count, f.err
}

func stored(id int64, amount float64, note string) expense.Stored {
	return expense.Stored{ID: id, Source: "gpay", Record: expense.Record{TotalAmount: amount, Note: note}}
}

func TestSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"identical", "Blue Tokai", "Blue Tokai", 1},
		{"case and spacing", "  STARBUCKS ", "starbucks", 1},
		{"disjoint", "abc", "xyz", 0},
		{"both empty", "", "", 1},
		{"one empty", "uber", "", 0},
		{"shared prefix", "Starbucks Coffee", "STARBUCKS #221", 20.0 / 30.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Similarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestEngine_Preview(t *testing.T) {
	t.Run("near amount and similar note is flagged", func(t *testing.T) {
		store := &fakeStore{recent: []expense.Stored{stored(1, 100.00, "Starbucks Coffee")}}
		engine := NewEngine(store, DefaultConfig(), nil)

		results, err := engine.Preview(context.Background(), []expense.Record{
			{TotalAmount: 100.50, Note: "STARBUCKS #221"},
		})

		require.NoError(t, err)
		require.Len(t, results, 1)
		require.Len(t, results[0].Matches, 1)
		assert.Equal(t, int64(1), results[0].Matches[0].Existing.ID)
		assert.Greater(t, results[0].Matches[0].Similarity, 0.6)
	})

	t.Run("distant amount is never flagged", func(t *testing.T) {
		store := &fakeStore{recent: []expense.Stored{stored(1, 100.00, "Starbucks Coffee")}}
		engine := NewEngine(store, DefaultConfig(), nil)

		results, err := engine.Preview(context.Background(), []expense.Record{
			{TotalAmount: 500.00, Note: "Starbucks Coffee"},
		})

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Empty(t, results[0].Matches)
		assert.NotNil(t, results[0].Matches)
	})

	t.Run("epsilon is exclusive", func(t *testing.T) {
		store := &fakeStore{recent: []expense.Stored{stored(1, 100.00, "Uber")}}
		engine := NewEngine(store, DefaultConfig(), nil)

		results, err := engine.Preview(context.Background(), []expense.Record{
			{TotalAmount: 101.00, Note: "Uber"},
			{TotalAmount: 100.99, Note: "Uber"},
		})

		require.NoError(t, err)
		assert.Empty(t, results[0].Matches)
		assert.Len(t, results[1].Matches, 1)
	})

	t.Run("dissimilar note is not flagged", func(t *testing.T) {
		store := &fakeStore{recent: []expense.Stored{stored(1, 40.00, "Chai Point")}}
		engine := NewEngine(store, DefaultConfig(), nil)

		results, err := engine.Preview(context.Background(), []expense.Record{
			{TotalAmount: 40.00, Note: "Metro card"},
		})

		require.NoError(t, err)
		assert.Empty(t, results[0].Matches)
	})

	t.Run("store failure is returned", func(t *testing.T) {
		engine := NewEngine(&fakeStore{err: errors.New("connection refused")}, DefaultConfig(), nil)

		_, err := engine.Preview(context.Background(), []expense.Record{{Note: "x"}})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "load recent expenses")
	})
}

func TestEngine_WindowIsBounded(t *testing.T) {
	gen := expense.NewGenerator(7, money.INR)
	store := &fakeStore{recent: gen.Stored(800, "hdfc", 2025, time.September)}

	engine := NewEngine(store, Config{}, nil)
	assert.Equal(t, DefaultConfig(), engine.Config())

	// a copy of a record outside the window cannot be found
	outside := store.recent[700].Record
	results, err := engine.Preview(context.Background(), []expense.Record{outside})
	require.NoError(t, err)
	assert.Equal(t, 500, store.lastLimit)
	for _, m := range results[0].Matches {
		assert.LessOrEqual(t, m.Existing.ID, int64(500))
	}

	small := NewEngine(store, Config{Window: 10, AmountEpsilon: 0.5, SimilarityThreshold: 0.9}, nil)
	_, err = small.Preview(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 10, store.lastLimit)
}

func TestEngine_GeneratedDuplicatesAreFound(t *testing.T) {
	gen := expense.NewGenerator(42, money.INR)
	window := gen.Stored(200, "gpay", 2025, time.August)
	engine := NewEngine(&fakeStore{recent: window}, DefaultConfig(), nil)

	var incoming []expense.Record
	for _, s := range []expense.Stored{window[3], window[50], window[199]} {
		dup := s.Record
		dup.TotalAmount += 0.30
		incoming = append(incoming, dup)
	}

	results, err := engine.Preview(context.Background(), incoming)
	require.NoError(t, err)
	require.Len(t, results, 3)

	for i, want := range []int64{window[3].ID, window[50].ID, window[199].ID} {
		ids := make([]int64, 0, len(results[i].Matches))
		for _, m := range results[i].Matches {
			ids = append(ids, m.Existing.ID)
		}
		assert.Contains(t, ids, want)
	}
}

func TestEngine_FindInDB(t *testing.T) {
	engine := NewEngine(&fakeStore{count: 1234}, DefaultConfig(), nil)

	scan, err := engine.FindInDB(context.Background())

	require.NoError(t, err)
	assert.Equal(t, Scan{Scanned: 1234}, scan)
}
