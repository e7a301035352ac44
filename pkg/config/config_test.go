package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Dedup.Window)
	assert.InDelta(t, 1.0, cfg.Dedup.AmountEpsilon, 1e-9)
	assert.InDelta(t, 0.6, cfg.Dedup.SimilarityThreshold, 1e-9)
	assert.Equal(t, 300*time.Second, cfg.Vocabulary.TTL)
	assert.Equal(t, "INR", cfg.Currency)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DEDUP_WINDOW", "50")
	t.Setenv("DEDUP_AMOUNT_EPSILON", "0.25")
	t.Setenv("VOCABULARY_TTL", "1m")
	t.Setenv("SERVER_PORT", "9001")
	t.Setenv("POSTGRES_DB", "expenses")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 50, cfg.Dedup.Window)
	assert.InDelta(t, 0.25, cfg.Dedup.AmountEpsilon, 1e-9)
	assert.Equal(t, time.Minute, cfg.Vocabulary.TTL)
	assert.Equal(t, "0.0.0.0:9001", cfg.Server.Addr())
	assert.Contains(t, cfg.Database.DSN(), "dbname=expenses")
}

func TestLoad_InvalidValues(t *testing.T) {
	t.Run("bad number falls back to default", func(t *testing.T) {
		t.Setenv("DEDUP_WINDOW", "lots")
		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 500, cfg.Dedup.Window)
	})

	t.Run("threshold out of range", func(t *testing.T) {
		t.Setenv("DEDUP_SIMILARITY_THRESHOLD", "1.5")
		_, err := Load()
		assert.Error(t, err)
	})
}
