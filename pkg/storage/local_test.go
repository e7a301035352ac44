package storage

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalArchive_SaveOpen(t *testing.T) {
	archive, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	id := uuid.New()

	info, err := archive.Save(ctx, "hdfc", id, "../statement sep.csv", "text/csv", strings.NewReader("Date,Amount\n"))
	require.NoError(t, err)
	assert.Equal(t, int64(12), info.Size)
	assert.Len(t, info.SHA256, 64)
	assert.NotContains(t, info.Path, "/")

	rc, got, err := archive.Open(ctx, "hdfc", id)
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "Date,Amount\n", string(body))
	assert.Equal(t, "../statement sep.csv", got.Name)
}

func TestLocalArchive_ListAndDelete(t *testing.T) {
	archive, err := NewLocalArchive(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	base := time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC)
	ids := []uuid.UUID{uuid.New(), uuid.New()}
	for i, id := range ids {
		archive.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		_, err := archive.Save(ctx, "gpay", id, "gpay.csv", "text/csv", strings.NewReader("x"))
		require.NoError(t, err)
	}

	files, err := archive.List(ctx, "gpay")
	require.NoError(t, err)
	require.Len(t, files, 2)
	assert.Equal(t, ids[1], files[0].ID)

	empty, err := archive.List(ctx, "paytm")
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, archive.Delete(ctx, "gpay", ids[0]))
	_, _, err = archive.Open(ctx, "gpay", ids[0])
	assert.ErrorIs(t, err, ErrNotFound)
}
