package metricsstore

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/semindex/internal/types"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := OpenSQLiteStore(filepath.Join(dir, "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore_UpsertAndGet(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	m := types.FileMetrics{FilePath: "a.ts", TotalLines: 10, CodeLines: 8, FunctionCount: 2, ComplexityAvg: 1.5, LastAnalyzed: 100}
	require.NoError(t, s.UpsertFileMetrics(ctx, []types.FileMetrics{m}))

	got, ok, err := s.GetFileMetrics(ctx, "a.ts")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 10, got.TotalLines)
	assert.Equal(t, 1.5, got.ComplexityAvg)
}

func TestSQLiteStore_UpsertIsIdempotentOnConflict(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.UpsertFileMetrics(ctx, []types.FileMetrics{{FilePath: "a.ts", TotalLines: 5}}))
	require.NoError(t, s.UpsertFileMetrics(ctx, []types.FileMetrics{{FilePath: "a.ts", TotalLines: 50}}))

	got, ok, err := s.GetFileMetrics(ctx, "a.ts")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 50, got.TotalLines)

	sum, err := s.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.FileCount)
}

func TestSQLiteStore_GetFileMetrics_Missing(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	_, ok, err := s.GetFileMetrics(ctx, "missing.ts")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_DeleteByPath(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertFileMetrics(ctx, []types.FileMetrics{{FilePath: "a.ts"}}))
	require.NoError(t, s.DeleteByPath(ctx, "a.ts"))

	_, ok, err := s.GetFileMetrics(ctx, "a.ts")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLiteStore_ClearTable(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertFileMetrics(ctx, []types.FileMetrics{{FilePath: "a.ts"}, {FilePath: "b.ts"}}))
	require.NoError(t, s.ClearTable(ctx, "file_metrics"))

	sum, err := s.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sum.FileCount)
}

func TestSQLiteStore_ClearTable_UnknownName(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	err := s.ClearTable(ctx, "bogus")
	assert.Error(t, err)
}

func TestSQLiteStore_GetComplexityTrends_OrderedDescending(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	require.NoError(t, s.UpsertFileMetrics(ctx, []types.FileMetrics{
		{FilePath: "low.ts", ComplexityAvg: 1.0},
		{FilePath: "high.ts", ComplexityAvg: 9.0},
		{FilePath: "mid.ts", ComplexityAvg: 5.0},
	}))

	trends, err := s.GetComplexityTrends(ctx, 2)
	require.NoError(t, err)
	require.Len(t, trends, 2)
	assert.Equal(t, "high.ts", trends[0].FilePath)
	assert.Equal(t, "mid.ts", trends[1].FilePath)
}

func TestSQLiteStore_SnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.SaveSnapshot(ctx, []SnapshotEntry{
		{FilePath: "a.ts", ContentHash: "hash1", LastScanned: 1},
		{FilePath: "b.ts", ContentHash: "hash2", LastScanned: 2},
	}))

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a.ts": "hash1", "b.ts": "hash2"}, snap)

	require.NoError(t, s.DeleteSnapshotEntry(ctx, "a.ts"))
	snap, err = s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"b.ts": "hash2"}, snap)
}

func TestSQLiteStore_SaveSnapshot_OverwritesOnConflict(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	require.NoError(t, s.SaveSnapshot(ctx, []SnapshotEntry{{FilePath: "a.ts", ContentHash: "v1", LastScanned: 1}}))
	require.NoError(t, s.SaveSnapshot(ctx, []SnapshotEntry{{FilePath: "a.ts", ContentHash: "v2", LastScanned: 2}}))

	snap, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, "v2", snap["a.ts"])
}

func TestEscapeSQL(t *testing.T) {
	assert.Equal(t, "O''Brien", EscapeSQL("O'Brien"))
}
