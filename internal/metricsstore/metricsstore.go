// Package metricsstore persists per-file analytics rows and the content-hash
// snapshot the orchestrator diffs against on each tick. Two bindings satisfy
// the MetricsStore contract: CLIStore shells out to a configured SQL CLI and
// parses JSON-array stdout, and SQLiteStore runs equivalent SQL natively
// through modernc.org/sqlite for tests and CLI-less deployments.
package metricsstore

import (
	"context"
	"strings"

	"github.com/standardbeagle/semindex/internal/types"
)

// ComplexityTrend is one row of GetComplexityTrends: a file's complexity
// average as of its last analysis, ordered most-complex first.
type ComplexityTrend struct {
	FilePath      string
	ComplexityAvg float64
	LastAnalyzed  int64
}

// Summary aggregates the whole metrics table into the headline figures a
// status command reports.
type Summary struct {
	FileCount        int
	TotalLines       int
	AvgComplexity    float64
	TotalExportCount int
}

// SnapshotEntry is one row of the persisted hash snapshot: the last-seen
// content hash for a path and when it was recorded.
type SnapshotEntry struct {
	FilePath     string
	ContentHash  string
	LastScanned  int64
}

// MetricsStore is the per-file analytics and hash-snapshot persistence
// contract every binding implements.
type MetricsStore interface {
	UpsertFileMetrics(ctx context.Context, metrics []types.FileMetrics) error
	GetFileMetrics(ctx context.Context, path string) (types.FileMetrics, bool, error)
	DeleteByPath(ctx context.Context, path string) error
	ClearTable(ctx context.Context, name string) error
	GetComplexityTrends(ctx context.Context, limit int) ([]ComplexityTrend, error)
	Summarize(ctx context.Context) (Summary, error)

	// Snapshot persistence backs the orchestrator's hash diff across restarts.
	LoadSnapshot(ctx context.Context) (map[string]string, error)
	SaveSnapshot(ctx context.Context, entries []SnapshotEntry) error
	DeleteSnapshotEntry(ctx context.Context, path string) error

	Close() error
}

// EscapeSQL doubles embedded single quotes, the SQL-literal escaping
// convention spec §6 requires for both bindings.
func EscapeSQL(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
