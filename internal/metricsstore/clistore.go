package metricsstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/standardbeagle/semindex/internal/serrors"
	"github.com/standardbeagle/semindex/internal/types"
)

// CLIStore is the subprocess-adapter MetricsStore binding: it passes
// escaped SQL text to a configured CLI on argv and parses its stdout as a
// JSON array of objects, the literal §6 metrics-store contract.
type CLIStore struct {
	Binary       string
	DatabasePath string
	ExtraArgs    []string
	Timeout      time.Duration
}

func (c *CLIStore) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 30 * time.Second
}

func (c *CLIStore) exec(ctx context.Context, sql string) ([]map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	args := append(append([]string{}, c.ExtraArgs...), "--database", c.DatabasePath, "--json", sql)
	cmd := exec.CommandContext(ctx, c.Binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, serrors.NewStoreUnavailableError("metrics", fmt.Errorf("%s: %w: %s", c.Binary, err, stderr.String()))
	}

	out := strings.TrimSpace(stdout.String())
	if out == "" {
		return nil, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		return nil, serrors.NewStoreUnavailableError("metrics", fmt.Errorf("parse json stdout: %w", err))
	}
	return rows, nil
}

func (c *CLIStore) Close() error { return nil }

func (c *CLIStore) UpsertFileMetrics(ctx context.Context, metrics []types.FileMetrics) error {
	for _, m := range metrics {
		sql := fmt.Sprintf(
			`INSERT OR REPLACE INTO file_metrics (file_path, total_lines, code_lines, comment_lines, blank_lines, complexity_sum, complexity_avg, import_count, export_count, class_count, function_count, last_analyzed) VALUES ('%s', %d, %d, %d, %d, %d, %f, %d, %d, %d, %d, %d);`,
			EscapeSQL(m.FilePath), m.TotalLines, m.CodeLines, m.CommentLines, m.BlankLines,
			m.ComplexitySum, m.ComplexityAvg, m.ImportCount, m.ExportCount, m.ClassCount,
			m.FunctionCount, m.LastAnalyzed)
		if _, err := c.exec(ctx, sql); err != nil {
			return err
		}
	}
	return nil
}

func (c *CLIStore) GetFileMetrics(ctx context.Context, path string) (types.FileMetrics, bool, error) {
	sql := fmt.Sprintf(`SELECT * FROM file_metrics WHERE file_path = '%s';`, EscapeSQL(path))
	rows, err := c.exec(ctx, sql)
	if err != nil {
		return types.FileMetrics{}, false, err
	}
	if len(rows) == 0 {
		return types.FileMetrics{}, false, nil
	}
	return rowToMetrics(rows[0]), true, nil
}

func (c *CLIStore) DeleteByPath(ctx context.Context, path string) error {
	sql := fmt.Sprintf(`DELETE FROM file_metrics WHERE file_path = '%s';`, EscapeSQL(path))
	_, err := c.exec(ctx, sql)
	return err
}

func (c *CLIStore) ClearTable(ctx context.Context, name string) error {
	if name == "" {
		name = "file_metrics"
	}
	sql := fmt.Sprintf(`DELETE FROM %s;`, name)
	_, err := c.exec(ctx, sql)
	return err
}

func (c *CLIStore) GetComplexityTrends(ctx context.Context, limit int) ([]ComplexityTrend, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := fmt.Sprintf(`SELECT file_path, complexity_avg, last_analyzed FROM file_metrics ORDER BY complexity_avg DESC LIMIT %d;`, limit)
	rows, err := c.exec(ctx, sql)
	if err != nil {
		return nil, err
	}
	out := make([]ComplexityTrend, 0, len(rows))
	for _, r := range rows {
		out = append(out, ComplexityTrend{
			FilePath:      asString(r["file_path"]),
			ComplexityAvg: asFloat(r["complexity_avg"]),
			LastAnalyzed:  int64(asFloat(r["last_analyzed"])),
		})
	}
	return out, nil
}

func (c *CLIStore) Summarize(ctx context.Context) (Summary, error) {
	sql := `SELECT COUNT(*) AS file_count, COALESCE(SUM(total_lines),0) AS total_lines, COALESCE(AVG(complexity_avg),0) AS avg_complexity, COALESCE(SUM(export_count),0) AS total_export_count FROM file_metrics;`
	rows, err := c.exec(ctx, sql)
	if err != nil {
		return Summary{}, err
	}
	if len(rows) == 0 {
		return Summary{}, nil
	}
	r := rows[0]
	return Summary{
		FileCount:        int(asFloat(r["file_count"])),
		TotalLines:       int(asFloat(r["total_lines"])),
		AvgComplexity:    asFloat(r["avg_complexity"]),
		TotalExportCount: int(asFloat(r["total_export_count"])),
	}, nil
}

func (c *CLIStore) LoadSnapshot(ctx context.Context) (map[string]string, error) {
	rows, err := c.exec(ctx, `SELECT file_path, content_hash FROM hash_snapshot;`)
	if err != nil {
		return nil, err
	}
	out := make(map[string]string, len(rows))
	for _, r := range rows {
		out[asString(r["file_path"])] = asString(r["content_hash"])
	}
	return out, nil
}

func (c *CLIStore) SaveSnapshot(ctx context.Context, entries []SnapshotEntry) error {
	for _, e := range entries {
		sql := fmt.Sprintf(
			`INSERT OR REPLACE INTO hash_snapshot (file_path, content_hash, last_scanned) VALUES ('%s', '%s', %d);`,
			EscapeSQL(e.FilePath), EscapeSQL(e.ContentHash), e.LastScanned)
		if _, err := c.exec(ctx, sql); err != nil {
			return err
		}
	}
	return nil
}

func (c *CLIStore) DeleteSnapshotEntry(ctx context.Context, path string) error {
	sql := fmt.Sprintf(`DELETE FROM hash_snapshot WHERE file_path = '%s';`, EscapeSQL(path))
	_, err := c.exec(ctx, sql)
	return err
}

func rowToMetrics(r map[string]any) types.FileMetrics {
	return types.FileMetrics{
		FilePath:      asString(r["file_path"]),
		TotalLines:    int(asFloat(r["total_lines"])),
		CodeLines:     int(asFloat(r["code_lines"])),
		CommentLines:  int(asFloat(r["comment_lines"])),
		BlankLines:    int(asFloat(r["blank_lines"])),
		ComplexitySum: int(asFloat(r["complexity_sum"])),
		ComplexityAvg: asFloat(r["complexity_avg"]),
		ImportCount:   int(asFloat(r["import_count"])),
		ExportCount:   int(asFloat(r["export_count"])),
		ClassCount:    int(asFloat(r["class_count"])),
		FunctionCount: int(asFloat(r["function_count"])),
		LastAnalyzed:  int64(asFloat(r["last_analyzed"])),
	}
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	default:
		return 0
	}
}
