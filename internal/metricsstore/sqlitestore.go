package metricsstore

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/standardbeagle/semindex/internal/types"
)

const createTablesSQL = `
CREATE TABLE IF NOT EXISTS file_metrics (
	file_path      TEXT PRIMARY KEY,
	total_lines    INTEGER NOT NULL,
	code_lines     INTEGER NOT NULL,
	comment_lines  INTEGER NOT NULL,
	blank_lines    INTEGER NOT NULL,
	complexity_sum INTEGER NOT NULL,
	complexity_avg REAL NOT NULL,
	import_count   INTEGER NOT NULL,
	export_count   INTEGER NOT NULL,
	class_count    INTEGER NOT NULL,
	function_count INTEGER NOT NULL,
	last_analyzed  INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS hash_snapshot (
	file_path    TEXT PRIMARY KEY,
	content_hash TEXT NOT NULL,
	last_scanned INTEGER NOT NULL
);
`

// SQLiteStore is the native in-process MetricsStore binding: a real,
// runnable analytics table backed by modernc.org/sqlite (pure Go, no cgo),
// used by the test suite and by any deployment with no metrics-store CLI
// configured.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if absent) the SQLite database at path
// and ensures the file_metrics and hash_snapshot tables exist.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open metrics db: %w", err)
	}
	if _, err := db.Exec(createTablesSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create metrics tables: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) UpsertFileMetrics(ctx context.Context, metrics []types.FileMetrics) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO file_metrics (
			file_path, total_lines, code_lines, comment_lines, blank_lines,
			complexity_sum, complexity_avg, import_count, export_count,
			class_count, function_count, last_analyzed
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			total_lines = excluded.total_lines,
			code_lines = excluded.code_lines,
			comment_lines = excluded.comment_lines,
			blank_lines = excluded.blank_lines,
			complexity_sum = excluded.complexity_sum,
			complexity_avg = excluded.complexity_avg,
			import_count = excluded.import_count,
			export_count = excluded.export_count,
			class_count = excluded.class_count,
			function_count = excluded.function_count,
			last_analyzed = excluded.last_analyzed
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, m := range metrics {
		if _, err := stmt.ExecContext(ctx, m.FilePath, m.TotalLines, m.CodeLines, m.CommentLines,
			m.BlankLines, m.ComplexitySum, m.ComplexityAvg, m.ImportCount, m.ExportCount,
			m.ClassCount, m.FunctionCount, m.LastAnalyzed); err != nil {
			return fmt.Errorf("upsert metrics for %s: %w", m.FilePath, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetFileMetrics(ctx context.Context, path string) (types.FileMetrics, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT file_path, total_lines, code_lines, comment_lines, blank_lines,
		       complexity_sum, complexity_avg, import_count, export_count,
		       class_count, function_count, last_analyzed
		FROM file_metrics WHERE file_path = ?`, path)

	var m types.FileMetrics
	err := row.Scan(&m.FilePath, &m.TotalLines, &m.CodeLines, &m.CommentLines, &m.BlankLines,
		&m.ComplexitySum, &m.ComplexityAvg, &m.ImportCount, &m.ExportCount,
		&m.ClassCount, &m.FunctionCount, &m.LastAnalyzed)
	if err == sql.ErrNoRows {
		return types.FileMetrics{}, false, nil
	}
	if err != nil {
		return types.FileMetrics{}, false, err
	}
	return m, true, nil
}

func (s *SQLiteStore) DeleteByPath(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM file_metrics WHERE file_path = ?`, path)
	return err
}

func (s *SQLiteStore) ClearTable(ctx context.Context, name string) error {
	switch name {
	case "file_metrics", "":
		_, err := s.db.ExecContext(ctx, `DELETE FROM file_metrics`)
		return err
	case "hash_snapshot":
		_, err := s.db.ExecContext(ctx, `DELETE FROM hash_snapshot`)
		return err
	default:
		return fmt.Errorf("unknown table %q", name)
	}
}

func (s *SQLiteStore) GetComplexityTrends(ctx context.Context, limit int) ([]ComplexityTrend, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT file_path, complexity_avg, last_analyzed
		FROM file_metrics
		ORDER BY complexity_avg DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ComplexityTrend
	for rows.Next() {
		var t ComplexityTrend
		if err := rows.Scan(&t.FilePath, &t.ComplexityAvg, &t.LastAnalyzed); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Summarize(ctx context.Context) (Summary, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_lines), 0), COALESCE(AVG(complexity_avg), 0), COALESCE(SUM(export_count), 0)
		FROM file_metrics`)

	var sum Summary
	if err := row.Scan(&sum.FileCount, &sum.TotalLines, &sum.AvgComplexity, &sum.TotalExportCount); err != nil {
		return Summary{}, err
	}
	return sum, nil
}

func (s *SQLiteStore) LoadSnapshot(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT file_path, content_hash FROM hash_snapshot`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, err
		}
		out[path] = hash
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, entries []SnapshotEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO hash_snapshot (file_path, content_hash, last_scanned)
		VALUES (?, ?, ?)
		ON CONFLICT(file_path) DO UPDATE SET
			content_hash = excluded.content_hash,
			last_scanned = excluded.last_scanned`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.FilePath, e.ContentHash, e.LastScanned); err != nil {
			return fmt.Errorf("save snapshot entry for %s: %w", e.FilePath, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) DeleteSnapshotEntry(ctx context.Context, path string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM hash_snapshot WHERE file_path = ?`, path)
	return err
}
