package graphstore

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/standardbeagle/semindex/internal/serrors"
	"github.com/standardbeagle/semindex/internal/types"
)

// CLIStore is the subprocess-adapter GraphStore binding: it writes query
// text terminated by a statement separator to a temp file, invokes the
// store's CLI pointed at DatabasePath, and parses the box-drawing table
// on stdout, mirroring how the teacher's internal/git.Provider shells
// out to git and parses its porcelain output.
type CLIStore struct {
	Binary       string
	DatabasePath string
	ExtraArgs    []string
	Timeout      time.Duration
}

const statementSeparator = ";"

func (c *CLIStore) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return 30 * time.Second
}

// run writes statements (already individually terminated) to a temp
// file and invokes the CLI against it, returning raw stdout.
func (c *CLIStore) run(ctx context.Context, statements string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	tmp, err := os.CreateTemp("", "semindex-query-*.cypher")
	if err != nil {
		return "", serrors.NewStoreUnavailableError("graph", fmt.Errorf("create temp query file: %w", err))
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(statements); err != nil {
		tmp.Close()
		return "", serrors.NewStoreUnavailableError("graph", fmt.Errorf("write temp query file: %w", err))
	}
	tmp.Close()

	args := append(append([]string{}, c.ExtraArgs...), "--database", c.DatabasePath, "-f", tmp.Name())
	cmd := exec.CommandContext(ctx, c.Binary, args...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", serrors.NewStoreUnavailableError("graph", fmt.Errorf("%s: %w: %s", c.Binary, err, stderr.String()))
	}

	return stdout.String(), nil
}

func (c *CLIStore) InsertSymbols(ctx context.Context, symbols []types.Symbol) error {
	return runBatched(ctx, c, symbols, func(s types.Symbol) string {
		return fmt.Sprintf(
			"CREATE (:Symbol {id: '%s', name: '%s', kind: '%s', file: '%s', line: %d, column: %d, exported: %t, async: %t, visibility: '%s', doc: '%s'})%s",
			EscapeString(s.ID), EscapeString(s.Name), EscapeString(string(s.Kind)), EscapeString(s.File),
			s.Line, s.Column, s.Exported, s.Async, EscapeString(string(s.Visibility)), EscapeString(s.Doc),
			statementSeparator)
	})
}

func (c *CLIStore) InsertTypes(ctx context.Context, typs []types.Type) error {
	return runBatched(ctx, c, typs, func(t types.Type) string {
		return fmt.Sprintf(
			"CREATE (:Type {id: '%s', name: '%s', kind: '%s', definition: '%s', generic: %t, file: '%s', line: %d})%s",
			EscapeString(t.ID), EscapeString(t.Name), EscapeString(string(t.Kind)), EscapeString(t.Definition),
			t.Generic, EscapeString(t.File), t.Line, statementSeparator)
	})
}

func (c *CLIStore) InsertImports(ctx context.Context, imports []types.Import) error {
	return runBatched(ctx, c, imports, func(i types.Import) string {
		return fmt.Sprintf(
			"CREATE (:Import {id: '%s', sourceFile: '%s', importedPath: '%s', typeOnly: %t, isDefault: %t, isNamespace: %t})%s",
			EscapeString(i.ID), EscapeString(i.SourceFile), EscapeString(i.ImportedPath),
			i.TypeOnly, i.Default, i.Namespace, statementSeparator)
	})
}

func (c *CLIStore) InsertRelationships(ctx context.Context, rels []types.Relationship) error {
	return runBatched(ctx, c, rels, func(r types.Relationship) string {
		return fmt.Sprintf(
			"MATCH (a {name: '%s'}), (b {name: '%s'}) CREATE (a)-[:%s]->(b)%s",
			EscapeString(r.From), EscapeString(r.To), r.Kind, statementSeparator)
	})
}

// runBatched groups toStatement(item) calls into batchSize-sized files
// and executes each batch once; a batch failure surfaces as a store
// error without running the remaining batches, since the subprocess
// binding cannot distinguish a row-level rejection from a connection
// failure in its exit status alone.
func runBatched[T any](ctx context.Context, c *CLIStore, items []T, toStatement func(T) string) error {
	for start := 0; start < len(items); start += batchSize {
		end := start + batchSize
		if end > len(items) {
			end = len(items)
		}
		var b strings.Builder
		for _, item := range items[start:end] {
			b.WriteString(toStatement(item))
			b.WriteByte('\n')
		}
		if _, err := c.run(ctx, b.String()); err != nil {
			return err
		}
	}
	return nil
}

func (c *CLIStore) DeleteFileData(ctx context.Context, path string) error {
	stmt := fmt.Sprintf("MATCH (n) WHERE n.file = '%s' OR n.sourceFile = '%s' DETACH DELETE n%s",
		EscapeString(path), EscapeString(path), statementSeparator)
	_, err := c.run(ctx, stmt)
	return err
}

func (c *CLIStore) ClearAll(ctx context.Context) error {
	_, err := c.run(ctx, "MATCH (n) DETACH DELETE n"+statementSeparator)
	return err
}

func (c *CLIStore) Close() error { return nil }

// Query runs query text verbatim and parses the resulting box-drawing
// table into typed rows.
func (c *CLIStore) Query(ctx context.Context, query string) (QueryResult, error) {
	start := time.Now()

	text := query
	if !strings.HasSuffix(strings.TrimSpace(text), statementSeparator) {
		text += statementSeparator
	}

	out, err := c.run(ctx, text)
	if err != nil {
		return QueryResult{}, serrors.NewQueryError(query, err)
	}

	result, err := parseBoxTable(out)
	if err != nil {
		return QueryResult{}, serrors.NewQueryError(query, err)
	}
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

var ansiEscape = regexp.MustCompile(`\x1b\[[0-9;]*[a-zA-Z]`)

// parseBoxTable parses output of the form:
//
//	┌──────┬──────┐
//	│ name │ line │
//	├──────┼──────┤
//	│ foo  │ 12   │
//	└──────┴──────┘
//
// into a QueryResult, inferring int64/float64/bool/string cell types.
func parseBoxTable(raw string) (QueryResult, error) {
	clean := ansiEscape.ReplaceAllString(raw, "")
	lines := strings.Split(clean, "\n")

	var contentLines []string
	for _, l := range lines {
		l = strings.TrimRight(l, "\r")
		if strings.HasPrefix(strings.TrimSpace(l), "│") {
			contentLines = append(contentLines, l)
		}
	}
	if len(contentLines) == 0 {
		return QueryResult{}, nil
	}

	header := splitRow(contentLines[0])
	rows := make([][]any, 0, len(contentLines)-1)
	for _, l := range contentLines[1:] {
		cells := splitRow(l)
		row := make([]any, len(cells))
		for i, c := range cells {
			row[i] = inferCell(c)
		}
		rows = append(rows, row)
	}

	return QueryResult{Columns: header, Rows: rows, RowCount: len(rows)}, nil
}

func splitRow(line string) []string {
	parts := strings.Split(line, "│")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func inferCell(s string) any {
	if s == "true" || s == "false" {
		b, _ := strconv.ParseBool(s)
		return b
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
