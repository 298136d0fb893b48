// Package graphstore persists the extractor's output into a property
// graph and answers queries over it. Two bindings are provided, matching
// the alternate-implementation allowance in the system's external
// interface contract: CLIStore shells out to an external graph-store
// binary (temp file + subprocess + box-drawing table parsing, grounded
// on the teacher's internal/git.Provider subprocess pattern), and
// MemStore is a native in-process adapter used in tests and for
// deployments with no CLI binary configured.
package graphstore

import (
	"context"
	"strings"

	"github.com/standardbeagle/semindex/internal/types"
)

// batchSize bounds how many rows are grouped into one write operation.
const batchSize = 500

// QueryResult is the typed result of a graph query: the store's own
// column names plus rows of dynamically-typed cell values.
type QueryResult struct {
	Columns         []string
	Rows            [][]any
	RowCount        int
	ExecutionTimeMs int64
}

// GraphStore is the property-graph persistence and query contract every
// binding implements.
type GraphStore interface {
	InsertSymbols(ctx context.Context, symbols []types.Symbol) error
	InsertTypes(ctx context.Context, typs []types.Type) error
	InsertImports(ctx context.Context, imports []types.Import) error
	InsertRelationships(ctx context.Context, rels []types.Relationship) error
	DeleteFileData(ctx context.Context, path string) error
	ClearAll(ctx context.Context) error
	Query(ctx context.Context, query string) (QueryResult, error)
	Close() error
}

// EscapeString escapes a string literal for interpolation into a query:
// backslash first, then single and double quotes, matching §4.6's
// escaping contract.
func EscapeString(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`'`, `\'`,
		`"`, `\"`,
	)
	return r.Replace(s)
}
