package graphstore

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/standardbeagle/semindex/internal/serrors"
	"github.com/standardbeagle/semindex/internal/types"
)

type storedEdge struct {
	kind types.RelationshipKind
	from string
	to   string
}

// MemStore is the native in-process GraphStore binding: plain Go maps
// under a single mutex, no subprocess involved. It understands the
// structured query header the query translator's Builder emits (see
// Query) and falls back to a small literal-equality parser for raw
// query text.
type MemStore struct {
	mu sync.RWMutex

	symbols map[string]types.Symbol // by ID
	types   map[string]types.Type   // by ID
	imports map[string]types.Import // by ID

	nameIndex map[string][]string // symbol/type name -> IDs
	pathSet   map[string]bool     // every file path with at least one entity

	edges []storedEdge
}

// NewMemStore creates an empty in-process graph store.
func NewMemStore() *MemStore {
	return &MemStore{
		symbols:   make(map[string]types.Symbol),
		types:     make(map[string]types.Type),
		imports:   make(map[string]types.Import),
		nameIndex: make(map[string][]string),
		pathSet:   make(map[string]bool),
	}
}

func (m *MemStore) InsertSymbols(_ context.Context, symbols []types.Symbol) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range symbols {
		m.symbols[s.ID] = s
		m.nameIndex[s.Name] = append(m.nameIndex[s.Name], s.ID)
		m.pathSet[s.File] = true
	}
	return nil
}

func (m *MemStore) InsertTypes(_ context.Context, typs []types.Type) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range typs {
		m.types[t.ID] = t
		m.nameIndex[t.Name] = append(m.nameIndex[t.Name], t.ID)
		m.pathSet[t.File] = true
	}
	return nil
}

func (m *MemStore) InsertImports(_ context.Context, imports []types.Import) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, imp := range imports {
		m.imports[imp.ID] = imp
		m.pathSet[imp.SourceFile] = true
	}
	return nil
}

// requiresEntityEndpoints is the set of relationship kinds whose From/To
// are symbol or type names (as opposed to file paths).
var requiresEntityEndpoints = map[types.RelationshipKind]bool{
	types.RelMemberOf:   true,
	types.RelCalls:      true,
	types.RelHasType:    true,
	types.RelExtends:    true,
	types.RelImplements: true,
}

// InsertRelationships matches each edge's endpoints by name (entity
// kinds) or by known file path (IMPORTS/DEPENDS_ON), skipping any edge
// with a missing endpoint. Skipped edges are collected into the
// returned MultiError but never abort the batch.
func (m *MemStore) InsertRelationships(_ context.Context, rels []types.Relationship) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var rejected []error
	for _, r := range rels {
		var fromOK, toOK bool
		if requiresEntityEndpoints[r.Kind] {
			fromOK = len(m.nameIndex[r.From]) > 0
			toOK = len(m.nameIndex[r.To]) > 0
		} else {
			fromOK = m.pathSet[r.From]
			toOK = m.pathSet[r.To]
		}
		if !fromOK || !toOK {
			rejected = append(rejected, serrors.NewWriteRejectionError(
				fmt.Sprintf("missing endpoint for %s edge %s -> %s", r.Kind, r.From, r.To), nil))
			continue
		}
		m.edges = append(m.edges, storedEdge{kind: r.Kind, from: r.From, to: r.To})
	}

	if err := serrors.NewMultiError(rejected); err != nil {
		return err
	}
	return nil
}

// DeleteFileData removes every symbol, type, and import declared in
// path, deleting incident edges first so no edge is left dangling.
func (m *MemStore) DeleteFileData(_ context.Context, path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make(map[string]bool)
	for id, s := range m.symbols {
		if s.File == path {
			names[s.Name] = true
			delete(m.symbols, id)
		}
	}
	for id, t := range m.types {
		if t.File == path {
			names[t.Name] = true
			delete(m.types, id)
		}
	}
	for id, imp := range m.imports {
		if imp.SourceFile == path {
			delete(m.imports, id)
		}
	}

	kept := m.edges[:0]
	for _, e := range m.edges {
		if names[e.from] || names[e.to] {
			continue
		}
		kept = append(kept, e)
	}
	m.edges = kept

	for name := range names {
		ids := m.nameIndex[name][:0]
		for _, id := range m.nameIndex[name] {
			if _, stillPresent := m.symbols[id]; stillPresent {
				ids = append(ids, id)
				continue
			}
			if _, stillPresent := m.types[id]; stillPresent {
				ids = append(ids, id)
			}
		}
		if len(ids) == 0 {
			delete(m.nameIndex, name)
		} else {
			m.nameIndex[name] = ids
		}
	}

	stillUsed := false
	for _, s := range m.symbols {
		if s.File == path {
			stillUsed = true
			break
		}
	}
	if !stillUsed {
		for _, t := range m.types {
			if t.File == path {
				stillUsed = true
				break
			}
		}
	}
	if !stillUsed {
		for _, imp := range m.imports {
			if imp.SourceFile == path {
				stillUsed = true
				break
			}
		}
	}
	if !stillUsed {
		delete(m.pathSet, path)
	}

	return nil
}

func (m *MemStore) ClearAll(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.symbols = make(map[string]types.Symbol)
	m.types = make(map[string]types.Type)
	m.imports = make(map[string]types.Import)
	m.nameIndex = make(map[string][]string)
	m.pathSet = make(map[string]bool)
	m.edges = nil
	return nil
}

func (m *MemStore) Close() error { return nil }

// queryHeaderPrefix marks the structured-query header line the query
// translator's Builder renders ahead of the human-readable Cypher-like
// text, so this in-process binding can execute the request directly
// against its maps instead of needing a real Cypher engine.
const queryHeaderPrefix = "// semindex-query "

// Query executes query, dispatching on the structured header line when
// present (the format the query translator emits) or falling back to a
// small literal-equality parser for hand-written raw queries of the
// shape `MATCH (n:Label) WHERE n.field = 'value' RETURN n.f1, n.f2`.
func (m *MemStore) Query(_ context.Context, query string) (QueryResult, error) {
	start := time.Now()
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result QueryResult
	var err error

	if header, rest, ok := strings.Cut(query, "\n"); ok && strings.HasPrefix(header, queryHeaderPrefix) {
		params := parseHeaderParams(header)
		result, err = m.execStructured(params)
		_ = rest
	} else {
		result, err = m.execRawEquality(query)
	}
	if err != nil {
		return QueryResult{}, serrors.NewQueryError(query, err)
	}

	result.RowCount = len(result.Rows)
	result.ExecutionTimeMs = time.Since(start).Milliseconds()
	return result, nil
}

func parseHeaderParams(header string) map[string]string {
	out := make(map[string]string)
	fields := strings.Fields(strings.TrimPrefix(header, queryHeaderPrefix))
	for _, f := range fields {
		k, v, ok := strings.Cut(f, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}

func (m *MemStore) execStructured(p map[string]string) (QueryResult, error) {
	switch p["kind"] {
	case "findCallers":
		return m.edgeLookup(types.RelCalls, p["symbol"], true), nil
	case "findCallees":
		return m.edgeLookup(types.RelCalls, p["symbol"], false), nil
	case "findExports":
		return m.symbolsInFile(p["path"], true), nil
	case "findSymbolsInFile":
		return m.symbolsInFile(p["path"], false), nil
	case "findImports", "findDependencies":
		return m.importsFrom(p["path"]), nil
	case "findDependents":
		return m.dependents(p["path"]), nil
	case "findClasses":
		return m.symbolsByKind(types.KindClass), nil
	case "findClassMembers":
		return m.edgeLookup(types.RelMemberOf, p["symbol"], true), nil
	case "findExtends":
		return m.edgeLookup(types.RelExtends, p["symbol"], true), nil
	case "findImplementations":
		return m.edgeLookup(types.RelImplements, p["symbol"], true), nil
	case "findCallGraph":
		depth := 2
		if d, err := strconv.Atoi(p["depth"]); err == nil && d > 0 {
			depth = d
		}
		return m.callGraph(p["symbol"], depth), nil
	case "findUnusedExports":
		return m.unusedExports(), nil
	default:
		return QueryResult{}, fmt.Errorf("unknown query kind %q", p["kind"])
	}
}

func (m *MemStore) edgeLookup(kind types.RelationshipKind, name string, byTo bool) QueryResult {
	seen := make(map[string]bool)
	var rows [][]any
	for _, e := range m.edges {
		if e.kind != kind {
			continue
		}
		var match, other string
		if byTo {
			match, other = e.to, e.from
		} else {
			match, other = e.from, e.to
		}
		if match != name || seen[other] {
			continue
		}
		seen[other] = true
		file, line := "", 0
		for _, ids := range m.nameIndex[other] {
			if s, ok := m.symbols[ids]; ok {
				file, line = s.File, s.Line
				break
			}
		}
		rows = append(rows, []any{other, file, line})
	}
	sortRows(rows, 1, 2)
	return QueryResult{Columns: []string{"name", "file", "line"}, Rows: rows}
}

func (m *MemStore) symbolsInFile(path string, exportedOnly bool) QueryResult {
	var rows [][]any
	for _, s := range m.symbols {
		if s.File != path {
			continue
		}
		if exportedOnly && !s.Exported {
			continue
		}
		rows = append(rows, []any{s.Name, string(s.Kind), s.Line})
	}
	sortRows(rows, 2)
	return QueryResult{Columns: []string{"name", "kind", "line"}, Rows: rows}
}

func (m *MemStore) importsFrom(path string) QueryResult {
	var rows [][]any
	for _, imp := range m.imports {
		if imp.SourceFile != path {
			continue
		}
		rows = append(rows, []any{imp.ImportedPath, strings.Join(imp.Specifiers, ","), imp.TypeOnly})
	}
	return QueryResult{Columns: []string{"importedPath", "specifiers", "typeOnly"}, Rows: rows}
}

func (m *MemStore) dependents(path string) QueryResult {
	var rows [][]any
	for _, imp := range m.imports {
		if imp.ImportedPath != path {
			continue
		}
		rows = append(rows, []any{imp.SourceFile})
	}
	return QueryResult{Columns: []string{"sourceFile"}, Rows: rows}
}

func (m *MemStore) symbolsByKind(kind types.SymbolKind) QueryResult {
	var rows [][]any
	for _, s := range m.symbols {
		if s.Kind != kind {
			continue
		}
		rows = append(rows, []any{s.Name, s.File, s.Line})
	}
	sortRows(rows, 1, 2)
	return QueryResult{Columns: []string{"name", "file", "line"}, Rows: rows}
}

func (m *MemStore) callGraph(root string, maxDepth int) QueryResult {
	var rows [][]any
	visited := map[string]bool{root: true}
	frontier := []string{root}
	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []string
		for _, from := range frontier {
			for _, e := range m.edges {
				if e.kind != types.RelCalls || e.from != from {
					continue
				}
				if visited[e.to] {
					continue
				}
				visited[e.to] = true
				rows = append(rows, []any{depth, e.from, e.to})
				next = append(next, e.to)
			}
		}
		frontier = next
	}
	return QueryResult{Columns: []string{"depth", "from", "to"}, Rows: rows}
}

func (m *MemStore) unusedExports() QueryResult {
	called := make(map[string]bool)
	for _, e := range m.edges {
		if e.kind == types.RelCalls {
			called[e.to] = true
		}
	}
	var rows [][]any
	for _, s := range m.symbols {
		if s.Exported && !called[s.Name] {
			rows = append(rows, []any{s.Name, s.File, s.Line})
		}
	}
	sortRows(rows, 1, 2)
	return QueryResult{Columns: []string{"name", "file", "line"}, Rows: rows}
}

// execRawEquality supports the degenerate case of a hand-written query
// bypassing the translator entirely: MATCH (n:Label) WHERE n.field =
// 'value' RETURN n.f1, n.f2. It is intentionally minimal; MemStore is
// the testable native binding, not a Cypher engine.
func (m *MemStore) execRawEquality(query string) (QueryResult, error) {
	fieldIdx := strings.Index(query, "WHERE")
	returnIdx := strings.Index(query, "RETURN")
	if fieldIdx < 0 || returnIdx < 0 || returnIdx < fieldIdx {
		return QueryResult{}, fmt.Errorf("unsupported raw query shape")
	}

	whereClause := strings.TrimSpace(query[fieldIdx+len("WHERE") : returnIdx])
	parts := strings.SplitN(whereClause, "=", 2)
	if len(parts) != 2 {
		return QueryResult{}, fmt.Errorf("unsupported WHERE clause: %s", whereClause)
	}
	field := strings.TrimSpace(parts[0])
	field = field[strings.LastIndex(field, ".")+1:]
	value := strings.Trim(strings.TrimSpace(parts[1]), "'\" ")

	var rows [][]any
	var columns []string
	switch field {
	case "name":
		columns = []string{"name", "file", "line"}
		for _, s := range m.symbols {
			if s.Name == value {
				rows = append(rows, []any{s.Name, s.File, s.Line})
			}
		}
	case "file", "filePath":
		columns = []string{"name", "kind", "line"}
		for _, s := range m.symbols {
			if s.File == value {
				rows = append(rows, []any{s.Name, string(s.Kind), s.Line})
			}
		}
	default:
		return QueryResult{}, fmt.Errorf("unsupported field %q", field)
	}

	return QueryResult{Columns: columns, Rows: rows}, nil
}

func sortRows(rows [][]any, keyIdx ...int) {
	sort.SliceStable(rows, func(i, j int) bool {
		for _, k := range keyIdx {
			a, b := fmt.Sprint(rows[i][k]), fmt.Sprint(rows[j][k])
			if a != b {
				return a < b
			}
		}
		return false
	})
}
