package graphstore

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/semindex/internal/serrors"
	"github.com/standardbeagle/semindex/internal/types"
)

func seedStore(t *testing.T) *MemStore {
	t.Helper()
	ctx := context.Background()
	m := NewMemStore()

	require.NoError(t, m.InsertSymbols(ctx, []types.Symbol{
		{ID: "sym_1", Name: "outer", Kind: types.KindFunction, File: "a.ts", Line: 1, Exported: true},
		{ID: "sym_2", Name: "helper", Kind: types.KindFunction, File: "a.ts", Line: 5},
		{ID: "sym_3", Name: "Dog", Kind: types.KindClass, File: "b.ts", Line: 1, Exported: true},
		{ID: "sym_4", Name: "bark", Kind: types.KindMethod, File: "b.ts", Line: 2},
	}))
	require.NoError(t, m.InsertImports(ctx, []types.Import{
		{ID: "imp_1", SourceFile: "a.ts", ImportedPath: "./b", Specifiers: []string{"Dog"}},
	}))
	require.NoError(t, m.InsertRelationships(ctx, []types.Relationship{
		{Kind: types.RelCalls, From: "outer", To: "helper"},
		{Kind: types.RelMemberOf, From: "bark", To: "Dog"},
	}))
	return m
}

func TestMemStore_InsertAndDeleteFileData(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)

	require.NoError(t, m.DeleteFileData(ctx, "a.ts"))

	m.mu.RLock()
	_, stillThere := m.symbols["sym_1"]
	_, bStillThere := m.symbols["sym_3"]
	m.mu.RUnlock()

	assert.False(t, stillThere)
	assert.True(t, bStillThere, "symbols from other files must survive")

	for _, e := range m.edges {
		assert.NotEqual(t, "outer", e.from, "edges incident to deleted file must be removed")
	}
}

func TestMemStore_InsertRelationships_SkipsMissingEndpoint(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	require.NoError(t, m.InsertSymbols(ctx, []types.Symbol{
		{ID: "sym_1", Name: "outer", Kind: types.KindFunction, File: "a.ts", Line: 1},
	}))

	err := m.InsertRelationships(ctx, []types.Relationship{
		{Kind: types.RelCalls, From: "outer", To: "ghost"},
	})
	require.Error(t, err)

	var multi *serrors.MultiError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 1)
	assert.Empty(t, m.edges)
}

func TestMemStore_InsertRelationships_PathBasedEndpoints(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	require.NoError(t, m.InsertImports(ctx, []types.Import{
		{ID: "imp_1", SourceFile: "a.ts", ImportedPath: "./b"},
		{ID: "imp_2", SourceFile: "b.ts", ImportedPath: "./c"},
	}))

	err := m.InsertRelationships(ctx, []types.Relationship{
		{Kind: types.RelImports, From: "a.ts", To: "b.ts"},
	})
	assert.NoError(t, err)
	assert.Len(t, m.edges, 1)
}

func TestMemStore_ClearAll(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)
	require.NoError(t, m.ClearAll(ctx))

	m.mu.RLock()
	defer m.mu.RUnlock()
	assert.Empty(t, m.symbols)
	assert.Empty(t, m.types)
	assert.Empty(t, m.imports)
	assert.Empty(t, m.edges)
	assert.Empty(t, m.pathSet)
}

func TestMemStore_Query_FindCallers(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)

	res, err := m.Query(ctx, "// semindex-query kind=findCallers symbol=helper\nMATCH (a)-[:CALLS]->(b {name: 'helper'}) RETURN a.name")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "outer", res.Rows[0][0])
}

func TestMemStore_Query_FindCallees(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)

	res, err := m.Query(ctx, "// semindex-query kind=findCallees symbol=outer\nMATCH ...")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "helper", res.Rows[0][0])
}

func TestMemStore_Query_FindExports(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)

	res, err := m.Query(ctx, "// semindex-query kind=findExports path=a.ts\nMATCH ...")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "outer", res.Rows[0][0])
}

func TestMemStore_Query_FindClassMembers(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)

	res, err := m.Query(ctx, "// semindex-query kind=findClassMembers symbol=Dog\nMATCH ...")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "bark", res.Rows[0][0])
}

func TestMemStore_Query_FindCallGraph_RespectsDepth(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	require.NoError(t, m.InsertSymbols(ctx, []types.Symbol{
		{ID: "s1", Name: "a", Kind: types.KindFunction, File: "f.ts"},
		{ID: "s2", Name: "b", Kind: types.KindFunction, File: "f.ts"},
		{ID: "s3", Name: "c", Kind: types.KindFunction, File: "f.ts"},
	}))
	require.NoError(t, m.InsertRelationships(ctx, []types.Relationship{
		{Kind: types.RelCalls, From: "a", To: "b"},
		{Kind: types.RelCalls, From: "b", To: "c"},
	}))

	res, err := m.Query(ctx, "// semindex-query kind=findCallGraph symbol=a depth=1\nMATCH ...")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "b", res.Rows[0][2])
}

func TestMemStore_Query_UnknownKind(t *testing.T) {
	ctx := context.Background()
	m := NewMemStore()
	_, err := m.Query(ctx, "// semindex-query kind=bogus\nMATCH ...")
	require.Error(t, err)

	var qerr *serrors.QueryError
	assert.True(t, errors.As(err, &qerr))
}

func TestMemStore_Query_RawEqualityFallback(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)

	res, err := m.Query(ctx, "MATCH (n) WHERE n.name = 'outer' RETURN n.name, n.file")
	require.NoError(t, err)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "outer", res.Rows[0][0])
}

func TestMemStore_Query_FindUnusedExports(t *testing.T) {
	ctx := context.Background()
	m := seedStore(t)

	res, err := m.Query(ctx, "// semindex-query kind=findUnusedExports\nMATCH ...")
	require.NoError(t, err)

	var names []string
	for _, row := range res.Rows {
		names = append(names, row[0].(string))
	}
	assert.Contains(t, names, "Dog")
	assert.Contains(t, names, "outer")
	assert.NotContains(t, names, "helper")
}

func TestEscapeString(t *testing.T) {
	assert.Equal(t, `it\'s a \"test\"\\`, EscapeString(`it's a "test"\`))
}
