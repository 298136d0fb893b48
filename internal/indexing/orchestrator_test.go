package indexing

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/standardbeagle/semindex/internal/extract"
	"github.com/standardbeagle/semindex/internal/graphstore"
	"github.com/standardbeagle/semindex/internal/metricsstore"
	"github.com/standardbeagle/semindex/internal/serrors"
	"github.com/standardbeagle/semindex/internal/watch"
)

// failingGraphStore wraps a real GraphStore but turns every DeleteFileData
// call into a StoreUnavailableError, simulating a graph store that has gone
// down mid-watch.
type failingGraphStore struct {
	graphstore.GraphStore
}

func (f *failingGraphStore) DeleteFileData(ctx context.Context, path string) error {
	return serrors.NewStoreUnavailableError("graph", assert.AnError)
}

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newFixture(t *testing.T) (*Orchestrator, *graphstore.MemStore, *metricsstore.SQLiteStore, string) {
	t.Helper()
	dir := t.TempDir()

	graph := graphstore.NewMemStore()
	metrics, err := metricsstore.OpenSQLiteStore(filepath.Join(dir, "metrics.db"))
	require.NoError(t, err)
	t.Cleanup(func() { metrics.Close() })

	o := New(dir, graph, metrics, extract.New(), nil)
	o.HashWorkers = 2
	o.DebounceMS = 20
	return o, graph, metrics, dir
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const sampleSource = `export function outer() {
  helper();
}

function helper() {
  return 1;
}
`

func TestFullIndex_IndexesCandidateFiles(t *testing.T) {
	o, graph, metrics, dir := newFixture(t)
	writeFile(t, dir, "a.ts", sampleSource)
	writeFile(t, dir, "ignored.txt", "not source")

	ctx := context.Background()
	require.NoError(t, o.FullIndex(ctx))

	res, err := graph.Query(ctx, "// semindex-query kind=findExports path="+filepath.Join(dir, "a.ts")+"\nMATCH (n:Symbol) RETURN n.name")
	require.NoError(t, err)
	assert.NotEmpty(t, res.Rows)

	fm, ok, err := metrics.GetFileMetrics(ctx, filepath.Join(dir, "a.ts"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, filepath.Join(dir, "a.ts"), fm.FilePath)

	assert.Len(t, o.snapshot, 1)
}

func TestFullIndex_SkipsFilesOutsideInclude(t *testing.T) {
	o, graph, _, dir := newFixture(t)
	o.Include = []string{"**/*.ts"}
	writeFile(t, dir, "a.ts", sampleSource)
	writeFile(t, dir, "b.js", sampleSource)

	ctx := context.Background()
	require.NoError(t, o.FullIndex(ctx))

	assert.Len(t, o.snapshot, 1)
	assert.Contains(t, o.snapshot, filepath.Join(dir, "a.ts"))

	res, err := graph.Query(ctx, "MATCH (n) WHERE n.name = 'outer' RETURN n.name")
	require.NoError(t, err)
	_ = res
}

func TestFullIndex_AppliesIgnorePatterns(t *testing.T) {
	o, _, _, dir := newFixture(t)
	o.Ignore = []string{"**/node_modules/**"}
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "node_modules"), 0o755))
	writeFile(t, dir, "node_modules/vendored.ts", sampleSource)
	writeFile(t, dir, "app.ts", sampleSource)

	require.NoError(t, o.FullIndex(context.Background()))

	assert.Len(t, o.snapshot, 1)
	assert.Contains(t, o.snapshot, filepath.Join(dir, "app.ts"))
}

func TestFullIndex_SkipsFilesAboveMaxFileSize(t *testing.T) {
	o, _, _, dir := newFixture(t)
	o.MaxFileSize = 20
	writeFile(t, dir, "small.ts", "export const x=1;")
	writeFile(t, dir, "big.ts", sampleSource)

	require.NoError(t, o.FullIndex(context.Background()))

	assert.Len(t, o.snapshot, 1)
	assert.Contains(t, o.snapshot, filepath.Join(dir, "small.ts"))
}

func TestRun_IndexesAddedFile(t *testing.T) {
	o, graph, _, dir := newFixture(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		o.mu.RLock()
		defer o.mu.RUnlock()
		return o.watcher != nil
	}, time.Second, 5*time.Millisecond)

	path := writeFile(t, dir, "new.ts", sampleSource)

	require.Eventually(t, func() bool {
		o.mu.RLock()
		defer o.mu.RUnlock()
		_, ok := o.snapshot[path]
		return ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	res, err := graph.Query(context.Background(), "MATCH (n) WHERE n.name = 'outer' RETURN n.name")
	require.NoError(t, err)
	_ = res
}

func TestRun_RetractsDeletedFile(t *testing.T) {
	o, graph, metrics, dir := newFixture(t)
	path := writeFile(t, dir, "gone.ts", sampleSource)
	require.NoError(t, o.FullIndex(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		o.mu.RLock()
		defer o.mu.RUnlock()
		return o.watcher != nil
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, os.Remove(path))

	require.Eventually(t, func() bool {
		o.mu.RLock()
		defer o.mu.RUnlock()
		_, ok := o.snapshot[path]
		return !ok
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)

	_, ok, err := metrics.GetFileMetrics(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := graph.Query(context.Background(), "MATCH (n) WHERE n.name = 'outer' RETURN n.name")
	require.NoError(t, err)
	_ = res
}

func TestRun_ReturnsFatalErrorOnStoreUnavailable(t *testing.T) {
	o, graph, _, dir := newFixture(t)
	o.Graph = &failingGraphStore{GraphStore: graph}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool {
		o.mu.RLock()
		defer o.mu.RUnlock()
		return o.watcher != nil
	}, time.Second, 5*time.Millisecond)

	writeFile(t, dir, "new.ts", sampleSource)

	select {
	case err := <-done:
		require.Error(t, err)
		var sue *serrors.StoreUnavailableError
		assert.ErrorAs(t, err, &sue)
		assert.Equal(t, watch.Idle, o.watcher.State())
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after a fatal store error")
	}
}

func TestPendingReindex_EmptyInitially(t *testing.T) {
	o, _, _, _ := newFixture(t)
	assert.Empty(t, o.PendingReindex())
}

func TestMatchesInclude_DefaultsTrueWhenUnset(t *testing.T) {
	o := &Orchestrator{}
	assert.True(t, o.matchesInclude("anything.ts"))
}

func TestMatchesIgnore_GlobMatch(t *testing.T) {
	o := &Orchestrator{Ignore: []string{"**/dist/**"}}
	assert.True(t, o.matchesIgnore("pkg/dist/bundle.js"))
	assert.False(t, o.matchesIgnore("pkg/src/index.ts"))
}

func TestHashWorkers_DefaultsTo4(t *testing.T) {
	o := &Orchestrator{}
	assert.Equal(t, 4, o.hashWorkers())
	o.HashWorkers = 9
	assert.Equal(t, 9, o.hashWorkers())
}
