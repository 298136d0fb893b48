// Package indexing ties the watcher, hasher, change detector, extractor,
// and the two stores into the incremental pipeline: FullIndex walks a tree
// once; Run keeps it consistent as the tree changes, mirroring the
// teacher's indexing/master_index.go + pipeline.go split between "build
// once" and "watch forever."
package indexing

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"github.com/standardbeagle/semindex/internal/extract"
	"github.com/standardbeagle/semindex/internal/graphstore"
	"github.com/standardbeagle/semindex/internal/hashutil"
	"github.com/standardbeagle/semindex/internal/metricsstore"
	"github.com/standardbeagle/semindex/internal/serrors"
	"github.com/standardbeagle/semindex/internal/snapshot"
	"github.com/standardbeagle/semindex/internal/types"
	"github.com/standardbeagle/semindex/internal/watch"
)

// Orchestrator owns the full-index and incremental-watch operations over
// one project root.
type Orchestrator struct {
	Root          string
	Include       []string
	Ignore        []string
	FollowSymlink bool
	HashWorkers   int
	DebounceMS    int
	MaxFileSize   int64 // bytes; 0 means no limit

	Graph   graphstore.GraphStore
	Metrics metricsstore.MetricsStore
	Extract *extract.Extractor
	Logger  *zap.Logger

	mu       sync.RWMutex
	snapshot map[string]string // path -> content hash, the in-memory mirror of the persisted table
	pending  map[string]struct{}

	watcher *watch.Watcher
	fatal   chan error // carries a StoreUnavailableError out of onWatchEvent to Run
}

// New constructs an Orchestrator. Logger may be nil, in which case a no-op
// logger is used.
func New(root string, graph graphstore.GraphStore, metrics metricsstore.MetricsStore, extractor *extract.Extractor, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		Root:     root,
		Graph:    graph,
		Metrics:  metrics,
		Extract:  extractor,
		Logger:   logger,
		snapshot: make(map[string]string),
		pending:  make(map[string]struct{}),
		fatal:    make(chan error, 1),
	}
}

// FullIndex enumerates every candidate file under Root, hashes it to form
// the initial snapshot S0, extracts and writes each file, and persists S0.
func (o *Orchestrator) FullIndex(ctx context.Context) error {
	paths, err := o.walkCandidates()
	if err != nil {
		return err
	}

	hashes, err := hashutil.HashFiles(paths, o.hashWorkers())
	if err != nil {
		return err
	}

	newSnapshot := make(map[string]string, len(hashes))
	var snapshotEntries []metricsstore.SnapshotEntry
	now := time.Now().Unix()

	for _, h := range hashes {
		if err := o.indexFile(ctx, h.Path); err != nil {
			o.Logger.Warn("full index: extraction failed", zap.String("path", h.Path), zap.Error(err))
			continue
		}
		newSnapshot[h.Path] = h.Content
		snapshotEntries = append(snapshotEntries, metricsstore.SnapshotEntry{
			FilePath: h.Path, ContentHash: h.Content, LastScanned: now,
		})
	}

	if err := o.Metrics.SaveSnapshot(ctx, snapshotEntries); err != nil {
		return err
	}

	o.mu.Lock()
	o.snapshot = newSnapshot
	o.mu.Unlock()
	return nil
}

// walkCandidates lists every regular file under Root whose slash-normalized
// relative path matches Include and does not match Ignore.
func (o *Orchestrator) walkCandidates() ([]string, error) {
	var files []string
	visited := make(map[string]bool)

	err := filepath.Walk(o.Root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			real, rerr := filepath.EvalSymlinks(path)
			if rerr != nil {
				return nil
			}
			if visited[real] {
				return filepath.SkipDir
			}
			visited[real] = true
			return nil
		}

		rel, rerr := filepath.Rel(o.Root, path)
		if rerr != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		if o.matchesIgnore(rel) || !o.matchesInclude(rel) {
			return nil
		}
		if o.MaxFileSize > 0 && info.Size() > o.MaxFileSize {
			return nil
		}
		files = append(files, path)
		return nil
	})
	return files, err
}

func (o *Orchestrator) matchesInclude(rel string) bool {
	if len(o.Include) == 0 {
		return true
	}
	for _, pat := range o.Include {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func (o *Orchestrator) matchesIgnore(rel string) bool {
	for _, pat := range o.Ignore {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func (o *Orchestrator) hashWorkers() int {
	if o.HashWorkers > 0 {
		return o.HashWorkers
	}
	return 4
}

// indexFile extracts path and replaces its previously-written rows: delete
// then insert, the delete-then-insert re-index discipline spec §3 requires.
func (o *Orchestrator) indexFile(ctx context.Context, path string) error {
	content, err := readFile(path)
	if err != nil {
		return serrors.NewExtractorError(path, err)
	}

	result, err := o.Extract.AnalyzeFile(path, content)
	if err != nil {
		return serrors.NewExtractorError(path, err)
	}

	if err := o.Graph.DeleteFileData(ctx, path); err != nil {
		return err
	}

	o.clearPending(path)

	if err := o.writeResult(ctx, result); err != nil {
		o.markPending(path)
		return err
	}

	if err := o.Metrics.UpsertFileMetrics(ctx, []types.FileMetrics{result.Metrics}); err != nil {
		o.markPending(path)
		return err
	}

	return nil
}

func (o *Orchestrator) writeResult(ctx context.Context, result *extract.Result) error {
	if err := o.Graph.InsertSymbols(ctx, result.Symbols); err != nil {
		return err
	}
	if err := o.Graph.InsertTypes(ctx, result.Types); err != nil {
		return err
	}
	if err := o.Graph.InsertImports(ctx, result.Imports); err != nil {
		return err
	}
	if err := o.Graph.InsertRelationships(ctx, result.Relationships); err != nil {
		// Row-level rejections (MultiError) are not fatal to the batch;
		// only propagate if nothing else is wrong for the caller to see.
		if _, ok := err.(*serrors.MultiError); !ok {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) markPending(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending[path] = struct{}{}
}

func (o *Orchestrator) clearPending(path string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.pending, path)
}

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// PendingReindex returns the set of paths whose last write attempt failed
// after the delete succeeded; Run retries these on every subsequent tick.
func (o *Orchestrator) PendingReindex() []string {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]string, 0, len(o.pending))
	for p := range o.pending {
		out = append(out, p)
	}
	return out
}

// Run starts the watcher and keeps the graph and metrics stores consistent
// with the tree until ctx is cancelled. It loads the persisted snapshot
// first so a restart resumes from where the last run left off, then
// reconciles every debounced batch through the same four-step algorithm:
// hash the batch's paths, diff against the known snapshot, reindex
// added/modified paths, and retract deleted ones.
func (o *Orchestrator) Run(ctx context.Context) error {
	persisted, err := o.Metrics.LoadSnapshot(ctx)
	if err != nil {
		return err
	}
	o.mu.Lock()
	o.snapshot = persisted
	o.mu.Unlock()

	o.watcher = &watch.Watcher{
		Roots:      []string{o.Root},
		Ignore:     o.Ignore,
		DebounceMS: o.DebounceMS,
		OnEvent:    o.onWatchEvent,
	}

	if err := o.watcher.Start(); err != nil {
		return err
	}

	var fatalErr error
	select {
	case <-ctx.Done():
	case fatalErr = <-o.fatal:
	}

	if stopErr := o.watcher.Stop(); stopErr != nil && fatalErr == nil {
		return stopErr
	}
	return fatalErr
}

// reportFatal checks err for a StoreUnavailableError and, if found, hands it
// to Run over the fatal channel so the watcher stops and the error reaches
// the caller instead of being dropped at a log line. Reports whether err was
// fatal, so onWatchEvent can stop reconciling the rest of the batch.
func (o *Orchestrator) reportFatal(err error) bool {
	var sue *serrors.StoreUnavailableError
	if !errors.As(err, &sue) {
		return false
	}
	select {
	case o.fatal <- sue:
	default:
	}
	return true
}

// onWatchEvent reconciles one debounced batch of filesystem events against
// the in-memory snapshot, using snapshot.Diff the same way FullIndex's
// caller would across the whole tree, just scoped to the batch's paths.
func (o *Orchestrator) onWatchEvent(ev watch.FileEvent) {
	ctx := context.Background()

	rels := make([]string, 0, len(ev.Paths))
	for _, p := range ev.Paths {
		rel, rerr := filepath.Rel(o.Root, p)
		if rerr != nil {
			rel = p
		}
		rel = filepath.ToSlash(rel)
		if o.matchesIgnore(rel) || !o.matchesInclude(rel) {
			continue
		}
		rels = append(rels, p)
	}
	for _, p := range o.PendingReindex() {
		if !slices.Contains(rels, p) {
			rels = append(rels, p)
		}
	}
	if len(rels) == 0 {
		return
	}

	existing := make([]string, 0, len(rels))
	for _, p := range rels {
		info, err := os.Stat(p)
		if err != nil {
			continue
		}
		if o.MaxFileSize > 0 && info.Size() > o.MaxFileSize {
			continue
		}
		existing = append(existing, p)
	}

	hashes, err := hashutil.HashFiles(existing, o.hashWorkers())
	if err != nil {
		o.Logger.Warn("incremental index: hashing failed", zap.Error(err))
		return
	}

	o.mu.RLock()
	prev := make(map[string]string, len(rels))
	for _, p := range rels {
		if h, ok := o.snapshot[p]; ok {
			prev[p] = h
		}
	}
	o.mu.RUnlock()

	cur := make(map[string]string, len(hashes))
	for _, h := range hashes {
		cur[h.Path] = h.Content
	}

	changes := snapshot.Diff(prev, cur)

	now := time.Now().Unix()
	var toSave []metricsstore.SnapshotEntry

	for _, path := range append(changes.Added, changes.Modified...) {
		if err := o.indexFile(ctx, path); err != nil {
			if o.reportFatal(err) {
				return
			}
			o.Logger.Warn("incremental index: write failed", zap.String("path", path), zap.Error(err))
			continue
		}
		hash := cur[path]
		o.mu.Lock()
		o.snapshot[path] = hash
		o.mu.Unlock()
		toSave = append(toSave, metricsstore.SnapshotEntry{FilePath: path, ContentHash: hash, LastScanned: now})
	}

	for _, path := range changes.Deleted {
		if err := o.Graph.DeleteFileData(ctx, path); err != nil {
			if o.reportFatal(err) {
				return
			}
			o.Logger.Warn("incremental index: delete failed", zap.String("path", path), zap.Error(err))
			continue
		}
		if err := o.Metrics.DeleteByPath(ctx, path); err != nil {
			if o.reportFatal(err) {
				return
			}
			o.Logger.Warn("incremental index: metrics delete failed", zap.String("path", path), zap.Error(err))
		}
		if err := o.Metrics.DeleteSnapshotEntry(ctx, path); err != nil {
			if o.reportFatal(err) {
				return
			}
			o.Logger.Warn("incremental index: snapshot delete failed", zap.String("path", path), zap.Error(err))
		}
		o.mu.Lock()
		delete(o.snapshot, path)
		o.mu.Unlock()
		o.clearPending(path)
	}

	if len(toSave) > 0 {
		if err := o.Metrics.SaveSnapshot(ctx, toSave); err != nil {
			if o.reportFatal(err) {
				return
			}
			o.Logger.Warn("incremental index: snapshot persist failed", zap.Error(err))
		}
	}
}
