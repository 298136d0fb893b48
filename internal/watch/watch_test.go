package watch

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcher_StartStopLifecycle(t *testing.T) {
	dir := t.TempDir()
	w := &Watcher{Roots: []string{dir}, DebounceMS: 10}

	assert.Equal(t, Idle, w.State())
	require.NoError(t, w.Start())
	assert.Equal(t, Running, w.State())

	require.NoError(t, w.Stop())
	assert.Equal(t, Idle, w.State())
}

func TestWatcher_StartTwiceFails(t *testing.T) {
	dir := t.TempDir()
	w := &Watcher{Roots: []string{dir}, DebounceMS: 10}

	require.NoError(t, w.Start())
	defer w.Stop()

	err := w.Start()
	require.Error(t, err)
}

func TestWatcher_StopIdempotentFromIdle(t *testing.T) {
	w := &Watcher{}
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

func TestWatcher_DeliversDebouncedBatchOnWrite(t *testing.T) {
	dir := t.TempDir()

	var mu sync.Mutex
	var events []FileEvent

	w := &Watcher{
		Roots:      []string{dir},
		DebounceMS: 30,
		OnEvent: func(e FileEvent) {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, e)
		},
	}
	require.NoError(t, w.Start())
	defer w.Stop()

	path := filepath.Join(dir, "a.ts")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(events) > 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWatcher_IgnoredPathsNeverWatched(t *testing.T) {
	dir := t.TempDir()
	ignored := filepath.Join(dir, "node_modules")
	require.NoError(t, os.MkdirAll(ignored, 0o755))

	w := &Watcher{
		Roots:      []string{dir},
		Ignore:     []string{"**/node_modules/**", "node_modules"},
		DebounceMS: 10,
	}
	require.NoError(t, w.Start())
	defer w.Stop()

	assert.True(t, w.matchesIgnore(ignored))
}

func TestWatcher_MatchesIgnore_Globs(t *testing.T) {
	w := &Watcher{Ignore: []string{"**/dist/**", "*.log"}}

	assert.True(t, w.matchesIgnore("/repo/pkg/dist/bundle.js"))
	assert.True(t, w.matchesIgnore("debug.log"))
	assert.False(t, w.matchesIgnore("/repo/src/index.ts"))
}
