// Package config loads semindex's configuration: watch roots, include/ignore
// patterns, store backends, debounce/cache tuning, and logging mode. Files
// are authored in KDL and merged global-then-project, mirroring how the
// teacher project layers its own "~/.lci.kdl" and "<root>/.lci.kdl" files.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/standardbeagle/semindex/internal/serrors"
)

// Project holds the indexed repository's identity and root directory.
type Project struct {
	Name string
	Root string
}

// Index controls which files the watcher and full-index walk consider.
type Index struct {
	Include       []string
	Ignore        []string
	FollowSymlink bool
	MaxFileSize   int64 // bytes; 0 means no limit, skips oversized generated bundles
}

// Store names the CLI binaries (or, when empty, selects the in-process
// adapter) backing the graph and metrics stores, plus each store's path.
type Store struct {
	GraphPath    string
	GraphCLI     string // empty selects the in-process MemStore
	MetricsPath  string
	MetricsCLI   string // empty selects the in-process SQLiteStore
}

// Performance tunes debounce timing and the bounded-parallel hasher.
type Performance struct {
	DebounceMS int
	HashWorkers int
}

// Cache tunes the query-result cache.
type Cache struct {
	TTLMS      int // 0 disables caching
	MaxEntries int
}

// Logging selects the structured-logging level and encoder.
type Logging struct {
	Level    string // DEBUG|INFO|WARN|ERROR|NONE
	JSONMode bool
}

// Config is the fully merged, defaulted configuration for one run.
type Config struct {
	Project     Project
	Index       Index
	Store       Store
	Performance Performance
	Cache       Cache
	Logging     Logging
}

const (
	defaultDebounceMS  = 500
	minDebounceMS      = 50
	defaultCacheTTLMS  = 5000
	defaultCacheMax    = 100
	defaultHashWorkers = 4
)

// Default returns the configuration a bare repository gets with no KDL
// files present: current directory root, no includes/ignores beyond the
// defaults, in-process stores, and INFO-level console logging.
func Default(root string) *Config {
	return &Config{
		Project: Project{Root: root},
		Index: Index{
			Include: []string{"**/*.ts", "**/*.tsx", "**/*.js", "**/*.jsx"},
			Ignore:  []string{"**/node_modules/**", "**/.git/**", "**/dist/**", "**/build/**"},
		},
		Performance: Performance{DebounceMS: defaultDebounceMS, HashWorkers: defaultHashWorkers},
		Cache:       Cache{TTLMS: defaultCacheTTLMS, MaxEntries: defaultCacheMax},
		Logging:     Logging{Level: "INFO", JSONMode: false},
	}
}

// Load reads the global config (~/.semindex.kdl) and the project config
// (<root>/.semindex.kdl), merging project values over global ones, then
// applying defaults for anything left unset. A missing file at either
// location is not an error; a malformed one is.
func Load(root string) (*Config, error) {
	return LoadWithRoot(root)
}

// LoadWithRoot is Load with an explicit root, used by tests and by callers
// that have already resolved the working directory.
func LoadWithRoot(root string) (*Config, error) {
	cfg := Default(root)

	if home, err := os.UserHomeDir(); err == nil {
		globalPath := filepath.Join(home, ".semindex.kdl")
		if b, err := os.ReadFile(globalPath); err == nil {
			if err := mergeKDL(cfg, string(b)); err != nil {
				return nil, serrors.NewConfigError(globalPath, err)
			}
		}
	}

	projectPath := filepath.Join(root, ".semindex.kdl")
	if b, err := os.ReadFile(projectPath); err == nil {
		if err := mergeKDL(cfg, string(b)); err != nil {
			return nil, serrors.NewConfigError(projectPath, err)
		}
	}

	normalize(cfg)

	if cfg.Performance.DebounceMS < minDebounceMS {
		cfg.Performance.DebounceMS = minDebounceMS
	}

	return cfg, nil
}

// normalize applies the "/workspace/" -> "./" path shim to Project.Root and
// strips a matching prefix from any include/ignore pattern authored against
// a containerized path, matching config.LoadWithRoot's own normalization.
func normalize(cfg *Config) {
	const containerPrefix = "/workspace/"

	if strings.HasPrefix(cfg.Project.Root, containerPrefix) {
		cfg.Project.Root = "./" + strings.TrimPrefix(cfg.Project.Root, containerPrefix)
	}
	if cfg.Project.Root == "" {
		cfg.Project.Root = "."
	}

	for i, p := range cfg.Index.Include {
		cfg.Index.Include[i] = strings.TrimPrefix(p, containerPrefix)
	}
	for i, p := range cfg.Index.Ignore {
		cfg.Index.Ignore[i] = strings.TrimPrefix(p, containerPrefix)
	}
}
