// Package cache memoizes graph-store query results behind a TTL so repeated
// identical queries (the common case for a long-running watch session) skip
// the store round-trip entirely. The eviction policy and key-hashing scheme
// are grounded on the teacher's MetricsCache, with hashicorp/golang-lru/v2
// swapped in for the size-bounded eviction that file used a manual
// sync.Map-and-oldest-scan for.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Default configuration, mirroring the teacher's Default* cache constants.
const (
	DefaultMaxEntries = 100
	DefaultTTL        = 5 * time.Second
)

type entry struct {
	value    any
	cachedAt time.Time
}

// Config configures a QueryCache.
type Config struct {
	MaxEntries int
	TTL        time.Duration
}

// DefaultConfig returns the cache's default configuration.
func DefaultConfig() Config {
	return Config{MaxEntries: DefaultMaxEntries, TTL: DefaultTTL}
}

// QueryCache is a size-bounded, TTL-expiring cache of query results keyed by
// the query text's hash. A QueryCache built with TTL == 0 is disabled: Get
// always misses and Put is a no-op, per the config surface's "0 disables"
// contract.
type QueryCache struct {
	lru      *lru.Cache[string, entry]
	ttl      time.Duration
	disabled bool

	hits      int64
	misses    int64
	evictions int64
}

// New creates a QueryCache. A non-positive MaxEntries falls back to
// DefaultMaxEntries. TTL == 0 disables caching entirely; a negative TTL is
// treated as unset and falls back to DefaultTTL.
func New(cfg Config) *QueryCache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = DefaultMaxEntries
	}
	disabled := cfg.TTL == 0
	if cfg.TTL < 0 {
		cfg.TTL = DefaultTTL
	}

	qc := &QueryCache{ttl: cfg.TTL, disabled: disabled}
	onEvict := func(_ string, _ entry) { atomic.AddInt64(&qc.evictions, 1) }
	c, err := lru.NewWithEvict(cfg.MaxEntries, onEvict)
	if err != nil {
		// Only returned by golang-lru for a non-positive size, which is
		// ruled out above.
		panic(err)
	}
	qc.lru = c
	return qc
}

// Key hashes query text into a cache key.
func Key(query string) string {
	sum := sha256.Sum256([]byte(query))
	return hex.EncodeToString(sum[:16])
}

// Get returns the cached result for query, if present and not expired.
// Always misses when the cache was built with TTL == 0.
func (qc *QueryCache) Get(query string) (any, bool) {
	if qc.disabled {
		atomic.AddInt64(&qc.misses, 1)
		return nil, false
	}

	key := Key(query)
	e, ok := qc.lru.Get(key)
	if !ok {
		atomic.AddInt64(&qc.misses, 1)
		return nil, false
	}
	if time.Since(e.cachedAt) > qc.ttl {
		qc.lru.Remove(key)
		atomic.AddInt64(&qc.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&qc.hits, 1)
	return e.value, true
}

// Put stores value under query's key. A no-op when the cache was built with
// TTL == 0.
func (qc *QueryCache) Put(query string, value any) {
	if qc.disabled {
		return
	}
	qc.lru.Add(Key(query), entry{value: value, cachedAt: time.Now()})
}

// Invalidate drops every cached entry, used after a write that could change
// query results (a file re-index, a full clear).
func (qc *QueryCache) Invalidate() {
	qc.lru.Purge()
}

// Stats reports cache hit/miss/eviction counters for a status command.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

func (qc *QueryCache) Stats() Stats {
	return Stats{
		Hits:      atomic.LoadInt64(&qc.hits),
		Misses:    atomic.LoadInt64(&qc.misses),
		Evictions: atomic.LoadInt64(&qc.evictions),
		Entries:   qc.lru.Len(),
	}
}
