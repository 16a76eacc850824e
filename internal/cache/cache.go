// Package cache provides the tiered, TTL-aware answer cache with fuzzy
// keyword matching and best-effort snapshot persistence.
package cache

import (
	"crypto/md5"
	"encoding/hex"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/pkg/utils"
)

// Entry is a cached question/answer pair. Protected entries are pre-seeded
// FAQ answers: they never expire and survive capacity sweeps.
type Entry struct {
	Key       string
	Query     string
	Answer    string
	CreatedAt time.Time
	Protected bool

	keywords map[string]struct{}
}

// Stats holds cache counters.
type Stats struct {
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Saves   int `json:"saves"`
	Entries int `json:"entries"`
}

// Cache is a three-tier answer cache: exact raw match, normalized-hash
// match, then fuzzy keyword-overlap match. Safe for concurrent use via a
// single coarse lock.
type Cache struct {
	mu       sync.Mutex
	entries  map[string]*Entry            // key -> entry
	raw      map[string]string            // raw query -> key (exact tier)
	inverted map[string]map[string]bool   // keyword -> set of keys (fuzzy tier)

	ttl            time.Duration
	maxEntries     int
	fuzzyThreshold float64
	snapshotPath   string
	persistEvery   int
	setsSinceSave  int

	stats  Stats
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger. Default is a no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithSnapshotPath enables best-effort persistence to path.
func WithSnapshotPath(path string) Option {
	return func(c *Cache) { c.snapshotPath = path }
}

// WithPersistEvery sets how many Set calls elapse between snapshot writes.
func WithPersistEvery(n int) Option {
	return func(c *Cache) {
		if n > 0 {
			c.persistEvery = n
		}
	}
}

// New creates a cache. ttl applies to dynamic entries only; maxEntries caps
// the total entry count; fuzzyThreshold is the minimum keyword-overlap score
// for a tier-3 hit.
func New(ttl time.Duration, maxEntries int, fuzzyThreshold float64, opts ...Option) *Cache {
	c := &Cache{
		entries:        make(map[string]*Entry),
		raw:            make(map[string]string),
		inverted:       make(map[string]map[string]bool),
		ttl:            ttl,
		maxEntries:     maxEntries,
		fuzzyThreshold: fuzzyThreshold,
		persistEvery:   10,
		logger:         zap.NewNop(),
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// normalize lower-cases, collapses whitespace, and strips terminal
// punctuation so trivially different phrasings share a key.
func normalize(query string) string {
	return utils.StripTerminalPunctuation(utils.CollapseWhitespace(strings.ToLower(query)))
}

// keyFor hashes the normalized query.
func keyFor(query string) string {
	sum := md5.Sum([]byte(normalize(query)))
	return hex.EncodeToString(sum[:])
}

// Get returns the cached answer for query, trying exact, normalized, and
// fuzzy tiers in order. An expired entry is deleted and reported as a miss.
func (c *Cache) Get(query string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Tier 1: exact raw match.
	if key, ok := c.raw[query]; ok {
		if entry := c.liveEntryLocked(key); entry != nil {
			c.stats.Hits++
			return entry.Answer, true
		}
	}

	// Tier 2: normalized hash match.
	if entry := c.liveEntryLocked(keyFor(query)); entry != nil {
		c.stats.Hits++
		return entry.Answer, true
	}

	// Tier 3: fuzzy keyword overlap.
	if entry := c.fuzzyLookupLocked(query); entry != nil {
		c.stats.Hits++
		return entry.Answer, true
	}

	c.stats.Misses++
	return "", false
}

// liveEntryLocked returns the entry for key if present and not expired.
// Expired entries are removed.
func (c *Cache) liveEntryLocked(key string) *Entry {
	entry, ok := c.entries[key]
	if !ok {
		return nil
	}
	if c.expiredLocked(entry) {
		c.removeLocked(entry)
		return nil
	}
	return entry
}

func (c *Cache) expiredLocked(entry *Entry) bool {
	if entry.Protected || c.ttl <= 0 {
		return false
	}
	// An entry is live strictly before createdAt+ttl; at the boundary it
	// is already expired.
	return !c.now().Before(entry.CreatedAt.Add(c.ttl))
}

// fuzzyLookupLocked scores every candidate sharing at least one content
// keyword with the query and returns the best-scoring live entry if its
// overlap meets the threshold. Ties break on lexicographically smallest key
// so the outcome is deterministic.
func (c *Cache) fuzzyLookupLocked(query string) *Entry {
	queryKeywords := ExtractKeywords(query)
	if len(queryKeywords) == 0 {
		return nil
	}

	candidates := make(map[string]bool)
	for kw := range queryKeywords {
		for key := range c.inverted[kw] {
			candidates[key] = true
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	keys := make([]string, 0, len(candidates))
	for key := range candidates {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var best *Entry
	bestScore := 0.0
	for _, key := range keys {
		entry := c.entries[key]
		if entry == nil || c.expiredLocked(entry) {
			continue
		}
		score := overlapScore(queryKeywords, entry.keywords)
		if score > bestScore {
			best, bestScore = entry, score
		}
	}
	if best == nil || bestScore < c.fuzzyThreshold {
		return nil
	}
	return best
}

// Set stores a dynamic entry for query, evicting on overflow and persisting
// the snapshot every persistEvery sets. Persistence failures are logged and
// swallowed.
func (c *Cache) Set(query, answer string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.insertLocked(query, answer, c.now(), false)

	if len(c.entries) > c.maxEntries && c.maxEntries > 0 {
		c.evictLocked()
	}

	c.setsSinceSave++
	if c.snapshotPath != "" && c.setsSinceSave >= c.persistEvery {
		c.setsSinceSave = 0
		c.persistLocked()
	}
}

// SeedFAQ replaces the protected subset with the given question/answer
// pairs. Called at startup and whenever the FAQ file changes.
func (c *Cache) SeedFAQ(faq map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, entry := range c.entries {
		if entry.Protected {
			c.removeLocked(entry)
		}
	}
	for question, answer := range faq {
		c.insertLocked(question, answer, c.now(), true)
	}
	c.logger.Info("FAQ seeded", zap.Int("entries", len(faq)))
}

func (c *Cache) insertLocked(query, answer string, createdAt time.Time, protected bool) {
	key := keyFor(query)
	if old, ok := c.entries[key]; ok {
		c.removeLocked(old)
	}
	entry := &Entry{
		Key:       key,
		Query:     query,
		Answer:    answer,
		CreatedAt: createdAt,
		Protected: protected,
		keywords:  ExtractKeywords(query),
	}
	c.entries[key] = entry
	c.raw[query] = key
	for kw := range entry.keywords {
		set, ok := c.inverted[kw]
		if !ok {
			set = make(map[string]bool)
			c.inverted[kw] = set
		}
		set[key] = true
	}
}

func (c *Cache) removeLocked(entry *Entry) {
	delete(c.entries, entry.Key)
	if c.raw[entry.Query] == entry.Key {
		delete(c.raw, entry.Query)
	}
	for kw := range entry.keywords {
		if set, ok := c.inverted[kw]; ok {
			delete(set, entry.Key)
			if len(set) == 0 {
				delete(c.inverted, kw)
			}
		}
	}
}

// evictLocked drops expired dynamic entries first; if the cache is still
// over capacity, all dynamic entries go. Protected entries are never
// removed.
func (c *Cache) evictLocked() {
	for _, entry := range c.entries {
		if !entry.Protected && c.expiredLocked(entry) {
			c.removeLocked(entry)
		}
	}
	if len(c.entries) <= c.maxEntries {
		return
	}
	removed := 0
	for _, entry := range c.entries {
		if !entry.Protected {
			c.removeLocked(entry)
			removed++
		}
	}
	c.logger.Info("cache capacity sweep", zap.Int("removed", removed))
}

// ClearExpired removes all expired dynamic entries.
func (c *Cache) ClearExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()
	cleared := 0
	for _, entry := range c.entries {
		if c.expiredLocked(entry) {
			c.removeLocked(entry)
			cleared++
		}
	}
	if cleared > 0 {
		c.logger.Debug("cleared expired cache entries", zap.Int("count", cleared))
	}
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns a copy of the counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Entries = len(c.entries)
	return s
}
