package mapping

import (
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/gamelinehq/marketfeed/internal/model"
)

// CacheStats is a point-in-time snapshot of cache counters.
type CacheStats struct {
	Size      int    `json:"size"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

type entry struct {
	mapping  model.TickerMapping
	lastUsed uint64
}

// Cache is a bounded ticker→mapping map with a reverse game→tickers index.
// Recency is a monotonically increasing access counter bumped on every
// successful Get and on Add, so eviction order is deterministic under test
// and immune to clock adjustments.
type Cache struct {
	mu         sync.Mutex
	maxEntries int
	counter    uint64
	entries    map[string]*entry
	byGame     map[uuid.UUID]map[string]struct{}

	hits      uint64
	misses    uint64
	evictions uint64
}

// NewCache creates a cache bounded to maxEntries.
func NewCache(maxEntries int) *Cache {
	return &Cache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
		byGame:     make(map[uuid.UUID]map[string]struct{}),
	}
}

// Get returns the mapping for ticker and marks it recently used.
func (c *Cache) Get(ticker string) (model.TickerMapping, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[ticker]
	if !ok {
		c.misses++
		return model.TickerMapping{}, false
	}

	c.counter++
	e.lastUsed = c.counter
	c.hits++
	return e.mapping, true
}

// Add inserts or replaces a mapping. When inserting at capacity, the
// least-recently-used tenth of the cache is evicted first.
func (c *Cache) Add(m model.TickerMapping) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[m.Ticker]; ok {
		c.unindex(e.mapping)
		c.counter++
		e.mapping = m
		e.lastUsed = c.counter
		c.index(m)
		return
	}

	if len(c.entries) >= c.maxEntries {
		c.evictLocked()
	}

	c.counter++
	c.entries[m.Ticker] = &entry{mapping: m, lastUsed: c.counter}
	c.index(m)
}

// Remove deletes a ticker's mapping if present.
func (c *Cache) Remove(ticker string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[ticker]
	if !ok {
		return
	}
	c.unindex(e.mapping)
	delete(c.entries, ticker)
}

// ReplaceAll swaps in a freshly loaded mapping set, truncating to capacity
// if the load is larger. Returns the number of mappings dropped that way.
func (c *Cache) ReplaceAll(mappings []model.TickerMapping) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	dropped := 0
	if len(mappings) > c.maxEntries {
		dropped = len(mappings) - c.maxEntries
		mappings = mappings[:c.maxEntries]
	}

	c.entries = make(map[string]*entry, len(mappings))
	c.byGame = make(map[uuid.UUID]map[string]struct{})
	for _, m := range mappings {
		c.counter++
		c.entries[m.Ticker] = &entry{mapping: m, lastUsed: c.counter}
		c.index(m)
	}

	return dropped
}

// TickersForGame returns the tickers currently mapped to a game, sorted.
func (c *Cache) TickersForGame(gameID uuid.UUID) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	set := c.byGame[gameID]
	if len(set) == 0 {
		return nil
	}
	tickers := make([]string, 0, len(set))
	for t := range set {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)
	return tickers
}

// Tickers returns every cached ticker, sorted.
func (c *Cache) Tickers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.entries))
	for t := range c.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// All returns a copy of every cached mapping, for snapshots.
func (c *Cache) All() []model.TickerMapping {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]model.TickerMapping, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.mapping)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}

// Len returns the number of cached mappings.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Stats returns current counters.
func (c *Cache) Stats() CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return CacheStats{
		Size:      len(c.entries),
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}

// evictLocked removes the least-recently-used tenth of the cache, at least
// one entry. Caller holds the lock.
func (c *Cache) evictLocked() {
	count := c.maxEntries / 10
	if count < 1 {
		count = 1
	}

	type victim struct {
		ticker   string
		lastUsed uint64
	}
	victims := make([]victim, 0, len(c.entries))
	for t, e := range c.entries {
		victims = append(victims, victim{ticker: t, lastUsed: e.lastUsed})
	}
	sort.Slice(victims, func(i, j int) bool { return victims[i].lastUsed < victims[j].lastUsed })

	if count > len(victims) {
		count = len(victims)
	}
	for _, v := range victims[:count] {
		c.unindex(c.entries[v.ticker].mapping)
		delete(c.entries, v.ticker)
		c.evictions++
	}
}

func (c *Cache) index(m model.TickerMapping) {
	set, ok := c.byGame[m.GameID]
	if !ok {
		set = make(map[string]struct{})
		c.byGame[m.GameID] = set
	}
	set[m.Ticker] = struct{}{}
}

func (c *Cache) unindex(m model.TickerMapping) {
	set, ok := c.byGame[m.GameID]
	if !ok {
		return
	}
	delete(set, m.Ticker)
	if len(set) == 0 {
		delete(c.byGame, m.GameID)
	}
}
