package storage

import (
	"container/list"
	"sync"
	"time"
)

// planKey is the composite key original_source/src/cache/mod.rs uses:
// the raw SQL text plus the schema version at prepare time, so a DDL
// change invalidates a prepared statement's cached RowDescription without
// needing to scan every cached entry for affected tables.
type planKey struct {
	SQL string
	SchemaVersion int64
}

// CachedQueryPlan is the fast-path classification result for one SQL text:
// whether it qualifies for direct execution versus translation, and the
// translated statement(s) when it does not.
type CachedQueryPlan struct {
	FastPath bool
	Statements []string
}

// QueryPlanCache is an LRU cache of CachedQueryPlan keyed by (sql,
// schemaVersion), satisfying the multi-reader/single-writer with
// TTL/LRU eviction requirement for the query-plan cache.
type QueryPlanCache struct {
	mu sync.Mutex
	capacity int
	ttl time.Duration
	entries map[planKey]*list.Element
	order *list.List
}

type queryCacheEntry struct {
	key planKey
	plan CachedQueryPlan
	expiresAt time.Time
}

// NewQueryPlanCache creates a cache with pgsqlite's defaults: 1000
// entries and a 10 minute TTL. No environment variable or flag changes
// these values; NewQueryPlanCacheWith takes explicit ones.
func NewQueryPlanCache() *QueryPlanCache {
	return NewQueryPlanCacheWith(1000, 10*time.Minute)
}

// NewQueryPlanCacheWith creates a cache with an explicit capacity and TTL.
func NewQueryPlanCacheWith(capacity int, ttl time.Duration) *QueryPlanCache {
	return &QueryPlanCache{
		capacity: capacity,
		ttl: ttl,
		entries: make(map[planKey]*list.Element),
		order: list.New(),
	}
}

// Get returns the cached plan for (sql, schemaVersion), if present and not
// expired.
func (c *QueryPlanCache) Get(sql string, schemaVersion int64) (CachedQueryPlan, bool) {
	key := planKey{SQL: sql, SchemaVersion: schemaVersion}
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		return CachedQueryPlan{}, false
	}
	entry := el.Value.(*queryCacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.order.Remove(el)
		delete(c.entries, key)
		return CachedQueryPlan{}, false
	}
	c.order.MoveToFront(el)
	return entry.plan, true
}

// Put inserts or replaces a cached plan, evicting the least-recently-used
// entry if the cache is at capacity.
func (c *QueryPlanCache) Put(sqlText string, schemaVersion int64, plan CachedQueryPlan) {
	key := planKey{SQL: sqlText, SchemaVersion: schemaVersion}
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value.(*queryCacheEntry).plan = plan
		el.Value.(*queryCacheEntry).expiresAt = time.Now().Add(c.ttl)
		c.order.MoveToFront(el)
		return
	}

	entry := &queryCacheEntry{key: key, plan: plan, expiresAt: time.Now().Add(c.ttl)}
	el := c.order.PushFront(entry)
	c.entries[key] = el

	if c.order.Len() > c.capacity {
		oldest := c.order.Back()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*queryCacheEntry).key)
		}
	}
}

// InvalidateSQL drops every cached schema version for a given SQL text,
// used when a table referenced by that text is altered and the caller
// does not know which prior schema versions exist.
func (c *QueryPlanCache) InvalidateSQL(sqlText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key, el := range c.entries {
		if key.SQL == sqlText {
			c.order.Remove(el)
			delete(c.entries, key)
		}
	}
}

// Len returns the current number of cached entries.
func (c *QueryPlanCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
