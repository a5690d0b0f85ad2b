package formula

import (
	"sync"
	"sync/atomic"
)

// Cache memoizes Parse by formula text. Failed parses are cached too, so a
// malformed formula repeated across thousands of rows is tokenized once.
//
// Thread-safety: Cache is safe for concurrent use.
type Cache struct {
	entries sync.Map // string -> cacheEntry
	hits    atomic.Int64
	misses  atomic.Int64
}

type cacheEntry struct {
	expr Expr
	err  error
}

// NewCache returns an empty parse cache.
func NewCache() *Cache {
	return &Cache{}
}

// Parse returns the cached tree for text, parsing it on first use.
func (c *Cache) Parse(text string) (Expr, error) {
	if e, ok := c.entries.Load(text); ok {
		c.hits.Add(1)
		entry := e.(cacheEntry)
		return entry.expr, entry.err
	}
	c.misses.Add(1)
	expr, err := Parse(text)
	actual, _ := c.entries.LoadOrStore(text, cacheEntry{expr: expr, err: err})
	entry := actual.(cacheEntry)
	return entry.expr, entry.err
}

// Stats reports cache hits and misses.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
