package testutil

import (
	"sync"

	"github.com/roach88/scripthost/internal/scriptcache"
)

// MapCache is a synchronous content cache and batch loader over a fixed
// set of script bodies keyed by URL.
//
// Fetch completes before returning. References that are not URLs are
// inline source. URLs missing from the map fail.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type MapCache struct {
	mu      sync.Mutex
	scripts map[string]string
	bad     map[string]bool
	fetches map[string]int
	deleted []string
}

// NewMapCache creates a cache serving scripts.
func NewMapCache(scripts map[string]string) *MapCache {
	c := &MapCache{
		scripts: make(map[string]string),
		bad:     make(map[string]bool),
		fetches: make(map[string]int),
	}
	for u, s := range scripts {
		c.scripts[u] = s
	}
	return c
}

// Put adds or replaces a script body.
func (c *MapCache) Put(url, contents string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.scripts[url] = contents
}

// Fetch implements engine.ContentCache. Negative-cache hits fail without
// counting as a fetch.
func (c *MapCache) Fetch(scriptOrURL string, forceRefresh bool, done scriptcache.ContentCallback) {
	if !scriptcache.IsURL(scriptOrURL) {
		done(scriptOrURL, scriptOrURL, false, true)
		return
	}

	c.mu.Lock()
	if c.bad[scriptOrURL] && !forceRefresh {
		c.mu.Unlock()
		done(scriptOrURL, "", true, false)
		return
	}
	c.fetches[scriptOrURL]++
	contents, ok := c.scripts[scriptOrURL]
	c.mu.Unlock()

	done(scriptOrURL, contents, true, ok)
}

// MarkBad implements engine.ContentCache.
func (c *MapCache) MarkBad(identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bad[identifier] = true
}

// Delete implements engine.ContentCache.
func (c *MapCache) Delete(url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deleted = append(c.deleted, url)
}

// Start implements engine.BatchLoader.
func (c *MapCache) Start(urls []string, onFinished func(map[string]string)) {
	out := make(map[string]string, len(urls))
	for _, u := range urls {
		c.Fetch(u, false, func(s, contents string, _, ok bool) {
			if ok {
				out[s] = contents
			}
		})
	}
	onFinished(out)
}

// IsBad reports whether identifier was marked bad.
func (c *MapCache) IsBad(identifier string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bad[identifier]
}

// Fetches returns how many times url was fetched.
func (c *MapCache) Fetches(url string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches[url]
}

// Deleted returns the URLs evicted so far, in order.
func (c *MapCache) Deleted() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.deleted...)
}
