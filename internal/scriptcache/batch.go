package scriptcache

import "sync"

// BatchLoader fetches several URLs concurrently through a Cache.
type BatchLoader struct {
	cache *Cache
}

// NewBatchLoader creates a loader that resolves URLs through cache.
func NewBatchLoader(cache *Cache) *BatchLoader {
	return &BatchLoader{cache: cache}
}

// Start fetches every url and calls onFinished once with the bodies that
// loaded. URLs that failed are absent from the map.
//
// onFinished runs on whichever goroutine completes last, or synchronously
// when every url resolves without a download.
func (l *BatchLoader) Start(urls []string, onFinished func(map[string]string)) {
	if len(urls) == 0 {
		onFinished(map[string]string{})
		return
	}

	var (
		mu      sync.Mutex
		results = make(map[string]string, len(urls))
		pending = len(urls)
	)
	for _, u := range urls {
		l.cache.Fetch(u, false, func(scriptOrURL, contents string, isURL, ok bool) {
			mu.Lock()
			if ok {
				results[scriptOrURL] = contents
			}
			pending--
			last := pending == 0
			mu.Unlock()

			if last {
				onFinished(results)
			}
		})
	}
}
