package scriptcache

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/roach88/scripthost/internal/store"
)

// ContentCallback receives the outcome of a fetch. contents is only
// meaningful when ok is true. isURL is false for inline source.
type ContentCallback func(scriptOrURL, contents string, isURL, ok bool)

// DefaultFetchTimeout bounds a single remote download.
const DefaultFetchTimeout = 30 * time.Second

// Cache is the script content cache.
//
// Thread-safety: all methods are safe for concurrent use.
type Cache struct {
	store  *store.Store
	client *http.Client
	logger *slog.Logger

	// Used instead of the store when none is configured.
	mu  sync.Mutex
	mem map[string]string
	bad map[string]bool
}

// Option configures a Cache.
type Option func(*Cache)

// WithHTTPClient overrides the client used for remote fetches.
func WithHTTPClient(c *http.Client) Option {
	return func(cache *Cache) {
		cache.client = c
	}
}

// WithLogger sets the cache logger.
func WithLogger(l *slog.Logger) Option {
	return func(cache *Cache) {
		cache.logger = l
	}
}

// New creates a cache backed by st. A nil store keeps everything in memory.
func New(st *store.Store, opts ...Option) *Cache {
	c := &Cache{
		store:  st,
		client: &http.Client{Timeout: DefaultFetchTimeout},
		logger: slog.Default(),
		mem:    make(map[string]string),
		bad:    make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsURL reports whether scriptOrURL names a fetchable location rather than
// inline source.
func IsURL(scriptOrURL string) bool {
	u, err := url.Parse(strings.TrimSpace(scriptOrURL))
	if err != nil {
		return false
	}
	switch strings.ToLower(u.Scheme) {
	case "file", "http", "https":
		return true
	}
	return false
}

// Fetch resolves scriptOrURL and reports the result through done, exactly once.
//
// Inline source, negative-cache hits and cached bodies complete synchronously;
// downloads and disk reads complete on a background goroutine.
func (c *Cache) Fetch(scriptOrURL string, forceRefresh bool, done ContentCallback) {
	if !IsURL(scriptOrURL) {
		done(scriptOrURL, scriptOrURL, false, true)
		return
	}

	ctx := context.Background()

	if !forceRefresh && c.isBad(ctx, scriptOrURL) {
		c.logger.Debug("skipping script in bad script list", "url", scriptOrURL)
		done(scriptOrURL, "", true, false)
		return
	}

	if !forceRefresh && !isFileURL(scriptOrURL) {
		if contents, ok := c.cached(ctx, scriptOrURL); ok {
			done(scriptOrURL, contents, true, true)
			return
		}
	}

	go func() {
		contents, err := c.download(ctx, scriptOrURL)
		if err != nil {
			c.logger.Warn("error loading script", "url", scriptOrURL, "error", err)
			done(scriptOrURL, "", true, false)
			return
		}
		if !isFileURL(scriptOrURL) {
			c.remember(ctx, scriptOrURL, contents)
		}
		done(scriptOrURL, contents, true, true)
	}()
}

// MarkBad adds identifier to the negative cache.
func (c *Cache) MarkBad(identifier string) {
	if c.store != nil {
		if err := c.store.MarkBad(context.Background(), identifier); err != nil {
			c.logger.Error("failed to record bad script", "identifier", identifier, "error", err)
		}
		return
	}
	c.mu.Lock()
	c.bad[identifier] = true
	c.mu.Unlock()
}

// Delete evicts the cached body for url so the next fetch downloads it again.
func (c *Cache) Delete(url string) {
	if c.store != nil {
		if err := c.store.DeleteScript(context.Background(), url); err != nil {
			c.logger.Error("failed to evict script", "url", url, "error", err)
		}
		return
	}
	c.mu.Lock()
	delete(c.mem, url)
	c.mu.Unlock()
}

func (c *Cache) isBad(ctx context.Context, identifier string) bool {
	if c.store != nil {
		bad, err := c.store.IsBad(ctx, identifier)
		if err != nil {
			c.logger.Error("failed to read bad script list", "identifier", identifier, "error", err)
			return false
		}
		return bad
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bad[identifier]
}

func (c *Cache) cached(ctx context.Context, u string) (string, bool) {
	if c.store != nil {
		sc, ok, err := c.store.GetScript(ctx, u)
		if err != nil {
			c.logger.Error("failed to read script cache", "url", u, "error", err)
			return "", false
		}
		return sc.Contents, ok
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	contents, ok := c.mem[u]
	return contents, ok
}

func (c *Cache) remember(ctx context.Context, u, contents string) {
	if c.store != nil {
		if err := c.store.PutScript(ctx, u, contents); err != nil {
			c.logger.Error("failed to write script cache", "url", u, "error", err)
		}
		return
	}
	c.mu.Lock()
	c.mem[u] = contents
	c.mu.Unlock()
}

func (c *Cache) download(ctx context.Context, raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	if strings.EqualFold(u.Scheme, "file") {
		b, err := os.ReadFile(LocalPath(raw))
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(b), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, raw, nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("get: unexpected status %s", resp.Status)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body: %w", err)
	}
	return string(b), nil
}

func isFileURL(raw string) bool {
	return strings.HasPrefix(strings.ToLower(raw), "file://")
}

// LocalPath converts a file:// URL to a filesystem path.
// Non-file input is returned unchanged.
func LocalPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || !strings.EqualFold(u.Scheme, "file") {
		return raw
	}
	return u.Path
}

// FileURL converts a filesystem path to a file:// URL.
func FileURL(path string) string {
	return (&url.URL{Scheme: "file", Path: path}).String()
}
