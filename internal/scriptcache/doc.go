// Package scriptcache resolves script references to source text.
//
// A reference is either inline source or a URL. Inline source is returned
// as-is. file:// URLs are always read from disk so local edits are seen on
// the next fetch. http(s):// URLs are downloaded once and cached in the
// store; a forced refresh bypasses the cache.
//
// Identifiers recorded with MarkBad form the negative cache: later fetches
// fail immediately without touching the network, unless forced.
//
// Completion callbacks may run on any goroutine. Consumers that need
// goroutine affinity must marshal the result themselves.
package scriptcache
