package engine

import (
	"github.com/roach88/scripthost/internal/entity"
	"github.com/roach88/scripthost/internal/scriptcache"
)

// ContentCache resolves script references to source text.
// Implemented by *scriptcache.Cache.
type ContentCache interface {
	// Fetch resolves scriptOrURL and calls done exactly once, possibly on
	// another goroutine.
	Fetch(scriptOrURL string, forceRefresh bool, done scriptcache.ContentCallback)

	// MarkBad adds identifier to the negative cache.
	MarkBad(identifier string)

	// Delete evicts the cached body for url.
	Delete(url string)
}

// BatchLoader fetches several URLs and reports the bodies that loaded.
// Implemented by *scriptcache.BatchLoader.
type BatchLoader interface {
	Start(urls []string, onFinished func(map[string]string))
}

// OutboundQueue is the host program's queue of outgoing protocol messages.
type OutboundQueue interface {
	// HasPending reports whether messages are waiting to be sent.
	HasPending() bool

	// Flush releases queued messages and, for queues without their own
	// worker, sends them.
	Flush()

	// IsBackgroundWorker reports whether the queue sends on its own
	// goroutine. The exit flush only waits on queues that do not.
	IsBackgroundWorker() bool
}

// EntitySource is the upstream source of entity events.
// Callbacks may run on any goroutine. Implemented by *entities.Hub.
type EntitySource interface {
	// Subscribe registers fn for one event category. args are the event
	// arguments that follow the target entity ID.
	Subscribe(event string, fn func(id entity.ID, args []any)) (cancel func())

	// OnDeleting registers fn to run when an entity is being deleted.
	OnDeleting(fn func(id entity.ID)) (cancel func())
}
