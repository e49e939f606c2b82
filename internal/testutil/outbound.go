package testutil

import "sync"

// RecordingOutbound is an outbound protocol queue that counts what it sends.
//
// Each Flush sends at most PerFlush messages (all of them when zero), so
// tests can observe multi-poll exit flushes.
//
// Thread-safety: All methods are safe for concurrent use via internal mutex.
type RecordingOutbound struct {
	PerFlush   int
	Background bool

	mu      sync.Mutex
	pending int
	sent    int
	flushes int
}

// Queue adds n messages.
func (q *RecordingOutbound) Queue(n int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending += n
}

// HasPending implements engine.OutboundQueue.
func (q *RecordingOutbound) HasPending() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending > 0
}

// Flush implements engine.OutboundQueue.
func (q *RecordingOutbound) Flush() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.flushes++
	n := q.pending
	if q.PerFlush > 0 && n > q.PerFlush {
		n = q.PerFlush
	}
	q.pending -= n
	q.sent += n
}

// IsBackgroundWorker implements engine.OutboundQueue.
func (q *RecordingOutbound) IsBackgroundWorker() bool {
	return q.Background
}

// Sent returns how many messages have been flushed.
func (q *RecordingOutbound) Sent() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.sent
}

// Flushes returns how many times Flush was called.
func (q *RecordingOutbound) Flushes() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.flushes
}
