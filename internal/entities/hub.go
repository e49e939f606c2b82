package entities

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/roach88/scripthost/internal/entity"
)

type subscription struct {
	id uint64
	fn func(id entity.ID, args []any)
}

type deleteSubscription struct {
	id uint64
	fn func(id entity.ID)
}

// Hub is the entity event source.
//
// Thread-safety: all methods are safe for concurrent use. Callbacks run
// without the hub lock held, so they may call back into the hub.
type Hub struct {
	logger *slog.Logger

	mu       sync.Mutex
	nextID   uint64
	scripts  map[entity.ID]string
	subs     map[string][]subscription
	deleting []deleteSubscription
}

// NewHub creates an empty hub. A nil logger selects slog.Default().
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:  logger,
		scripts: make(map[entity.ID]string),
		subs:    make(map[string][]subscription),
	}
}

// Add registers an entity with the script it carries. Re-adding an entity
// replaces its script.
func (h *Hub) Add(id entity.ID, scriptURL string) {
	h.mu.Lock()
	h.scripts[id] = scriptURL
	h.mu.Unlock()
}

// Script returns the script registered for id.
func (h *Hub) Script(id entity.ID) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.scripts[id]
	return s, ok
}

// Entities returns the registered entity IDs in string order.
func (h *Hub) Entities() []entity.ID {
	h.mu.Lock()
	ids := make([]entity.ID, 0, len(h.scripts))
	for id := range h.scripts {
		ids = append(ids, id)
	}
	h.mu.Unlock()

	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	return ids
}

// Subscribe registers fn for one event category. The returned function
// removes the subscription.
func (h *Hub) Subscribe(event string, fn func(id entity.ID, args []any)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sid := h.nextID
	h.subs[event] = append(h.subs[event], subscription{id: sid, fn: fn})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		list := h.subs[event]
		for i, s := range list {
			if s.id == sid {
				h.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// OnDeleting registers fn to run when an entity is deleted. The returned
// function removes the subscription.
func (h *Hub) OnDeleting(fn func(id entity.ID)) func() {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	sid := h.nextID
	h.deleting = append(h.deleting, deleteSubscription{id: sid, fn: fn})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, s := range h.deleting {
			if s.id == sid {
				h.deleting = append(h.deleting[:i:i], h.deleting[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers an event for id to every subscriber of the category, in
// subscription order. Unknown categories are rejected.
func (h *Hub) Emit(event string, id entity.ID, args ...any) error {
	if !entity.IsEventCategory(event) {
		return fmt.Errorf("emit: unknown event category %q", event)
	}

	h.mu.Lock()
	subs := append([]subscription(nil), h.subs[event]...)
	h.mu.Unlock()

	for _, s := range subs {
		s.fn(id, args)
	}
	return nil
}

// Collide emits collisionWithEntity for both participants: idA receives
// (idB, collision) and idB receives (idA, collision).
func (h *Hub) Collide(c entity.Collision) error {
	if err := h.Emit(entity.EventCollisionWithEntity, c.IDA, c.IDB, c); err != nil {
		return err
	}
	return h.Emit(entity.EventCollisionWithEntity, c.IDB, c.IDA, c)
}

// Delete notifies deletion subscribers, then forgets the entity.
func (h *Hub) Delete(id entity.ID) {
	h.mu.Lock()
	subs := append([]deleteSubscription(nil), h.deleting...)
	h.mu.Unlock()

	h.logger.Debug("deleting entity", "entity_id", id)
	for _, s := range subs {
		s.fn(id)
	}

	h.mu.Lock()
	delete(h.scripts, id)
	h.mu.Unlock()
}
