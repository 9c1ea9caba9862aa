// Package realtime fans out catalog change notifications to the live search
// sessions connected over WebSocket. When the provider index or the bundled
// fallback dataset changes, every open search page refetches its results.
//
// Delivery is best effort: a listener whose buffer is full misses the event.
// Sessions only need to know that something changed, never what, so a missed
// event is covered by the next one or by the cache freshness window.
package realtime

import (
	"sync"
	"time"
)

// Event types.
const (
	EventCatalogUpdated = "catalog_updated"
	EventConfigReloaded = "config_reloaded"
)

// Event announces a change that invalidates cached search results.
type Event struct {
	Type   string    `json:"type"`
	Source string    `json:"source,omitempty"`
	At     time.Time `json:"at"`
}

// NewEvent stamps an event with the current time.
func NewEvent(eventType, source string) Event {
	return Event{Type: eventType, Source: source, At: time.Now().UTC()}
}

// Hub is an in-memory fan-out dispatcher. Each listener receives events on
// its own buffered channel. The hub is safe for concurrent use.
type Hub struct {
	mu        sync.RWMutex
	listeners map[uint64]chan Event
	nextID    uint64
	bufSize   int
}

// NewHub constructs a hub with the given per-listener buffer size. If
// bufSize <= 0, a default of 8 is used.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 8
	}
	return &Hub{
		listeners: make(map[uint64]chan Event),
		bufSize:   bufSize,
	}
}

// Register adds a listener. Callers must later Unregister(id).
func (h *Hub) Register() (uint64, <-chan Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.bufSize)
	h.listeners[id] = ch
	return id, ch
}

// Unregister removes the listener and closes its channel. Unknown ids are
// ignored.
func (h *Hub) Unregister(id uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.listeners[id]; ok {
		delete(h.listeners, id)
		close(ch)
	}
}

// Broadcast delivers ev to every listener with room in its buffer.
func (h *Hub) Broadcast(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.listeners {
		select {
		case ch <- ev:
		default:
			// Drop for slow listener.
		}
	}
}

// Size returns the current number of listeners.
func (h *Hub) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.listeners)
}
