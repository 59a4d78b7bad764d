// Package live is the in-process fanout hub behind every subscription.
// Consumers subscribe to a topic and get a coalescing signal channel; the
// store notifies a topic after each successful write and subscribers
// re-read the full collection. Delivery is at-least-once and re-rendering
// is idempotent, so coalescing bursts into one signal is safe.
package live

import "sync"

// Hub tracks subscribers per topic.
type Hub struct {
	mu   sync.Mutex
	next uint64
	subs map[string]map[uint64]chan struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[uint64]chan struct{})}
}

// Default is the process-wide hub used by the store and the view-models.
var Default = NewHub()

// Subscribe registers for change signals on topic. The returned cancel
// must be called when the consumer goes away; after cancel returns the
// channel is closed and no further signals are delivered.
func (h *Hub) Subscribe(topic string) (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	h.mu.Lock()
	h.next++
	id := h.next
	if h.subs[topic] == nil {
		h.subs[topic] = make(map[uint64]chan struct{})
	}
	h.subs[topic][id] = ch
	h.mu.Unlock()

	cancel := func() {
		h.mu.Lock()
		if m := h.subs[topic]; m != nil {
			if _, ok := m[id]; ok {
				delete(m, id)
				close(ch)
			}
			if len(m) == 0 {
				delete(h.subs, topic)
			}
		}
		h.mu.Unlock()
	}
	return ch, cancel
}

// Notify signals every subscriber of topic without blocking; a signal
// already pending in a subscriber's buffer absorbs the new one.
func (h *Hub) Notify(topic string) {
	h.mu.Lock()
	for _, ch := range h.subs[topic] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	h.mu.Unlock()
}

// Notify signals topic on the default hub.
func Notify(topic string) { Default.Notify(topic) }

// Subscribe subscribes to topic on the default hub.
func Subscribe(topic string) (<-chan struct{}, func()) { return Default.Subscribe(topic) }
