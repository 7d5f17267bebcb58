package usecase

import (
	"sync"
	"sync/atomic"

	"github.com/jaennil/guide_helper/backend/tileengine/internal/lifecycle"
)

// EventHub fans render events out to subscribers. Publishing never blocks
// the tick: a subscriber that falls behind loses events.
type EventHub struct {
	mu     sync.RWMutex
	subs   map[uint64]chan lifecycle.RenderEvent
	next   uint64
	buffer int

	dropped atomic.Uint64
}

func NewEventHub(buffer int) *EventHub {
	return &EventHub{
		subs:   make(map[uint64]chan lifecycle.RenderEvent),
		buffer: buffer,
	}
}

var _ lifecycle.EventSink = (*EventHub)(nil)

func (h *EventHub) Publish(e lifecycle.RenderEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			h.dropped.Add(1)
		}
	}
}

// Subscribe registers a new subscriber. The returned func unsubscribes and
// closes the channel; it is safe to call more than once.
func (h *EventHub) Subscribe() (<-chan lifecycle.RenderEvent, func()) {
	ch := make(chan lifecycle.RenderEvent, h.buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
}

func (h *EventHub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Dropped counts events lost to slow subscribers.
func (h *EventHub) Dropped() uint64 {
	return h.dropped.Load()
}
