// Package events fans domain events out to connected dashboard clients.
// Delivery is best-effort and at-most-once per subscriber: there is no replay
// buffer, the intake repository is the durable source of truth and late
// joiners reconcile by listing it.
package events

import (
	"sync"

	"github.com/rs/zerolog/log"
	intakex "github.com/wireheat/afterhours/agent/intake"
)

const TypeRequestSubmitted = "request_submitted"

// Event is a domain event as delivered to subscribers. Workflow machinery
// never reaches this type; only events the dialog core defines are published.
type Event struct {
	Type    string          `json:"type"`
	Request *intakex.Request `json:"request,omitempty"`
}

type Publisher interface {
	Publish(evt Event)
}

const defaultSubscriberBuffer = 16

// Hub is an in-process Publisher. Subscribers that fall behind lose events
// rather than block publishers.
type Hub struct {
	mu     sync.Mutex
	subs   map[int]chan Event
	nextID int
	buffer int
}

func NewHub() *Hub {
	return &Hub{
		subs:   make(map[int]chan Event),
		buffer: defaultSubscriberBuffer,
	}
}

// Publish delivers evt to every current subscriber without blocking. With no
// subscribers attached the event is dropped.
func (h *Hub) Publish(evt Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, ch := range h.subs {
		select {
		case ch <- evt:
		default:
			log.Warn().Int("subscriber", id).Str("type", evt.Type).
				Msg("event dropped: subscriber buffer full")
		}
	}
}

// Subscribe registers a live feed. The cancel func must be called when the
// connection goes away; it closes the channel.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := h.nextID
	h.nextID++
	ch := make(chan Event, h.buffer)
	h.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if sub, ok := h.subs[id]; ok {
			delete(h.subs, id)
			close(sub)
		}
	}
	return ch, cancel
}

// SubscriberCount is used by readiness reporting and tests.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}
