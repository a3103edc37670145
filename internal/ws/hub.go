package ws

import (
	"sync"
)

// Sink consumes events routed to one subscriber. Implementations must be
// safe for concurrent Send calls.
type Sink interface {
	Send(evt Event) error
}

// Hub is the publish/subscribe registry for personal channels, keyed by user
// id. Per-user events reach only that user's connections; global events
// (presence, io-error) reach everyone.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[Sink]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subs: make(map[string]map[Sink]struct{}),
	}
}

// Subscribe attaches a sink to the user's personal channel.
func (h *Hub) Subscribe(userID string, s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subs[userID] == nil {
		h.subs[userID] = make(map[Sink]struct{})
	}
	h.subs[userID][s] = struct{}{}
}

// Unsubscribe detaches a sink from the user's personal channel.
func (h *Hub) Unsubscribe(userID string, s Sink) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sinks, ok := h.subs[userID]; ok {
		delete(sinks, s)
		if len(sinks) == 0 {
			delete(h.subs, userID)
		}
	}
}

// Publish routes the event: per-user kinds go to the addressed user's sinks,
// global kinds to every sink. Delivery is best-effort; failed sinks are
// skipped, cleanup happens on Unsubscribe.
func (h *Hub) Publish(evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if evt.UserID != "" {
		for s := range h.subs[evt.UserID] {
			_ = s.Send(evt)
		}
		return
	}
	for _, sinks := range h.subs {
		for s := range sinks {
			_ = s.Send(evt)
		}
	}
}
