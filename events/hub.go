// Package events fans match lifecycle events out to the users they concern.
package events

import (
	"context"
	"sync"

	"gitea.kood.tech/petrkubec/match-engine/match"
	"gitea.kood.tech/petrkubec/match-engine/metrics"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 16

// Hub keeps per-user subscriber channels inside one process.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[chan match.MatchEvent]struct{}
}

var _ match.EventPublisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[chan match.MatchEvent]struct{})}
}

// Subscribe registers a channel for events that involve userID. The returned
// cleanup removes and closes it; calling it twice is safe.
func (h *Hub) Subscribe(userID string) (<-chan match.MatchEvent, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan match.MatchEvent, subscriberBuffer)
	if h.subscribers[userID] == nil {
		h.subscribers[userID] = make(map[chan match.MatchEvent]struct{})
	}
	h.subscribers[userID][ch] = struct{}{}

	var once sync.Once
	cleanup := func() {
		once.Do(func() { h.unsubscribe(userID, ch) })
	}
	return ch, cleanup
}

func (h *Hub) unsubscribe(userID string, ch chan match.MatchEvent) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subs, ok := h.subscribers[userID]
	if !ok {
		return
	}
	if _, ok := subs[ch]; !ok {
		return
	}
	delete(subs, ch)
	if len(subs) == 0 {
		delete(h.subscribers, userID)
	}
	close(ch)
}

// PublishMatchEvent delivers locally. It never blocks on slow subscribers.
func (h *Hub) PublishMatchEvent(_ context.Context, evt match.MatchEvent) error {
	h.Deliver(evt)
	return nil
}

// Deliver sends evt to both parties' subscribers. A full buffer drops the
// event for that subscriber only.
func (h *Hub) Deliver(evt match.MatchEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, userID := range []string{evt.UserA, evt.UserB} {
		for ch := range h.subscribers[userID] {
			select {
			case ch <- evt:
			default:
				metrics.EventsDropped.Inc()
			}
		}
	}
}

// SubscriberCount reports how many channels are registered for userID.
func (h *Hub) SubscriberCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers[userID])
}

// Close closes every subscriber channel.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for userID, subs := range h.subscribers {
		for ch := range subs {
			close(ch)
		}
		delete(h.subscribers, userID)
	}
}
