package events

import (
	"sync"

	"esphub/internal/logger"
)

// Type names the live event kinds pushed to dashboard clients.
type Type string

const (
	TypeNew        Type = "new"
	TypeDeleted    Type = "deleted"
	TypeDeletedAll Type = "deleted_all"
)

type Event struct {
	Type Type `json:"type"`
	Data any  `json:"data,omitempty"`
}

// subscriberBuffer absorbs short bursts; a subscriber that falls further
// behind loses events rather than stalling publication.
const subscriberBuffer = 16

// Subscriber is one live client's event channel, held by the hub only while
// subscribed.
type Subscriber struct {
	ch chan Event
}

// Events is the receive side of the subscription.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Hub fans events out to the current set of subscribers. Delivery is
// at-most-once and best-effort: no buffering, no replay for late joiners.
type Hub struct {
	mu   sync.RWMutex
	subs map[*Subscriber]struct{}
	log  *logger.Logger
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		subs: make(map[*Subscriber]struct{}),
		log:  log,
	}
}

func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{ch: make(chan Event, subscriberBuffer)}
	h.mu.Lock()
	h.subs[sub] = struct{}{}
	n := len(h.subs)
	h.mu.Unlock()
	if h.log != nil {
		h.log.Infow("event_subscriber_added", "total", n)
	}
	return sub
}

func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, ok := h.subs[sub]
	delete(h.subs, sub)
	n := len(h.subs)
	h.mu.Unlock()
	if ok {
		close(sub.ch)
		if h.log != nil {
			h.log.Infow("event_subscriber_removed", "total", n)
		}
	}
}

// Publish delivers to every current subscriber. A full buffer or a channel
// torn down mid-delivery never reaches the publisher or blocks delivery to
// the others.
func (h *Hub) Publish(t Type, data any) {
	ev := Event{Type: t, Data: data}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.subs {
		h.send(sub, ev)
	}
}

func (h *Hub) send(sub *Subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil && h.log != nil {
			h.log.Warnw("event_subscriber_write_failed", "type", ev.Type, "reason", r)
		}
	}()
	select {
	case sub.ch <- ev:
	default:
		if h.log != nil {
			h.log.Warnw("event_dropped_for_slow_subscriber", "type", ev.Type)
		}
	}
}
