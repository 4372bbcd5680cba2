package channel

import (
	"sort"
	"sync"
)

// Recorder receives delivery metrics. observability.EngineCollector
// implements it.
type Recorder interface {
	IncMessagesPushed(event string)
	IncMessagesDropped(event string)
}

// Hub maps topic keys to subscriber sets.
type Hub struct {
	mu     sync.RWMutex
	topics map[Key]map[string]Subscriber

	// pushMu serializes deliveries so each subscriber observes pushes in
	// the order Push was called.
	pushMu sync.Mutex

	metrics Recorder
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{topics: make(map[Key]map[string]Subscriber)}
}

// SetMetricsRecorder attaches an optional recorder.
func (h *Hub) SetMetricsRecorder(r Recorder) {
	h.mu.Lock()
	h.metrics = r
	h.mu.Unlock()
}

// Subscribe adds sub to key. Subscribing twice is a no-op.
func (h *Hub) Subscribe(key Key, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	set, ok := h.topics[key]
	if !ok {
		set = make(map[string]Subscriber)
		h.topics[key] = set
	}
	set[sub.ID()] = sub
}

// Unsubscribe removes subscriber subID from key.
func (h *Hub) Unsubscribe(key Key, subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(key, subID)
}

func (h *Hub) unsubscribeLocked(key Key, subID string) {
	set, ok := h.topics[key]
	if !ok {
		return
	}
	delete(set, subID)
	if len(set) == 0 {
		delete(h.topics, key)
	}
}

// UnsubscribeAll removes subID from every key.
func (h *Hub) UnsubscribeAll(subID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for key := range h.topics {
		h.unsubscribeLocked(key, subID)
	}
}

// MoveToShip drops subID from every ship key and, when shipID is not
// empty, subscribes it to that ship's key. The subscriber must already
// hold some subscription; MoveToShip reports false otherwise.
func (h *Hub) MoveToShip(subID, shipID string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	var sub Subscriber
	for key, set := range h.topics {
		s, ok := set[subID]
		if !ok {
			continue
		}
		sub = s
		if _, isShip := key.ShipID(); isShip {
			h.unsubscribeLocked(key, subID)
		}
	}
	if sub == nil {
		return false
	}
	if shipID == "" {
		return true
	}
	key := ShipKey(shipID)
	set, ok := h.topics[key]
	if !ok {
		set = make(map[string]Subscriber)
		h.topics[key] = set
	}
	set[subID] = sub
	return true
}

// Subscribers returns the sorted subscriber ids of key.
func (h *Hub) Subscribers(key Key) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.topics[key]))
	for id := range h.topics[key] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Push delivers {event, payload} to every current subscriber of key and
// returns how many accepted it.
func (h *Hub) Push(key Key, event string, payload any) int {
	h.mu.RLock()
	subs := make([]Subscriber, 0, len(h.topics[key]))
	for _, s := range h.topics[key] {
		subs = append(subs, s)
	}
	m := h.metrics
	h.mu.RUnlock()

	if m != nil {
		m.IncMessagesPushed(event)
	}
	if len(subs) == 0 {
		return 0
	}

	msg := Message{Event: event, Payload: payload}
	delivered := 0

	h.pushMu.Lock()
	for _, s := range subs {
		if s.Send(msg) {
			delivered++
		} else if m != nil {
			m.IncMessagesDropped(event)
		}
	}
	h.pushMu.Unlock()

	return delivered
}
