package progress

import (
	"sync"
	"time"
)

// Phase names the step of an operation an event describes.
type Phase string

const (
	PhaseStart    Phase = "start"
	PhaseSaving   Phase = "saving"
	PhaseComplete Phase = "complete"
)

// Event types emitted by watchlist syncs.
const (
	TypeSelfWatchlist   = "self-watchlist"
	TypeOthersWatchlist = "others-watchlist"
)

// Event is a single progress notification.
type Event struct {
	Sequence    uint64    `json:"sequence"`
	OperationID string    `json:"operation_id"`
	Type        string    `json:"type"`
	Phase       Phase     `json:"phase"`
	Progress    int       `json:"progress"`
	Message     string    `json:"message"`
	Timestamp   time.Time `json:"timestamp"`
}

// Sink receives emitted events. Reconcilers depend on this rather than on Hub.
type Sink interface {
	HasActiveConnections() bool
	Emit(Event)
}

const defaultSubscriberBuffer = 32

type subscriber struct {
	ch      chan Event
	dropped uint64
}

// Hub is an in-process broadcaster of progress events.
type Hub struct {
	mu          sync.Mutex
	subscribers map[uint64]*subscriber
	nextID      uint64
	sequence    uint64
	buffer      int
	now         func() time.Time
}

// NewHub constructs a hub whose subscribers buffer up to buffer events.
func NewHub(buffer int) *Hub {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	return &Hub{
		subscribers: make(map[uint64]*subscriber),
		buffer:      buffer,
		now:         time.Now,
	}
}

// Subscribe registers a subscriber. The returned cancel function unregisters
// it and closes the channel; calling it more than once is safe.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextID++
	id := h.nextID
	sub := &subscriber{ch: make(chan Event, h.buffer)}
	h.subscribers[id] = sub

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if current, ok := h.subscribers[id]; ok && current == sub {
				delete(h.subscribers, id)
				close(sub.ch)
			}
		})
	}
	return sub.ch, cancel
}

// HasActiveConnections reports whether any subscriber is registered.
func (h *Hub) HasActiveConnections() bool {
	if h == nil {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers) > 0
}

// Connections returns the number of registered subscribers.
func (h *Hub) Connections() int {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Emit delivers evt to every subscriber without blocking. Sequence and
// Timestamp are assigned by the hub when unset.
func (h *Hub) Emit(evt Event) {
	if h == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	h.sequence++
	evt.Sequence = h.sequence
	if evt.Timestamp.IsZero() {
		evt.Timestamp = h.now().UTC()
	}
	for _, sub := range h.subscribers {
		select {
		case sub.ch <- evt:
		default:
			sub.dropped++
		}
	}
}

// Dropped returns the total number of events discarded across current subscribers.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	var total uint64
	for _, sub := range h.subscribers {
		total += sub.dropped
	}
	return total
}
