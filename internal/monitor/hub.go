// Package monitor exposes a read-only HTTP observer for the bridge:
// liveness, counters, and a WebSocket feed of job lifecycle events.
package monitor

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// subscriberBuffer is how many events a slow observer may lag
	// behind before the hub starts dropping events for it.
	subscriberBuffer = 64

	// writeTimeout bounds a single WebSocket write.
	writeTimeout = 2 * time.Second
)

// Event is one job lifecycle notification pushed to /events subscribers.
type Event struct {
	JobID   string    `json:"job_id"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

// subscriber pairs a connection with its outbound event buffer. A
// dedicated goroutine drains the buffer so writes never happen on the
// publisher's goroutine.
type subscriber struct {
	conn   *websocket.Conn
	events chan Event
}

// Hub fans job events out to connected WebSocket observers. It implements
// the bridge server's EventSink.
type Hub struct {
	mu   sync.Mutex
	subs map[*websocket.Conn]*subscriber

	// published counts events pushed through the hub
	published int64

	// dropped counts events discarded because a subscriber's buffer
	// was full
	dropped int64
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*websocket.Conn]*subscriber)}
}

// JobEvent implements the bridge EventSink.
func (h *Hub) JobEvent(jobID, status, message string) {
	h.Publish(Event{
		JobID:   jobID,
		Status:  status,
		Message: message,
		Time:    time.Now().UTC(),
	})
}

// Publish queues an event for every subscriber without blocking. A slow
// observer loses events once its buffer fills; it must never stall the
// bridge.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.published++
	for _, sub := range h.subs {
		select {
		case sub.events <- ev:
		default:
			h.dropped++
		}
	}
}

// Add registers a subscriber connection and starts its writer.
func (h *Hub) Add(conn *websocket.Conn) {
	sub := &subscriber{
		conn:   conn,
		events: make(chan Event, subscriberBuffer),
	}

	h.mu.Lock()
	h.subs[conn] = sub
	h.mu.Unlock()

	go h.writeLoop(sub)
}

// writeLoop drains a subscriber's buffer onto its connection. A failed
// write evicts the subscriber.
func (h *Hub) writeLoop(sub *subscriber) {
	defer sub.conn.Close()
	for ev := range sub.events {
		sub.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := sub.conn.WriteJSON(ev); err != nil {
			h.Remove(sub.conn)
			return
		}
	}
}

// Remove drops a subscriber connection. Safe to call more than once.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if sub, ok := h.subs[conn]; ok {
		delete(h.subs, conn)
		close(sub.events)
	}
}

// Count returns the number of connected observers.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Published returns the number of events pushed through the hub.
func (h *Hub) Published() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.published
}

// Dropped returns the number of events discarded for slow observers.
func (h *Hub) Dropped() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// CloseAll disconnects every observer.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, sub := range h.subs {
		delete(h.subs, conn)
		close(sub.events)
	}
}
