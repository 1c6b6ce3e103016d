// Package stream fans snapshots out to any number of live subscribers and
// serves them as Server-Sent Events.
package stream

import (
	crand "crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/banshee-data/bottleneck/internal/monitoring"
	"github.com/banshee-data/bottleneck/internal/sim"
)

var logf = monitoring.Tagged("stream")

// Hub broadcasts encoded snapshots. A subscriber that has not drained its
// previous message misses the next one; the simulation never waits on it.
type Hub struct {
	mu          sync.Mutex
	subscribers map[string]chan []byte
	closing     bool
}

// NewHub returns an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]chan []byte)}
}

// randomID generates a random channel ID (8 byte random hex encoded value)
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

// Subscribe registers a new channel. The ID is used to unsubscribe. The
// channel is closed by Unsubscribe or Close.
func (h *Hub) Subscribe() (string, <-chan []byte) {
	id := randomID()
	ch := make(chan []byte, 1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		close(ch)
		return id, ch
	}
	h.subscribers[id] = ch
	return id, ch
}

// Unsubscribe removes and closes a subscriber.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if ch, ok := h.subscribers[id]; ok {
		close(ch)
		delete(h.subscribers, id)
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Publish encodes snap once and offers it to every subscriber. It has the
// signature of runner.Config.OnTick.
func (h *Hub) Publish(snap sim.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing || len(h.subscribers) == 0 {
		return
	}
	payload, err := json.Marshal(snap)
	if err != nil {
		logf("encode snapshot at tick %d: %v", snap.Tick, err)
		return
	}
	for _, ch := range h.subscribers {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Close closes every subscriber channel. Later subscriptions are closed
// immediately and Publish becomes a no-op.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closing = true
	for id, ch := range h.subscribers {
		close(ch)
		delete(h.subscribers, id)
	}
}

// ServeHTTP streams snapshots as "data:" events until the client goes away
// or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable buffering for nginx

	id, c := h.Subscribe()
	defer h.Unsubscribe(id)

	// Send initial ping to establish connection
	w.Write([]byte(": ping\n\n"))
	flusher.Flush()

	for {
		select {
		case payload, ok := <-c:
			if !ok {
				return
			}
			if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}
