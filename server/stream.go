package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/TFMV/pubmap/engine"
	"github.com/TFMV/pubmap/logging"
	"github.com/TFMV/pubmap/observability"
)

// Hub fans frames out to stream clients. Each client holds at most one
// pending frame; a slow client skips frames rather than blocking the
// player loop.
type Hub struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	last    []byte
	closed  bool
	metrics *observability.Collector
}

func NewHub(metrics *observability.Collector) *Hub {
	return &Hub{clients: make(map[chan []byte]struct{}), metrics: metrics}
}

// Publish encodes the frame once and offers it to every client. It has the
// driver.FrameSink signature.
func (h *Hub) Publish(f *engine.Frame) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	data, err := json.Marshal(f)
	if err != nil {
		return
	}
	h.last = data
	for ch := range h.clients {
		select {
		case <-ch:
		default:
		}
		ch <- data
	}
}

// Subscribe registers a client. The channel is primed with the latest frame
// and closed when the hub closes.
func (h *Hub) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch, func() {}
	}
	if h.last != nil {
		ch <- h.last
	}
	h.clients[ch] = struct{}{}
	h.metrics.StreamOpened()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if _, ok := h.clients[ch]; ok {
				delete(h.clients, ch)
				h.metrics.StreamClosed()
			}
		})
	}
}

// Clients reports the number of connected clients.
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.clients {
		close(ch)
		delete(h.clients, ch)
		h.metrics.StreamClosed()
	}
}

// handleStream serves frames as server-sent events.
func handleStream(hub *Hub, heartbeat time.Duration, log logging.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc := http.NewResponseController(w)
		// Streams outlive the server write timeout.
		_ = rc.SetWriteDeadline(time.Time{})

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		if err := rc.Flush(); err != nil {
			log.Warn(r.Context(), "stream flush unsupported", logging.Err(err))
			return
		}

		frames, unsubscribe := hub.Subscribe()
		defer unsubscribe()

		var ping <-chan time.Time
		if heartbeat > 0 {
			t := time.NewTicker(heartbeat)
			defer t.Stop()
			ping = t.C
		}

		for {
			select {
			case <-r.Context().Done():
				return
			case data, ok := <-frames:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "event: frame\ndata: %s\n\n", data); err != nil {
					return
				}
			case <-ping:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
