package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	// sseReplaySize is how many recent events are kept for clients that
	// reconnect with Last-Event-ID.
	sseReplaySize = 256

	// sseKeepaliveInterval is how often a comment line is sent to idle clients.
	sseKeepaliveInterval = 15 * time.Second

	// sseClientBuffer is the per-client queue; events beyond it are dropped.
	sseClientBuffer = 64
)

// sseEvent is one form or submission event as sent to SSE clients.
type sseEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

// sseHub fans published events out to connected SSE clients and keeps the
// most recent ones for replay.
type sseHub struct {
	mu      sync.Mutex
	lastID  uint64
	recent  []sseEvent // oldest first, at most sseReplaySize
	clients map[*sseClient]struct{}
}

// sseClient is a single connected stream.
type sseClient struct {
	topics []string // NATS-style patterns; empty matches every topic
	ch     chan sseEvent
}

func newSSEHub() *sseHub {
	return &sseHub{clients: make(map[*sseClient]struct{})}
}

// broadcast assigns the next id to the event, records it for replay and
// queues it for every matching client without blocking.
func (h *sseHub) broadcast(topic string, payload []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.lastID++
	evt := sseEvent{ID: h.lastID, Topic: topic, Data: payload}
	if len(h.recent) == sseReplaySize {
		h.recent = append(h.recent[:0], h.recent[1:]...)
	}
	h.recent = append(h.recent, evt)

	for c := range h.clients {
		if !c.matches(topic) {
			continue
		}
		select {
		case c.ch <- evt:
		default:
		}
	}
}

// subscribe registers a client and returns the buffered events after
// lastID that it should see first. Registration and the replay snapshot
// happen under one lock so no event is both replayed and delivered.
func (h *sseHub) subscribe(topics []string, lastID uint64) (*sseClient, []sseEvent) {
	c := &sseClient{topics: topics, ch: make(chan sseEvent, sseClientBuffer)}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}

	var replay []sseEvent
	if lastID > 0 {
		for _, evt := range h.recent {
			if evt.ID > lastID && c.matches(evt.Topic) {
				replay = append(replay, evt)
			}
		}
	}
	return c, replay
}

func (h *sseHub) unsubscribe(c *sseClient) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

func (c *sseClient) matches(topic string) bool {
	if len(c.topics) == 0 {
		return true
	}
	for _, p := range c.topics {
		if matchTopicPattern(p, topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a pattern where
// "*" matches one segment and a trailing ">" matches one or more.
func matchTopicPattern(pattern, topic string) bool {
	pat := strings.Split(pattern, ".")
	top := strings.Split(topic, ".")
	for i, p := range pat {
		if p == ">" {
			return i < len(top)
		}
		if i >= len(top) || (p != "*" && p != top[i]) {
			return false
		}
	}
	return len(pat) == len(top)
}

// handleEventStream handles GET /v1/events/stream.
func (s *FormsServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	var topics []string
	for _, t := range strings.Split(r.URL.Query().Get("topics"), ",") {
		if t = strings.TrimSpace(t); t != "" {
			topics = append(topics, t)
		}
	}
	lastID, _ := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)

	client, replay := s.sseHub.subscribe(topics, lastID)
	defer s.sseHub.unsubscribe(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	for _, evt := range replay {
		writeSSEEvent(w, evt)
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-client.ch:
			writeSSEEvent(w, evt)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt sseEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", evt.ID, evt.Topic, evt.Data)
}

// broadcastEvent fans event out to SSE clients.
func (s *FormsServer) broadcastEvent(topic string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		slog.Warn("failed to marshal event for SSE broadcast", "topic", topic, "error", err)
		return
	}
	s.sseHub.broadcast(topic, payload)
}
