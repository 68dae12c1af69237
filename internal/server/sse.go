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

	"github.com/alfredjeanlab/callsheet/internal/events"
	"github.com/alfredjeanlab/callsheet/internal/model"
)

const (
	// defaultReplaySize is how many recent events a hub keeps for
	// Last-Event-ID reconnection.
	defaultReplaySize = 512

	// sseKeepaliveInterval is how often keepalive comments are sent to
	// prevent connection timeouts.
	sseKeepaliveInterval = 15 * time.Second

	clientBuffer = 64
)

// streamEvent is one journal event as it travels to SSE clients.
type streamEvent struct {
	Seq   uint64
	Topic string
	Actor string
	Data  []byte
}

// EventHub fans journal events out to connected SSE clients. It is a
// dispatch observer and keeps a bounded replay window for Last-Event-ID
// reconnection.
type EventHub struct {
	mu      sync.Mutex
	seq     uint64
	clients map[*subscriber]struct{}
	replay  []streamEvent // oldest first, at most cap entries
	cap     int
}

// subscriber is a single connected SSE consumer.
type subscriber struct {
	topics []string // topic patterns (empty = all)
	actor  string   // only this caller's events when set
	ch     chan streamEvent
}

// NewEventHub returns an empty hub.
func NewEventHub() *EventHub {
	return newEventHub(defaultReplaySize)
}

func newEventHub(replay int) *EventHub {
	return &EventHub{
		clients: make(map[*subscriber]struct{}),
		cap:     replay,
	}
}

// Observe broadcasts a journal event on its NATS-style topic.
func (h *EventHub) Observe(e model.Event) {
	data, err := json.Marshal(e)
	if err != nil {
		slog.Warn("sse: marshal event", "kind", e.Kind, "err", err)
		return
	}
	h.broadcast(events.TopicFor(e.Kind), e.Actor, data)
}

func (h *EventHub) broadcast(topic, actor string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	ev := streamEvent{Seq: h.seq, Topic: topic, Actor: actor, Data: data}
	if len(h.replay) == h.cap {
		copy(h.replay, h.replay[1:])
		h.replay = h.replay[:h.cap-1]
	}
	h.replay = append(h.replay, ev)

	for c := range h.clients {
		if !c.wants(ev) {
			continue
		}
		select {
		case c.ch <- ev:
		default:
			// Slow client: drop rather than stall the claim path.
		}
	}
}

func (h *EventHub) subscribe(topics []string, actor string) *subscriber {
	c := &subscriber{topics: topics, actor: actor, ch: make(chan streamEvent, clientBuffer)}
	h.mu.Lock()
	h.clients[c] = struct{}{}
	h.mu.Unlock()
	return c
}

func (h *EventHub) unsubscribe(c *subscriber) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
}

// since returns retained events after seq, oldest first.
func (h *EventHub) since(seq uint64) []streamEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []streamEvent
	for _, ev := range h.replay {
		if ev.Seq > seq {
			out = append(out, ev)
		}
	}
	return out
}

func (c *subscriber) wants(ev streamEvent) bool {
	if c.actor != "" && c.actor != ev.Actor {
		return false
	}
	if len(c.topics) == 0 {
		return true
	}
	for _, p := range c.topics {
		if matchTopicPattern(p, ev.Topic) {
			return true
		}
	}
	return false
}

// matchTopicPattern matches a dot-separated topic against a pattern.
// "*" matches one segment and a trailing ">" matches one or more (NATS-style).
func matchTopicPattern(pattern, topic string) bool {
	if pattern == topic {
		return true
	}
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

// handleEventStream handles GET /v1/events/stream?topics=&actor=.
func (s *CallSheetServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		writeError(w, http.StatusNotFound, "event stream disabled")
		return
	}
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
	sub := s.hub.subscribe(topics, r.URL.Query().Get("actor"))
	defer s.hub.unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if last := r.Header.Get("Last-Event-ID"); last != "" {
		if seq, err := strconv.ParseUint(last, 10, 64); err == nil {
			for _, ev := range s.hub.since(seq) {
				if sub.wants(ev) {
					writeSSEEvent(w, ev)
				}
			}
		}
	}
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepaliveInterval)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case ev := <-sub.ch:
			writeSSEEvent(w, ev)
			flusher.Flush()
		case <-keepalive.C:
			fmt.Fprint(w, ":keepalive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, ev streamEvent) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", ev.Seq, ev.Topic, ev.Data)
}
