// Package events broadcasts integration test outcomes to Server-Sent Events
// subscribers.
package events

import (
	"encoding/json"
	"fmt"
	mrand "math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"missioncontrol/internal/telemetry"
)

const (
	subscriberBuffer  = 64
	heartbeatInterval = 15 * time.Second
)

// Event is one notification as delivered to subscribers.
type Event struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Data      any       `json:"data,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Hub is an in-memory fan-out. Publishing never blocks: a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}

	idMu    sync.Mutex
	entropy *ulid.MonotonicEntropy

	heartbeat time.Duration
	metrics   *telemetry.Metrics
	logger    zerolog.Logger
}

type Option func(*Hub)

func WithMetrics(m *telemetry.Metrics) Option {
	return func(h *Hub) { h.metrics = m }
}

func WithLogger(l zerolog.Logger) Option {
	return func(h *Hub) { h.logger = l.With().Str("component", "events").Logger() }
}

// WithHeartbeat changes the interval of keep-alive comments on SSE streams.
func WithHeartbeat(d time.Duration) Option {
	return func(h *Hub) { h.heartbeat = d }
}

func NewHub(opts ...Option) *Hub {
	h := &Hub{
		subscribers: make(map[chan Event]struct{}),
		entropy:     ulid.Monotonic(mrand.New(mrand.NewSource(time.Now().UnixNano())), 0), //nolint:gosec // ids only
		heartbeat:   heartbeatInterval,
		metrics:     &telemetry.Metrics{},
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) newID(now time.Time) string {
	h.idMu.Lock()
	defer h.idMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(now), h.entropy).String()
}

// Subscribe registers a listener. The returned function unsubscribes it and
// is safe to call more than once.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)
	h.mu.Lock()
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subscribers, ch)
			h.mu.Unlock()
		})
	}
}

// Subscribers reports the number of active listeners.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}

// Publish delivers an event of type event to every subscriber.
func (h *Hub) Publish(event string, payload any) {
	now := time.Now().UTC()
	ev := Event{ID: h.newID(now), Type: event, Data: payload, Timestamp: now}

	h.mu.RLock()
	defer h.mu.RUnlock()
	h.metrics.EventsPublished.Add(1)
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
			h.metrics.EventsDropped.Add(1)
			h.logger.Warn().Str("event", event).Msg("subscriber buffer full, event dropped")
		}
	}
}

// ServeHTTP streams events until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, `{"error":"streaming not supported"}`, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch, unsubscribe := h.Subscribe()
	defer unsubscribe()

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-ch:
			if err := writeEvent(w, ev); err != nil {
				h.logger.Debug().Err(err).Msg("sse write failed")
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat %s\n\n", time.Now().UTC().Format(time.RFC3339))
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "id: %s\nevent: %s\ndata: %s\n\n", ev.ID, ev.Type, data)
	return err
}
