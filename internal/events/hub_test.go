package events

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"missioncontrol/internal/telemetry"
)

func TestHub_PublishFansOut(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	a, unsubA := hub.Subscribe()
	defer unsubA()
	b, unsubB := hub.Subscribe()
	defer unsubB()

	hub.Publish("health_check_completed", map[string]string{"status": "pass"})
	hub.Publish("integration_updated", map[string]string{"status": "connected"})

	for _, ch := range []<-chan Event{a, b} {
		first := <-ch
		second := <-ch
		assert.Equal(t, "health_check_completed", first.Type)
		assert.Equal(t, "integration_updated", second.Type)
		assert.Less(t, first.ID, second.ID, "ids sort in publish order")
		assert.False(t, first.Timestamp.IsZero())
	}
}

func TestHub_FullSubscriberDropsInsteadOfBlocking(t *testing.T) {
	t.Parallel()

	metrics := &telemetry.Metrics{}
	hub := NewHub(WithMetrics(metrics))
	ch, unsubscribe := hub.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for range subscriberBuffer + 5 {
			hub.Publish("integration_updated", nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, ch, subscriberBuffer)
	assert.Equal(t, uint64(subscriberBuffer+5), metrics.EventsPublished.Load())
	assert.Equal(t, uint64(5), metrics.EventsDropped.Load())
}

func TestHub_Unsubscribe(t *testing.T) {
	t.Parallel()

	hub := NewHub()
	ch, unsubscribe := hub.Subscribe()
	require.Equal(t, 1, hub.Subscribers())

	unsubscribe()
	unsubscribe()
	assert.Zero(t, hub.Subscribers())

	hub.Publish("integration_updated", nil)
	assert.Empty(t, ch)
}

func TestHub_ServeHTTP(t *testing.T) {
	t.Parallel()

	hub := NewHub(WithHeartbeat(20 * time.Millisecond))
	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "text/event-stream", res.Header.Get("Content-Type"))

	lines := make(chan string, 64)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(res.Body)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	require.Eventually(t, func() bool { return hub.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	hub.Publish("integration_updated", map[string]string{"id": "openai"})

	var sawHeartbeat, sawEventLine, sawEvent bool
	var payload string
	deadline := time.After(2 * time.Second)
	for !sawHeartbeat || !sawEvent {
		select {
		case line, ok := <-lines:
			require.True(t, ok, "stream closed early")
			switch {
			case strings.HasPrefix(line, ": heartbeat"):
				sawHeartbeat = true
			case line == "event: integration_updated":
				sawEventLine = true
			case strings.HasPrefix(line, "data: ") && sawEventLine:
				payload = strings.TrimPrefix(line, "data: ")
				sawEvent = true
			}
		case <-deadline:
			t.Fatalf("timed out: heartbeat=%v event=%v", sawHeartbeat, sawEvent)
		}
	}

	var ev Event
	require.NoError(t, json.Unmarshal([]byte(payload), &ev))
	assert.Equal(t, "integration_updated", ev.Type)
	assert.Equal(t, map[string]any{"id": "openai"}, ev.Data)

	cancel()
	require.Eventually(t, func() bool { return hub.Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}
