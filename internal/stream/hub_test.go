package stream

import (
	"bufio"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/bottleneck/internal/sim"
)

func TestPublishReachesSubscribers(t *testing.T) {
	h := NewHub()
	idA, a := h.Subscribe()
	_, b := h.Subscribe()
	assert.Equal(t, 2, h.Subscribers())

	h.Publish(sim.Snapshot{Tick: 7, Scenario: "real"})

	for _, ch := range []<-chan []byte{a, b} {
		var snap sim.Snapshot
		require.NoError(t, json.Unmarshal(<-ch, &snap))
		assert.Equal(t, uint64(7), snap.Tick)
	}

	h.Unsubscribe(idA)
	_, open := <-a
	assert.False(t, open)
	assert.Equal(t, 1, h.Subscribers())
	h.Unsubscribe(idA)
}

func TestSlowSubscriberMissesMessages(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe()

	h.Publish(sim.Snapshot{Tick: 1})
	h.Publish(sim.Snapshot{Tick: 2})

	var snap sim.Snapshot
	require.NoError(t, json.Unmarshal(<-ch, &snap))
	assert.Equal(t, uint64(1), snap.Tick)
	select {
	case <-ch:
		t.Fatal("second snapshot should have been dropped")
	default:
	}
}

func TestCloseClosesSubscribers(t *testing.T) {
	h := NewHub()
	_, ch := h.Subscribe()
	h.Close()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers())

	_, late := h.Subscribe()
	_, open = <-late
	assert.False(t, open)
	h.Publish(sim.Snapshot{Tick: 3})
}

func TestServeHTTPStreamsEvents(t *testing.T) {
	h := NewHub()
	ts := httptest.NewServer(h)
	t.Cleanup(ts.Close)

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewReader(resp.Body)
	ping, err := lines.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, ": ping\n", ping)
	_, err = lines.ReadString('\n')
	require.NoError(t, err)

	// The ping is written after subscribing.
	h.Publish(sim.Snapshot{Tick: 42})
	event, err := lines.ReadString('\n')
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(event, "data: "), event)

	var snap sim.Snapshot
	require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(strings.TrimSpace(event), "data: ")), &snap))
	assert.Equal(t, uint64(42), snap.Tick)

	h.Close()
}

func TestServeHTTPRejectsPost(t *testing.T) {
	w := httptest.NewRecorder()
	NewHub().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}
