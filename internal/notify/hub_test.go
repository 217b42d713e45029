package notify

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	go hub.Run()
	t.Cleanup(hub.Stop)
	return hub
}

func recvEvent(t *testing.T, ch chan []byte) RunEvent {
	t.Helper()
	select {
	case data := <-ch:
		var event RunEvent
		require.NoError(t, json.Unmarshal(data, &event))
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for broadcast")
		return RunEvent{}
	}
}

func TestHub_BroadcastReachesAllClients(t *testing.T) {
	hub := startHub(t)

	a := &MockClient{SendChan: make(chan []byte, 8)}
	b := &MockClient{SendChan: make(chan []byte, 8)}
	hub.Register(a)
	hub.Register(b)

	hub.Publish(RunEvent{Type: EventRunCompleted, AnimaID: "anima-1", RunID: "run-1"})

	for _, client := range []*MockClient{a, b} {
		event := recvEvent(t, client.SendChan)
		assert.Equal(t, EventRunCompleted, event.Type)
		assert.Equal(t, "anima-1", event.AnimaID)
		assert.NotZero(t, event.Time, "publish stamps the event time")
	}
}

func TestHub_SlowClientIsDisconnected(t *testing.T) {
	hub := startHub(t)

	slow := &MockClient{SendChan: make(chan []byte, 1)}
	healthy := &MockClient{SendChan: make(chan []byte, 8)}
	hub.Register(slow)
	hub.Register(healthy)

	// The slow client's buffer holds one message; the second overflows it.
	hub.Publish(RunEvent{Type: EventRunStage, Stage: "score"})
	hub.Publish(RunEvent{Type: EventRunStage, Stage: "gate"})

	// Drain the healthy client to confirm both broadcasts went out.
	recvEvent(t, healthy.SendChan)
	recvEvent(t, healthy.SendChan)

	// The slow client got the first message and then its channel was closed.
	recvEvent(t, slow.SendChan)
	select {
	case _, open := <-slow.SendChan:
		assert.False(t, open, "overflowing a client closes its send channel")
	case <-time.After(2 * time.Second):
		t.Fatal("slow client channel was not closed")
	}
}

func TestHub_UnregisterClosesSendChannel(t *testing.T) {
	hub := startHub(t)

	client := &MockClient{SendChan: make(chan []byte, 8)}
	hub.Register(client)
	hub.Unregister(client)

	select {
	case _, open := <-client.SendChan:
		assert.False(t, open)
	case <-time.After(2 * time.Second):
		t.Fatal("unregister did not close the send channel")
	}
}

func TestNopPublisher_DropsEvents(t *testing.T) {
	// Must not panic or block.
	NopPublisher{}.Publish(RunEvent{Type: EventMemoryCreated})
}
