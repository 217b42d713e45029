// Package notify broadcasts pipeline run events to WebSocket subscribers so
// dashboards can watch synthesis and curation progress live.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"nhooyr.io/websocket" //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
)

// Run event types published by the pipeline and curation engine.
const (
	EventRunStarted    = "run.started"
	EventRunStage      = "run.stage"
	EventRunSkipped    = "run.skipped"
	EventRunCompleted  = "run.completed"
	EventRunFailed     = "run.failed"
	EventMemoryCreated = "memory.created"
	EventMemoryMerged  = "memory.merged"
)

// RunEvent is the payload broadcast for each pipeline transition.
type RunEvent struct {
	Type     string `json:"type"`
	AnimaID  string `json:"anima_id"`
	RunID    string `json:"run_id,omitempty"`
	Stage    string `json:"stage,omitempty"`
	MemoryID string `json:"memory_id,omitempty"`
	Error    string `json:"error,omitempty"`
	Time     int64  `json:"time"`
}

// Publisher is the narrow interface the pipeline depends on. NopPublisher
// satisfies it for callers that don't carry a hub.
type Publisher interface {
	Publish(event RunEvent)
}

// NopPublisher drops all events.
type NopPublisher struct{}

func (NopPublisher) Publish(RunEvent) {}

// Hub manages WebSocket connections and broadcasts run events.
type Hub struct {
	clients    map[clientInterface]bool
	broadcast  chan RunEvent
	register   chan clientInterface
	unregister chan clientInterface
	mu         sync.RWMutex
	ctx        context.Context
	cancel     context.CancelFunc
}

// clientInterface allows for both real clients and mock clients.
type clientInterface interface {
	getSendChannel() chan []byte
	close()
}

// Client represents a WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	send chan []byte
}

func (c *Client) getSendChannel() chan []byte {
	return c.send
}

func (c *Client) close() {
	if c.conn != nil {
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}
}

// NewHub creates a new run-event hub.
func NewHub() *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[clientInterface]bool),
		broadcast:  make(chan RunEvent, 256),
		register:   make(chan clientInterface),
		unregister: make(chan clientInterface),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Run starts the hub's message processing loop.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("notify: client connected (total: %d)", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.getSendChannel())
			}
			count := len(h.clients)
			h.mu.Unlock()
			log.Printf("notify: client disconnected (total: %d)", count)

		case event := <-h.broadcast:
			// Full Lock because the default branch deletes from the map.
			h.mu.Lock()
			data, err := json.Marshal(event)
			if err != nil {
				log.Printf("notify: failed to marshal run event: %v", err)
				h.mu.Unlock()
				continue
			}
			for client := range h.clients {
				sendChan := client.getSendChannel()
				select {
				case sendChan <- data:
				default:
					// Client's send channel is full, disconnect them.
					close(sendChan)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()

		case <-h.ctx.Done():
			log.Println("notify: hub stopping")
			return
		}
	}
}

// Stop gracefully shuts down the hub.
func (h *Hub) Stop() {
	h.cancel()

	h.mu.Lock()
	for client := range h.clients {
		close(client.getSendChannel())
		client.close()
	}
	h.clients = make(map[clientInterface]bool)
	h.mu.Unlock()
}

// Publish broadcasts a run event to all subscribers. Never blocks: when the
// broadcast buffer is full the event is dropped, because notification is
// best-effort and must not stall the pipeline.
func (h *Hub) Publish(event RunEvent) {
	if event.Time == 0 {
		event.Time = time.Now().UnixNano()
	}
	select {
	case h.broadcast <- event:
	default:
		log.Println("notify: broadcast channel full, dropping run event")
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client clientInterface) {
	h.register <- client
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client clientInterface) {
	h.unregister <- client
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	if err != nil {
		log.Printf("notify: websocket upgrade failed: %v", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}
	h.Register(client)

	go client.writePump()
	go client.readPump()
}

// writePump sends broadcast events to the connection.
func (c *Client) writePump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()

	for message := range c.send {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := c.conn.Write(ctx, websocket.MessageText, message) //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
		cancel()
		if err != nil {
			log.Printf("notify: websocket write failed: %v", err)
			return
		}
	}
}

// readPump drains client messages to detect disconnections.
func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close(websocket.StatusNormalClosure, "") //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
	}()

	for {
		if _, _, err := c.conn.Read(context.Background()); err != nil { //nolint:staticcheck // TODO: migrate to github.com/coder/websocket
			return
		}
	}
}

// MockClient is a mock client for testing.
type MockClient struct {
	SendChan chan []byte
}

func (m *MockClient) getSendChannel() chan []byte {
	return m.SendChan
}

func (m *MockClient) close() {}

// Compile-time assertions.
var (
	_ Publisher = (*Hub)(nil)
	_ Publisher = NopPublisher{}
)
