package progress

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"storyreel-server/modules/common/model"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for development; restrict per deployment.
		return true
	},
}

// client is one websocket subscriber watching a single job.
type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub fans job snapshots out to websocket subscribers keyed by job ID.
// Clients that cannot keep up are dropped rather than blocking publishers.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[string]map[*client]bool
}

func NewHub() *Hub {
	return &Hub{subscribers: make(map[string]map[*client]bool)}
}

// Publish sends the snapshot to every subscriber of the job. Safe to call
// from any goroutine; never blocks on slow clients.
func (h *Hub) Publish(snap model.JobSnapshot) {
	h.mu.RLock()
	watchers := h.subscribers[snap.ID]
	if len(watchers) == 0 {
		h.mu.RUnlock()
		return
	}
	clients := make([]*client, 0, len(watchers))
	for c := range watchers {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	payload, err := json.Marshal(snap)
	if err != nil {
		log.Printf("❌ Failed to marshal progress snapshot for job %s: %v", snap.ID, err)
		return
	}

	for _, c := range clients {
		select {
		case c.send <- payload:
		default:
			// Slow consumer, disconnect it.
			h.remove(snap.ID, c)
		}
	}
}

// HandleWebSocket upgrades the connection and streams snapshots for the
// job named in the route until the client disconnects.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]
	if jobID == "" {
		http.Error(w, "missing job id", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("❌ WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, 16)}
	h.add(jobID, c)
	log.Printf("👤 Progress subscriber joined for job %s", jobID)

	go c.writePump()
	c.readPump(func() {
		h.remove(jobID, c)
		log.Printf("👋 Progress subscriber left for job %s", jobID)
	})
}

// SubscriberCount reports active websocket subscribers across all jobs.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, watchers := range h.subscribers {
		total += len(watchers)
	}
	return total
}

func (h *Hub) add(jobID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	watchers, ok := h.subscribers[jobID]
	if !ok {
		watchers = make(map[*client]bool)
		h.subscribers[jobID] = watchers
	}
	watchers[c] = true
}

func (h *Hub) remove(jobID string, c *client) {
	h.mu.Lock()
	watchers, ok := h.subscribers[jobID]
	if ok && watchers[c] {
		delete(watchers, c)
		if len(watchers) == 0 {
			delete(h.subscribers, jobID)
		}
		close(c.send)
	}
	h.mu.Unlock()
}

// writePump drains the send channel onto the connection.
func (c *client) writePump() {
	defer c.conn.Close()
	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

// readPump discards inbound frames and invokes cleanup on disconnect.
func (c *client) readPump(onClose func()) {
	defer onClose()
	c.conn.SetReadLimit(1024)
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}
