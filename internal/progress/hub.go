package progress

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wflowhq/engine/internal/infrastructure/logger"
	"github.com/wflowhq/engine/internal/storage"
	"github.com/wflowhq/engine/pkg/models"
)

// clientSendBuffer bounds how many pending messages a slow client can
// accumulate before the hub drops the connection rather than blocking the
// Orchestrator's broadcast.
const clientSendBuffer = 64

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// client is one websocket connection, a member of zero or more rooms.
type client struct {
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]bool
	mu    sync.Mutex
}

// Hub multiplexes websocket connections into per-execution rooms keyed
// "execution:<id>" and replays the latest known StepLog state to a client
// on join.
type Hub struct {
	rooms    map[string]map[*client]bool
	stepLogs *storage.StepLogRepository
	log      *logger.Logger
	mu       sync.RWMutex
}

// NewHub creates a Hub backed by stepLogs for join-time replay.
func NewHub(stepLogs *storage.StepLogRepository) *Hub {
	return &Hub{
		rooms:    make(map[string]map[*client]bool),
		stepLogs: stepLogs,
		log:      logger.Default(),
	}
}

// ServeWS upgrades an HTTP connection to a websocket and runs its
// read/write pumps until the connection closes.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("websocket upgrade failed", "error", err)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, clientSendBuffer), rooms: make(map[string]bool)}
	go h.writePump(c)
	h.readPump(c)
}

type clientMessage struct {
	Action      string `json:"action"`
	ExecutionID string `json:"executionId"`
}

func (h *Hub) readPump(c *client) {
	defer h.closeClient(c)

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}

		switch msg.Action {
		case "execution:join":
			h.join(c, msg.ExecutionID)
		case "execution:leave":
			h.leave(c, msg.ExecutionID)
		}
	}
}

func (h *Hub) writePump(c *client) {
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func roomKey(executionID string) string { return "execution:" + executionID }

// join adds c to executionID's room, acknowledges the join, and replays
// the execution's current StepLog rows so a late joiner sees the
// in-progress state.
func (h *Hub) join(c *client, executionID string) {
	key := roomKey(executionID)

	h.mu.Lock()
	if h.rooms[key] == nil {
		h.rooms[key] = make(map[*client]bool)
	}
	h.rooms[key][c] = true
	h.mu.Unlock()

	c.mu.Lock()
	c.rooms[key] = true
	c.mu.Unlock()

	h.send(c, map[string]any{"success": true, "room": key})
	h.replay(c, executionID)
}

func (h *Hub) leave(c *client, executionID string) {
	key := roomKey(executionID)

	h.mu.Lock()
	if members, ok := h.rooms[key]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, key)
		}
	}
	h.mu.Unlock()

	c.mu.Lock()
	delete(c.rooms, key)
	c.mu.Unlock()
}

func (h *Hub) closeClient(c *client) {
	c.mu.Lock()
	rooms := make([]string, 0, len(c.rooms))
	for k := range c.rooms {
		rooms = append(rooms, k)
	}
	c.mu.Unlock()

	h.mu.Lock()
	for _, key := range rooms {
		if members, ok := h.rooms[key]; ok {
			delete(members, c)
			if len(members) == 0 {
				delete(h.rooms, key)
			}
		}
	}
	h.mu.Unlock()

	close(c.send)
	c.conn.Close()
}

// replay loads executionID's step logs and sends each as the event type
// its status implies, so a joining client sees current progress before
// any further live events arrive.
func (h *Hub) replay(c *client, executionID string) {
	if h.stepLogs == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	logs, err := h.stepLogs.FindByExecutionID(ctx, executionID)
	if err != nil {
		h.log.Warn("step log replay failed", "execution_id", executionID, "error", err)
		return
	}

	for _, sl := range logs {
		event := Event{ExecutionID: executionID, Status: string(sl.Status)}
		nodeID := sl.NodeID
		event.NodeID = &nodeID
		if sl.NodeName != "" {
			name := sl.NodeName
			event.NodeName = &name
		}

		switch sl.Status {
		case models.StepStatusRunning:
			event.Type = EventStepStart
		default:
			event.Type = EventStepComplete
			event.Output = sl.Output
			if sl.Error != "" {
				errMsg := sl.Error
				event.Error = &errMsg
			}
			duration := sl.DurationMs
			event.DurationMs = &duration
			retries := sl.RetryAttempts
			event.RetryCount = &retries
		}

		raw, err := json.Marshal(event)
		if err != nil {
			continue
		}
		h.send(c, json.RawMessage(raw))
	}
}

func (h *Hub) send(c *client, payload any) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return
	}
	select {
	case c.send <- raw:
	default:
		h.log.Warn("dropping websocket message to slow client")
	}
}

// Broadcast sends event to every client in its execution's room.
func (h *Hub) Broadcast(event Event) {
	key := roomKey(event.ExecutionID)

	raw, err := json.Marshal(event)
	if err != nil {
		h.log.Error("failed to marshal progress event", "error", err)
		return
	}

	h.mu.RLock()
	members := h.rooms[key]
	clients := make([]*client, 0, len(members))
	for c := range members {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- raw:
		default:
			h.log.Warn("dropping broadcast to slow client", "execution_id", event.ExecutionID)
		}
	}
}

// RoomSize returns the number of clients currently joined to executionID's
// room, for tests and diagnostics.
func (h *Hub) RoomSize(executionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomKey(executionID)])
}
