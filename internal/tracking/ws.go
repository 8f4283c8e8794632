package tracking

import (
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// safeConn wraps a websocket.Conn with a write mutex.
// gorilla/websocket allows one concurrent writer; this enforces that.
type safeConn struct {
	mu sync.Mutex
	ws *websocket.Conn
}

func (c *safeConn) writeJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteJSON(v)
}

func (c *safeConn) readMessage() (int, []byte, error) {
	return c.ws.ReadMessage()
}

func (c *safeConn) close() { c.ws.Close() }

// Hub manages WebSocket subscribers per vehicle.
type Hub struct {
	mu    sync.RWMutex
	conns map[string][]*safeConn
}

// NewHub creates a tracking hub.
func NewHub() *Hub {
	return &Hub{conns: make(map[string][]*safeConn)}
}

// Routes returns a chi.Router for the /ws mount point.
func (h *Hub) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/vehicles/{id}", h.HandleWS)
	return r
}

// HandleWS upgrades the connection and subscribes it to a vehicle's feed.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade error: %v", err)
		return
	}

	conn := &safeConn{ws: ws}

	h.mu.Lock()
	h.conns[vehicleID] = append(h.conns[vehicleID], conn)
	h.mu.Unlock()

	log.Printf("[ws] client subscribed to vehicle %s", vehicleID)

	// Block until the client disconnects
	for {
		if _, _, err := conn.readMessage(); err != nil {
			break
		}
	}

	h.removeConn(vehicleID, conn)
	conn.close()
	log.Printf("[ws] client unsubscribed from vehicle %s", vehicleID)
}

// BroadcastLocation pushes a position update to all subscribers of a vehicle.
// Safe for concurrent calls — each safeConn serialises its own writes.
func (h *Hub) BroadcastLocation(vehicleID string, lat, lng float64) {
	h.broadcast(vehicleID, map[string]any{
		"type":       "location",
		"vehicle_id": vehicleID,
		"lat":        lat,
		"lng":        lng,
		"ts":         time.Now().Unix(),
	})
}

// BroadcastAssignment notifies a vehicle's subscribers of a new dispatch.
func (h *Hub) BroadcastAssignment(vehicleID, dispatchID, priority string) {
	h.broadcast(vehicleID, map[string]any{
		"type":        "dispatch_assigned",
		"vehicle_id":  vehicleID,
		"dispatch_id": dispatchID,
		"priority":    priority,
		"ts":          time.Now().Unix(),
	})
}

func (h *Hub) broadcast(vehicleID string, msg any) {
	h.mu.RLock()
	conns := h.conns[vehicleID]
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.writeJSON(msg); err != nil {
			log.Printf("[ws] write error: %v", err)
		}
	}
}

func (h *Hub) removeConn(vehicleID string, conn *safeConn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.conns[vehicleID]
	for i, c := range conns {
		if c == conn {
			h.conns[vehicleID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(h.conns[vehicleID]) == 0 {
		delete(h.conns, vehicleID)
	}
}
