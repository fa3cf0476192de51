package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"genius-backend/internal/metrics"
	"genius-backend/internal/models"
	"genius-backend/internal/services"
)

const writeWait = 10 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type tokenParser interface {
	ParseToken(tokenStr string) (models.Identity, error)
}

// client serialises writes; gorilla connections allow one concurrent writer.
type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// Hub relays per-user usage updates from Redis pub/sub to open websocket
// sessions. Without a Redis client it only serves direct SendToUser calls.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*client
	redisClient *redis.Client
	auth        tokenParser
	cancelFuncs map[string]context.CancelFunc
}

func NewHub(redisClient *redis.Client, auth tokenParser) *Hub {
	return &Hub{
		connections: make(map[string][]*client),
		redisClient: redisClient,
		auth:        auth,
		cancelFuncs: make(map[string]context.CancelFunc),
	}
}

// HandleWebSocket handles GET /api/ws?token=<jwt>.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, services.MsgUnauthorised, http.StatusUnauthorized)
		return
	}

	identity, err := h.auth.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, services.MsgUnauthorised, http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &client{conn: conn}
	h.registerConnection(identity.UserID, c)

	go func() {
		defer h.unregisterConnection(identity.UserID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *Hub) registerConnection(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[userID] = append(h.connections[userID], c)
	metrics.WebsocketSessions.Inc()

	if len(h.connections[userID]) == 1 && h.redisClient != nil {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[userID] = cancel
		go h.subscribeToPubSub(ctx, userID)
	}

	log.WithFields(log.Fields{"user_id": userID, "total": len(h.connections[userID])}).Info("websocket connected")
}

func (h *Hub) unregisterConnection(userID string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	c.conn.Close()

	conns := h.connections[userID]
	for i, existing := range conns {
		if existing == c {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			metrics.WebsocketSessions.Dec()
			break
		}
	}

	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}

	log.WithField("user_id", userID).Info("websocket disconnected")
}

func (h *Hub) subscribeToPubSub(ctx context.Context, userID string) {
	pubsub := h.redisClient.Subscribe(ctx, services.UserUpdatesChannel(userID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(userID, []byte(msg.Payload))
		}
	}
}

func (h *Hub) broadcast(userID string, data []byte) {
	h.mu.RLock()
	conns := append([]*client(nil), h.connections[userID]...)
	h.mu.RUnlock()

	for _, c := range conns {
		if err := c.write(data); err != nil {
			log.WithError(err).WithField("user_id", userID).Debug("websocket write failed")
		}
	}
}

// SendToUser sends a message directly to a user's sessions, bypassing pub/sub.
func (h *Hub) SendToUser(userID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.broadcast(userID, data)
}

// PublishUsage lets the hub stand in as the usage publisher when no Redis
// is configured, so single-instance deployments still get live updates.
func (h *Hub) PublishUsage(ctx context.Context, userID string, status models.UsageStatus) error {
	h.SendToUser(userID, models.WSMessage{Type: models.WSTypeUsageUpdate, Payload: status})
	return nil
}

func (h *Hub) connectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections[userID])
}

// Close drops every session and stops all subscriptions.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, conns := range h.connections {
		for _, c := range conns {
			c.conn.Close()
		}
		metrics.WebsocketSessions.Sub(float64(len(conns)))
		delete(h.connections, userID)
	}
	for userID, cancel := range h.cancelFuncs {
		cancel()
		delete(h.cancelFuncs, userID)
	}
}
