package websocket

import (
	"context"
	"encoding/json"
	"sync"

	"ai-interview-be/internal/pkg/logger"
	"ai-interview-be/pkg/progress"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	hubModule      = "HUB"
	clusterChannel = "cluster_events"
)

// Message types written to the progress channel.
const (
	MessageProgress     = "progress"
	MessageNotification = "notification"
)

type envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clusterMessage struct {
	Origin       string          `json:"origin"`
	TargetUserID string          `json:"target_user_id"`
	Message      json.RawMessage `json:"message"`
}

// Hub fans messages out to every connection of a user. With Redis configured, messages also
// reach connections held by other instances.
type Hub struct {
	// UserID -> connections (multi-device)
	clients map[uuid.UUID][]*Client

	register   chan *Client
	unregister chan *Client
	// closed when Run returns
	done chan struct{}

	mu sync.RWMutex

	rdb        *redis.Client
	instanceID string

	logger logger.ILogger
}

func NewHub(rdb *redis.Client, log logger.ILogger) *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		clients:    make(map[uuid.UUID][]*Client),
		rdb:        rdb,
		instanceID: uuid.NewString(),
		logger:     log,
	}
}

// Run owns client registration until ctx is done.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	if h.rdb != nil {
		go h.subscribeToRedis(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.UserID] = append(h.clients[client.UserID], client)
			h.mu.Unlock()
			h.logger.Info(hubModule, "Client registered", map[string]interface{}{"user_id": client.UserID})

		case client := <-h.unregister:
			h.remove(client)
		}
	}
}

// enqueue hands a client to Run. It reports false once the hub has stopped.
func (h *Hub) enqueue(ch chan<- *Client, client *Client) bool {
	select {
	case ch <- client:
		return true
	case <-h.done:
		return false
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	clients := h.clients[client.UserID]
	for i, c := range clients {
		if c == client {
			h.clients[client.UserID] = append(clients[:i], clients[i+1:]...)
			close(client.Send)
			break
		}
	}
	if len(h.clients[client.UserID]) == 0 {
		delete(h.clients, client.UserID)
		h.logger.Info(hubModule, "Client completely unregistered", map[string]interface{}{"user_id": client.UserID})
	}
}

// SendProgress implements the quiz worker's progress delivery.
func (h *Hub) SendProgress(userID uuid.UUID, event progress.Event) {
	h.Send(userID, MessageProgress, event)
}

// SendNotification pushes a domain notification to the user.
func (h *Hub) SendNotification(userID uuid.UUID, eventType string, data map[string]interface{}) {
	h.Send(userID, MessageNotification, map[string]interface{}{
		"event":   eventType,
		"payload": data,
	})
}

func (h *Hub) Send(userID uuid.UUID, messageType string, data interface{}) {
	payload, err := json.Marshal(envelope{Type: messageType, Data: data})
	if err != nil {
		h.logger.Error(hubModule, "Failed to encode message", map[string]interface{}{"user_id": userID, "error": err.Error()})
		return
	}

	h.deliverLocal(userID, payload)

	if h.rdb != nil {
		msg, _ := json.Marshal(clusterMessage{
			Origin:       h.instanceID,
			TargetUserID: userID.String(),
			Message:      payload,
		})
		if err := h.rdb.Publish(context.Background(), clusterChannel, msg).Err(); err != nil {
			h.logger.Warn(hubModule, "Failed to publish to cluster", map[string]interface{}{"user_id": userID, "error": err.Error()})
		}
	}
}

// Connected reports how many local connections the user has.
func (h *Hub) Connected(userID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) deliverLocal(userID uuid.UUID, payload []byte) {
	var slow []*Client

	h.mu.RLock()
	for _, client := range h.clients[userID] {
		select {
		case client.Send <- payload:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.logger.Warn(hubModule, "Client send buffer full, dropping connection", map[string]interface{}{"user_id": userID})
		go h.enqueue(h.unregister, client)
	}
}

// handleCluster delivers a message published by another instance.
func (h *Hub) handleCluster(raw []byte) {
	var msg clusterMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Warn(hubModule, "Redis message parse error", map[string]interface{}{"error": err.Error()})
		return
	}
	if msg.Origin == h.instanceID {
		return
	}
	uid, err := uuid.Parse(msg.TargetUserID)
	if err != nil {
		return
	}
	h.deliverLocal(uid, msg.Message)
}

func (h *Hub) subscribeToRedis(ctx context.Context) {
	pubsub := h.rdb.Subscribe(ctx, clusterChannel)
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
			h.handleCluster([]byte(msg.Payload))
		}
	}
}
