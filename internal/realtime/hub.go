package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"

	"ripple/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
)

const (
	// Max connections per user.
	maxConnsPerUser = 12
	// Max total connections.
	maxTotalConns = 10000
	// Max topics one connection may subscribe to.
	maxTopicsPerClient = 64
)

// clientMessage is the inbound subscription protocol.
type clientMessage struct {
	Type  string `json:"type"`
	Topic string `json:"topic"`
}

// serverMessage is the outbound envelope. Change events carry the
// topic they were delivered on so the client can route them.
type serverMessage struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic,omitempty"`
	Event json.RawMessage `json:"event,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Hub tracks websocket clients and their topic subscriptions, and fans
// incoming change events out to the subscribers of each topic.
type Hub struct {
	mu         sync.RWMutex
	conns      map[uint]map[*Client]struct{}
	topics     map[string]map[*Client]struct{}
	byClient   map[*Client]map[string]struct{}
	totalConns int
	shutdown   chan struct{}
	done       chan struct{}
	presence   *Presence
	metrics    *observability.TopicMetrics
}

// NewHub creates a hub. An optional Redis client enables cross-instance
// presence.
func NewHub(redisClients ...*redis.Client) *Hub {
	var redisClient *redis.Client
	if len(redisClients) > 0 {
		redisClient = redisClients[0]
	}

	return &Hub{
		conns:    make(map[uint]map[*Client]struct{}),
		topics:   make(map[string]map[*Client]struct{}),
		byClient: make(map[*Client]map[string]struct{}),
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		presence: NewPresence(redisClient),
		metrics:  observability.NewTopicMetrics(),
	}
}

// Name returns a human-readable identifier for this hub.
func (h *Hub) Name() string { return "change hub" }

// Register a connection for a given user. Returns the Client or an
// error if limits are exceeded.
func (h *Hub) Register(userID uint, accountKind string, conn *websocket.Conn) (*Client, error) {
	h.mu.Lock()

	if h.totalConns >= maxTotalConns {
		h.mu.Unlock()
		return nil, errors.New("server connection limit reached")
	}

	m, ok := h.conns[userID]
	if !ok {
		m = make(map[*Client]struct{})
		h.conns[userID] = m
	}

	if len(m) >= maxConnsPerUser {
		h.mu.Unlock()
		return nil, errors.New("user connection limit reached")
	}

	client := NewClient(h, conn, userID, accountKind)
	client.IncomingHandler = h.handleIncoming
	client.OnActivity = func(uid uint) {
		h.presence.Touch(context.Background(), uid)
	}

	m[client] = struct{}{}
	h.totalConns++
	h.byClient[client] = make(map[string]struct{})
	h.mu.Unlock()

	observability.WebSocketConnectionsTotal.Inc()
	h.presence.Register(context.Background(), userID)

	return client, nil
}

// UnregisterClient removes the connection and all of its subscriptions.
func (h *Hub) UnregisterClient(client *Client) {
	h.mu.Lock()
	removed := false
	if m, ok := h.conns[client.UserID]; ok {
		if _, exists := m[client]; exists {
			delete(m, client)
			h.totalConns--
			removed = true
		}
		if len(m) == 0 {
			delete(h.conns, client.UserID)
		}
	}
	for topic := range h.byClient[client] {
		h.dropSubscription(client, topic)
	}
	delete(h.byClient, client)
	h.mu.Unlock()

	if removed {
		observability.WebSocketConnectionsTotal.Dec()
		h.presence.Unregister(context.Background(), client.UserID)
	}
}

// Subscribe adds the client to a topic after checking that the topic is
// well formed and the user is allowed to read it.
func (h *Hub) Subscribe(client *Client, topic string) error {
	if !CanSubscribe(topic, client.UserID) {
		return errors.New("subscription not allowed")
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	owned, ok := h.byClient[client]
	if !ok {
		return errors.New("client not registered")
	}
	if _, already := owned[topic]; already {
		return nil
	}
	if len(owned) >= maxTopicsPerClient {
		return errors.New("topic limit reached")
	}

	subs, ok := h.topics[topic]
	if !ok {
		subs = make(map[*Client]struct{})
		h.topics[topic] = subs
	}
	subs[client] = struct{}{}
	owned[topic] = struct{}{}
	h.metrics.IncrementTopic(topic)
	return nil
}

// Unsubscribe removes the client from a topic. Unsubscribing from a
// topic the client never joined is a no-op.
func (h *Hub) Unsubscribe(client *Client, topic string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if owned, ok := h.byClient[client]; ok {
		if _, subscribed := owned[topic]; subscribed {
			delete(owned, topic)
			h.dropSubscription(client, topic)
		}
	}
}

// dropSubscription removes the topic-side entry. Caller holds h.mu.
func (h *Hub) dropSubscription(client *Client, topic string) {
	if subs, ok := h.topics[topic]; ok {
		delete(subs, client)
		if len(subs) == 0 {
			delete(h.topics, topic)
		}
	}
	h.metrics.DecrementTopic(topic)
}

// SubscriberCount returns the number of live subscriptions for a topic.
func (h *Hub) SubscriberCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Deliver fans a change event payload out to the topic's subscribers.
func (h *Hub) Deliver(topic string, payload []byte) {
	envelope, err := json.Marshal(serverMessage{Type: "change", Topic: topic, Event: payload})
	if err != nil {
		log.Printf("failed to build change envelope for topic %s: %v", topic, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	subs, ok := h.topics[topic]
	if !ok {
		return
	}
	for c := range subs {
		c.TrySend(envelope)
		h.metrics.RecordDelivery(topic)
	}
}

// IsOnline reports whether a user currently has at least one active
// websocket connection on any instance.
func (h *Hub) IsOnline(userID uint) bool {
	return h.presence.IsOnline(context.Background(), userID)
}

// SetPresenceCallbacks registers online/offline transition hooks.
func (h *Hub) SetPresenceCallbacks(onOnline, onOffline func(userID uint)) {
	h.presence.SetCallbacks(onOnline, onOffline)
}

// Presence exposes the underlying tracker, mainly for tests.
func (h *Hub) Presence() *Presence { return h.presence }

// StartWiring connects the Notifier to this hub: change events arriving
// over Redis are delivered to local topic subscribers.
func (h *Hub) StartWiring(ctx context.Context, n *Notifier) error {
	return n.StartChangeSubscriber(ctx, func(topic string, payload []byte) {
		h.Deliver(topic, payload)
	})
}

// handleIncoming processes the subscribe/unsubscribe protocol.
func (h *Hub) handleIncoming(c *Client, raw []byte) {
	var msg clientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.sendError(c, "invalid message")
		return
	}

	switch msg.Type {
	case "subscribe":
		if err := h.Subscribe(c, msg.Topic); err != nil {
			h.sendError(c, err.Error())
			return
		}
		h.metrics.RecordWebSocketEvent("subscribe")
		h.ack(c, "subscribed", msg.Topic)
	case "unsubscribe":
		h.Unsubscribe(c, msg.Topic)
		h.metrics.RecordWebSocketEvent("unsubscribe")
		h.ack(c, "unsubscribed", msg.Topic)
	case "ping":
		h.ack(c, "pong", "")
	default:
		h.sendError(c, "unknown message type")
	}
}

func (h *Hub) ack(c *Client, msgType, topic string) {
	if data, err := json.Marshal(serverMessage{Type: msgType, Topic: topic}); err == nil {
		c.TrySend(data)
	}
}

func (h *Hub) sendError(c *Client, message string) {
	if data, err := json.Marshal(serverMessage{Type: "error", Error: message}); err == nil {
		c.TrySend(data)
	}
}

// Shutdown gracefully closes all websocket connections.
func (h *Hub) Shutdown(_ context.Context) error {
	close(h.shutdown)
	h.presence.Stop()

	h.mu.Lock()
	for userID, userConns := range h.conns {
		for client := range userConns {
			if client.Conn == nil {
				continue
			}
			if err := client.Conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down")); err != nil {
				log.Printf("failed to write close message for user %d: %v", userID, err)
			}
			if err := client.Conn.Close(); err != nil {
				log.Printf("failed to close websocket for user %d: %v", userID, err)
			}
		}
	}
	h.conns = make(map[uint]map[*Client]struct{})
	h.topics = make(map[string]map[*Client]struct{})
	h.byClient = make(map[*Client]map[string]struct{})
	h.mu.Unlock()

	close(h.done)
	return nil
}
