package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gorm.io/gorm"
)

var (
	// RedisErrorRate counts Redis errors by operation type.
	RedisErrorRate = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_redis_error_rate_total",
		Help: "Total number of Redis errors by operation type",
	}, []string{"operation"})

	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ripple_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// TopicSubscriptions is the gauge of live subscriptions per realtime topic.
	TopicSubscriptions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "ripple_topic_subscriptions",
		Help: "Number of live WebSocket subscriptions per topic",
	}, []string{"topic"})

	// ChangeEventsPublished counts change events published by table and kind.
	ChangeEventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_change_events_published_total",
		Help: "Total number of change events published by table and kind",
	}, []string{"table", "kind"})

	// ChangeEventsDelivered counts change events fanned out to subscribers per topic.
	ChangeEventsDelivered = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_change_events_delivered_total",
		Help: "Total number of change events delivered to subscribers",
	}, []string{"topic"})

	// WebSocketConnectionsTotal is the gauge of total WebSocket connections.
	WebSocketConnectionsTotal = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "ripple_websocket_connections_total",
		Help: "Total number of active WebSocket connections",
	})

	// WebSocketEventsTotal counts WebSocket events by type.
	WebSocketEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_websocket_events_total",
		Help: "Total WebSocket events by type",
	}, []string{"event_type"})

	// WebSocketBackpressureDrops counts messages dropped due to backpressure by hub and reason.
	WebSocketBackpressureDrops = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_websocket_backpressure_drops_total",
		Help: "Total number of WebSocket messages dropped due to backpressure",
	}, []string{"hub", "reason"})

	// SignedURLsIssued counts signed media URLs issued per bucket.
	SignedURLsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ripple_signed_urls_issued_total",
		Help: "Total number of signed media URLs issued per bucket",
	}, []string{"bucket"})
)

// DatabaseMetrics wraps DB access for recording query latency.
type DatabaseMetrics struct {
	db *gorm.DB
}

// NewDatabaseMetrics returns a new DatabaseMetrics instance.
func NewDatabaseMetrics(db *gorm.DB) *DatabaseMetrics {
	return &DatabaseMetrics{db: db}
}

// ObserveQuery records the latency of a database query.
func (m *DatabaseMetrics) ObserveQuery(operation, table string, start time.Time) {
	latency := time.Since(start).Seconds()
	DatabaseQueryLatency.WithLabelValues(operation, table).Observe(latency)
}

// TrackQuery returns a function that records query latency when called (e.g. defer).
func (m *DatabaseMetrics) TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		m.ObserveQuery(operation, table, start)
	}
}

// TopicMetrics tracks realtime subscription and fan-out counts.
type TopicMetrics struct {
	subscriptionCounts map[string]int
}

// NewTopicMetrics returns a new TopicMetrics instance.
func NewTopicMetrics() *TopicMetrics {
	return &TopicMetrics{
		subscriptionCounts: make(map[string]int),
	}
}

// IncrementTopic increments the subscription count for the topic.
func (m *TopicMetrics) IncrementTopic(topic string) {
	m.subscriptionCounts[topic]++
	TopicSubscriptions.WithLabelValues(topic).Inc()
}

// DecrementTopic decrements the subscription count for the topic.
func (m *TopicMetrics) DecrementTopic(topic string) {
	if m.subscriptionCounts[topic] > 0 {
		m.subscriptionCounts[topic]--
	}
	TopicSubscriptions.WithLabelValues(topic).Dec()
}

// GetTopicCount returns the current subscription count for the topic.
func (m *TopicMetrics) GetTopicCount(topic string) int {
	return m.subscriptionCounts[topic]
}

// RecordDelivery increments the delivered-events counter for the topic.
func (*TopicMetrics) RecordDelivery(topic string) {
	ChangeEventsDelivered.WithLabelValues(topic).Inc()
}

// RecordWebSocketEvent increments the WebSocket events counter for the event type.
func (*TopicMetrics) RecordWebSocketEvent(eventType string) {
	WebSocketEventsTotal.WithLabelValues(eventType).Inc()
}
