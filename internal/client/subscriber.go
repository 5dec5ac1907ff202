package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"ripple/internal/realtime"

	"github.com/gorilla/websocket"
)

// Event is one row change delivered on a subscribed topic.
type Event struct {
	Topic  string
	Change realtime.ChangeEvent
}

// wsMessage is the wire envelope in both directions.
type wsMessage struct {
	Type  string          `json:"type"`
	Topic string          `json:"topic,omitempty"`
	Event json.RawMessage `json:"event,omitempty"`
	Error string          `json:"error,omitempty"`
}

// Subscriber is one realtime connection. Change events arrive on
// Events(); the channel is closed when the connection ends. Close is
// safe to call multiple times and releases the connection exactly once.
type Subscriber struct {
	conn   *websocket.Conn
	events chan Event

	writeMu   sync.Mutex
	closeOnce sync.Once
	logger    interface {
		Debug(msg string, args ...any)
	}
}

// eventBuffer bounds how far a slow consumer can fall behind before
// events are dropped. There is no offline replay; a dropped event is gone.
const eventBuffer = 64

// Connect issues a single-use connection ticket and dials the realtime
// endpoint with it. The ticket keeps the bearer token out of the URL.
func (c *Client) Connect(ctx context.Context) (*Subscriber, error) {
	var ticketResp struct {
		Ticket string `json:"ticket"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/ws/ticket", nil, &ticketResp); err != nil {
		return nil, fmt.Errorf("issue ws ticket: %w", err)
	}

	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/api/ws/?ticket=" + ticketResp.Ticket
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("dial realtime endpoint: %w", err)
	}

	s := &Subscriber{
		conn:   conn,
		events: make(chan Event, eventBuffer),
		logger: c.logger,
	}
	go s.readLoop()
	return s, nil
}

// Subscribe registers interest in a topic, e.g. "posts", "comments:42"
// or a DM topic from realtime.DMTopic.
func (s *Subscriber) Subscribe(topic string) error {
	return s.write(wsMessage{Type: "subscribe", Topic: topic})
}

// Unsubscribe drops a topic subscription.
func (s *Subscriber) Unsubscribe(topic string) error {
	return s.write(wsMessage{Type: "unsubscribe", Topic: topic})
}

// Events returns the change event stream. The channel closes when the
// connection ends.
func (s *Subscriber) Events() <-chan Event {
	return s.events
}

func (s *Subscriber) write(msg wsMessage) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	return s.conn.WriteJSON(msg)
}

func (s *Subscriber) readLoop() {
	defer close(s.events)
	for {
		_, raw, err := s.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			s.logger.Debug("realtime: malformed server message", "error", err)
			continue
		}

		switch msg.Type {
		case "change":
			var change realtime.ChangeEvent
			if err := json.Unmarshal(msg.Event, &change); err != nil {
				s.logger.Debug("realtime: malformed change event", "topic", msg.Topic, "error", err)
				continue
			}
			select {
			case s.events <- Event{Topic: msg.Topic, Change: change}:
			default:
				s.logger.Debug("realtime: dropping event, consumer too slow", "topic", msg.Topic)
			}
		case "error":
			s.logger.Debug("realtime: server error", "error", msg.Error)
		default:
			// connected / subscribed / unsubscribed / pong acks
		}
	}
}

// Close tears the connection down. The events channel closes once the
// read loop observes the closed connection.
func (s *Subscriber) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.writeMu.Lock()
		_ = s.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		s.writeMu.Unlock()
		err = s.conn.Close()
	})
	return err
}
