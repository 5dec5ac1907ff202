package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"runtime/debug"

	"ripple/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes change events into Redis channels and feeds them
// back to local hubs through a pattern subscription.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a new Notifier using the provided Redis client.
// A nil client makes every publish a no-op, which keeps single-node
// deployments working without Redis fan-out.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// PublishChange publishes one change event to the topic's channel.
func (n *Notifier) PublishChange(ctx context.Context, topic string, event ChangeEvent) error {
	if n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal change event: %w", err)
	}
	if err := n.rdb.Publish(ctx, ChannelForTopic(topic), payload).Err(); err != nil {
		observability.RedisErrorRate.WithLabelValues("publish").Inc()
		return err
	}
	observability.ChangeEventsPublished.WithLabelValues(event.Table, event.Kind).Inc()
	return nil
}

// StartChangeSubscriber subscribes to every change channel and calls
// onEvent with the topic and raw payload for each incoming message.
func (n *Notifier) StartChangeSubscriber(
	ctx context.Context, onEvent func(topic string, payload []byte),
) error {
	if n.rdb == nil {
		return nil
	}
	sub := n.rdb.PSubscribe(ctx, channelPrefix+"*")
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				topic, ok := TopicFromChannel(msg.Channel)
				if !ok {
					log.Printf("invalid change channel: %s", msg.Channel)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							log.Printf("PANIC in ChangeSubscriber: %v\n%s", r, debug.Stack())
						}
					}()
					onEvent(topic, []byte(msg.Payload))
				}()
			}
		}
	}()

	return nil
}
