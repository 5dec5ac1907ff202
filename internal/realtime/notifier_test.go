package realtime

import (
	"context"
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotifier_NilRedisIsNoop(t *testing.T) {
	n := NewNotifier(nil)
	err := n.PublishChange(context.Background(), PostsTopic, ChangeEvent{
		Kind:  KindInsert,
		Table: "posts",
		Row:   json.RawMessage(`{"id":1}`),
	})
	assert.NoError(t, err)
	assert.NoError(t, n.StartChangeSubscriber(context.Background(), nil))
}

func TestNotifier_PublishReachesSubscribedHub(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	hub := NewHub()
	defer func() { _ = hub.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, n))

	client, err := hub.Register(1, "standard", nil)
	require.NoError(t, err)
	require.NoError(t, hub.Subscribe(client, CommentsTopic(3)))

	// PSubscribe registration races with the first publish
	assert.Eventually(t, func() bool {
		require.NoError(t, n.PublishChange(ctx, CommentsTopic(3), ChangeEvent{
			Kind:  KindInsert,
			Table: "comments",
			Row:   json.RawMessage(`{"id":11,"post_id":3}`),
		}))
		return len(client.Send) > 0
	}, time.Second, 20*time.Millisecond)

	var msg serverMessage
	require.NoError(t, json.Unmarshal(<-client.Send, &msg))
	assert.Equal(t, "change", msg.Type)
	assert.Equal(t, CommentsTopic(3), msg.Topic)

	var event ChangeEvent
	require.NoError(t, json.Unmarshal(msg.Event, &event))
	assert.Equal(t, "comments", event.Table)
	assert.Equal(t, KindInsert, event.Kind)
}

func TestNotifier_SubscriberStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	n := NewNotifier(rdb)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received int32
	require.NoError(t, n.StartChangeSubscriber(ctx, func(topic string, _ []byte) {
		if topic == PostsTopic {
			atomic.AddInt32(&received, 1)
		}
	}))

	event := ChangeEvent{Kind: KindDelete, Table: "posts", Row: json.RawMessage(`{"id":2}`)}
	assert.Eventually(t, func() bool {
		require.NoError(t, n.PublishChange(context.Background(), PostsTopic, event))
		return atomic.LoadInt32(&received) >= 1
	}, time.Second, 20*time.Millisecond)

	cancel()
	time.Sleep(20 * time.Millisecond)
	before := atomic.LoadInt32(&received)

	require.NoError(t, n.PublishChange(context.Background(), PostsTopic, event))
	assert.Never(t, func() bool {
		return atomic.LoadInt32(&received) > before
	}, 200*time.Millisecond, 10*time.Millisecond)
}
