// Package realtime fans database change events out to subscribed
// websocket clients. Events flow through Redis pub/sub so every server
// instance sees every change, and each instance delivers to its own
// local subscribers.
package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Change event kinds.
const (
	KindInsert = "insert"
	KindUpdate = "update"
	KindDelete = "delete"
)

// PostsTopic carries inserts, updates and deletes for the global feed.
const PostsTopic = "posts"

const channelPrefix = "changes:"

// ChangeEvent is the wire format for a single row change.
type ChangeEvent struct {
	Kind  string          `json:"kind"`
	Table string          `json:"table"`
	Row   json.RawMessage `json:"row"`
}

// CommentsTopic returns the topic carrying comment changes for one post.
func CommentsTopic(postID uint) string {
	return "comments:" + strconv.FormatUint(uint64(postID), 10)
}

// PresenceTopic returns the topic carrying online/offline transitions
// for one user.
func PresenceTopic(userID uint) string {
	return "presence:" + strconv.FormatUint(uint64(userID), 10)
}

// DMTopic returns the topic for the conversation between two users. The
// pair is ordered so both participants derive the same topic name.
func DMTopic(a, b uint) string {
	lo, hi := a, b
	if lo > hi {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("dm:%d:%d", lo, hi)
}

// ChannelForTopic maps a topic to its Redis pub/sub channel.
func ChannelForTopic(topic string) string {
	return channelPrefix + topic
}

// TopicFromChannel extracts the topic from a Redis channel name.
func TopicFromChannel(channel string) (string, bool) {
	if !strings.HasPrefix(channel, channelPrefix) {
		return "", false
	}
	topic := channel[len(channelPrefix):]
	if topic == "" {
		return "", false
	}
	return topic, true
}

// ValidTopic reports whether the name is a well-formed topic.
func ValidTopic(topic string) bool {
	if topic == PostsTopic {
		return true
	}
	parts := strings.Split(topic, ":")
	switch {
	case len(parts) == 2 && parts[0] == "comments":
		return parseID(parts[1]) != 0
	case len(parts) == 2 && parts[0] == "presence":
		return parseID(parts[1]) != 0
	case len(parts) == 3 && parts[0] == "dm":
		lo, hi := parseID(parts[1]), parseID(parts[2])
		return lo != 0 && hi != 0 && lo < hi
	default:
		return false
	}
}

// CanSubscribe reports whether the user may subscribe to the topic.
// Feed, comment and presence topics are open to every authenticated
// user. Direct message topics are restricted to the two participants.
func CanSubscribe(topic string, userID uint) bool {
	if !ValidTopic(topic) {
		return false
	}
	if !strings.HasPrefix(topic, "dm:") {
		return true
	}
	parts := strings.Split(topic, ":")
	return parseID(parts[1]) == userID || parseID(parts[2]) == userID
}

func parseID(s string) uint {
	id, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0
	}
	return uint(id)
}
