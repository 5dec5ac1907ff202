package cache

import (
	"context"
	"fmt"
	"time"
)

const (
	UserKeyPrefix       = "user:%d"
	ProfileKeyPrefix    = "profile:%s"
	PostKeyPrefix       = "post:%d"
	ThreadKeyPrefix     = "post:%d:comments"
	ConversationsPrefix = "conversations:%d"
	SuggestionsKeyConst = "suggestions"
	FollowCountsPrefix  = "user:%d:followcounts"
)

const (
	UserTTL          = 5 * time.Minute
	ProfileTTL       = 5 * time.Minute
	PostTTL          = 30 * time.Minute
	ThreadTTL        = 2 * time.Minute
	ConversationsTTL = 1 * time.Minute
	SuggestionsTTL   = 10 * time.Minute
	FollowCountsTTL  = 5 * time.Minute
)

func UserKey(userID uint) string {
	return fmt.Sprintf(UserKeyPrefix, userID)
}

// ProfileKey caches profile lookups by display name.
func ProfileKey(displayName string) string {
	return fmt.Sprintf(ProfileKeyPrefix, displayName)
}

func PostKey(postID uint) string {
	return fmt.Sprintf(PostKeyPrefix, postID)
}

// ThreadKey caches the comment thread for a post.
func ThreadKey(postID uint) string {
	return fmt.Sprintf(ThreadKeyPrefix, postID)
}

func ConversationsKey(userID uint) string {
	return fmt.Sprintf(ConversationsPrefix, userID)
}

func SuggestionsKey() string {
	return SuggestionsKeyConst
}

func FollowCountsKey(userID uint) string {
	return fmt.Sprintf(FollowCountsPrefix, userID)
}

func Invalidate(ctx context.Context, key string) {
	if client != nil {
		client.Del(ctx, key)
	}
}

func InvalidateUser(ctx context.Context, userID uint, displayName string) {
	Invalidate(ctx, UserKey(userID))
	Invalidate(ctx, FollowCountsKey(userID))
	if displayName != "" {
		Invalidate(ctx, ProfileKey(displayName))
	}
}

func InvalidatePost(ctx context.Context, postID uint) {
	Invalidate(ctx, PostKey(postID))
	Invalidate(ctx, ThreadKey(postID))
}

func InvalidateConversations(ctx context.Context, userIDs ...uint) {
	for _, id := range userIDs {
		Invalidate(ctx, ConversationsKey(id))
	}
}
