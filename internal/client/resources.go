package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"ripple/internal/models"
)

// Me fetches the caller's own user record.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateProfileInput carries profile fields to change. Empty fields keep
// their current value server-side.
type UpdateProfileInput struct {
	DisplayName string `json:"display_name,omitempty"`
	FullName    string `json:"full_name,omitempty"`
	Bio         string `json:"bio,omitempty"`
}

// UpdateProfile changes the caller's profile. A taken display name comes
// back as a conflict, see IsConflict.
func (c *Client) UpdateProfile(ctx context.Context, input UpdateProfileInput) (*models.User, error) {
	var user models.User
	if err := c.do(ctx, http.MethodPut, "/api/users/me", input, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Profile fetches a public profile page by display name.
func (c *Client) Profile(ctx context.Context, displayName string) (*models.User, error) {
	var user models.User
	path := "/api/profiles/" + url.PathEscape(displayName)
	if err := c.do(ctx, http.MethodGet, path, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchUsers matches display names against q.
func (c *Client) SearchUsers(ctx context.Context, q string) ([]*models.User, error) {
	var users []*models.User
	path := "/api/users/search?q=" + url.QueryEscape(q)
	if err := c.do(ctx, http.MethodGet, path, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// Suggestions returns users the caller might want to follow or message.
func (c *Client) Suggestions(ctx context.Context) ([]*models.User, error) {
	var users []*models.User
	if err := c.do(ctx, http.MethodGet, "/api/users/suggestions", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreatePost publishes a post, optionally referencing an uploaded image
// by its object key.
func (c *Client) CreatePost(ctx context.Context, content, imageKey string) (*models.Post, error) {
	var post models.Post
	err := c.do(ctx, http.MethodPost, "/api/posts/", map[string]string{
		"content":   content,
		"image_key": imageKey,
	}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// UpdatePost edits the caller's own post.
func (c *Client) UpdatePost(ctx context.Context, postID uint, content string) (*models.Post, error) {
	var post models.Post
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/posts/%d", postID),
		map[string]string{"content": content}, &post)
	if err != nil {
		return nil, err
	}
	return &post, nil
}

// DeletePost removes the caller's own post.
func (c *Client) DeletePost(ctx context.Context, postID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/posts/%d", postID), nil, nil)
}

// ToggleLike flips the caller's like on a post and returns the post with
// the authoritative count, so the UI can reconcile its optimistic bump.
func (c *Client) ToggleLike(ctx context.Context, postID uint) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/like", postID), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// Unlike removes the caller's like if present and returns the post with
// the authoritative count.
func (c *Client) Unlike(ctx context.Context, postID uint) (*models.Post, error) {
	var post models.Post
	if err := c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/posts/%d/like", postID), nil, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

// Comments lists a post's comments.
func (c *Client) Comments(ctx context.Context, postID uint) ([]*models.Comment, error) {
	var comments []*models.Comment
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/posts/%d/comments", postID), nil, &comments); err != nil {
		return nil, err
	}
	return comments, nil
}

// CreateComment adds a comment to a post.
func (c *Client) CreateComment(ctx context.Context, postID uint, content string) (*models.Comment, error) {
	var comment models.Comment
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/api/posts/%d/comments", postID),
		map[string]string{"content": content}, &comment)
	if err != nil {
		return nil, err
	}
	return &comment, nil
}

// Follow adds a follow edge to the given user.
func (c *Client) Follow(ctx context.Context, userID uint) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/users/%d/follow", userID), nil, nil)
}

// Unfollow removes the follow edge if present.
func (c *Client) Unfollow(ctx context.Context, userID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/users/%d/follow", userID), nil, nil)
}

// FollowCounts returns follower/following totals for a user.
func (c *Client) FollowCounts(ctx context.Context, userID uint) (followers, following int64, err error) {
	var counts struct {
		Followers int64 `json:"followers"`
		Following int64 `json:"following"`
	}
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/users/%d/follow-counts", userID), nil, &counts); err != nil {
		return 0, 0, err
	}
	return counts.Followers, counts.Following, nil
}

// SignMedia exchanges a stored object key for a fresh signed URL, e.g.
// to render an image whose original upload URL has expired.
func (c *Client) SignMedia(ctx context.Context, bucket, key string) (string, error) {
	var resp struct {
		URL string `json:"url"`
	}
	path := "/api/media/sign?bucket=" + url.QueryEscape(bucket) + "&key=" + url.QueryEscape(key)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	return resp.URL, nil
}

// Conversations lists DM partners, most recent exchange first.
func (c *Client) Conversations(ctx context.Context) ([]models.ConversationPartner, error) {
	var partners []models.ConversationPartner
	if err := c.do(ctx, http.MethodGet, "/api/conversations/", nil, &partners); err != nil {
		return nil, err
	}
	return partners, nil
}

// Messages fetches the latest window of the transcript with one
// partner, oldest first.
func (c *Client) Messages(ctx context.Context, partnerID uint) ([]*models.Message, error) {
	var messages []*models.Message
	path := fmt.Sprintf("/api/conversations/%d/messages", partnerID)
	if err := c.do(ctx, http.MethodGet, path, nil, &messages); err != nil {
		return nil, err
	}
	return messages, nil
}

// SendMessage sends a DM to partnerID and returns the stored row, which
// carries the ID the realtime echo will arrive under.
func (c *Client) SendMessage(ctx context.Context, partnerID uint, content string) (*models.Message, error) {
	var msg models.Message
	path := fmt.Sprintf("/api/conversations/%d/messages", partnerID)
	if err := c.do(ctx, http.MethodPost, path, map[string]string{"content": content}, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// EditMessage rewrites the content of a message the caller sent.
func (c *Client) EditMessage(ctx context.Context, messageID uint, content string) (*models.Message, error) {
	var msg models.Message
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/messages/%d", messageID),
		map[string]string{"content": content}, &msg)
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteMessage removes a message the caller sent.
func (c *Client) DeleteMessage(ctx context.Context, messageID uint) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/messages/%d", messageID), nil, nil)
}
