package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"ripple/internal/models"
)

// FeedPageSize mirrors the server's fixed feed page size.
const FeedPageSize = 10

// feedEnvelope matches the server's feed page response.
type feedEnvelope struct {
	Posts   []*models.Post `json:"posts"`
	HasMore bool           `json:"has_more"`
}

// FeedLoader accumulates the global feed page by page. Pages only ever
// append; nothing is reordered, so scroll positions stay stable.
// LoadNext while a load is in flight is a no-op, which collapses rapid
// scroll events into one request. Safe for concurrent use.
type FeedLoader struct {
	client *Client
	path   string

	mu        sync.Mutex
	busy      bool
	posts     []*models.Post
	offset    int
	exhausted bool
}

// NewFeedLoader returns a loader over the global feed.
func (c *Client) NewFeedLoader() *FeedLoader {
	return &FeedLoader{client: c, path: "/api/posts/"}
}

// NewUserFeedLoader returns a loader over one author's posts.
func (c *Client) NewUserFeedLoader(userID uint) *FeedLoader {
	return &FeedLoader{client: c, path: fmt.Sprintf("/api/users/%d/posts", userID)}
}

// LoadNext fetches the next page and appends it. It returns the newly
// appended posts; nil with no error means the call was skipped because
// another load was in flight, or the feed is exhausted.
func (f *FeedLoader) LoadNext(ctx context.Context) ([]*models.Post, error) {
	f.mu.Lock()
	if f.busy || f.exhausted {
		f.mu.Unlock()
		return nil, nil
	}
	f.busy = true
	offset := f.offset
	f.mu.Unlock()

	var page feedEnvelope
	path := fmt.Sprintf("%s?limit=%d&offset=%d", f.path, FeedPageSize, offset)
	err := f.client.do(ctx, http.MethodGet, path, nil, &page)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.busy = false
	if err != nil {
		return nil, err
	}

	f.posts = append(f.posts, page.Posts...)
	f.offset += len(page.Posts)
	if !page.HasMore {
		f.exhausted = true
	}
	return page.Posts, nil
}

// Posts returns a snapshot of everything loaded so far.
func (f *FeedLoader) Posts() []*models.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Post, len(f.posts))
	copy(out, f.posts)
	return out
}

// Exhausted reports whether a short page marked the end of the feed.
func (f *FeedLoader) Exhausted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.exhausted
}

// Reset clears loaded state so the next LoadNext starts from the top.
func (f *FeedLoader) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.posts = nil
	f.offset = 0
	f.exhausted = false
	f.busy = false
}
