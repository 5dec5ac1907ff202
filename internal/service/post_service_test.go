package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"ripple/internal/models"
	"ripple/internal/realtime"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is a stub for repository.PostRepository.
type postRepoStub struct {
	createFn      func(context.Context, *models.Post) error
	getByIDFn     func(context.Context, uint, uint) (*models.Post, error)
	getByUserIDFn func(context.Context, uint, int, int, uint) ([]*models.Post, error)
	listFn        func(context.Context, int, int, uint) ([]*models.Post, error)
	updateFn      func(context.Context, *models.Post) error
	deleteFn      func(context.Context, uint) error
	isLikedFn     func(context.Context, uint, uint) (bool, error)
	likedIDsFn    func(context.Context, uint, []uint) ([]uint, error)
	likeFn        func(context.Context, uint, uint) error
	unlikeFn      func(context.Context, uint, uint) error
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	return s.createFn(ctx, post)
}
func (s *postRepoStub) GetByID(ctx context.Context, id, currentUserID uint) (*models.Post, error) {
	return s.getByIDFn(ctx, id, currentUserID)
}
func (s *postRepoStub) GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.getByUserIDFn(ctx, userID, limit, offset, currentUserID)
}
func (s *postRepoStub) List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	return s.listFn(ctx, limit, offset, currentUserID)
}
func (s *postRepoStub) Update(ctx context.Context, post *models.Post) error {
	return s.updateFn(ctx, post)
}
func (s *postRepoStub) Delete(ctx context.Context, id uint) error {
	return s.deleteFn(ctx, id)
}
func (s *postRepoStub) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	return s.isLikedFn(ctx, userID, postID)
}
func (s *postRepoStub) GetLikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	return s.likedIDsFn(ctx, userID, postIDs)
}
func (s *postRepoStub) Like(ctx context.Context, userID, postID uint) error {
	return s.likeFn(ctx, userID, postID)
}
func (s *postRepoStub) Unlike(ctx context.Context, userID, postID uint) error {
	return s.unlikeFn(ctx, userID, postID)
}

func noopPostRepo() *postRepoStub {
	return &postRepoStub{
		createFn: func(_ context.Context, _ *models.Post) error { return nil },
		getByIDFn: func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1}, nil
		},
		getByUserIDFn: func(_ context.Context, _ uint, _, _ int, _ uint) ([]*models.Post, error) { return nil, nil },
		listFn:        func(_ context.Context, _, _ int, _ uint) ([]*models.Post, error) { return nil, nil },
		updateFn:      func(_ context.Context, _ *models.Post) error { return nil },
		deleteFn:      func(_ context.Context, _ uint) error { return nil },
		isLikedFn:     func(_ context.Context, _, _ uint) (bool, error) { return false, nil },
		likedIDsFn:    func(_ context.Context, _ uint, _ []uint) ([]uint, error) { return nil, nil },
		likeFn:        func(_ context.Context, _, _ uint) error { return nil },
		unlikeFn:      func(_ context.Context, _, _ uint) error { return nil },
	}
}

type publishedEvent struct {
	Topic string
	Event realtime.ChangeEvent
}

// publisherStub records published change events.
type publisherStub struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *publisherStub) PublishChange(_ context.Context, topic string, event realtime.ChangeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{Topic: topic, Event: event})
	return nil
}

func (p *publisherStub) last(t *testing.T) publishedEvent {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	require.NotEmpty(t, p.events, "expected a published change event")
	return p.events[len(p.events)-1]
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func assertUnauthorizedError(t *testing.T, err error) {
	t.Helper()
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "UNAUTHORIZED", appErr.Code)
}

func TestPostService_CreatePost(t *testing.T) {
	t.Parallel()

	t.Run("empty content", func(t *testing.T) {
		t.Parallel()
		svc := NewPostService(noopPostRepo(), nil)
		_, err := svc.CreatePost(context.Background(), CreatePostInput{UserID: 1})
		assertValidationError(t, err)
	})

	t.Run("content too long", func(t *testing.T) {
		t.Parallel()
		svc := NewPostService(noopPostRepo(), nil)
		_, err := svc.CreatePost(context.Background(), CreatePostInput{
			UserID:  1,
			Content: strings.Repeat("x", 5001),
		})
		assertValidationError(t, err)
	})

	t.Run("success publishes insert event", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.createFn = func(_ context.Context, p *models.Post) error {
			p.ID = 7
			return nil
		}
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1, Content: "hello"}, nil
		}

		pub := &publisherStub{}
		svc := NewPostService(repo, pub)
		post, err := svc.CreatePost(context.Background(), CreatePostInput{UserID: 1, Content: "hello"})
		require.NoError(t, err)
		assert.Equal(t, uint(7), post.ID)

		published := pub.last(t)
		assert.Equal(t, realtime.PostsTopic, published.Topic)
		assert.Equal(t, realtime.KindInsert, published.Event.Kind)
		assert.Equal(t, "posts", published.Event.Table)
	})
}

func TestPostService_UpdatePost_Ownership(t *testing.T) {
	t.Parallel()

	repo := noopPostRepo()
	repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
		return &models.Post{ID: id, UserID: 10, Content: "original"}, nil
	}
	svc := NewPostService(repo, nil)

	_, err := svc.UpdatePost(context.Background(), UpdatePostInput{UserID: 1, PostID: 1, Content: "edited"})
	assertUnauthorizedError(t, err)
}

func TestPostService_DeletePost(t *testing.T) {
	t.Parallel()

	t.Run("owner can delete, publishes delete event", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 1}, nil
		}
		pub := &publisherStub{}
		svc := NewPostService(repo, pub)

		require.NoError(t, svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 3}))
		published := pub.last(t)
		assert.Equal(t, realtime.PostsTopic, published.Topic)
		assert.Equal(t, realtime.KindDelete, published.Event.Kind)
	})

	t.Run("non-owner cannot delete", func(t *testing.T) {
		t.Parallel()
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 10}, nil
		}
		svc := NewPostService(repo, nil)
		err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 3})
		assertUnauthorizedError(t, err)
	})

	t.Run("repo error propagates", func(t *testing.T) {
		t.Parallel()
		repoErr := errors.New("boom")
		repo := noopPostRepo()
		repo.getByIDFn = func(_ context.Context, _, _ uint) (*models.Post, error) { return nil, repoErr }
		svc := NewPostService(repo, nil)
		err := svc.DeletePost(context.Background(), DeletePostInput{UserID: 1, PostID: 3})
		assert.ErrorIs(t, err, repoErr)
	})
}

func TestPostService_ToggleLike(t *testing.T) {
	t.Parallel()

	t.Run("not liked yet likes the post", func(t *testing.T) {
		t.Parallel()
		liked := false
		repo := noopPostRepo()
		repo.isLikedFn = func(_ context.Context, _, _ uint) (bool, error) { return liked, nil }
		repo.likeFn = func(_ context.Context, _, _ uint) error {
			liked = true
			return nil
		}
		repo.getByIDFn = func(_ context.Context, id, _ uint) (*models.Post, error) {
			return &models.Post{ID: id, UserID: 2, Liked: liked, LikesCount: 1}, nil
		}

		pub := &publisherStub{}
		svc := NewPostService(repo, pub)
		post, err := svc.ToggleLike(context.Background(), 1, 5)
		require.NoError(t, err)
		assert.True(t, post.Liked)
		assert.Equal(t, 1, post.LikesCount)

		published := pub.last(t)
		assert.Equal(t, realtime.PostsTopic, published.Topic)
		assert.Equal(t, realtime.KindUpdate, published.Event.Kind)
	})

	t.Run("already liked unlikes the post", func(t *testing.T) {
		t.Parallel()
		unliked := false
		repo := noopPostRepo()
		repo.isLikedFn = func(_ context.Context, _, _ uint) (bool, error) { return true, nil }
		repo.unlikeFn = func(_ context.Context, _, _ uint) error {
			unliked = true
			return nil
		}
		svc := NewPostService(repo, nil)
		_, err := svc.ToggleLike(context.Background(), 1, 5)
		require.NoError(t, err)
		assert.True(t, unliked)
	})
}
