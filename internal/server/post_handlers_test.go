package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"ripple/internal/config"
	"ripple/internal/models"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockPostRepository is a mock of the PostRepository interface
type MockPostRepository struct {
	mock.Mock
}

func (m *MockPostRepository) Create(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) GetByID(ctx context.Context, id uint, currentUserID uint) (*models.Post, error) {
	args := m.Called(ctx, id, currentUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Post), args.Error(1)
}

func (m *MockPostRepository) GetByUserID(ctx context.Context, userID uint, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	args := m.Called(ctx, userID, limit, offset, currentUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) List(ctx context.Context, limit, offset int, currentUserID uint) ([]*models.Post, error) {
	args := m.Called(ctx, limit, offset, currentUserID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Post), args.Error(1)
}

func (m *MockPostRepository) Update(ctx context.Context, post *models.Post) error {
	args := m.Called(ctx, post)
	return args.Error(0)
}

func (m *MockPostRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockPostRepository) IsLiked(ctx context.Context, userID, postID uint) (bool, error) {
	args := m.Called(ctx, userID, postID)
	return args.Bool(0), args.Error(1)
}

func (m *MockPostRepository) GetLikedPostIDs(ctx context.Context, userID uint, postIDs []uint) ([]uint, error) {
	args := m.Called(ctx, userID, postIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uint), args.Error(1)
}

func (m *MockPostRepository) Like(ctx context.Context, userID, postID uint) error {
	args := m.Called(ctx, userID, postID)
	return args.Error(0)
}

func (m *MockPostRepository) Unlike(ctx context.Context, userID, postID uint) error {
	args := m.Called(ctx, userID, postID)
	return args.Error(0)
}

// newPostTestApp wires a post service over the mock repo and fakes the auth
// middleware so handlers see a logged-in user.
func newPostTestApp(mockRepo *MockPostRepository, userID uint) (*fiber.App, *Server) {
	s := &Server{
		config:      &config.Config{JWTSecret: "test_secret"},
		postService: service.NewPostService(mockRepo, nil),
	}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})
	return app, s
}

func TestCreatePost(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockRepo := new(MockPostRepository)
		mockRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Post).ID = 10
		}).Return(nil)
		mockRepo.On("GetByID", mock.Anything, uint(10), uint(1)).Return(&models.Post{
			ID:      10,
			UserID:  1,
			Content: "hello world",
		}, nil)

		app, s := newPostTestApp(mockRepo, 1)
		app.Post("/posts", s.CreatePost)

		body, _ := json.Marshal(map[string]string{"content": "hello world"})
		req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var post models.Post
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&post))
		assert.Equal(t, uint(10), post.ID)
		assert.Equal(t, "hello world", post.Content)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Empty Content", func(t *testing.T) {
		mockRepo := new(MockPostRepository)
		app, s := newPostTestApp(mockRepo, 1)
		app.Post("/posts", s.CreatePost)

		body, _ := json.Marshal(map[string]string{"content": "   "})
		req := httptest.NewRequest(http.MethodPost, "/posts", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		_ = resp.Body.Close()
		mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})
}

func TestGetPosts_FeedEnvelope(t *testing.T) {
	makePosts := func(n int) []*models.Post {
		posts := make([]*models.Post, n)
		for i := range posts {
			posts[i] = &models.Post{ID: uint(n - i), Content: fmt.Sprintf("post %d", n-i)}
		}
		return posts
	}

	tests := []struct {
		name            string
		returned        []*models.Post
		expectedHasMore bool
	}{
		{"Full page means more", makePosts(feedPageSize), true},
		{"Short page exhausts feed", makePosts(3), false},
		{"Empty feed", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockPostRepository)
			mockRepo.On("List", mock.Anything, feedPageSize, 0, uint(0)).Return(tt.returned, nil)

			s := &Server{
				config:      &config.Config{JWTSecret: "test_secret"},
				postService: service.NewPostService(mockRepo, nil),
			}
			app := fiber.New()
			app.Get("/posts", s.GetPosts)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/posts", nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			assert.Equal(t, http.StatusOK, resp.StatusCode)

			var page struct {
				Posts   []models.Post `json:"posts"`
				HasMore bool          `json:"has_more"`
			}
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
			assert.Len(t, page.Posts, len(tt.returned))
			assert.Equal(t, tt.expectedHasMore, page.HasMore)
			// Empty pages still serialize as [] rather than null
			assert.NotNil(t, page.Posts)
		})
	}
}

func TestLikePost_Toggles(t *testing.T) {
	t.Run("Not yet liked - likes", func(t *testing.T) {
		mockRepo := new(MockPostRepository)
		mockRepo.On("IsLiked", mock.Anything, uint(1), uint(10)).Return(false, nil)
		mockRepo.On("Like", mock.Anything, uint(1), uint(10)).Return(nil)
		mockRepo.On("GetByID", mock.Anything, uint(10), uint(1)).Return(&models.Post{ID: 10, LikesCount: 1, Liked: true}, nil)

		app, s := newPostTestApp(mockRepo, 1)
		app.Post("/posts/:id/like", s.LikePost)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts/10/like", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var post models.Post
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&post))
		assert.True(t, post.Liked)
		assert.Equal(t, 1, post.LikesCount)

		mockRepo.AssertExpectations(t)
		mockRepo.AssertNotCalled(t, "Unlike", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Already liked - unlikes", func(t *testing.T) {
		mockRepo := new(MockPostRepository)
		mockRepo.On("IsLiked", mock.Anything, uint(1), uint(10)).Return(true, nil)
		mockRepo.On("Unlike", mock.Anything, uint(1), uint(10)).Return(nil)
		mockRepo.On("GetByID", mock.Anything, uint(10), uint(1)).Return(&models.Post{ID: 10}, nil)

		app, s := newPostTestApp(mockRepo, 1)
		app.Post("/posts/:id/like", s.LikePost)

		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts/10/like", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
		mockRepo.AssertExpectations(t)
		mockRepo.AssertNotCalled(t, "Like", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestUpdatePost_OwnershipEnforced(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("GetByID", mock.Anything, uint(10), uint(2)).Return(&models.Post{ID: 10, UserID: 1, Content: "original"}, nil)

	app, s := newPostTestApp(mockRepo, 2)
	app.Put("/posts/:id", s.UpdatePost)

	body, _ := json.Marshal(map[string]string{"content": "hijacked"})
	req := httptest.NewRequest(http.MethodPut, "/posts/10", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDeletePost(t *testing.T) {
	t.Run("Owner deletes", func(t *testing.T) {
		mockRepo := new(MockPostRepository)
		mockRepo.On("GetByID", mock.Anything, uint(10), uint(1)).Return(&models.Post{ID: 10, UserID: 1}, nil)
		mockRepo.On("Delete", mock.Anything, uint(10)).Return(nil)

		app, s := newPostTestApp(mockRepo, 1)
		app.Delete("/posts/:id", s.DeletePost)

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/posts/10", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
		_ = resp.Body.Close()
		mockRepo.AssertExpectations(t)
	})

	t.Run("Missing post", func(t *testing.T) {
		mockRepo := new(MockPostRepository)
		mockRepo.On("GetByID", mock.Anything, uint(99), uint(1)).Return(nil, models.NewNotFoundError("Post", 99))

		app, s := newPostTestApp(mockRepo, 1)
		app.Delete("/posts/:id", s.DeletePost)

		resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/posts/99", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestGuestAccountBlockedFromMutations(t *testing.T) {
	mockRepo := new(MockPostRepository)
	s := &Server{
		config:      &config.Config{JWTSecret: "test_secret"},
		postService: service.NewPostService(mockRepo, nil),
	}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", uint(5))
		c.Locals("accountKind", string(models.AccountKindGuest))
		return c.Next()
	})
	app.Post("/posts", s.StandardAccountRequired(), s.CreatePost)
	app.Post("/posts/:id/like", s.StandardAccountRequired(), s.LikePost)

	body := bytes.NewBufferString(`{"content":"guest post"}`)
	req := httptest.NewRequest(http.MethodPost, "/posts", body)
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/posts/1/like", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()

	mockRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	mockRepo.AssertNotCalled(t, "IsLiked", mock.Anything, mock.Anything, mock.Anything)
}

func TestStandardAccountPassesGuard(t *testing.T) {
	mockRepo := new(MockPostRepository)
	mockRepo.On("IsLiked", mock.Anything, uint(1), uint(7)).Return(false, nil)
	mockRepo.On("Like", mock.Anything, uint(1), uint(7)).Return(nil)
	mockRepo.On("GetByID", mock.Anything, uint(7), uint(1)).Return(&models.Post{ID: 7, Liked: true, LikesCount: 1}, nil)

	app, s := newPostTestApp(mockRepo, 1)
	app.Post("/posts/:id/like", s.StandardAccountRequired(), s.LikePost)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/posts/7/like", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	_ = resp.Body.Close()
	mockRepo.AssertExpectations(t)
}
