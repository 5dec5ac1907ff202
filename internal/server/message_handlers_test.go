package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ripple/internal/config"
	"ripple/internal/models"
	"ripple/internal/realtime"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockMessageRepository is a mock of the MessageRepository interface
type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Create(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Message), args.Error(1)
}

func (m *MockMessageRepository) GetConversation(ctx context.Context, userA, userB uint, limit, offset int) ([]*models.Message, error) {
	args := m.Called(ctx, userA, userB, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Message), args.Error(1)
}

func (m *MockMessageRepository) ListPartners(ctx context.Context, userID uint) ([]models.ConversationPartner, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.ConversationPartner), args.Error(1)
}

func (m *MockMessageRepository) Update(ctx context.Context, msg *models.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *MockMessageRepository) Delete(ctx context.Context, id uint) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newMessageTestApp(messageRepo *MockMessageRepository, userRepo *MockUserRepository, userID uint) (*fiber.App, *Server) {
	s := &Server{
		config:         &config.Config{JWTSecret: "test_secret"},
		messageService: service.NewMessageService(messageRepo, userRepo, nil),
	}
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("userID", userID)
		return c.Next()
	})
	return app, s
}

func TestSendMessage(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		messageRepo := new(MockMessageRepository)
		userRepo := new(MockUserRepository)
		userRepo.On("GetByID", mock.Anything, uint(2)).Return(&models.User{ID: 2}, nil)
		messageRepo.On("Create", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
			args.Get(1).(*models.Message).ID = 5
		}).Return(nil)
		messageRepo.On("GetByID", mock.Anything, uint(5)).Return(&models.Message{
			ID:         5,
			SenderID:   1,
			ReceiverID: 2,
			Content:    "hey",
		}, nil)

		app, s := newMessageTestApp(messageRepo, userRepo, 1)
		app.Post("/conversations/:userId/messages", s.SendMessage)

		body, _ := json.Marshal(map[string]string{"content": "hey"})
		req := httptest.NewRequest(http.MethodPost, "/conversations/2/messages", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusCreated, resp.StatusCode)

		var msg models.Message
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&msg))
		assert.Equal(t, uint(5), msg.ID)
		assert.Equal(t, "hey", msg.Content)
		messageRepo.AssertExpectations(t)
	})

	t.Run("Self DM Rejected", func(t *testing.T) {
		messageRepo := new(MockMessageRepository)
		userRepo := new(MockUserRepository)

		app, s := newMessageTestApp(messageRepo, userRepo, 1)
		app.Post("/conversations/:userId/messages", s.SendMessage)

		body, _ := json.Marshal(map[string]string{"content": "talking to myself"})
		req := httptest.NewRequest(http.MethodPost, "/conversations/1/messages", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		_ = resp.Body.Close()
		messageRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Unknown Receiver", func(t *testing.T) {
		messageRepo := new(MockMessageRepository)
		userRepo := new(MockUserRepository)
		userRepo.On("GetByID", mock.Anything, uint(99)).Return(nil, models.NewNotFoundError("User", 99))

		app, s := newMessageTestApp(messageRepo, userRepo, 1)
		app.Post("/conversations/:userId/messages", s.SendMessage)

		body, _ := json.Marshal(map[string]string{"content": "anyone there"})
		req := httptest.NewRequest(http.MethodPost, "/conversations/99/messages", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		_ = resp.Body.Close()
	})
}

func TestGetMessages(t *testing.T) {
	messageRepo := new(MockMessageRepository)
	userRepo := new(MockUserRepository)
	userRepo.On("GetByID", mock.Anything, uint(2)).Return(&models.User{ID: 2}, nil)
	messageRepo.On("GetConversation", mock.Anything, uint(1), uint(2), 50, 0).Return([]*models.Message{
		{ID: 1, SenderID: 1, ReceiverID: 2, Content: "hi"},
		{ID: 2, SenderID: 2, ReceiverID: 1, Content: "hello"},
	}, nil)

	app, s := newMessageTestApp(messageRepo, userRepo, 1)
	app.Get("/conversations/:userId/messages", s.GetMessages)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/conversations/2/messages", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var messages []models.Message
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&messages))
	assert.Len(t, messages, 2)
}

func TestGetConversations(t *testing.T) {
	t.Run("With Partners", func(t *testing.T) {
		messageRepo := new(MockMessageRepository)
		userRepo := new(MockUserRepository)
		messageRepo.On("ListPartners", mock.Anything, uint(1)).Return([]models.ConversationPartner{
			{
				User:       models.User{ID: 2, DisplayName: "bob"},
				LastActive: time.Now(),
			},
		}, nil)

		app, s := newMessageTestApp(messageRepo, userRepo, 1)
		app.Get("/conversations", s.GetConversations)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/conversations", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var partners []models.ConversationPartner
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&partners))
		require.Len(t, partners, 1)
		assert.Equal(t, "bob", partners[0].User.DisplayName)
	})

	t.Run("Marks Online Partners", func(t *testing.T) {
		messageRepo := new(MockMessageRepository)
		userRepo := new(MockUserRepository)
		messageRepo.On("ListPartners", mock.Anything, uint(1)).Return([]models.ConversationPartner{
			{User: models.User{ID: 2, DisplayName: "bob"}, LastActive: time.Now()},
			{User: models.User{ID: 3, DisplayName: "eve"}, LastActive: time.Now()},
		}, nil)

		hub := realtime.NewHub()
		defer func() { _ = hub.Shutdown(context.Background()) }()
		_, err := hub.Register(2, "standard", nil)
		require.NoError(t, err)

		app, s := newMessageTestApp(messageRepo, userRepo, 1)
		s.hub = hub
		app.Get("/conversations", s.GetConversations)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/conversations", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var partners []models.ConversationPartner
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&partners))
		require.Len(t, partners, 2)
		assert.True(t, partners[0].Online, "partner with a live connection is online")
		assert.False(t, partners[1].Online, "partner without a connection is offline")
	})

	t.Run("No Conversations Serializes As Empty Array", func(t *testing.T) {
		messageRepo := new(MockMessageRepository)
		userRepo := new(MockUserRepository)
		messageRepo.On("ListPartners", mock.Anything, uint(1)).Return(nil, nil)

		app, s := newMessageTestApp(messageRepo, userRepo, 1)
		app.Get("/conversations", s.GetConversations)

		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/conversations", nil))
		require.NoError(t, err)
		defer func() { _ = resp.Body.Close() }()

		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var partners []models.ConversationPartner
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&partners))
		assert.NotNil(t, partners)
		assert.Empty(t, partners)
	})
}

func TestUpdateMessage_SenderOnly(t *testing.T) {
	messageRepo := new(MockMessageRepository)
	userRepo := new(MockUserRepository)
	messageRepo.On("GetByID", mock.Anything, uint(5)).Return(&models.Message{
		ID: 5, SenderID: 2, ReceiverID: 1, Content: "original",
	}, nil)

	app, s := newMessageTestApp(messageRepo, userRepo, 1)
	app.Put("/messages/:id", s.UpdateMessage)

	body, _ := json.Marshal(map[string]string{"content": "edited"})
	req := httptest.NewRequest(http.MethodPut, "/messages/5", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	_ = resp.Body.Close()
	messageRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestDeleteMessage(t *testing.T) {
	messageRepo := new(MockMessageRepository)
	userRepo := new(MockUserRepository)
	messageRepo.On("GetByID", mock.Anything, uint(5)).Return(&models.Message{
		ID: 5, SenderID: 1, ReceiverID: 2,
	}, nil)
	messageRepo.On("Delete", mock.Anything, uint(5)).Return(nil)

	app, s := newMessageTestApp(messageRepo, userRepo, 1)
	app.Delete("/messages/:id", s.DeleteMessage)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/messages/5", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	_ = resp.Body.Close()
	messageRepo.AssertExpectations(t)
}
