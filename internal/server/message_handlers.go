// Package server contains HTTP and WebSocket handlers for the application's API endpoints.
package server

import (
	"ripple/internal/models"
	"ripple/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetConversations handles GET /api/conversations
// Lists conversation partners with the latest exchanged message, newest
// first. Each partner carries a live online flag from the presence
// tracker.
func (s *Server) GetConversations(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)

	partners, err := s.messageService.ListConversations(c.Context(), userID)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusInternalServerError, err)
	}
	if partners == nil {
		partners = []models.ConversationPartner{}
	}
	if s.hub != nil {
		for i := range partners {
			partners[i].Online = s.hub.IsOnline(partners[i].User.ID)
		}
	}

	return c.JSON(partners)
}

// GetMessages handles GET /api/conversations/:userId/messages
// Returns the latest window of the thread (default 50 messages), oldest
// first; offset pages backwards through history.
func (s *Server) GetMessages(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	partnerID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	page := parsePagination(c, 50)

	messages, err := s.messageService.GetConversation(c.Context(), userID, partnerID, page.Limit, page.Offset)
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}
	if messages == nil {
		messages = []*models.Message{}
	}

	return c.JSON(messages)
}

// SendMessage handles POST /api/conversations/:userId/messages
func (s *Server) SendMessage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	partnerID, err := s.parseID(c, "userId")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.messageService.SendMessage(c.Context(), service.SendMessageInput{
		SenderID:   userID,
		ReceiverID: partnerID,
		Content:    req.Content,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}

// UpdateMessage handles PUT /api/messages/:id (sender only)
func (s *Server) UpdateMessage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	var req struct {
		Content string `json:"content"`
	}
	if parseErr := c.BodyParser(&req); parseErr != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
	}

	msg, err := s.messageService.UpdateMessage(c.Context(), service.UpdateMessageInput{
		UserID:    userID,
		MessageID: messageID,
		Content:   req.Content,
	})
	if err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.JSON(msg)
}

// DeleteMessage handles DELETE /api/messages/:id (sender only)
func (s *Server) DeleteMessage(c *fiber.Ctx) error {
	userID := c.Locals("userID").(uint)
	messageID, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	if err := s.messageService.DeleteMessage(c.Context(), service.DeleteMessageInput{
		UserID:    userID,
		MessageID: messageID,
	}); err != nil {
		return models.RespondWithError(c, mapServiceError(err), err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
