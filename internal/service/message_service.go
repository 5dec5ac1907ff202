package service

import (
	"context"

	"ripple/internal/models"
	"ripple/internal/realtime"
	"ripple/internal/repository"
	"ripple/internal/validation"
)

// MessageService owns direct messages. A conversation is the unordered
// pair of participants; every mutation publishes to the pair's topic so
// both sides see it live.
type MessageService struct {
	messageRepo repository.MessageRepository
	userRepo    repository.UserRepository
	publish     ChangePublisher
}

type SendMessageInput struct {
	SenderID   uint
	ReceiverID uint
	Content    string
}

type UpdateMessageInput struct {
	UserID    uint
	MessageID uint
	Content   string
}

type DeleteMessageInput struct {
	UserID    uint
	MessageID uint
}

func NewMessageService(
	messageRepo repository.MessageRepository,
	userRepo repository.UserRepository,
	publish ChangePublisher,
) *MessageService {
	return &MessageService{
		messageRepo: messageRepo,
		userRepo:    userRepo,
		publish:     publish,
	}
}

func (s *MessageService) SendMessage(ctx context.Context, in SendMessageInput) (*models.Message, error) {
	if in.SenderID == in.ReceiverID {
		return nil, models.NewValidationError("You cannot message yourself")
	}
	if err := validation.ValidateContent("message", in.Content, validation.MaxMessageLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}
	if _, err := s.userRepo.GetByID(ctx, in.ReceiverID); err != nil {
		return nil, err
	}

	msg := &models.Message{
		SenderID:   in.SenderID,
		ReceiverID: in.ReceiverID,
		Content:    in.Content,
	}
	if err := s.messageRepo.Create(ctx, msg); err != nil {
		return nil, err
	}

	created, err := s.messageRepo.GetByID(ctx, msg.ID)
	if err != nil {
		return nil, err
	}
	publishRow(ctx, s.publish, realtime.DMTopic(in.SenderID, in.ReceiverID), realtime.KindInsert, "messages", created)
	return created, nil
}

// GetConversation returns the latest window of message history between
// the caller and a partner, oldest first within the window.
func (s *MessageService) GetConversation(ctx context.Context, userID, partnerID uint, limit, offset int) ([]*models.Message, error) {
	if userID == partnerID {
		return nil, models.NewValidationError("You cannot open a conversation with yourself")
	}
	if _, err := s.userRepo.GetByID(ctx, partnerID); err != nil {
		return nil, err
	}
	return s.messageRepo.GetConversation(ctx, userID, partnerID, limit, offset)
}

// ListConversations returns the caller's conversation partners, most
// recently active first.
func (s *MessageService) ListConversations(ctx context.Context, userID uint) ([]models.ConversationPartner, error) {
	return s.messageRepo.ListPartners(ctx, userID)
}

func (s *MessageService) UpdateMessage(ctx context.Context, in UpdateMessageInput) (*models.Message, error) {
	msg, err := s.messageRepo.GetByID(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}

	if msg.SenderID != in.UserID {
		return nil, models.NewUnauthorizedError("You can only edit your own messages")
	}
	if err := validation.ValidateContent("message", in.Content, validation.MaxMessageLength); err != nil {
		return nil, models.NewValidationError(err.Error())
	}

	msg.Content = in.Content
	if err := s.messageRepo.Update(ctx, msg); err != nil {
		return nil, err
	}

	updated, err := s.messageRepo.GetByID(ctx, in.MessageID)
	if err != nil {
		return nil, err
	}
	publishRow(ctx, s.publish, realtime.DMTopic(msg.SenderID, msg.ReceiverID), realtime.KindUpdate, "messages", updated)
	return updated, nil
}

func (s *MessageService) DeleteMessage(ctx context.Context, in DeleteMessageInput) error {
	msg, err := s.messageRepo.GetByID(ctx, in.MessageID)
	if err != nil {
		return err
	}

	if msg.SenderID != in.UserID {
		return models.NewUnauthorizedError("You can only delete your own messages")
	}

	if err := s.messageRepo.Delete(ctx, in.MessageID); err != nil {
		return err
	}

	publishRow(ctx, s.publish, realtime.DMTopic(msg.SenderID, msg.ReceiverID), realtime.KindDelete, "messages",
		map[string]uint{"id": in.MessageID, "sender_id": msg.SenderID, "receiver_id": msg.ReceiverID})
	return nil
}
