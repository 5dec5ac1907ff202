// Package repository provides data access layer implementations for the application.
package repository

import (
	"context"
	"errors"
	"sort"

	"ripple/internal/cache"
	"ripple/internal/models"

	"gorm.io/gorm"
)

// MessageRepository defines the interface for direct-message operations.
// A conversation is the unordered pair of two user IDs; there is no
// conversation entity in the schema.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.Message) error
	GetByID(ctx context.Context, id uint) (*models.Message, error)
	GetConversation(ctx context.Context, userA, userB uint, limit, offset int) ([]*models.Message, error)
	ListPartners(ctx context.Context, userID uint) ([]models.ConversationPartner, error)
	Update(ctx context.Context, msg *models.Message) error
	Delete(ctx context.Context, id uint) error
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository creates a new message repository
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateConversations(ctx, msg.SenderID, msg.ReceiverID)
	return nil
}

func (r *messageRepository) GetByID(ctx context.Context, id uint) (*models.Message, error) {
	var msg models.Message
	if err := r.db.WithContext(ctx).First(&msg, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Message", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &msg, nil
}

// GetConversation returns messages exchanged between the two users in
// chronological order (oldest first). A limit selects the most recent
// window of the thread, so a long conversation still opens on the
// latest exchange; offset pages backwards through history.
func (r *messageRepository) GetConversation(ctx context.Context, userA, userB uint, limit, offset int) ([]*models.Message, error) {
	var messages []*models.Message
	q := r.db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Preload("Sender").
		Order("created_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit).Offset(offset)
	}
	if err := q.Find(&messages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	// Rows arrive newest first; flip to chronological for the caller.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// ListPartners returns the distinct users the given user has exchanged
// messages with, most recent conversation first, each with the latest
// message attached.
func (r *messageRepository) ListPartners(ctx context.Context, userID uint) ([]models.ConversationPartner, error) {
	var partners []models.ConversationPartner
	if cache.GetJSON(ctx, cache.ConversationsKey(userID), &partners) {
		return partners, nil
	}

	type partnerRow struct {
		PartnerID uint
		LastMsgID uint
	}
	// Message ids are assigned monotonically, so MAX(id) per partner is
	// the latest message. The grouped form runs on both Postgres and the
	// sqlite test stack, unlike DISTINCT ON.
	var rows []partnerRow
	err := r.db.WithContext(ctx).Raw(`
		SELECT CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END AS partner_id,
			MAX(id) AS last_msg_id
		FROM messages
		WHERE (sender_id = ? OR receiver_id = ?) AND deleted_at IS NULL
		GROUP BY CASE WHEN sender_id = ? THEN receiver_id ELSE sender_id END`,
		userID, userID, userID, userID,
	).Scan(&rows).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	if len(rows) == 0 {
		return []models.ConversationPartner{}, nil
	}

	partnerIDs := make([]uint, 0, len(rows))
	msgIDs := make([]uint, 0, len(rows))
	for _, row := range rows {
		partnerIDs = append(partnerIDs, row.PartnerID)
		msgIDs = append(msgIDs, row.LastMsgID)
	}

	var users []models.User
	if err := r.db.WithContext(ctx).Where("id IN ?", partnerIDs).Find(&users).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	usersByID := make(map[uint]models.User, len(users))
	for _, u := range users {
		usersByID[u.ID] = u
	}

	var lastMessages []models.Message
	if err := r.db.WithContext(ctx).Where("id IN ?", msgIDs).Find(&lastMessages).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	messagesByID := make(map[uint]models.Message, len(lastMessages))
	for _, m := range lastMessages {
		messagesByID[m.ID] = m
	}

	partners = make([]models.ConversationPartner, 0, len(rows))
	for _, row := range rows {
		user, ok := usersByID[row.PartnerID]
		if !ok {
			continue
		}
		partner := models.ConversationPartner{User: user}
		if msg, ok := messagesByID[row.LastMsgID]; ok {
			msgCopy := msg
			partner.LastMessage = &msgCopy
			partner.LastActive = msg.CreatedAt
		}
		partners = append(partners, partner)
	}

	// Most recent conversation first
	sort.Slice(partners, func(i, j int) bool {
		return partners[i].LastActive.After(partners[j].LastActive)
	})

	cache.SetJSON(ctx, cache.ConversationsKey(userID), partners, cache.ConversationsTTL)
	return partners, nil
}

func (r *messageRepository) Update(ctx context.Context, msg *models.Message) error {
	if err := r.db.WithContext(ctx).Save(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateConversations(ctx, msg.SenderID, msg.ReceiverID)
	return nil
}

func (r *messageRepository) Delete(ctx context.Context, id uint) error {
	msg, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Delete(&models.Message{}, id).Error; err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateConversations(ctx, msg.SenderID, msg.ReceiverID)
	return nil
}
