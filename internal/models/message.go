// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// Message is a direct message between two users. A conversation is the
// unordered pair {SenderID, ReceiverID}; there is no conversation entity.
// Sender and receiver never change after creation; content is mutable by
// the sender only.
type Message struct {
	ID         uint           `gorm:"primaryKey" json:"id"`
	SenderID   uint           `gorm:"not null;index" json:"sender_id"`
	Sender     *User          `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
	ReceiverID uint           `gorm:"not null;index" json:"receiver_id"`
	Receiver   *User          `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
	Content    string         `gorm:"type:text;not null" json:"content"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

// ConversationPartner pairs a user with the most recent message exchanged
// with them; used by the conversations listing.
type ConversationPartner struct {
	User        User      `json:"user"`
	LastMessage *Message  `json:"last_message,omitempty"`
	LastActive  time.Time `json:"last_active"`
	// Online is computed from live websocket presence, never persisted.
	Online bool `json:"online"`
}
