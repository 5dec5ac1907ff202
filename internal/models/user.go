// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// AccountKind distinguishes real accounts from auto-provisioned guest accounts.
// It is set once at creation time and never inferred from the email address.
type AccountKind string

const (
	// AccountKindStandard is a user who signed up with their own credentials.
	AccountKindStandard AccountKind = "standard"
	// AccountKindGuest is an anonymous account provisioned by the guest-login flow.
	AccountKindGuest AccountKind = "guest"
)

// User represents a user in the Ripple application.
type User struct {
	ID          uint        `gorm:"primaryKey" json:"id"`
	DisplayName string      `gorm:"unique;not null" json:"display_name"`
	Email       string      `gorm:"unique;not null" json:"email"`
	Password    string      `gorm:"not null" json:"-"`
	FullName    string      `json:"full_name"`
	Bio         string      `json:"bio"`
	// AvatarKey is the object-storage key of the avatar image, empty when unset.
	AvatarKey string      `json:"avatar_key"`
	Kind      AccountKind `gorm:"type:varchar(16);default:'standard'" json:"kind"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	Posts     []Post         `gorm:"foreignKey:UserID" json:"posts,omitempty"`

	// FollowersCount and FollowingCount are not persisted; computed at query time.
	FollowersCount int `gorm:"-" json:"followers_count"`
	FollowingCount int `gorm:"-" json:"following_count"`
}

// IsGuest reports whether this account was provisioned by the guest-login flow.
func (u *User) IsGuest() bool {
	return u.Kind == AccountKindGuest
}

// Summary returns the subset of user fields safe to embed in other payloads.
func (u *User) Summary() map[string]interface{} {
	return map[string]interface{}{
		"id":           u.ID,
		"display_name": u.DisplayName,
		"avatar_key":   u.AvatarKey,
	}
}
