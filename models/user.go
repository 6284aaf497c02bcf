package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a board member. Passwords are stored as bcrypt hashes only.
// Accounts are immutable after registration except for credential rotation,
// which is out of scope here.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"size:64;uniqueIndex;not null" json:"username"`
	PasswordHash string         `gorm:"size:255;not null" json:"-"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	return nil
}

// PublicUser is the display projection attached to questions and answers.
// It never carries credentials.
type PublicUser struct {
	ID       uint   `json:"id"`
	Username string `json:"username"`
}

// Public reduces a user to display attributes.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username}
}
