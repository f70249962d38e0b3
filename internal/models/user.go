package models

import (
	"time"
)

// User represents a registered account
type User struct {
	ID           string    `gorm:"type:varchar(36);primaryKey;column:id"`
	Name         string    `gorm:"type:varchar(64);not null;column:name"`
	Email        string    `gorm:"type:varchar(255);not null;uniqueIndex:chirp_users_ux1;column:email"`
	Image        string    `gorm:"type:varchar(1024);not null;default:'';column:image"`
	PasswordHash string    `gorm:"type:varchar(255);not null;column:password_hash"`
	CreatedAt    time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for User
func (User) TableName() string {
	return "chirp_users"
}

// Session represents a login session
type Session struct {
	Token     string    `gorm:"type:varchar(64);primaryKey;column:token"`
	UserID    string    `gorm:"type:varchar(36);not null;index;column:user_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
	ExpiresAt time.Time `gorm:"not null;index;column:expires_at"`

	// Relationships
	User *User `gorm:"foreignKey:UserID;references:ID"`
}

// TableName specifies the table name for Session
func (Session) TableName() string {
	return "chirp_sessions"
}
