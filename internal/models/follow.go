package models

import (
	"time"
)

// Follow represents a follow relationship
type Follow struct {
	FollowerID  string    `gorm:"type:varchar(36);primaryKey;column:follower_id"`
	FollowingID string    `gorm:"type:varchar(36);primaryKey;index;column:following_id"`
	CreatedAt   time.Time `gorm:"not null;column:created_at"`

	// Relationships
	Follower  *User `gorm:"foreignKey:FollowerID;references:ID"`
	Following *User `gorm:"foreignKey:FollowingID;references:ID"`
}

// TableName specifies the table name for Follow
func (Follow) TableName() string {
	return "chirp_follows"
}

// Profile holds the counters shown on a profile page
type Profile struct {
	User           *User
	TweetsCount    int64
	FollowersCount int64
	FollowsCount   int64
	IsFollowing    bool
}

// All lists every model for migrations
func All() []interface{} {
	return []interface{}{&User{}, &Session{}, &Tweet{}, &Like{}, &Follow{}}
}
