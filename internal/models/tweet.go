package models

import (
	"time"
)

// Tweet represents a post on the timeline
type Tweet struct {
	ID        string    `gorm:"type:varchar(36);primaryKey;column:id"`
	UserID    string    `gorm:"type:varchar(36);not null;index:chirp_tweets_ix1;column:user_id"`
	Content   string    `gorm:"type:text;not null;column:content"`
	CreatedAt time.Time `gorm:"not null;index:chirp_tweets_ix2;column:created_at"`

	// Relationships
	User  *User  `gorm:"foreignKey:UserID;references:ID"`
	Likes []Like `gorm:"foreignKey:TweetID;references:ID"`
}

// TableName specifies the table name for Tweet
func (Tweet) TableName() string {
	return "chirp_tweets"
}

// Like represents a user liking a tweet
type Like struct {
	UserID    string    `gorm:"type:varchar(36);primaryKey;column:user_id"`
	TweetID   string    `gorm:"type:varchar(36);primaryKey;index;column:tweet_id"`
	CreatedAt time.Time `gorm:"not null;column:created_at"`
}

// TableName specifies the table name for Like
func (Like) TableName() string {
	return "chirp_likes"
}

// TweetRow is a tweet joined with its author and the viewer-dependent like state
type TweetRow struct {
	ID         string    `gorm:"column:id"`
	Content    string    `gorm:"column:content"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UserID     string    `gorm:"column:user_id"`
	UserName   string    `gorm:"column:user_name"`
	UserImage  string    `gorm:"column:user_image"`
	LikesCount int64     `gorm:"column:likes_count"`
	LikedByMe  bool      `gorm:"column:liked_by_me"`
}
