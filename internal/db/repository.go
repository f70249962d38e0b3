package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/steemit/chirp/internal/models"
)

var (
	// ErrTweetNotFound is returned when a like or lookup targets an unknown tweet
	ErrTweetNotFound = errors.New("tweet not found")
	// ErrUserNotFound is returned when a follow targets an unknown user
	ErrUserNotFound = errors.New("user not found")
	// ErrSelfFollow is returned when a user tries to follow themselves
	ErrSelfFollow = errors.New("cannot follow yourself")
)

// Repository provides database access methods
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new repository
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// UserRepository provides user-related database operations
type UserRepository struct {
	*Repository
}

// NewUserRepository creates a new user repository
func NewUserRepository(repo *Repository) *UserRepository {
	return &UserRepository{Repository: repo}
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// GetByEmail retrieves a user by email
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

// Create creates a new user, assigning an ID when missing
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(user).Error
}

// Profile loads a user with its counters as seen by viewerID (may be empty)
func (r *UserRepository) Profile(ctx context.Context, id, viewerID string) (*models.Profile, error) {
	user, err := r.GetByID(ctx, id)
	if err != nil || user == nil {
		return nil, err
	}

	profile := &models.Profile{User: user}
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.Tweet{}).Where("user_id = ?", id).Count(&profile.TweetsCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Follow{}).Where("following_id = ?", id).Count(&profile.FollowersCount).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Follow{}).Where("follower_id = ?", id).Count(&profile.FollowsCount).Error; err != nil {
		return nil, err
	}
	if viewerID != "" && viewerID != id {
		var n int64
		if err := db.Model(&models.Follow{}).
			Where("follower_id = ? AND following_id = ?", viewerID, id).
			Count(&n).Error; err != nil {
			return nil, err
		}
		profile.IsFollowing = n > 0
	}
	return profile, nil
}

// FeedFilter narrows a tweet page query
type FeedFilter struct {
	OnlyFollowing bool   // only authors the viewer follows
	AuthorID      string // only this author
}

// TweetRepository provides tweet-related database operations
type TweetRepository struct {
	*Repository
}

// NewTweetRepository creates a new tweet repository
func NewTweetRepository(repo *Repository) *TweetRepository {
	return &TweetRepository{Repository: repo}
}

// Page returns up to limit tweets newest first, starting after cursor, and the
// cursor of the following page (nil when there is none). One extra row is read
// to decide whether a following page exists.
func (r *TweetRepository) Page(ctx context.Context, viewerID string, filter FeedFilter, cursor *Cursor, limit int) ([]models.TweetRow, *Cursor, error) {
	query := r.db.WithContext(ctx).
		Table("chirp_tweets AS t").
		Select(`t.id, t.content, t.created_at, t.user_id, u.name AS user_name, u.image AS user_image,
			(SELECT COUNT(*) FROM chirp_likes l WHERE l.tweet_id = t.id) AS likes_count,
			EXISTS (SELECT 1 FROM chirp_likes l WHERE l.tweet_id = t.id AND l.user_id = ?) AS liked_by_me`, viewerID).
		Joins("JOIN chirp_users u ON u.id = t.user_id")

	if filter.AuthorID != "" {
		query = query.Where("t.user_id = ?", filter.AuthorID)
	}
	if filter.OnlyFollowing {
		query = query.Where("t.user_id IN (SELECT following_id FROM chirp_follows WHERE follower_id = ?)", viewerID)
	}
	if cursor != nil {
		query = query.Where("(t.created_at < ? OR (t.created_at = ? AND t.id < ?))",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.TweetRow
	if err := query.
		Order("t.created_at DESC").
		Order("t.id DESC").
		Limit(limit + 1).
		Scan(&rows).Error; err != nil {
		return nil, nil, err
	}

	var next *Cursor
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = &Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}
	return rows, next, nil
}

// Get returns one tweet row as seen by viewerID
func (r *TweetRepository) Get(ctx context.Context, viewerID, id string) (*models.TweetRow, error) {
	var rows []models.TweetRow
	if err := r.db.WithContext(ctx).
		Table("chirp_tweets AS t").
		Select(`t.id, t.content, t.created_at, t.user_id, u.name AS user_name, u.image AS user_image,
			(SELECT COUNT(*) FROM chirp_likes l WHERE l.tweet_id = t.id) AS likes_count,
			EXISTS (SELECT 1 FROM chirp_likes l WHERE l.tweet_id = t.id AND l.user_id = ?) AS liked_by_me`, viewerID).
		Joins("JOIN chirp_users u ON u.id = t.user_id").
		Where("t.id = ?", id).
		Limit(1).
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrTweetNotFound
	}
	return &rows[0], nil
}

// Create creates a new tweet, assigning an ID when missing
func (r *TweetRepository) Create(ctx context.Context, tweet *models.Tweet) error {
	if tweet.ID == "" {
		tweet.ID = uuid.NewString()
	}
	return r.db.WithContext(ctx).Create(tweet).Error
}

// ToggleLike removes the user's like on the tweet if present, otherwise adds
// one. It reports whether a like was added.
func (r *TweetRepository) ToggleLike(ctx context.Context, userID, tweetID string) (bool, error) {
	var added bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Tweet{}).Where("id = ?", tweetID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrTweetNotFound
		}

		result := tx.Where("user_id = ? AND tweet_id = ?", userID, tweetID).Delete(&models.Like{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			added = false
			return nil
		}

		var err error
		added, err = insertOrTakeBack(tx, &models.Like{UserID: userID, TweetID: tweetID})
		return err
	})
	return added, err
}

// insertOrTakeBack inserts the toggled row and reports whether it was added.
// When a concurrent toggle of the same pair inserted it first, the two toggles
// cancel out and the row is removed again.
func insertOrTakeBack(tx *gorm.DB, row interface{}) (bool, error) {
	result := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected > 0 {
		return true, nil
	}
	return false, tx.Delete(row).Error
}

// FollowRepository provides follow-related database operations
type FollowRepository struct {
	*Repository
}

// NewFollowRepository creates a new follow repository
func NewFollowRepository(repo *Repository) *FollowRepository {
	return &FollowRepository{Repository: repo}
}

// Toggle flips the follow relationship and reports whether it now exists
func (r *FollowRepository) Toggle(ctx context.Context, followerID, followingID string) (bool, error) {
	if followerID == followingID {
		return false, ErrSelfFollow
	}

	var added bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Where("id = ?", followingID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrUserNotFound
		}

		result := tx.Where("follower_id = ? AND following_id = ?", followerID, followingID).Delete(&models.Follow{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			added = false
			return nil
		}

		var err error
		added, err = insertOrTakeBack(tx, &models.Follow{FollowerID: followerID, FollowingID: followingID})
		return err
	})
	return added, err
}

// SessionRepository provides login session operations
type SessionRepository struct {
	*Repository
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(repo *Repository) *SessionRepository {
	return &SessionRepository{Repository: repo}
}

// Create opens a session for the user valid for ttl
func (r *SessionRepository) Create(ctx context.Context, userID string, ttl time.Duration) (*models.Session, error) {
	session := &models.Session{
		Token:     uuid.NewString(),
		UserID:    userID,
		ExpiresAt: time.Now().UTC().Add(ttl),
	}
	if err := r.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// GetValid returns the unexpired session for token with its user, or nil
func (r *SessionRepository) GetValid(ctx context.Context, token string) (*models.Session, error) {
	var session models.Session
	if err := r.db.WithContext(ctx).
		Preload("User").
		Where("token = ? AND expires_at > ?", token, time.Now().UTC()).
		First(&session).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &session, nil
}

// Delete removes a session
func (r *SessionRepository) Delete(ctx context.Context, token string) error {
	return r.db.WithContext(ctx).Where("token = ?", token).Delete(&models.Session{}).Error
}

// PurgeExpired removes expired sessions and returns how many were deleted
func (r *SessionRepository) PurgeExpired(ctx context.Context) (int64, error) {
	result := r.db.WithContext(ctx).Where("expires_at <= ?", time.Now().UTC()).Delete(&models.Session{})
	return result.RowsAffected, result.Error
}
