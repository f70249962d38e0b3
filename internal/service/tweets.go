// Package service implements the tweet, profile and authentication use cases
// on top of the repositories. Both the JSON-RPC API and the in-process web
// client call into it.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/steemit/chirp/internal/db"
	"github.com/steemit/chirp/internal/feed"
	"github.com/steemit/chirp/internal/models"
	"github.com/steemit/chirp/pkg/logging"
)

const (
	// DefaultPageSize is used when a page request names no limit
	DefaultPageSize = 10
	// MaxPageSize caps the limit of a page request
	MaxPageSize = 50
	// MaxContentLength is the longest tweet accepted, in runes
	MaxContentLength = 280
)

var (
	// ErrEmptyContent is returned for a tweet with only whitespace
	ErrEmptyContent = errors.New("tweet content is empty")
	// ErrContentTooLong is returned for a tweet over MaxContentLength runes
	ErrContentTooLong = fmt.Errorf("tweet content is longer than %d characters", MaxContentLength)
	// ErrUnauthorized is returned when an operation needs a signed-in viewer
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidCursor is returned for a cursor that was not issued by the server
	ErrInvalidCursor = errors.New("invalid cursor")
)

// Tweets serves feed pages, like toggles and tweet creation
type Tweets struct {
	tweets *db.TweetRepository
	logger *zap.Logger
}

// NewTweets creates a tweet service
func NewTweets(repo *db.Repository) *Tweets {
	return &Tweets{
		tweets: db.NewTweetRepository(repo),
		logger: logging.WithComponent("tweet-service"),
	}
}

// ClampLimit applies the default and maximum page sizes
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultPageSize
	case limit > MaxPageSize:
		return MaxPageSize
	default:
		return limit
	}
}

// FetchPage loads one page of a feed as seen by the requesting viewer
func (s *Tweets) FetchPage(ctx context.Context, req feed.PageRequest) (*feed.Page, error) {
	if req.Key.OnlyFollowing() && req.ViewerID == "" {
		return nil, ErrUnauthorized
	}

	cursor, err := db.DecodeCursor(req.Cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}

	filter := db.FeedFilter{
		OnlyFollowing: req.Key.OnlyFollowing(),
		AuthorID:      req.Key.AuthorID(),
	}
	rows, next, err := s.tweets.Page(ctx, req.ViewerID, filter, cursor, ClampLimit(req.Limit))
	if err != nil {
		return nil, fmt.Errorf("failed to load %s feed: %w", req.Key, err)
	}

	page := &feed.Page{
		Items:      make([]feed.Item, 0, len(rows)),
		Cursor:     req.Cursor,
		NextCursor: next.Encode(),
	}
	for i := range rows {
		page.Items = append(page.Items, ItemFromRow(&rows[i]))
	}
	return page, nil
}

// ToggleLike flips the viewer's like and reports whether one was added
func (s *Tweets) ToggleLike(ctx context.Context, viewerID, itemID string) (bool, error) {
	if viewerID == "" {
		return false, ErrUnauthorized
	}
	added, err := s.tweets.ToggleLike(ctx, viewerID, itemID)
	if err != nil {
		return false, err
	}
	s.logger.Debug("Like toggled",
		zap.String("tweet", itemID),
		zap.Bool("added", added))
	return added, nil
}

// Get returns one tweet as seen by the viewer
func (s *Tweets) Get(ctx context.Context, viewerID, id string) (feed.Item, error) {
	row, err := s.tweets.Get(ctx, viewerID, id)
	if err != nil {
		return feed.Item{}, err
	}
	return ItemFromRow(row), nil
}

// Create stores a new tweet by the viewer and returns it
func (s *Tweets) Create(ctx context.Context, viewerID, content string) (feed.Item, error) {
	if viewerID == "" {
		return feed.Item{}, ErrUnauthorized
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return feed.Item{}, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > MaxContentLength {
		return feed.Item{}, ErrContentTooLong
	}

	tweet := &models.Tweet{UserID: viewerID, Content: content}
	if err := s.tweets.Create(ctx, tweet); err != nil {
		return feed.Item{}, fmt.Errorf("failed to create tweet: %w", err)
	}
	s.logger.Info("Tweet created", zap.String("tweet", tweet.ID), zap.String("user", viewerID))
	return s.Get(ctx, viewerID, tweet.ID)
}

// ItemFromRow converts a joined tweet row into a feed item
func ItemFromRow(row *models.TweetRow) feed.Item {
	return feed.Item{
		ID:         row.ID,
		Content:    row.Content,
		CreatedAt:  row.CreatedAt.UTC(),
		LikesCount: int(row.LikesCount),
		LikedByMe:  row.LikedByMe,
		Author: feed.Author{
			ID:    row.UserID,
			Name:  row.UserName,
			Image: row.UserImage,
		},
	}
}
