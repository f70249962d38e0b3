package api

import (
	"bytes"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/steemit/chirp/internal/feed"
	"github.com/steemit/chirp/internal/service"
)

// TweetAPI provides the tweet.* methods
type TweetAPI struct {
	tweets *service.Tweets
}

// NewTweetAPI creates a new tweet API
func NewTweetAPI(tweets *service.Tweets) *TweetAPI {
	return &TweetAPI{tweets: tweets}
}

// InfiniteFeedParams are the params of tweet.infiniteFeed
type InfiniteFeedParams struct {
	OnlyFollowing bool   `json:"onlyFollowing,omitempty"`
	Limit         int    `json:"limit,omitempty"`
	Cursor        string `json:"cursor,omitempty"`
}

// InfiniteProfileFeedParams are the params of tweet.infiniteProfileFeed
type InfiniteProfileFeedParams struct {
	UserID string `json:"userId"`
	Limit  int    `json:"limit,omitempty"`
	Cursor string `json:"cursor,omitempty"`
}

// FeedResult is one page of tweets
type FeedResult struct {
	Tweets     []feed.Item `json:"tweets"`
	NextCursor string      `json:"nextCursor,omitempty"`
}

// ToggleLikeParams are the params of tweet.toggleLike
type ToggleLikeParams struct {
	ID string `json:"id"`
}

// ToggleLikeResult reports the direction the server chose
type ToggleLikeResult struct {
	AddedLike bool `json:"addedLike"`
}

// CreateParams are the params of tweet.create
type CreateParams struct {
	Content string `json:"content"`
}

// decodeParams unmarshals named params; absent params decode to the zero value
func decodeParams(params json.RawMessage, dest interface{}) error {
	trimmed := bytes.TrimSpace(params)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(trimmed, dest); err != nil {
		return invalidParams("%v", err)
	}
	return nil
}

func (a *TweetAPI) page(c *gin.Context, key feed.Key, limit int, cursor string) (interface{}, error) {
	page, err := a.tweets.FetchPage(c.Request.Context(), feed.PageRequest{
		ViewerID: ViewerID(c),
		Key:      key,
		Cursor:   cursor,
		Limit:    limit,
	})
	if err != nil {
		return nil, err
	}
	return &FeedResult{Tweets: page.Items, NextCursor: page.NextCursor}, nil
}

// InfiniteFeed handles tweet.infiniteFeed
func (a *TweetAPI) InfiniteFeed(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p InfiniteFeedParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	key := feed.Global
	if p.OnlyFollowing {
		key = feed.Following
	}
	return a.page(c, key, p.Limit, p.Cursor)
}

// InfiniteProfileFeed handles tweet.infiniteProfileFeed
func (a *TweetAPI) InfiniteProfileFeed(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p InfiniteProfileFeedParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, invalidParams("userId is required")
	}
	return a.page(c, feed.Profile(p.UserID), p.Limit, p.Cursor)
}

// ToggleLike handles tweet.toggleLike
func (a *TweetAPI) ToggleLike(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p ToggleLikeParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, invalidParams("id is required")
	}
	added, err := a.tweets.ToggleLike(c.Request.Context(), ViewerID(c), p.ID)
	if err != nil {
		return nil, err
	}
	return &ToggleLikeResult{AddedLike: added}, nil
}

// Create handles tweet.create
func (a *TweetAPI) Create(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p CreateParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	item, err := a.tweets.Create(c.Request.Context(), ViewerID(c), p.Content)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
