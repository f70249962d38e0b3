package rpcclient

import (
	"context"
	"errors"
	"time"

	"github.com/steemit/chirp/internal/api"
	"github.com/steemit/chirp/internal/feed"
	"github.com/steemit/chirp/internal/models"
	"github.com/steemit/chirp/internal/service"
)

// FetchPage implements feed.Fetcher over tweet.infiniteFeed and
// tweet.infiniteProfileFeed. The viewer is identified by the token in ctx.
func (c *Client) FetchPage(ctx context.Context, req feed.PageRequest) (*feed.Page, error) {
	var result api.FeedResult
	var err error
	if authorID := req.Key.AuthorID(); authorID != "" {
		err = c.Call(ctx, "tweet.infiniteProfileFeed", api.InfiniteProfileFeedParams{
			UserID: authorID,
			Limit:  req.Limit,
			Cursor: req.Cursor,
		}, &result)
	} else {
		err = c.Call(ctx, "tweet.infiniteFeed", api.InfiniteFeedParams{
			OnlyFollowing: req.Key.OnlyFollowing(),
			Limit:         req.Limit,
			Cursor:        req.Cursor,
		}, &result)
	}
	if err != nil {
		return nil, err
	}
	return &feed.Page{Items: result.Tweets, Cursor: req.Cursor, NextCursor: result.NextCursor}, nil
}

// ToggleLike implements feed.Toggler over tweet.toggleLike
func (c *Client) ToggleLike(ctx context.Context, _ string, itemID string) (bool, error) {
	var result api.ToggleLikeResult
	if err := c.Call(ctx, "tweet.toggleLike", api.ToggleLikeParams{ID: itemID}, &result); err != nil {
		return false, err
	}
	return result.AddedLike, nil
}

// Create posts a tweet through tweet.create
func (c *Client) Create(ctx context.Context, _ string, content string) (feed.Item, error) {
	var item feed.Item
	err := c.Call(ctx, "tweet.create", api.CreateParams{Content: content}, &item)
	return item, err
}

// Get returns a profile through profile.getById
func (c *Client) Get(ctx context.Context, _ string, id string) (*service.Profile, error) {
	var profile service.Profile
	if err := c.Call(ctx, "profile.getById", api.GetByIDParams{ID: id}, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// ToggleFollow flips a follow through profile.toggleFollow
func (c *Client) ToggleFollow(ctx context.Context, _ string, userID string) (bool, error) {
	var result api.ToggleFollowResult
	if err := c.Call(ctx, "profile.toggleFollow", api.ToggleFollowParams{UserID: userID}, &result); err != nil {
		return false, err
	}
	return result.AddedFollow, nil
}

// Login opens a session through auth.login
func (c *Client) Login(ctx context.Context, email, password string) (*models.Session, error) {
	var result api.LoginResult
	err := c.Call(ctx, "auth.login", api.LoginParams{Email: email, Password: password}, &result)
	if err != nil {
		if isUnauthorized(err) {
			return nil, service.ErrInvalidCredentials
		}
		return nil, err
	}
	return &models.Session{
		Token:     result.Token,
		UserID:    result.User.ID,
		CreatedAt: time.Now().UTC(),
		ExpiresAt: result.ExpiresAt,
		User:      userOf(result.User),
	}, nil
}

// Resolve returns the user of a session token through auth.me, or nil
func (c *Client) Resolve(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, nil
	}
	var acct *api.Account
	if err := c.Call(WithToken(ctx, token), "auth.me", nil, &acct); err != nil {
		if isUnauthorized(err) {
			return nil, nil
		}
		return nil, err
	}
	if acct == nil {
		return nil, nil
	}
	return userOf(*acct), nil
}

// Logout ends a session through auth.logout
func (c *Client) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return c.Call(WithToken(ctx, token), "auth.logout", nil, nil)
}

func isUnauthorized(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Code == codeUnauthorized
}

func userOf(acct api.Account) *models.User {
	return &models.User{ID: acct.ID, Name: acct.Name, Image: acct.Image}
}
