package service

import (
	"context"

	"github.com/steemit/chirp/internal/db"
)

// Profile is the public summary of a user as seen by a viewer
type Profile struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Image          string `json:"image,omitempty"`
	TweetsCount    int64  `json:"tweetsCount"`
	FollowersCount int64  `json:"followersCount"`
	FollowsCount   int64  `json:"followsCount"`
	IsFollowing    bool   `json:"isFollowing"`
}

// Profiles serves profile summaries and follow toggles
type Profiles struct {
	users   *db.UserRepository
	follows *db.FollowRepository
}

// NewProfiles creates a profile service
func NewProfiles(repo *db.Repository) *Profiles {
	return &Profiles{
		users:   db.NewUserRepository(repo),
		follows: db.NewFollowRepository(repo),
	}
}

// Get returns the profile of id, or db.ErrUserNotFound
func (s *Profiles) Get(ctx context.Context, viewerID, id string) (*Profile, error) {
	p, err := s.users.Profile(ctx, id, viewerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, db.ErrUserNotFound
	}
	return &Profile{
		ID:             p.User.ID,
		Name:           p.User.Name,
		Image:          p.User.Image,
		TweetsCount:    p.TweetsCount,
		FollowersCount: p.FollowersCount,
		FollowsCount:   p.FollowsCount,
		IsFollowing:    p.IsFollowing,
	}, nil
}

// ToggleFollow flips whether the viewer follows userID
func (s *Profiles) ToggleFollow(ctx context.Context, viewerID, userID string) (bool, error) {
	if viewerID == "" {
		return false, ErrUnauthorized
	}
	return s.follows.Toggle(ctx, viewerID, userID)
}
