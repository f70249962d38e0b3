package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"

	"github.com/steemit/chirp/internal/service"
)

// ProfileAPI provides the profile.* methods
type ProfileAPI struct {
	profiles *service.Profiles
}

// NewProfileAPI creates a new profile API
func NewProfileAPI(profiles *service.Profiles) *ProfileAPI {
	return &ProfileAPI{profiles: profiles}
}

// GetByIDParams are the params of profile.getById
type GetByIDParams struct {
	ID string `json:"id"`
}

// ToggleFollowParams are the params of profile.toggleFollow
type ToggleFollowParams struct {
	UserID string `json:"userId"`
}

// ToggleFollowResult reports whether the viewer now follows the user
type ToggleFollowResult struct {
	AddedFollow bool `json:"addedFollow"`
}

// GetByID handles profile.getById
func (a *ProfileAPI) GetByID(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p GetByIDParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.ID == "" {
		return nil, invalidParams("id is required")
	}
	return a.profiles.Get(c.Request.Context(), ViewerID(c), p.ID)
}

// ToggleFollow handles profile.toggleFollow
func (a *ProfileAPI) ToggleFollow(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p ToggleFollowParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	if p.UserID == "" {
		return nil, invalidParams("userId is required")
	}
	added, err := a.profiles.ToggleFollow(c.Request.Context(), ViewerID(c), p.UserID)
	if err != nil {
		return nil, err
	}
	return &ToggleFollowResult{AddedFollow: added}, nil
}
