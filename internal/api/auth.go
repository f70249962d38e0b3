package api

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/steemit/chirp/internal/models"
	"github.com/steemit/chirp/internal/service"
)

// AuthAPI provides the auth.* methods used by remote web clients
type AuthAPI struct {
	auth *service.Auth
}

// NewAuthAPI creates a new auth API
func NewAuthAPI(auth *service.Auth) *AuthAPI {
	return &AuthAPI{auth: auth}
}

// LoginParams are the params of auth.login
type LoginParams struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Account is the public part of a user
type Account struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

// LoginResult carries the session token to send as Bearer
type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      Account   `json:"user"`
}

func accountOf(u *models.User) Account {
	return Account{ID: u.ID, Name: u.Name, Image: u.Image}
}

// Login handles auth.login
func (a *AuthAPI) Login(c *gin.Context, params json.RawMessage) (interface{}, error) {
	var p LoginParams
	if err := decodeParams(params, &p); err != nil {
		return nil, err
	}
	session, err := a.auth.Login(c.Request.Context(), p.Email, p.Password)
	if errors.Is(err, service.ErrInvalidCredentials) {
		return nil, NewError(ErrUnauthorized, err.Error())
	}
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:     session.Token,
		ExpiresAt: session.ExpiresAt,
		User:      accountOf(session.User),
	}, nil
}

// Me handles auth.me; guests get a null result
func (a *AuthAPI) Me(c *gin.Context, _ json.RawMessage) (interface{}, error) {
	token := c.GetString(tokenKey)
	if token == "" {
		return nil, nil
	}
	user, err := a.auth.Resolve(c.Request.Context(), token)
	if err != nil || user == nil {
		return nil, err
	}
	acct := accountOf(user)
	return &acct, nil
}

// Logout handles auth.logout
func (a *AuthAPI) Logout(c *gin.Context, _ json.RawMessage) (interface{}, error) {
	token := c.GetString(tokenKey)
	if token == "" {
		return nil, service.ErrUnauthorized
	}
	if err := a.auth.Logout(c.Request.Context(), token); err != nil {
		return nil, err
	}
	return gin.H{"ok": true}, nil
}
