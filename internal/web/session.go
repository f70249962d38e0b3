package web

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/steemit/chirp/internal/feed"
	"github.com/steemit/chirp/internal/models"
	"github.com/steemit/chirp/internal/rpcclient"
)

// Authenticator manages login sessions. It is implemented by service.Auth and
// by rpcclient.Client.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*models.Session, error)
	Resolve(ctx context.Context, token string) (*models.User, error)
	Logout(ctx context.Context, token string) error
}

const (
	viewerKey  = "chirp.viewer"
	sessionKey = "chirp.session"
	tokenKey   = "chirp.token"
)

// sessionMiddleware resolves the viewer of every request. The view cookie
// names the FeedCache of the browser; the auth cookie carries the login
// token, which is also attached to the request context for remote calls.
func (s *Server) sessionMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		viewID, err := c.Cookie(s.session.ViewCookieName)
		if err == nil {
			_, err = uuid.Parse(viewID)
		}
		if err != nil {
			viewID = s.rotateView(c)
		}

		viewer := GuestViewer()
		token, _ := c.Cookie(s.session.CookieName)
		if token != "" {
			user, err := s.auth.Resolve(c.Request.Context(), token)
			switch {
			case err != nil:
				s.logger.Warn("Failed to resolve session token", zap.Error(err))
				token = ""
			case user == nil:
				s.clearCookie(c, s.session.CookieName)
				token = ""
			default:
				viewer = AuthenticatedViewer(user)
			}
		}

		c.Set(viewerKey, viewer)
		c.Set(sessionKey, feedSession(viewID, viewer))
		c.Set(tokenKey, token)
		if token != "" {
			c.Request = c.Request.WithContext(rpcclient.WithToken(c.Request.Context(), token))
		}
		c.Next()
	}
}

// feedSession keys the FeedCache by view cookie and viewer, so a cache filled
// for one viewer is never read by another.
func feedSession(viewID string, viewer Viewer) feed.Session {
	if !viewer.IsAuthenticated() {
		return feed.Session{ID: viewID}
	}
	return feed.Session{ID: viewID + "." + viewer.UserID, ViewerID: viewer.UserID}
}

// rotateView starts a new view session and returns its id
func (s *Server) rotateView(c *gin.Context) string {
	id := uuid.NewString()
	s.setCookie(c, s.session.ViewCookieName, id, 0)
	return id
}

func (s *Server) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", s.session.Secure, true)
}

func (s *Server) clearCookie(c *gin.Context, name string) {
	s.setCookie(c, name, "", -1)
}

func (s *Server) setAuthCookie(c *gin.Context, sess *models.Session) {
	maxAge := int(time.Until(sess.ExpiresAt).Seconds())
	if maxAge <= 0 {
		maxAge = int(s.session.TTL.Seconds())
	}
	s.setCookie(c, s.session.CookieName, sess.Token, maxAge)
}

func viewerOf(c *gin.Context) Viewer {
	if v, ok := c.Get(viewerKey); ok {
		return v.(Viewer)
	}
	return GuestViewer()
}

func sessionOf(c *gin.Context) feed.Session {
	if v, ok := c.Get(sessionKey); ok {
		return v.(feed.Session)
	}
	return feed.Session{}
}
