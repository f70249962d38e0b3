package web

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/chirp/internal/db"
	"github.com/steemit/chirp/internal/feed"
	"github.com/steemit/chirp/internal/rpcclient"
	"github.com/steemit/chirp/internal/service"
	"github.com/steemit/chirp/pkg/logging"
)

func (s *Server) homeHandler(c *gin.Context) {
	viewer := viewerOf(c)
	key, tab := feed.Global, "recent"
	if c.Query("tab") == "following" && viewer.IsAuthenticated() {
		key, tab = feed.Following, "following"
	}

	data := s.page(c, "")
	data.Tab = tab
	data.List = s.initialList(c, key)
	c.HTML(http.StatusOK, "home.html", data)
}

func (s *Server) profileHandler(c *gin.Context) {
	viewer := viewerOf(c)
	id := c.Param("id")

	profile, err := s.profiles.Get(c.Request.Context(), viewer.UserID, id)
	if err != nil {
		if errors.Is(err, db.ErrUserNotFound) {
			s.renderError(c, http.StatusNotFound, "This profile does not exist.")
			return
		}
		s.logger.Error("Failed to load profile", zap.String("user", id), zap.Error(err))
		s.renderError(c, http.StatusBadGateway, "The profile could not be loaded.")
		return
	}

	data := s.page(c, profile.Name)
	data.Profile = profile
	data.IsSelf = viewer.UserID == profile.ID
	data.List = s.initialList(c, feed.Profile(profile.ID))
	c.HTML(http.StatusOK, "profile.html", data)
}

func (s *Server) followHandler(c *gin.Context) {
	viewer := viewerOf(c)
	if !viewer.IsAuthenticated() {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	id := c.Param("id")

	if _, err := s.profiles.ToggleFollow(c.Request.Context(), viewer.UserID, id); err != nil {
		switch {
		case errors.Is(err, db.ErrUserNotFound):
			s.renderError(c, http.StatusNotFound, "This profile does not exist.")
		case errors.Is(err, db.ErrSelfFollow), errors.Is(err, rpcclient.ErrInvalidParams):
			s.renderError(c, http.StatusBadRequest, "You cannot follow yourself.")
		default:
			s.logger.Error("Failed to toggle follow", zap.String("user", id), zap.Error(err))
			s.renderError(c, http.StatusBadGateway, "The follow could not be saved.")
		}
		return
	}

	// the following feed now has a different author set
	session := sessionOf(c)
	if _, err := s.source.SetCachedPages(c.Request.Context(), session, feed.Following, feed.Drop); err != nil {
		logging.WithSession(s.logger, session.ID).Error("Failed to drop following feed", zap.Error(err))
	}
	c.Redirect(http.StatusSeeOther, profileURL(id))
}

// feedKey reads the feed query or form parameter. Guests cannot read the
// following feed.
func feedKey(c *gin.Context, value string) (feed.Key, bool) {
	key, err := feed.ParseKey(value)
	if err != nil {
		return feed.Key{}, false
	}
	if key.OnlyFollowing() && !viewerOf(c).IsAuthenticated() {
		return feed.Key{}, false
	}
	return key, true
}

func (s *Server) feedListHandler(c *gin.Context) {
	key, ok := feedKey(c, c.Query("feed"))
	if !ok {
		c.String(http.StatusBadRequest, "unknown feed")
		return
	}
	_ = s.source.Ensure(c.Request.Context(), sessionOf(c), key)
	c.HTML(http.StatusOK, "feed_list", s.listView(c, key, false))
}

// moreView is the fragment appended when the sentinel comes into view
type moreView struct {
	Cards    []Card
	Sentinel *Sentinel
}

func (s *Server) feedMoreHandler(c *gin.Context) {
	key, ok := feedKey(c, c.Query("feed"))
	if !ok {
		c.String(http.StatusBadRequest, "unknown feed")
		return
	}

	page, err := s.source.FetchMore(c.Request.Context(), sessionOf(c), key, c.Query("after"))
	switch {
	case errors.Is(err, feed.ErrStaleCursor):
		c.Status(http.StatusConflict)
		return
	case err != nil:
		// feed.js swaps the whole list for the error view; its retry reloads
		// the cached pages through Ensure
		c.HTML(http.StatusBadGateway, "feed_list", s.listView(c, key, false))
		return
	}

	view := moreView{Cards: s.renderer(c, key).cards(page.Items)}
	if page.NextCursor != "" {
		view.Sentinel = &Sentinel{URL: moreURL(key, page.NextCursor), Threshold: s.feedCfg.ScrollThreshold}
	}
	c.HTML(http.StatusOK, "more", view)
}

// findItem looks up an item in the feed the control was rendered in, then in
// the other feeds that can hold any item
func (s *Server) findItem(c *gin.Context, keys []feed.Key, id string) (feed.Item, bool) {
	for _, key := range keys {
		cached, err := s.source.Cached(c.Request.Context(), sessionOf(c), key)
		if err != nil {
			s.logger.Warn("Failed to read cached feed", zap.String("feed", key.String()), zap.Error(err))
			continue
		}
		if it, ok := cached.Find(id); ok {
			return it, true
		}
	}
	return feed.Item{}, false
}

func (s *Server) toggleLikeHandler(c *gin.Context) {
	viewer := viewerOf(c)
	if !viewer.IsAuthenticated() {
		c.String(http.StatusUnauthorized, "sign in to like tweets")
		return
	}
	id := c.Param("id")

	keys := []feed.Key{feed.Global, feed.Following}
	key, ok := feedKey(c, c.PostForm("feed"))
	if ok {
		keys = append([]feed.Key{key}, keys...)
	} else {
		key = feed.Global
	}

	item, found := s.findItem(c, keys, id)
	if !found {
		s.respondLike(c, http.StatusNotFound, nil)
		return
	}

	toggled, err := s.syncer.Toggle(c.Request.Context(), sessionOf(c), item)
	switch {
	case errors.Is(err, feed.ErrUnauthenticated):
		c.String(http.StatusUnauthorized, "sign in to like tweets")
	case errors.Is(err, feed.ErrToggleInFlight):
		control := NewLikeControl(viewer, item, true).In(key)
		s.respondLike(c, http.StatusConflict, &control)
	case err != nil:
		control := NewLikeControl(viewer, item, false).In(key)
		s.respondLike(c, http.StatusBadGateway, &control)
	default:
		control := NewLikeControl(viewer, toggled.Item, false).In(key)
		s.respondLike(c, http.StatusOK, &control)
	}
}

// respondLike sends the like control partial to feed.js, or redirects a
// plain form post back to the page it came from
func (s *Server) respondLike(c *gin.Context, status int, control *LikeControl) {
	if !wantsFragment(c) {
		c.Redirect(http.StatusSeeOther, localPath(c.PostForm("next")))
		return
	}
	if control == nil {
		c.Status(status)
		return
	}
	c.HTML(status, "like", control)
}

func invalidContent(err error) bool {
	return errors.Is(err, service.ErrEmptyContent) ||
		errors.Is(err, service.ErrContentTooLong) ||
		errors.Is(err, rpcclient.ErrInvalidParams)
}

func (s *Server) createTweetHandler(c *gin.Context) {
	viewer := viewerOf(c)
	if !viewer.IsAuthenticated() {
		c.Redirect(http.StatusSeeOther, "/login")
		return
	}
	content := c.PostForm("content")

	item, err := s.tweets.Create(c.Request.Context(), viewer.UserID, content)
	if err != nil {
		if invalidContent(err) {
			data := s.page(c, "")
			data.Tab = "recent"
			data.Content = content
			data.Error = fmt.Sprintf("Tweets must be between 1 and %d characters.", service.MaxContentLength)
			data.List = s.listView(c, feed.Global, false)
			c.HTML(http.StatusBadRequest, "home.html", data)
			return
		}
		s.logger.Error("Failed to create tweet", zap.Error(err))
		s.renderError(c, http.StatusBadGateway, "The tweet could not be posted.")
		return
	}

	session := sessionOf(c)
	for _, key := range []feed.Key{feed.Global, feed.Profile(viewer.UserID)} {
		if _, err := s.source.SetCachedPages(c.Request.Context(), session, key, feed.PrependItem(item)); err != nil {
			logging.WithSession(s.logger, session.ID).Error("Failed to add tweet to cached feed",
				zap.String("feed", key.String()),
				zap.Error(err))
		}
	}
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) loginPageHandler(c *gin.Context) {
	if viewerOf(c).IsAuthenticated() {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}
	c.HTML(http.StatusOK, "login.html", s.page(c, "Log in"))
}

func (s *Server) loginHandler(c *gin.Context) {
	email := strings.TrimSpace(c.PostForm("email"))
	password := c.PostForm("password")

	sess, err := s.auth.Login(c.Request.Context(), email, password)
	if err != nil {
		data := s.page(c, "Log in")
		data.Email = email
		if errors.Is(err, service.ErrInvalidCredentials) {
			data.Error = "Wrong email or password."
			c.HTML(http.StatusUnauthorized, "login.html", data)
			return
		}
		s.logger.Error("Login failed", zap.Error(err))
		data.Error = "Logging in is not possible right now."
		c.HTML(http.StatusBadGateway, "login.html", data)
		return
	}

	s.setAuthCookie(c, sess)
	s.endView(c)
	c.Redirect(http.StatusSeeOther, "/")
}

func (s *Server) logoutHandler(c *gin.Context) {
	if token := c.GetString(tokenKey); token != "" {
		if err := s.auth.Logout(c.Request.Context(), token); err != nil {
			s.logger.Warn("Failed to end login session", zap.Error(err))
		}
	}
	s.clearCookie(c, s.session.CookieName)
	s.endView(c)
	c.Redirect(http.StatusSeeOther, "/")
}

// endView discards the FeedCache of the current view session and starts a
// new one
func (s *Server) endView(c *gin.Context) {
	session := sessionOf(c)
	if err := s.source.Discard(c.Request.Context(), session.ID); err != nil {
		logging.WithSession(s.logger, session.ID).Warn("Failed to discard feed cache", zap.Error(err))
	}
	s.rotateView(c)
}
