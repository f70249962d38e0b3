// Package web serves the server-rendered client around the infinite feed lists.
package web

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/chirp/internal/feed"
	"github.com/steemit/chirp/internal/service"
	"github.com/steemit/chirp/pkg/config"
	"github.com/steemit/chirp/pkg/logging"
)

// TweetWriter creates tweets on behalf of a viewer
type TweetWriter interface {
	Create(ctx context.Context, viewerID, content string) (feed.Item, error)
}

// ProfileService reads profiles and toggles follows
type ProfileService interface {
	Get(ctx context.Context, viewerID, id string) (*service.Profile, error)
	ToggleFollow(ctx context.Context, viewerID, userID string) (bool, error)
}

// fragmentHeader is sent by feed.js when it wants a partial instead of a redirect
const fragmentHeader = "X-Chirp-Fragment"

// backgroundFetchTimeout bounds an initial fetch that outlives its request
const backgroundFetchTimeout = 30 * time.Second

// Server renders the web client
type Server struct {
	source   *feed.Source
	syncer   *feed.Synchronizer
	tweets   TweetWriter
	profiles ProfileService
	auth     Authenticator

	feedCfg config.FeedConfig
	session config.SessionConfig
	site    config.SiteConfig

	templates *template.Template
	location  *time.Location
	logger    *zap.Logger
}

// New creates the web server
func New(cfg *config.Config, source *feed.Source, syncer *feed.Synchronizer,
	tweets TweetWriter, profiles ProfileService, auth Authenticator) (*Server, error) {
	tmpl, err := parseTemplates()
	if err != nil {
		return nil, err
	}
	return &Server{
		source:    source,
		syncer:    syncer,
		tweets:    tweets,
		profiles:  profiles,
		auth:      auth,
		feedCfg:   cfg.Feed,
		session:   cfg.Session,
		site:      cfg.Site,
		templates: tmpl,
		location:  time.Local,
		logger:    logging.WithComponent("web"),
	}, nil
}

// SetupRoutes registers the pages, fragments and static files on r
func (s *Server) SetupRoutes(r *gin.Engine) {
	r.SetHTMLTemplate(s.templates)
	r.StaticFS("/static", http.FS(staticFiles()))

	g := r.Group("/", s.sessionMiddleware())
	g.GET("/", s.homeHandler)
	g.GET("/profiles/:id", s.profileHandler)
	g.POST("/profiles/:id/follow", s.followHandler)
	g.GET("/feeds/list", s.feedListHandler)
	g.GET("/feeds/more", s.feedMoreHandler)
	g.POST("/tweets", s.createTweetHandler)
	g.POST("/tweets/:id/like", s.toggleLikeHandler)
	g.GET("/login", s.loginPageHandler)
	g.POST("/login", s.loginHandler)
	g.POST("/logout", s.logoutHandler)
}

// pageData is the data of every full page
type pageData struct {
	Site    config.SiteConfig
	Title   string
	Path    string
	Viewer  Viewer
	Tab     string
	List    ListView
	Profile *service.Profile
	IsSelf  bool
	Error   string
	Email   string
	Content string
}

func (s *Server) page(c *gin.Context, title string) pageData {
	if title == "" {
		title = s.site.Title
	} else {
		title = title + " - " + s.site.Title
	}
	return pageData{
		Site:   s.site,
		Title:  title,
		Path:   c.Request.URL.Path,
		Viewer: viewerOf(c),
	}
}

func (s *Server) renderer(c *gin.Context, key feed.Key) cardRenderer {
	session := sessionOf(c)
	return cardRenderer{
		viewer: viewerOf(c),
		feed:   key,
		format: ShortDateFormatter(c.GetHeader("Accept-Language"), s.location),
		inFlight: func(itemID string) bool {
			return s.syncer.InFlight(session.ID, itemID)
		},
	}
}

// initialList starts the first fetch of a feed and waits for it up to the
// configured initial wait. A fetch that takes longer keeps running and the
// page is rendered with the loading view, which feed.js replaces once the
// list is ready.
func (s *Server) initialList(c *gin.Context, key feed.Key) ListView {
	session := sessionOf(c)

	done := make(chan struct{})
	go func() {
		defer close(done)
		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), backgroundFetchTimeout)
		defer cancel()
		_ = s.source.Ensure(ctx, session, key)
	}()

	timer := time.NewTimer(s.feedCfg.InitialWait)
	defer timer.Stop()

	finished := false
	select {
	case <-done:
		finished = true
	case <-timer.C:
	case <-c.Request.Context().Done():
	}
	return s.listView(c, key, !finished)
}

// listView renders the cached state of a feed. pending marks a fetch that
// was started for this request but may not have registered yet.
func (s *Server) listView(c *gin.Context, key feed.Key, pending bool) ListView {
	snap, err := s.source.Snapshot(c.Request.Context(), sessionOf(c), key)
	if err != nil {
		logging.WithSession(s.logger, sessionOf(c).ID).Error("Failed to read cached feed",
			zap.String("feed", key.String()),
			zap.Error(err))
	}
	state := StateOf(snap)
	if pending && state.Items == nil && !state.Errored {
		state.Loading = true
	}
	return s.renderer(c, key).listView(state, snap.NextCursor, s.feedCfg.ScrollThreshold)
}

func (s *Server) renderError(c *gin.Context, status int, message string) {
	data := s.page(c, http.StatusText(status))
	data.Error = message
	c.HTML(status, "error.html", data)
}

func wantsFragment(c *gin.Context) bool {
	return c.GetHeader(fragmentHeader) != ""
}

// localPath returns next when it is a path on this site, "/" otherwise
func localPath(next string) string {
	if len(next) == 0 || next[0] != '/' || (len(next) > 1 && (next[1] == '/' || next[1] == '\\')) {
		return "/"
	}
	return next
}
