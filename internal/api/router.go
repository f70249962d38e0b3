package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/chirp/internal/cache"
	"github.com/steemit/chirp/internal/db"
	"github.com/steemit/chirp/internal/service"
	"github.com/steemit/chirp/pkg/logging"
)

const (
	viewerKey = "chirp.viewer_id"
	tokenKey  = "chirp.session_token"
)

// Router sets up API routes
type Router struct {
	handler *JSONRPCHandler
	db      *db.DB
	cache   *cache.Cache
	auth    *service.Auth
	logger  *zap.Logger
}

// NewRouter creates a new API router. redisCache may be nil.
func NewRouter(database *db.DB, redisCache *cache.Cache, sessionTTL time.Duration) *Router {
	repo := db.NewRepository(database.DB)
	router := &Router{
		handler: NewJSONRPCHandler(),
		db:      database,
		cache:   redisCache,
		auth:    service.NewAuth(repo, sessionTTL),
		logger:  logging.WithComponent("api-router"),
	}

	router.registerMethods(repo)

	return router
}

// SetupRoutes sets up all API routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	engine.GET("/health", r.healthHandler)
	engine.GET("/.well-known/healthcheck.json", r.healthHandler)

	engine.POST("/rpc", r.authenticate, r.handler.Handle)
}

// registerMethods registers all API methods
func (r *Router) registerMethods(repo *db.Repository) {
	tweets := NewTweetAPI(service.NewTweets(repo))
	r.handler.RegisterMethod("tweet.infiniteFeed", tweets.InfiniteFeed)
	r.handler.RegisterMethod("tweet.infiniteProfileFeed", tweets.InfiniteProfileFeed)
	r.handler.RegisterMethod("tweet.toggleLike", tweets.ToggleLike)
	r.handler.RegisterMethod("tweet.create", tweets.Create)

	profiles := NewProfileAPI(service.NewProfiles(repo))
	r.handler.RegisterMethod("profile.getById", profiles.GetByID)
	r.handler.RegisterMethod("profile.toggleFollow", profiles.ToggleFollow)

	auth := NewAuthAPI(r.auth)
	r.handler.RegisterMethod("auth.login", auth.Login)
	r.handler.RegisterMethod("auth.me", auth.Me)
	r.handler.RegisterMethod("auth.logout", auth.Logout)
}

// authenticate resolves the Bearer session token into a viewer. Requests
// without a token proceed as guests; an unknown token is rejected.
func (r *Router) authenticate(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		c.Next()
		return
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		r.abortUnauthorized(c, "malformed Authorization header")
		return
	}

	user, err := r.auth.Resolve(c.Request.Context(), token)
	if err != nil {
		r.logger.Error("Failed to resolve session", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusOK, JSONRPCResponse{
			JSONRPC: "2.0",
			Error:   &JSONRPCError{Code: ErrServerError, Message: "Server error"},
		})
		return
	}
	if user == nil {
		r.abortUnauthorized(c, "invalid or expired session")
		return
	}

	c.Set(viewerKey, user.ID)
	c.Set(tokenKey, token)
	c.Next()
}

func (r *Router) abortUnauthorized(c *gin.Context, reason string) {
	c.AbortWithStatusJSON(http.StatusOK, JSONRPCResponse{
		JSONRPC: "2.0",
		Error:   &JSONRPCError{Code: ErrUnauthorized, Message: "Unauthorized", Data: reason},
	})
}

// ViewerID returns the authenticated viewer of an API request, "" for guests
func ViewerID(c *gin.Context) string {
	return c.GetString(viewerKey)
}

// healthHandler handles health check requests
func (r *Router) healthHandler(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	components := gin.H{"database": "OK"}
	if err := r.db.Health(ctx); err != nil {
		status = http.StatusServiceUnavailable
		components["database"] = err.Error()
	}
	if r.cache != nil {
		components["redis"] = "OK"
		if err := r.cache.Health(ctx); err != nil {
			status = http.StatusServiceUnavailable
			components["redis"] = err.Error()
		}
	}

	overall := "OK"
	if status != http.StatusOK {
		overall = "DEGRADED"
	}
	c.JSON(status, gin.H{
		"status":     overall,
		"service":    "chirp",
		"components": components,
	})
}
