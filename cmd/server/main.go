package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/steemit/chirp/internal/api"
	"github.com/steemit/chirp/internal/cache"
	"github.com/steemit/chirp/internal/db"
	"github.com/steemit/chirp/internal/feed"
	"github.com/steemit/chirp/internal/rpcclient"
	"github.com/steemit/chirp/internal/service"
	"github.com/steemit/chirp/internal/web"
	"github.com/steemit/chirp/pkg/config"
	"github.com/steemit/chirp/pkg/logging"
	"github.com/steemit/chirp/pkg/telemetry"
)

// backend is the transport the web client reads and writes through
type backend interface {
	feed.Fetcher
	feed.Toggler
	web.TweetWriter
	web.ProfileService
	web.Authenticator
}

// localBackend serves the web client from the database in process
type localBackend struct {
	*service.Tweets
	*service.Profiles
	*service.Auth
}

// Get resolves the ambiguity between Tweets.Get and Profiles.Get
func (b localBackend) Get(ctx context.Context, viewerID, id string) (*service.Profile, error) {
	return b.Profiles.Get(ctx, viewerID, id)
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	logger.Info("Starting Chirp Server")

	// Initialize telemetry
	telemetryShutdown, err := telemetry.Init(&cfg.Telemetry)
	if err != nil {
		logger.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer telemetryShutdown()

	// Redis holds the feed caches when configured
	redisCache, err := cache.New(&cfg.Redis)
	if err != nil {
		logger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	if redisCache != nil {
		defer redisCache.Close()
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	var store feed.Store
	if redisCache != nil {
		store = feed.NewRedisStore(redisCache, cfg.Feed.SessionTTL)
	} else {
		memory := feed.NewMemoryStore(cfg.Feed.SessionTTL)
		go memory.Run(ctx, cfg.Feed.SessionTTL/2)
		store = memory
	}

	// Create Gin router
	if cfg.Logging.Level == "DEBUG" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logging.GinLogger(logger, "/health", "/.well-known/healthcheck.json", "/metrics"))
	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	var transport backend
	if cfg.API.URL != "" {
		logger.Info("Using remote API", zap.String("url", cfg.API.URL))
		client, err := rpcclient.New(&cfg.API)
		if err != nil {
			logger.Fatal("Failed to create API client", zap.Error(err))
		}
		transport = client
		router.GET("/health", plainHealthHandler)
		router.GET("/.well-known/healthcheck.json", plainHealthHandler)
	} else {
		database, err := db.New(&cfg.Database, cfg.Logging.Level)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer database.Close()

		repo := db.NewRepository(database.DB)
		transport = localBackend{
			Tweets:   service.NewTweets(repo),
			Profiles: service.NewProfiles(repo),
			Auth:     service.NewAuth(repo, cfg.Session.TTL),
		}

		// the JSON-RPC API is served alongside the web client
		api.NewRouter(database, redisCache, cfg.Session.TTL).SetupRoutes(router)
	}

	source := feed.NewSource(transport, store, cfg.Feed.PageSize)
	syncer := feed.NewSynchronizer(transport, source)

	site, err := web.New(cfg, source, syncer, transport, transport, transport)
	if err != nil {
		logger.Fatal("Failed to load templates", zap.Error(err))
	}
	site.SetupRoutes(router)

	// Create HTTP server
	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	// Start server in goroutine
	go func() {
		logger.Info("Server starting", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stop()

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

func plainHealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "OK",
		"service": "chirp-web",
	})
}
