// Package server provides the HTTP server setup and routing configuration.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/samvera/stories/internal/api"
	"github.com/samvera/stories/internal/config"
	"github.com/samvera/stories/internal/db"
	"github.com/samvera/stories/internal/logger"
	"github.com/samvera/stories/internal/media"
	"github.com/samvera/stories/internal/middleware"
	"github.com/samvera/stories/internal/playback"
	"github.com/samvera/stories/internal/stories"
)

// Server represents the HTTP server
type Server struct {
	config       *config.Config
	db           *db.DB
	repos        *db.Repositories
	storyService *stories.StoryService
	sweeper      *stories.Sweeper
	manager      *playback.Manager
	router       *gin.Engine
	server       *http.Server
}

// New creates a new server instance
func New(cfg *config.Config, database *db.DB) *Server {
	repos := db.NewRepositories(database)
	storyService := stories.NewStoryService(database, repos)
	sweeper := stories.NewSweeper(repos, cfg.Stories.SweepInterval, cfg.Stories.Retention)
	manager := playback.NewManager(storyService, media.NewHTTPPrefetcher(), &cfg.Playback)

	return &Server{
		config:       cfg,
		db:           database,
		repos:        repos,
		storyService: storyService,
		sweeper:      sweeper,
		manager:      manager,
	}
}

// setupRouter initializes the Gin router with middleware and routes
func (s *Server) setupRouter() {
	// Set Gin mode based on log level
	if s.config.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	s.router = gin.New()

	// Add middleware stack
	s.router.Use(middleware.RequestLogger()) // Custom zerolog request logger
	s.router.Use(gin.Recovery())             // Panic recovery
	s.router.Use(cors.Default())             // CORS support (allows all origins)

	apiGroup := s.router.Group("/api")

	api.SetupHealthRoutes(apiGroup, s.db, s.manager)
	api.SetupStoryRoutes(apiGroup, s.storyService)
	api.SetupViewerRoutes(apiGroup, s.manager)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.setupRouter()

	if err := s.manager.Start(); err != nil {
		return fmt.Errorf("failed to start viewer manager: %w", err)
	}

	if err := s.sweeper.Start(); err != nil {
		s.manager.Stop()
		return fmt.Errorf("failed to start story sweeper: %w", err)
	}

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)

	s.server = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    s.config.Server.ReadTimeout,
		WriteTimeout:   s.config.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	logger.Log.Info().
		Str("host", s.config.Server.Host).
		Int("port", s.config.Server.Port).
		Msg("Starting HTTP server")

	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Log.Info().Msg("Shutting down server gracefully")

	// Stop the sweeper before the manager so no purge races open viewers
	if s.sweeper != nil {
		s.sweeper.Stop()
	}

	// Closing the manager closes every open viewer session
	if s.manager != nil {
		s.manager.Stop()
	}

	// Check if server was started before attempting shutdown
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
	}

	logger.Log.Info().Msg("Server stopped")
	return nil
}
