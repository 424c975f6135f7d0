// Package server exposes the engine over HTTP with gin.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/contexto-ai/contexto"
	"github.com/contexto-ai/contexto/pkg/config"
	"github.com/contexto-ai/contexto/pkg/server/handlers"
)

// Server is the HTTP front end of the engine.
type Server struct {
	config *config.Config
	engine *contexto.Engine
	logger *slog.Logger
	router *gin.Engine
	server *http.Server
}

// New creates a server around an engine.
func New(cfg *config.Config, engine *contexto.Engine, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{config: cfg, engine: engine, logger: logger}
}

// Setup builds the router and the underlying http.Server.
func (s *Server) Setup() {
	gin.SetMode(s.config.Server.Mode)

	s.router = gin.New()
	s.router.Use(gin.Recovery())
	s.router.Use(corsMiddleware())

	s.setupRoutes()

	addr := fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
	s.server = &http.Server{Addr: addr, Handler: s.router}
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler()
	searchHandler := handlers.NewSearchHandler(s.engine)
	graphHandler := handlers.NewGraphHandler(s.engine)
	ingestHandler := handlers.NewIngestHandler(s.engine)

	s.router.GET("/health", healthHandler.HealthCheck)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/search", searchHandler.Search)
		v1.GET("/search/entity/:id", searchHandler.SearchByEntity)
		v1.POST("/search/time-range", searchHandler.SearchByTimeRange)

		v1.POST("/graph/build", graphHandler.Build)
		v1.POST("/graph/query", graphHandler.Query)

		v1.POST("/conversations", ingestHandler.SaveConversation)
		v1.POST("/entities/extract", ingestHandler.ExtractEntities)
		v1.POST("/relationships", ingestHandler.CreateRelationship)
		v1.GET("/entities/:id/history", ingestHandler.EntityHistory)
		v1.DELETE("/entities/:id", ingestHandler.InvalidateEntity)

		v1.GET("/stats", ingestHandler.Stats)
	}
}

// Router exposes the router for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Start serves until the listener fails or Stop is called.
func (s *Server) Start() error {
	s.logger.Info("starting http server", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping http server")
	return s.server.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, Authorization, Cache-Control")
		c.Header("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
