package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"piazza-chat/internal/config"
	"piazza-chat/internal/handler"
	"piazza-chat/internal/middleware"
	"piazza-chat/internal/redis"
	"piazza-chat/internal/services"
	"piazza-chat/internal/transport/httpdto"
	"piazza-chat/internal/websocket"
	"piazza-chat/pkg/database"
	"piazza-chat/pkg/logger"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	pool       *pgxpool.Pool
}

var (
	ReleaseMode = "production"
	TestMode    = "test"
)

func New(cfg *config.Config, l *logger.Logger, pool *pgxpool.Pool) *Server {
	switch cfg.Server.Environment {
	case ReleaseMode:
		gin.SetMode(gin.ReleaseMode)
	case TestMode:
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
			Handler: engine,
		},
		engine: engine,
		config: cfg,
		logger: l,
		pool:   pool,
	}
}

// Handlers bundles everything SetupRoutes mounts.
type Handlers struct {
	Topic    *handler.TopicHandler
	Message  *handler.MessageHandler
	Reaction *handler.ReactionHandler
	Typing   *handler.TypingHandler
	Upload   *handler.UploadHandler
	WS       *websocket.Handler
}

func (s *Server) SetupRoutes(handlers *Handlers, authService *services.AuthService, limiter *redis.RateLimiter) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(middleware.CORSMiddleware())
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if err := database.HealthCheck(c.Request.Context(), s.pool); err != nil {
			c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
			return
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	auth := middleware.AuthMiddleware(authService)

	v1 := s.engine.Group("/v1", auth)
	{
		v1.GET("/topics/:id", handlers.Topic.Get)
		v1.POST("/topics/:id/join", handlers.Topic.Join)
		v1.GET("/topics/:id/messages", handlers.Message.List)

		messages := v1.Group("/messages")
		{
			messages.POST("", middleware.MessageRateLimitMiddleware(limiter), handlers.Message.Send)
			messages.PATCH("/:id", handlers.Message.Edit)
			messages.DELETE("/:id", handlers.Message.Delete)
			messages.POST("/:id/reactions", handlers.Reaction.Toggle)
		}

		typing := v1.Group("/typing")
		{
			typing.POST("/start", handlers.Typing.Start)
			typing.POST("/stop", handlers.Typing.Stop)
		}

		uploads := v1.Group("/uploads", middleware.UploadRateLimitMiddleware(limiter))
		{
			uploads.POST("/images", handlers.Upload.UploadImage)
			uploads.POST("/voice", handlers.Upload.UploadVoice)
		}
	}

	// Websocket auth rides in the query string, not the Authorization
	// header, so the route sits outside the authed group.
	s.engine.GET("/ws", handlers.WS.Connect)
}

func (s *Server) Start() error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("listening on %s", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		s.logger.Infof("shutting down on signal %s", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
