package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/geusenergia/energisa-faturas/internal/api/handlers"
	"github.com/geusenergia/energisa-faturas/internal/api/middleware"
	"github.com/geusenergia/energisa-faturas/internal/config"
	"github.com/geusenergia/energisa-faturas/internal/services"
)

// Server is the HTTP trigger surface of the invoice pipeline
type Server struct {
	config     *config.Config
	logger     *logrus.Logger
	router     *gin.Engine
	httpServer *http.Server
	container  *services.Container
}

// NewServer creates the HTTP server with all routes and middleware
func NewServer(cfg *config.Config, logger *logrus.Logger, container *services.Container) *Server {
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	server := &Server{
		config:    cfg,
		logger:    logger,
		router:    router,
		container: container,
	}
	server.setupMiddleware()
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}
	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.Recovery(s.logger))
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(middleware.CORS(s.config.Security.CORS.AllowedOrigins))
	s.router.Use(middleware.SecurityHeaders())

	rateLimiter := middleware.NewRateLimiter(s.config.Security.RateLimit)
	s.router.Use(rateLimiter.Middleware())
}

func (s *Server) setupRoutes() {
	searchHandler := handlers.NewSearchHandler(s.container.Processor, s.logger)
	healthHandler := handlers.NewHealthHandler(s.container.Health)

	s.router.GET("/", searchHandler.Root)
	s.router.GET("/health", healthHandler.Health)
	s.router.POST("/start-search", searchHandler.StartSearch)
	s.router.POST("/start-search/:cnpjs", searchHandler.StartSearchFiltered)
	s.router.GET("/geradoras", searchHandler.ListGeradoras)
	s.router.GET("/runs/:id", searchHandler.GetRun)

	if s.config.Server.Environment != "production" {
		s.router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
}

// Start begins serving HTTP requests
func (s *Server) Start() error {
	s.logger.WithFields(logrus.Fields{
		"port":        s.config.Server.Port,
		"environment": s.config.Server.Environment,
	}).Info("Servidor HTTP iniciado")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("erro no servidor HTTP: %w", err)
	}
	return nil
}

// Shutdown stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Encerrando servidor HTTP")
	return s.httpServer.Shutdown(ctx)
}
