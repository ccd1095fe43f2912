package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"intent-exchange-service/internal/config"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// NewRouter configures all Gin routes for the exchange API
func NewRouter(handler *Handler, logger zerolog.Logger) *gin.Engine {
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(RequestLogger(logger))

	router.GET("/health", handler.Health)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/search", handler.StartSearch)

	auctions := router.Group("/auction")
	{
		auctions.GET("/bid/:bidId", handler.GetBid)
		auctions.POST("/select", handler.SelectBid)
		auctions.GET("/:searchId", handler.GetAuction)
	}

	router.POST("/track-click", handler.TrackClick)
	router.POST("/verify-return", handler.VerifyReturn)
	router.GET("/settlement-receipt/:bidId", handler.GetReceipt)

	settings := router.Group("/auto-bid-settings")
	{
		settings.GET("/:advertiserId", handler.GetSettings)
		settings.PUT("/:advertiserId", handler.UpdateSettings)
	}

	keywords := router.Group("/keywords")
	{
		keywords.GET("/:advertiserId", handler.GetKeywords)
		keywords.PUT("/:advertiserId", handler.UpdateKeywords)
	}

	router.POST("/excluded-keywords/:advertiserId", handler.UpdateExcludedKeywords)

	return router
}

// Server wraps the Gin engine in an http.Server with sane timeouts
type Server struct {
	httpServer *http.Server
	config     *config.Config
	logger     zerolog.Logger
}

type ServerParams struct {
	Config  *config.Config
	Handler *Handler
	Logger  zerolog.Logger
}

func NewServer(params ServerParams) *Server {
	router := NewRouter(params.Handler, params.Logger)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%s", params.Config.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		config:     params.Config,
		logger:     params.Logger,
	}
}

// Start starts the HTTP API server
func (s *Server) Start() error {
	s.logger.Info().Str("port", s.config.Server.Port).Msg("Starting HTTP API server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP API server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP API server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Msg("Stopping HTTP API server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP API server: %w", err)
	}

	s.logger.Info().Msg("HTTP API server stopped")
	return nil
}
