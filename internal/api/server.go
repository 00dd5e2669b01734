// Package api exposes the risk engine over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/pgx-risk-server/internal/cpic"
	"github.com/pgx-risk-server/internal/domain"
	"github.com/pgx-risk-server/internal/health"
	"github.com/pgx-risk-server/internal/metrics"
	"github.com/pgx-risk-server/internal/service"
)

// Server is the HTTP face of the risk engine.
type Server struct {
	logger   *logrus.Logger
	config   domain.ServerConfig
	version  string
	analyzer *service.AnalyzerService
	kb       *cpic.KnowledgeBase
	checker  *health.Checker
	metrics  *metrics.Metrics
	router   *gin.Engine
	server   *http.Server
	limiters *clientLimiters
}

// NewServer creates a new HTTP server instance with the full middleware
// chain and all routes registered.
func NewServer(
	logger *logrus.Logger,
	config domain.ServerConfig,
	version string,
	analyzer *service.AnalyzerService,
	kb *cpic.KnowledgeBase,
	checker *health.Checker,
	m *metrics.Metrics,
) *Server {
	switch config.Mode {
	case gin.DebugMode, gin.TestMode:
		gin.SetMode(config.Mode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		logger:   logger,
		config:   config,
		version:  version,
		analyzer: analyzer,
		kb:       kb,
		checker:  checker,
		metrics:  m,
		router:   gin.New(),
	}

	// Recovery first, then identification, headers, instrumentation,
	// logging, load shedding, and the body cap.
	s.router.Use(gin.Recovery())
	s.router.Use(RequestID())
	s.router.Use(SecurityHeaders())
	s.router.Use(CORS())
	s.router.Use(Instrument(m))
	s.router.Use(RequestLogger(logger))
	if config.RateLimit.Enabled {
		s.limiters = newClientLimiters(config.RateLimit.RPS, config.RateLimit.Burst)
		s.router.Use(RateLimit(s.limiters, m, map[string]bool{
			"/health":  true,
			"/metrics": true,
		}))
	}
	s.router.Use(MaxBodySize(config.MaxUploadBytes))

	s.setupRoutes()

	return s
}

// setupRoutes configures all API endpoints.
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/analyze", s.handleAnalyze)
		v1.POST("/analyze/json", s.handleAnalyzeJSON)
		v1.GET("/supported-drugs", s.handleSupportedDrugs)
		v1.GET("/supported-genes", s.handleSupportedGenes)
		v1.GET("/drug-info/:drug", s.handleDrugInfo)
		v1.GET("/sample-vcf", s.handleSampleVCF)
	}
}

// Start runs the server until ctx is canceled, then drains in-flight
// requests within the configured shutdown timeout.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	s.logger.WithFields(logrus.Fields{
		"addr":    addr,
		"mode":    gin.Mode(),
		"version": s.version,
	}).Info("HTTP server listening")

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	if s.limiters != nil {
		s.limiters.Stop()
	}

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}
