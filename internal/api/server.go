// Package api exposes the extraction, classification and import
// operations over HTTP.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/AzizElGhezal/NRIS/internal/domain"
	"github.com/AzizElGhezal/NRIS/internal/importer"
	"github.com/AzizElGhezal/NRIS/internal/registry"
	"github.com/AzizElGhezal/NRIS/internal/repository"
	"github.com/AzizElGhezal/NRIS/internal/service"
	"github.com/AzizElGhezal/NRIS/internal/thresholds"
	"github.com/AzizElGhezal/NRIS/pkg/report"
)

// Dependencies carries the wired application services the server
// exposes. Patients and Results are optional; endpoints backed by them
// respond 503 when the reporting database is not configured.
type Dependencies struct {
	Extractor  *report.Extractor
	Validator  *report.Validator
	Classifier *service.ClassifierService
	Provider   thresholds.Provider
	Store      registry.Store
	Importer   *importer.BatchImporter
	Patients   *repository.PatientRepository
	Results    *repository.ResultRepository
}

// Server represents the HTTP server
type Server struct {
	cfg    *domain.Config
	deps   Dependencies
	logger *logrus.Logger
	router *gin.Engine
	server *http.Server

	importLimiter *rate.Limiter
}

// NewServer creates a new HTTP server instance
func NewServer(cfg *domain.Config, deps Dependencies, logger *logrus.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	s := &Server{
		cfg:           cfg,
		deps:          deps,
		logger:        logger,
		router:        router,
		importLimiter: rate.NewLimiter(rate.Limit(cfg.Import.RatePerSecond), cfg.Import.Burst),
	}

	s.setupRoutes()
	return s
}

// Start starts the HTTP server and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
		IdleTimeout:  s.cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ready", s.handleReady)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/reports/extract", s.handleExtract)
		v1.POST("/fields/validate", s.handleValidateField)
		v1.POST("/results/classify", s.handleClassify)
		v1.POST("/imports", s.rateLimitImports(), s.handleImport)

		v1.GET("/risk/maternal-age", s.handleMaternalAgeRisk)

		v1.GET("/patients", s.handleListPatients)
		v1.GET("/patients/:id", s.handleGetPatient)
		v1.GET("/patients/:id/results", s.handleListPatientResults)
		v1.DELETE("/patients/:id", s.handleDeletePatient)
		v1.POST("/patients/:id/restore", s.handleRestorePatient)

		v1.GET("/results/:id", s.handleGetResult)
		v1.GET("/stats/categories", s.handleCategoryStats)
	}
}

// rateLimitImports throttles the batch import endpoint.
func (s *Server) rateLimitImports() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.importLimiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "import rate limit exceeded",
			})
			return
		}
		c.Next()
	}
}

// corsMiddleware adds CORS headers to responses
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, X-API-Key")
		c.Header("Access-Control-Expose-Headers", "Content-Length")
		c.Header("Access-Control-Allow-Credentials", "true")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requestIDMiddleware adds a unique request ID to each request
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = generateRequestID()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}

// generateRequestID generates a simple request ID
func generateRequestID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
