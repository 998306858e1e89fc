package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/clinnote-engine/internal/domain"
	"github.com/clinnote-engine/internal/middleware"
	"github.com/clinnote-engine/internal/service"
)

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	logger        *logrus.Logger
	engine        *service.Engine
	corrections   domain.CorrectionStore
	router        *gin.Engine
	server        *http.Server

	// reports is the in-memory per-process report registry keyed by
	// report ID.
	mu      sync.RWMutex
	reports map[string]*service.ProcessResult
}

// NewServer creates a new HTTP server instance. corrections may be nil
// when the store is disabled.
func NewServer(configManager domain.ConfigManager, logger *logrus.Logger, engine *service.Engine, corrections domain.CorrectionStore) *Server {
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.SecurityHeaders())
	router.Use(corsMiddleware())
	router.Use(requestIDMiddleware())

	server := &Server{
		configManager: configManager,
		logger:        logger,
		engine:        engine,
		corrections:   corrections,
		router:        router,
		reports:       make(map[string]*service.ProcessResult),
	}

	server.setupRoutes()

	return server
}

// Start starts the HTTP server and blocks until the context is
// cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/notes/process", s.handleProcessNote)
		v1.GET("/reports/:id", s.handleGetReport)
		v1.POST("/corrections", s.handleAppendCorrection)
	}
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"version":   "1.0.0",
	})
}

// processNoteRequest is the body of POST /api/v1/notes/process.
type processNoteRequest struct {
	Text string `json:"text" binding:"required"`
}

// handleProcessNote runs the full pipeline for one note and registers
// the resulting report for later retrieval.
func (s *Server) handleProcessNote(c *gin.Context) {
	var req processNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    domain.ErrInvalidInput,
			"message": "request body must contain a non-empty text field",
		})
		return
	}

	result, err := s.engine.Process(c.Request.Context(), req.Text)
	if err != nil {
		if pe, ok := err.(*domain.PipelineError); ok && pe.Code == domain.ErrEmptyNote {
			c.JSON(http.StatusBadRequest, pe)
			return
		}
		s.logger.WithError(err).Error("Note processing failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    domain.ErrInternal,
			"message": "note processing failed",
		})
		return
	}

	s.mu.Lock()
	s.reports[result.Report.ID] = result
	s.mu.Unlock()

	c.JSON(http.StatusOK, result)
}

// handleGetReport retrieves a previously generated report by ID.
func (s *Server) handleGetReport(c *gin.Context) {
	id := c.Param("id")

	s.mu.RLock()
	result, ok := s.reports[id]
	s.mu.RUnlock()

	if !ok {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    domain.ErrFieldNotFound,
			"message": fmt.Sprintf("no report with ID %s", id),
		})
		return
	}

	c.JSON(http.StatusOK, result.Report)
}

// appendCorrectionRequest is the body of POST /api/v1/corrections.
type appendCorrectionRequest struct {
	RunID     string `json:"run_id"`
	FieldType string `json:"field_type" binding:"required"`
	Original  string `json:"original" binding:"required"`
	Corrected string `json:"corrected" binding:"required"`
	Notes     string `json:"notes"`
}

// handleAppendCorrection records a reviewer correction. Writes happen
// only here, after a run completes, never during one.
func (s *Server) handleAppendCorrection(c *gin.Context) {
	if s.corrections == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"code":    domain.ErrStoreFailure,
			"message": "correction store is not configured",
		})
		return
	}

	var req appendCorrectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    domain.ErrInvalidInput,
			"message": "field_type, original and corrected are required",
		})
		return
	}

	correction := &domain.Correction{
		RunID:     req.RunID,
		FieldType: domain.FieldType(req.FieldType),
		Original:  req.Original,
		Corrected: req.Corrected,
		Notes:     req.Notes,
	}
	if err := s.corrections.Append(c.Request.Context(), correction); err != nil {
		s.logger.WithError(err).Error("Failed to store correction")
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    domain.ErrStoreFailure,
			"message": "failed to store correction",
		})
		return
	}

	c.JSON(http.StatusOK, correction)
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
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Set("request_id", requestID)
		c.Next()
	}
}
