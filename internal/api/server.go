package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fmuoria/recruitment-scoring/internal/apperr"
	"github.com/fmuoria/recruitment-scoring/internal/logger"
	"github.com/fmuoria/recruitment-scoring/internal/models"
	"github.com/fmuoria/recruitment-scoring/internal/section"
)

// uploads larger than this are refused before any size limit applies
const maxUploadBytes = 32 << 20

// Server handles HTTP requests
type Server struct {
	sections  *section.Service
	exportDir string
	log       *logger.Logger
}

// NewServer creates a new API server
func NewServer(sections *section.Service, exportDir string, log *logger.Logger) *Server {
	return &Server{
		sections:  sections,
		exportDir: exportDir,
		log:       log.With("component", "APIServer"),
	}
}

// Router returns the HTTP router
func (s *Server) Router() *gin.Engine {
	router := gin.New()
	router.MaxMultipartMemory = maxUploadBytes
	router.Use(gin.Recovery(), s.loggingMiddleware())

	router.GET("/", s.handleRoot)
	router.GET("/health", s.handleHealth)

	score := router.Group("/score")
	{
		score.POST("/weighted", s.handleScore(models.MethodWeightedMarks))
		score.POST("/duration", s.handleScore(models.MethodDateDuration))
		score.POST("/quantity", s.handleScore(models.MethodQuantity))
	}

	sections := router.Group("/sections")
	{
		sections.POST("", s.handleOpen)
		sections.GET("/:id", s.handleView)
		sections.DELETE("/:id", s.handleClose)
		sections.PUT("/:id/values", s.handleSetValue)
		sections.PUT("/:id/rows", s.handleSetRows)
		sections.PUT("/:id/selection", s.handleSelect)
		sections.PUT("/:id/status", s.handleSetStatus)
		sections.POST("/:id/files", s.handleAttachFile)
		sections.DELETE("/:id/files", s.handleClearFile)
		sections.POST("/:id/submit", s.handleSubmit)
		sections.POST("/:id/reload", s.handleReload)
		sections.GET("/:id/export", s.handleExport)
	}

	return router
}

// handleRoot provides API information
func (s *Server) handleRoot(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"service": "Recruitment Scoring",
		"version": "1.0.0",
		"endpoints": map[string]string{
			"POST /score/{weighted|duration|quantity}": "Score items without a section",
			"POST /sections":                           "Open a section for one heading and owner",
			"GET /sections/:id":                        "Current records and scores",
			"POST /sections/:id/submit":                "Reconcile and save the section",
			"GET /sections/:id/export":                 "Download the score sheet",
			"GET /health":                              "Health check",
		},
	})
}

// handleHealth provides a health check endpoint
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"sections": s.sections.Len(),
	})
}

// APIError is the body of every error response
type APIError struct {
	Message string           `json:"message"`
	Code    string           `json:"code,omitempty"`
	Field   *models.ValueKey `json:"field,omitempty"`
}

// ErrorEnvelope wraps an APIError
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// respondError sends an error response with the status its kind maps to
func (s *Server) respondError(c *gin.Context, err error) {
	status, body := apiError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("Request failed", "path", c.FullPath(), "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorEnvelope{Error: body})
}

// badRequest sends a 400 for malformed input
func (s *Server) badRequest(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorEnvelope{Error: APIError{Message: err.Error(), Code: "bad_request"}})
}

func apiError(err error) (int, APIError) {
	status, code := classify(err)
	body := APIError{Message: err.Error(), Code: code}
	if key, ok := apperr.FieldOf(err); ok {
		body.Field = &key
	}
	return status, body
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, section.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, section.ErrClosed):
		return http.StatusGone, "closed"
	}
	kind, ok := apperr.KindOf(err)
	if !ok {
		return http.StatusBadRequest, "bad_request"
	}
	switch kind {
	case apperr.KindValidationFailed, apperr.KindCalculationInvalid:
		return http.StatusUnprocessableEntity, string(kind)
	case apperr.KindMetadataIncomplete:
		return http.StatusNotFound, string(kind)
	case apperr.KindSubmitInFlight:
		return http.StatusConflict, string(kind)
	case apperr.KindOptionListUnavailable:
		return http.StatusServiceUnavailable, string(kind)
	case apperr.KindPersistenceFailed:
		return http.StatusBadGateway, string(kind)
	default:
		return http.StatusInternalServerError, string(kind)
	}
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"remote", c.ClientIP(),
			"duration", time.Since(start),
		)
	}
}
