package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/anime-shed/image-quality-engine/internal/config"
	apperrors "github.com/anime-shed/image-quality-engine/internal/errors"
	"github.com/anime-shed/image-quality-engine/internal/logger"
	"github.com/anime-shed/image-quality-engine/internal/service"
	"github.com/anime-shed/image-quality-engine/internal/task"
	"github.com/anime-shed/image-quality-engine/pkg/models"
)

// uploadField is the multipart field carrying the image on /analyze/upload.
const uploadField = "image"

type handler struct {
	service service.ImageAnalysisService
	adapter *task.Adapter
	health  *task.HealthChecker
	cfg     *config.Config
}

// NewHandler builds the API router. gatherer may be nil, in which case
// /metrics is not mounted.
func NewHandler(
	svc service.ImageAnalysisService,
	adapter *task.Adapter,
	health *task.HealthChecker,
	gatherer prometheus.Gatherer,
	cfg *config.Config,
) http.Handler {
	h := &handler{service: svc, adapter: adapter, health: health, cfg: cfg}

	r := gin.New()

	// Add middleware
	r.Use(
		gin.Recovery(),
		requestLogger(),
		requestSizeLimiter(cfg.MaxRequestBodySize),
		errorHandler(),
	)

	// Configure routes
	r.GET("/health", h.healthCheck)
	r.POST("/tasks", h.runTask)
	r.POST("/analyze", h.analyzeImage)
	r.POST("/analyze/batch", h.analyzeBatch)
	r.POST("/analyze/upload", h.analyzeUpload)
	if gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	return r
}

func (h *handler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), h.cfg.RequestTimeout)
}

func (h *handler) analyzeImage(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindStatus(err), "invalid request format", err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.service.AnalyzeImage(ctx, req.Source, req.Config, optionsOrDefault(req.Options))
	if err != nil {
		respondError(c, determineStatusCode(err), "analysis failed", err)
		return
	}

	logger.WithFields(logrus.Fields{
		"source":        result.Source,
		"profile":       result.Profile,
		"overall_level": result.OverallLevel.String(),
		"cached":        result.Cached,
	}).Info("Image analysis completed successfully")

	c.JSON(http.StatusOK, result)
}

func (h *handler) analyzeBatch(c *gin.Context) {
	var req models.BatchAnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, bindStatus(err), "invalid request format", err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	outcome, err := h.service.AnalyzeBatch(ctx, req.Sources, req.Config, req.Concurrency, optionsOrDefault(req.Options))
	if err != nil {
		respondError(c, determineStatusCode(err), "batch failed", err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

func (h *handler) analyzeUpload(c *gin.Context) {
	header, err := c.FormFile(uploadField)
	if err != nil {
		respondError(c, bindStatus(err), "missing image upload",
			apperrors.NewValidationError(fmt.Sprintf("multipart field %q is required", uploadField), err))
		return
	}

	f, err := header.Open()
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable upload", err)
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		respondError(c, http.StatusBadRequest, "unreadable upload", err)
		return
	}

	opts, err := formOptions(c)
	if err != nil {
		respondError(c, http.StatusBadRequest, "invalid options", apperrors.NewValidationError("invalid options", err))
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.service.AnalyzeUpload(ctx, header.Filename, data, c.PostForm("config"), opts)
	if err != nil {
		respondError(c, determineStatusCode(err), "analysis failed", err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// runTask accepts the queue payload over HTTP. The envelope carries the
// outcome, so a failed task is still a 200.
func (h *handler) runTask(c *gin.Context) {
	var t models.Task
	if err := c.ShouldBindJSON(&t); err != nil {
		respondError(c, bindStatus(err), "invalid task payload", err)
		return
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	c.JSON(http.StatusOK, h.adapter.Handle(ctx, t))
}

func (h *handler) healthCheck(c *gin.Context) {
	report := h.health.Report(c.Request.Context())
	c.JSON(http.StatusOK, report)
}

func optionsOrDefault(opts *models.AnalysisOptions) models.AnalysisOptions {
	if opts == nil {
		return models.DefaultAnalysisOptions()
	}
	return *opts
}

// formOptions reads the option toggles of a multipart upload. Absent fields
// keep their defaults.
func formOptions(c *gin.Context) (models.AnalysisOptions, error) {
	opts := models.DefaultAnalysisOptions()
	fields := []struct {
		name string
		dst  *bool
	}{
		{"include_detailed_metrics", &opts.IncludeDetailedMetrics},
		{"include_histogram", &opts.IncludeHistogram},
		{"include_recommendations", &opts.IncludeRecommendations},
	}
	for _, f := range fields {
		raw, ok := c.GetPostForm(f.name)
		if !ok || raw == "" {
			continue
		}
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, fmt.Errorf("%s: %w", f.name, err)
		}
		*f.dst = v
	}
	return opts, nil
}

// Middleware and helper functions
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.WithFields(logrus.Fields{
			"method":     c.Request.Method,
			"path":       c.Request.URL.Path,
			"status":     c.Writer.Status(),
			"latency_ms": time.Since(start).Milliseconds(),
			"ip":         c.ClientIP(),
			"user_agent": c.Request.UserAgent(),
		}).Info("Request handled")
	}
}

func requestSizeLimiter(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

func errorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) > 0 && !c.Writer.Written() {
			err := c.Errors.Last()
			respondError(c, determineStatusCode(err.Err), "request processing failed", err.Err)
		}
	}
}

// bindStatus maps body decoding failures; an oversized body is 413.
func bindStatus(err error) int {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return http.StatusRequestEntityTooLarge
	}
	return http.StatusBadRequest
}

func determineStatusCode(err error) int {
	// Check if it's a custom app error first
	if _, ok := apperrors.As(err); ok {
		return apperrors.GetStatusCode(err)
	}

	// Fallback to context-based errors
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func respondError(c *gin.Context, code int, message string, err error) {
	resp := models.ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
	}
	if appErr, ok := apperrors.As(err); ok {
		resp.Kind = string(appErr.Type)
		resp.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
	} else if err != nil {
		resp.Message = fmt.Sprintf("%s: %v", message, err)
	}

	// Log the error with context
	logger.WithError(err).WithFields(logrus.Fields{
		"status_code": code,
		"kind":        resp.Kind,
		"message":     message,
		"path":        c.Request.URL.Path,
		"method":      c.Request.Method,
		"ip":          c.ClientIP(),
	}).Error("Request failed")

	c.AbortWithStatusJSON(code, resp)
}
