// Package api exposes the HTTP surface: event intake for the failure
// publisher and read endpoints for reporting.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumenstack/lumen-rca/internal/cache"
	"github.com/lumenstack/lumen-rca/internal/metrics"
	"github.com/lumenstack/lumen-rca/internal/models"
	"github.com/lumenstack/lumen-rca/internal/patterns"
	"github.com/lumenstack/lumen-rca/internal/store"
	"github.com/lumenstack/lumen-rca/internal/utils"
)

// patternWindow bounds how much history one pattern-mining request reads.
const patternWindow = 500

// Analyzer runs one failure analysis end to end.
type Analyzer interface {
	Analyze(ctx context.Context, event models.FailureEvent) (models.AnalysisResult, error)
}

// Handler serves the v1 API.
type Handler struct {
	logger    *slog.Logger
	analyzer  Analyzer
	records   store.RecordStore
	cache     cache.Provider
	miner     *patterns.Miner
	latency   *utils.LatencyTracker
	dedupeTTL time.Duration
}

// NewHandler wires the API handler.
func NewHandler(logger *slog.Logger, analyzer Analyzer, records store.RecordStore, cacheProvider cache.Provider, latency *utils.LatencyTracker, dedupeTTL time.Duration) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if dedupeTTL <= 0 {
		dedupeTTL = 10 * time.Minute
	}
	return &Handler{
		logger:    logger,
		analyzer:  analyzer,
		records:   records,
		cache:     cacheProvider,
		miner:     patterns.NewMiner(logger),
		latency:   latency,
		dedupeTTL: dedupeTTL,
	}
}

// Router builds the gin engine with all routes registered.
func (h *Handler) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), h.requestLogger())

	router.GET("/healthz", h.health)

	v1 := router.Group("/api/v1")
	v1.POST("/events", h.handleEvent)
	v1.GET("/analyses/:errorId", h.getAnalysis)
	v1.GET("/analyses", h.listAnalyses)
	v1.GET("/patterns", h.listPatterns)

	return router
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()
		h.logger.Debug("http request",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(started)),
		)
	}
}

// handleEvent runs one analysis for a published failure event. The 200
// response is the delivery acknowledgement and is only sent after the
// result is persisted; fatal faults map to 503 so the publisher redelivers.
func (h *Handler) handleEvent(c *gin.Context) {
	var event models.FailureEvent
	if err := c.ShouldBindJSON(&event); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event payload"})
		return
	}
	if event.FunctionID == "" || event.RequestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "function_id and request_id are required"})
		return
	}

	ctx := c.Request.Context()
	dedupeKey := cache.DedupeKey(event.FunctionID, event.RequestID)
	if cached, err := h.cache.Get(ctx, dedupeKey); err == nil {
		metrics.CountDuplicate()
		h.logger.Info("duplicate event skipped",
			slog.String("function_id", event.FunctionID), slog.String("request_id", event.RequestID))
		c.JSON(http.StatusOK, gin.H{"duplicate": true, "error_id": string(cached)})
		return
	}

	result, err := h.analyzer.Analyze(ctx, event)
	if err != nil {
		status := http.StatusInternalServerError
		if kind := utils.FaultKindOf(err); kind != "" {
			status = http.StatusServiceUnavailable
		}
		h.logger.Error("analysis failed",
			slog.String("function_id", event.FunctionID), slog.String("request_id", event.RequestID), slog.Any("error", err))
		c.JSON(status, gin.H{"error": "analysis failed"})
		return
	}

	// Mark the event analysed only after persistence succeeded, so a crashed
	// run never blocks redelivery. SetNX keeps the first completed analysis
	// as the canonical error id when redeliveries race.
	if _, err := h.cache.SetNX(ctx, dedupeKey, []byte(result.ErrorID), h.dedupeTTL); err != nil {
		h.logger.Warn("dedupe mark failed", slog.Any("error", err))
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) getAnalysis(c *gin.Context) {
	errorID := c.Param("errorId")
	result, err := h.records.Get(c.Request.Context(), errorID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "analysis not found"})
			return
		}
		h.logger.Error("analysis lookup failed", slog.String("error_id", errorID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "lookup failed"})
		return
	}
	c.JSON(http.StatusOK, result)
}

func (h *Handler) listAnalyses(c *gin.Context) {
	functionID := c.Query("function_id")
	if functionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "function_id is required"})
		return
	}

	pageSize := 0
	if raw := c.Query("page_size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_size"})
			return
		}
		pageSize = n
	}

	resp, err := h.records.ListByFunction(c.Request.Context(), models.ListAnalysesRequest{
		FunctionID: functionID,
		PageSize:   pageSize,
		PageToken:  c.Query("page_token"),
	})
	if err != nil {
		if errors.Is(err, store.ErrBadPageToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid page_token"})
			return
		}
		h.logger.Error("analysis list failed", slog.String("function_id", functionID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list failed"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) listPatterns(c *gin.Context) {
	functionID := c.Query("function_id")
	if functionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "function_id is required"})
		return
	}

	resp, err := h.records.ListByFunction(c.Request.Context(), models.ListAnalysesRequest{
		FunctionID: functionID,
		PageSize:   patternWindow,
	})
	if err != nil {
		h.logger.Error("pattern mining failed", slog.String("function_id", functionID), slog.Any("error", err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "pattern mining failed"})
		return
	}

	mined := h.miner.Mine(resp.Analyses)
	c.JSON(http.StatusOK, gin.H{"patterns": mined})
}

func (h *Handler) health(c *gin.Context) {
	payload := gin.H{"status": "ok"}
	if h.latency != nil && h.latency.Count() > 0 {
		payload["analysis_p95_ms"] = h.latency.Percentile(95).Milliseconds()
		payload["analysis_mean_steps"] = h.latency.MeanSteps()
	}
	c.JSON(http.StatusOK, payload)
}
