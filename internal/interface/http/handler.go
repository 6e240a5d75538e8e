package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yanqian/brainybinder/internal/domain/deck"
	"github.com/yanqian/brainybinder/internal/infra/config"
	"github.com/yanqian/brainybinder/pkg/metrics"
)

// multipart framing allowance on top of the file limit
const uploadOverheadBytes = 1 << 20

// DeckService is the workflow the transport exposes.
type DeckService interface {
	Ingest(ctx context.Context, req deck.IngestRequest) (deck.IngestResult, error)
	PageSummary(ctx context.Context, req deck.PageSummaryRequest) (deck.PageSummaryResult, error)
	TopicSummary(ctx context.Context, req deck.TopicSummaryRequest) (deck.TopicSummaryResult, error)
	DocumentOutline(ctx context.Context, docID string) (deck.Outline, error)
	QueryHistory(ctx context.Context, docID string, limit int) ([]deck.QueryLog, error)
}

// Handler wires the HTTP transport to the deck workflow.
type Handler struct {
	deckSvc      DeckService
	stats        *metrics.LatencyStats
	maxFileBytes int64
	logger       *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(cfg *config.Config, deckSvc DeckService, stats *metrics.LatencyStats, logger *slog.Logger) *Handler {
	return &Handler{
		deckSvc:      deckSvc,
		stats:        stats,
		maxFileBytes: cfg.Deck.MaxFileBytes,
		logger:       logger.With("component", "http.handler"),
	}
}

type pageSummaryBody struct {
	DocID      string `json:"doc_id"`
	PageIndex  *int   `json:"page_index"`
	UserPrompt string `json:"user_prompt"`
}

type topicSummaryBody struct {
	DocID   string `json:"doc_id"`
	TopicID string `json:"topic_id"`
}

// Upload ingests a multipart deck from the "file" field.
func (h *Handler) Upload(c *gin.Context) {
	if h.maxFileBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileBytes+uploadOverheadBytes)
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "file exceeds "+strconv.FormatInt(h.maxFileBytes, 10)+" bytes", err))
			return
		}
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "file is required", err))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "failed to read upload", err))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusInternalServerError, "upload_failed", "failed to read file", err))
		return
	}

	resp, err := h.deckSvc.Ingest(c.Request.Context(), deck.IngestRequest{
		Filename: fileHeader.Filename,
		Title:    c.PostForm("title"),
		MimeType: fileHeader.Header.Get("Content-Type"),
		Content:  data,
	})
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// PageSummary answers a question about one page.
func (h *Handler) PageSummary(c *gin.Context) {
	var body pageSummaryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "malformed request body", err))
		return
	}
	if body.PageIndex == nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "page_index is required", nil))
		return
	}

	resp, err := h.deckSvc.PageSummary(c.Request.Context(), deck.PageSummaryRequest{
		DocID:      body.DocID,
		PageIndex:  *body.PageIndex,
		UserPrompt: body.UserPrompt,
	})
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TopicSummary returns the roll-up of one topic run.
func (h *Handler) TopicSummary(c *gin.Context) {
	var body topicSummaryBody
	if err := c.ShouldBindJSON(&body); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "malformed request body", err))
		return
	}

	resp, err := h.deckSvc.TopicSummary(c.Request.Context(), deck.TopicSummaryRequest{
		DocID:   body.DocID,
		TopicID: body.TopicID,
	})
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Outline lists the topic runs of a document.
func (h *Handler) Outline(c *gin.Context) {
	resp, err := h.deckSvc.DocumentOutline(c.Request.Context(), c.Param("doc_id"))
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Queries returns recent answered queries for a document.
func (h *Handler) Queries(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_request", "limit must be a positive integer", err))
			return
		}
		limit = parsed
	}
	logs, err := h.deckSvc.QueryHistory(c.Request.Context(), c.Param("doc_id"), limit)
	if err != nil {
		abortWithError(c, fromDomainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"queries": logs})
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// LLMStats exposes rolling model latency percentiles.
func (h *Handler) LLMStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.stats.Snapshot())
}
