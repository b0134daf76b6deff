package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/media-fetch-go/internal/app"
	"github.com/yourusername/media-fetch-go/internal/domain"
	"go.uber.org/zap"
)

// RequestHandler handles queued request HTTP requests
type RequestHandler struct {
	queueMgr   *app.QueueManager
	requestMgr *app.RequestManager
	logger     *zap.Logger
}

// NewRequestHandler creates a new request handler
func NewRequestHandler(queueMgr *app.QueueManager, requestMgr *app.RequestManager, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{
		queueMgr:   queueMgr,
		requestMgr: requestMgr,
		logger:     logger,
	}
}

// AddRequestBody represents a request to queue a retrieval
type AddRequestBody struct {
	URL      string `json:"url" binding:"required"`
	Kind     string `json:"kind" binding:"required"`
	Language string `json:"language,omitempty"`
}

// AddRequest handles POST /api/v1/requests
func (h *RequestHandler) AddRequest(c *gin.Context) {
	var body AddRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, err := domain.ParseRequestKind(body.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req, err := h.queueMgr.AddRequest(body.URL, kind, body.Language)
	if err != nil {
		h.logger.Error("Failed to add request", zap.Error(err))
		respondRequestError(c, err)
		return
	}

	c.JSON(http.StatusCreated, req)
}

// GetRequest handles GET /api/v1/requests/:id
func (h *RequestHandler) GetRequest(c *gin.Context) {
	req, err := h.queueMgr.GetRequest(c.Param("id"))
	if err != nil {
		respondRequestError(c, err)
		return
	}

	c.JSON(http.StatusOK, req)
}

// ListRequests handles GET /api/v1/requests
func (h *RequestHandler) ListRequests(c *gin.Context) {
	filters := make(map[string]interface{})

	if state := c.Query("state"); state != "" {
		filters["state"] = state
	}
	if kind := c.Query("kind"); kind != "" {
		filters["kind"] = kind
	}

	requests, err := h.queueMgr.ListRequests(filters)
	if err != nil {
		h.logger.Error("Failed to list requests", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, requests)
}

// GetStats handles GET /api/v1/requests/stats
func (h *RequestHandler) GetStats(c *gin.Context) {
	stats, err := h.queueMgr.GetStats()
	if err != nil {
		h.logger.Error("Failed to get stats", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, stats)
}

// CancelRequest handles POST /api/v1/requests/:id/cancel
func (h *RequestHandler) CancelRequest(c *gin.Context) {
	id := c.Param("id")

	if err := h.requestMgr.CancelRequest(id); err != nil {
		h.logger.Warn("Failed to cancel request", zap.String("id", id), zap.Error(err))
		respondRequestError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "request cancelled"})
}

// RetryRequest handles POST /api/v1/requests/:id/retry
func (h *RequestHandler) RetryRequest(c *gin.Context) {
	id := c.Param("id")

	fresh, err := h.requestMgr.RetryRequest(id)
	if err != nil {
		h.logger.Warn("Failed to retry request", zap.String("id", id), zap.Error(err))
		respondRequestError(c, err)
		return
	}
	h.queueMgr.Wake()

	c.JSON(http.StatusCreated, fresh)
}

// DeleteRequest handles DELETE /api/v1/requests/:id
func (h *RequestHandler) DeleteRequest(c *gin.Context) {
	id := c.Param("id")

	if err := h.queueMgr.DeleteRequest(id); err != nil {
		respondRequestError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "request deleted"})
}
