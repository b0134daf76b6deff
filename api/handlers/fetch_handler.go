package handlers

import (
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/yourusername/media-fetch-go/internal/app"
	"github.com/yourusername/media-fetch-go/internal/domain"
	"go.uber.org/zap"
)

// FetchHandler runs requests synchronously and returns the artifact
type FetchHandler struct {
	fetcher app.Fetcher
	logger  *zap.Logger
}

// NewFetchHandler creates a new fetch handler
func NewFetchHandler(fetcher app.Fetcher, logger *zap.Logger) *FetchHandler {
	return &FetchHandler{fetcher: fetcher, logger: logger}
}

// FetchRequest represents a request to fetch an artifact
type FetchRequest struct {
	URL      string `json:"url" binding:"required"`
	Kind     string `json:"kind" binding:"required"`
	Language string `json:"language,omitempty"`
}

// Fetch handles POST /api/v1/fetch
func (h *FetchHandler) Fetch(c *gin.Context) {
	var req FetchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	kind, err := domain.ParseRequestKind(req.Kind)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// the request context is cancelled when the client goes away
	artifact, info, err := h.fetcher.Fetch(c.Request.Context(), app.FetchRequest{
		URL:      req.URL,
		Kind:     kind,
		Language: req.Language,
	}, nil)
	if info != nil {
		c.Header("X-Media-Title", strconv.Quote(info.Title))
		c.Header("X-Media-Duration", info.LengthLabel())
	}
	if err != nil {
		h.logger.Info("Fetch failed", zap.String("url", req.URL), zap.Error(err))
		respondPipelineError(c, err)
		return
	}

	c.Header("Content-Disposition", contentDisposition(artifact.Filename()))
	c.Data(http.StatusOK, artifact.ContentType(), artifact.Payload())
}

// contentDisposition names the attachment, switching to the RFC 2231 form
// for non-ASCII filenames
func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}
