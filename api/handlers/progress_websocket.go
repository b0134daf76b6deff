package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/yourusername/media-fetch-go/internal/app"
	"github.com/yourusername/media-fetch-go/internal/domain"
	"go.uber.org/zap"
)

const (
	pingInterval = 30 * time.Second
	writeTimeout = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins for now
	},
}

// ProgressWebSocketHandler streams progress events of a queued request
type ProgressWebSocketHandler struct {
	queueMgr *app.QueueManager
	feed     *app.ProgressFeed
	logger   *zap.Logger
}

// NewProgressWebSocketHandler creates a new WebSocket handler
func NewProgressWebSocketHandler(queueMgr *app.QueueManager, feed *app.ProgressFeed, log *zap.Logger) *ProgressWebSocketHandler {
	return &ProgressWebSocketHandler{
		queueMgr: queueMgr,
		feed:     feed,
		logger:   log,
	}
}

// HandleWebSocket handles GET /api/v1/requests/:id/progress. A request that
// is not running gets a single event describing its current state.
func (h *ProgressWebSocketHandler) HandleWebSocket(c *gin.Context) {
	id := c.Param("id")

	req, err := h.queueMgr.GetRequest(id)
	if err != nil {
		respondRequestError(c, err)
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade WebSocket", zap.Error(err))
		return
	}
	defer conn.Close()

	h.logger.Debug("Progress client connected",
		zap.String("id", id),
		zap.String("remote_addr", c.Request.RemoteAddr))

	events, unsubscribe, ok := h.feed.Subscribe(id)
	if !ok {
		h.send(conn, snapshotEvent(req))
		closeNormally(conn)
		return
	}
	defer unsubscribe()

	// Read messages from client (for close/pong)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case event, open := <-events:
			if !open {
				closeNormally(conn)
				return
			}
			if err := h.send(conn, event); err != nil {
				return
			}
			if event.Done {
				closeNormally(conn)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}

func (h *ProgressWebSocketHandler) send(conn *websocket.Conn, event app.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("Failed to marshal progress event", zap.Error(err))
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.logger.Debug("Failed to send progress event", zap.Error(err))
		return err
	}
	return nil
}

// snapshotEvent describes a request that has no live feed
func snapshotEvent(req *domain.Request) app.ProgressEvent {
	return app.ProgressEvent{
		RequestID:   req.ID,
		State:       req.State,
		Title:       req.Title,
		FailureKind: req.FailureKind,
		Message:     req.ErrorMessage,
		Transferred: req.SizeBytes,
		Total:       req.SizeBytes,
		Done:        req.IsTerminal(),
		Timestamp:   time.Now(),
	}
}

func closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
}
