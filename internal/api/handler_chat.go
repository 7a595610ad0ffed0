package api

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"buildsession/internal/service"

	"github.com/gin-gonic/gin"
)

const sseHeartbeat = 30 * time.Second

type ChatHandler struct {
	svc *service.Service
}

func NewChatHandler(svc *service.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// SendMessage POST /api/v1/session/chat
// 将用户消息发送给 Agent
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, ErrInvalidRequest, err.Error())
		return
	}

	if err := h.svc.SendChat(c.Request.Context(), req.Text); err != nil {
		status := mapServiceError(err)
		respondError(c, status, err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Status:    "sent",
		SessionID: h.svc.SessionID(),
	})
}

// StreamChanges GET /api/v1/session/stream
// 通过 SSE 向客户端推送状态变更；客户端收到后重新拉取快照
func (h *ChatHandler) StreamChanges(c *gin.Context) {
	changes := h.svc.StreamChanges(c.Request.Context())

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")

	// 对于这个长时间存在的 SSE 连接，禁用服务器级别的 WriteTimeout。
	rc := http.NewResponseController(c.Writer)
	if err := rc.SetWriteDeadline(time.Time{}); err != nil {
		requestLogger(c).Debug("Failed to disable write deadline for SSE", "error", err)
	}

	sessionID := h.svc.SessionID()
	heartbeat := time.NewTicker(sseHeartbeat)
	defer heartbeat.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case change, ok := <-changes:
			if !ok {
				return false
			}

			event := "state"
			if change.Refresh() {
				event = "refresh"
			}
			data, err := json.Marshal(SSEEvent{
				Version:   change.Version,
				Kind:      string(change.Kind),
				Refresh:   change.Refresh(),
				SessionID: sessionID,
				Timestamp: formatTime(time.Now()),
			})
			if err != nil {
				return false
			}

			c.SSEvent(event, string(data))
			return true

		case <-c.Request.Context().Done():
			// 客户端断连
			return false

		case <-heartbeat.C:
			// 心跳保持连接
			c.SSEvent("ping", "")
			return true
		}
	})
}
