package api

import (
	"context"
	"net/http"
	"time"

	"buildsession/internal/service"

	"github.com/gin-gonic/gin"
)

const (
	waitPollInterval = 250 * time.Millisecond
	maxWaitTimeout   = 5 * time.Minute
)

type SessionHandler struct {
	svc *service.Service
}

func NewSessionHandler(svc *service.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// GetSnapshot GET /api/v1/session
func (h *SessionHandler) GetSnapshot(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot())
}

func (h *SessionHandler) GetTranscript(c *gin.Context) {
	c.JSON(http.StatusOK, TranscriptResponse{
		SessionID:  h.svc.SessionID(),
		Transcript: h.svc.Snapshot().Transcript,
	})
}

func (h *SessionHandler) GetWorkspace(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot().Workspace)
}

// Connect POST /api/v1/session/connect
// 已连接时直接返回；并发请求共享同一次握手
func (h *SessionHandler) Connect(c *gin.Context) {
	if err := h.svc.Connect(c.Request.Context()); err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	c.JSON(http.StatusOK, StatusResponse{
		Status:    "connected",
		SessionID: h.svc.SessionID(),
	})
}

func (h *SessionHandler) Disconnect(c *gin.Context) {
	h.svc.Disconnect()

	c.JSON(http.StatusOK, StatusResponse{
		Status:    "disconnected",
		SessionID: h.svc.SessionID(),
	})
}

// WaitReady GET /api/v1/session/wait?timeout=30s
// 阻塞直到收到 init
func (h *SessionHandler) WaitReady(c *gin.Context) {
	ctx := c.Request.Context()
	if raw := c.Query("timeout"); raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			respondErrorWithDetails(c, http.StatusBadRequest, ErrInvalidRequest, "timeout must be a positive duration")
			return
		}
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, min(timeout, maxWaitTimeout))
		defer cancel()
	}

	ws, err := h.svc.WaitForReady(ctx, waitPollInterval)
	if err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	c.JSON(http.StatusOK, ws)
}

func (h *SessionHandler) PreviewLoaded(c *gin.Context) {
	h.svc.PreviewLoaded()
	c.JSON(http.StatusOK, h.svc.Snapshot().Workspace)
}
