package api

import (
	"net/http"

	"buildsession/internal/service"

	"github.com/gin-gonic/gin"
)

type FileHandler struct {
	svc *service.Service
}

func NewFileHandler(svc *service.Service) *FileHandler {
	return &FileHandler{svc: svc}
}

// GetFiles returns the cached tree and current file.
func (h *FileHandler) GetFiles(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.Snapshot().Files)
}

// RequestTree POST /api/v1/session/files/tree
// 结果异步到达，通过 /stream 通知
func (h *FileHandler) RequestTree(c *gin.Context) {
	if err := h.svc.RequestFileTree(c.Request.Context()); err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	c.JSON(http.StatusAccepted, StatusResponse{
		Status:    "requested",
		SessionID: h.svc.SessionID(),
	})
}

func (h *FileHandler) RequestContent(c *gin.Context) {
	var req FileContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, ErrInvalidRequest, err.Error())
		return
	}

	if err := h.svc.RequestFileContent(c.Request.Context(), req.Path); err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	c.JSON(http.StatusAccepted, StatusResponse{
		Status:    "requested",
		SessionID: h.svc.SessionID(),
	})
}

func (h *FileHandler) Save(c *gin.Context) {
	var req SaveFileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, ErrInvalidRequest, err.Error())
		return
	}

	if err := h.svc.SaveFile(c.Request.Context(), req.Path, req.Content); err != nil {
		respondError(c, mapServiceError(err), err)
		return
	}

	c.JSON(http.StatusAccepted, StatusResponse{
		Status:    "saving",
		SessionID: h.svc.SessionID(),
	})
}
