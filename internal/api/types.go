package api

import (
	"time"

	"buildsession/internal/state"
)

type ChatRequest struct {
	Text string `json:"text" binding:"required"`
}

type FileContentRequest struct {
	Path string `json:"path" binding:"required"`
}

type SaveFileRequest struct {
	Path    string `json:"path" binding:"required"`
	Content string `json:"content"`
}

type StatusResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
}

type TranscriptResponse struct {
	SessionID  string        `json:"session_id"`
	Transcript []state.Entry `json:"transcript"`
}

type HealthResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id,omitempty"`
	Timestamp string `json:"timestamp"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    int    `json:"code"`
	Details string `json:"details,omitempty"`
}

// SSEEvent 是服务器发送事件的结构体
type SSEEvent struct {
	Version   uint64 `json:"version"`
	Kind      string `json:"kind,omitempty"`
	Refresh   bool   `json:"refresh"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
