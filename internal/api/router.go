package api

import (
	"log/slog"
	"net/http"
	"time"

	"buildsession/internal/service"

	"github.com/gin-gonic/gin"
)

func NewRouter(svc *service.Service, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(SessionScope(svc.SessionID(), logger))
	r.Use(AccessLog())
	r.Use(CORS())

	// Global health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, HealthResponse{
			Status:    "ok",
			SessionID: svc.SessionID(),
			Timestamp: formatTime(time.Now()),
		})
	})

	sessionHandler := NewSessionHandler(svc)
	chatHandler := NewChatHandler(svc)
	fileHandler := NewFileHandler(svc)

	v1 := r.Group("/api/v1")
	{
		sess := v1.Group("/session")
		{
			sess.GET("", sessionHandler.GetSnapshot)
			sess.GET("/transcript", sessionHandler.GetTranscript)
			sess.GET("/workspace", sessionHandler.GetWorkspace)
			sess.POST("/connect", sessionHandler.Connect)
			sess.POST("/disconnect", sessionHandler.Disconnect)
			sess.GET("/wait", sessionHandler.WaitReady)
			sess.POST("/preview/loaded", sessionHandler.PreviewLoaded)

			// Chat
			sess.POST("/chat", chatHandler.SendMessage)
			sess.GET("/stream", chatHandler.StreamChanges)

			// File operations
			sess.GET("/files", fileHandler.GetFiles)
			sess.POST("/files/tree", fileHandler.RequestTree)
			sess.POST("/files/content", fileHandler.RequestContent)
			sess.POST("/files/save", fileHandler.Save)
		}
	}

	return r
}
