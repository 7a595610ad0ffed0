package api

import (
	"context"
	"errors"
	"net/http"

	"buildsession/internal/service"
	"buildsession/internal/session"
	"buildsession/internal/transport"

	"github.com/gin-gonic/gin"
)

var ErrInvalidRequest = errors.New("invalid request")

func respondError(c *gin.Context, code int, err error) {
	c.JSON(code, ErrorResponse{
		Error: err.Error(),
		Code:  code,
	})
}

func respondErrorWithDetails(c *gin.Context, code int, err error, details string) {
	c.JSON(code, ErrorResponse{
		Error:   err.Error(),
		Code:    code,
		Details: details,
	})
}

func mapServiceError(err error) int {
	var terr *transport.TransportError
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, session.ErrMissingSessionID), errors.Is(err, session.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrSessionClosed),
		errors.Is(err, session.ErrNotConnected),
		errors.Is(err, session.ErrConnectAborted),
		errors.Is(err, session.ErrManagerClosed):
		return http.StatusConflict
	case errors.As(err, &terr):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
