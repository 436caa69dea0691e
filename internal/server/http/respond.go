package http

import (
	"errors"
	"net/http"

	"github.com/dmitrijs2005/xtouch/internal/common"
	"github.com/dmitrijs2005/xtouch/internal/logging"
	"github.com/gin-gonic/gin"
)

const (
	statusOK    = "ok"
	statusError = "error"
)

// errUploadTooLarge is returned when a request body exceeds the upload limit.
var errUploadTooLarge = errors.New("upload too large")

// StatusFor maps a service error to its HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, common.ErrorValidation):
		return http.StatusBadRequest
	case errors.Is(err, common.ErrorUnauthorized), errors.Is(err, common.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, common.ErrTokenExpired), errors.Is(err, common.ErrRefreshTokenExpired):
		return http.StatusGone
	case errors.Is(err, common.ErrorNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrorConflict):
		return http.StatusConflict
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, common.ErrUnsupportedImage):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, common.ErrorThrottled):
		return http.StatusTooManyRequests
	case errors.Is(err, common.ErrorStorage):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the error envelope. Server-side failures are logged
// and their details are not echoed to the client.
func respondError(c *gin.Context, log logging.Logger, err error) {
	code := StatusFor(err)
	msg := err.Error()
	if code >= http.StatusInternalServerError {
		log.Error(c.Request.Context(), "request failed", "path", c.FullPath(), "error", err)
		msg = http.StatusText(code)
	}
	c.AbortWithStatusJSON(code, gin.H{"status": statusError, "error": msg})
}

// respondOK writes {"status":"ok"} merged with fields.
func respondOK(c *gin.Context, code int, fields gin.H) {
	body := gin.H{"status": statusOK}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(code, body)
}
