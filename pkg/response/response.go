// Package response provides the JSON envelope of the status API.
package response

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/lifeline/pkg/component/storage"
	"github.com/kart-io/lifeline/pkg/supervisor"
)

// CodeOK is the code of successful responses.
const CodeOK = "OK"

// Response is the unified API response structure.
type Response struct {
	// Code is "OK" or the code of the error.
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// OK writes a 200 response carrying data.
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: CodeOK, Message: "success", Data: data})
}

// Fail writes status with data and the error's code and message.
func Fail(c *gin.Context, status int, err error, data any) {
	c.JSON(status, Response{Code: Code(err), Message: err.Error(), Data: data})
}

// Error writes err with the status HTTPStatus picks for it.
func Error(c *gin.Context, err error) {
	Fail(c, HTTPStatus(err), err, nil)
}

// Code returns the machine-readable code carried by err, or "INTERNAL".
func Code(err error) string {
	var se *storage.StorageError
	if errors.As(err, &se) {
		return se.Code
	}
	var sv *supervisor.Error
	if errors.As(err, &sv) {
		return sv.Code
	}
	return "INTERNAL"
}

// HTTPStatus maps storage and supervisor errors to HTTP status codes.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, storage.ErrClientNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrNotConnected), errors.Is(err, supervisor.ErrDropped):
		return http.StatusServiceUnavailable
	case errors.Is(err, supervisor.ErrShuttingDown):
		return http.StatusConflict
	case errors.Is(err, supervisor.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, supervisor.ErrHandlerFailure), errors.Is(err, storage.ErrConnectionFailed):
		return http.StatusBadGateway
	case errors.Is(err, storage.ErrInvalidConfig), errors.Is(err, supervisor.ErrInvalidOptions):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
