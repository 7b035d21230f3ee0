// Package envelope writes the response shape shared by every route:
// handlers, middlewares and the 404 fallback.
package envelope

import (
	"github.com/gin-gonic/gin"
)

const (
	RequestIDKey    = "request_id"
	RequestIDHeader = "X-Request-Id"
)

type Envelope struct {
	Success    bool      `json:"success"`
	Message    string    `json:"message"`
	Data       any       `json:"data"`
	StatusCode int       `json:"statusCode"`
	Error      *APIError `json:"error,omitempty"`
}

type APIError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"requestId,omitempty"`
	Details   any    `json:"details,omitempty"`
}

func RequestID(ctx *gin.Context) string {
	v, ok := ctx.Get(RequestIDKey)

	if ok {
		s, ok := v.(string)
		if ok && s != "" {
			return s
		}
	}

	// fallback header
	return ctx.GetHeader(RequestIDHeader)
}

func Success(ctx *gin.Context, status int, message string, data any) {
	if message == "" {
		message = "Success"
	}

	ctx.JSON(status, Envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		StatusCode: status,
	})
}

func Fail(ctx *gin.Context, status int, code, message string, details any) {
	ctx.JSON(status, failure(ctx, status, code, message, details))
}

// Abort writes a failure and stops the handler chain.
func Abort(ctx *gin.Context, status int, code, message string, details any) {
	ctx.AbortWithStatusJSON(status, failure(ctx, status, code, message, details))
}

func failure(ctx *gin.Context, status int, code, message string, details any) Envelope {
	return Envelope{
		Success:    false,
		Message:    message,
		StatusCode: status,
		Error: &APIError{
			Code:      code,
			Message:   message,
			RequestID: RequestID(ctx),
			Details:   details,
		},
	}
}
