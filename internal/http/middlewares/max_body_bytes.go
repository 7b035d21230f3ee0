package middlewares

import (
	"net/http"

	"github.com/geocoder89/authhub/internal/http/envelope"
	"github.com/gin-gonic/gin"
)

// MaxBodyBytes rejects declared oversize bodies up front and caps the rest
// while they are read.
func MaxBodyBytes(max int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if ctx.Request.ContentLength > max {
			envelope.Abort(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Request body too large", nil)
			return
		}

		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, max)

		ctx.Next()
	}
}
