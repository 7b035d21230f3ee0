package middlewares

import (
	"net/http"
	"strings"

	"github.com/geocoder89/authhub/internal/http/envelope"
	"github.com/gin-gonic/gin"
)

// RequireContentType rejects bodies whose media type does not start with one
// of the given prefixes.
func RequireContentType(prefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			ct := strings.ToLower(c.GetHeader("Content-Type"))

			for _, p := range prefixes {
				if strings.HasPrefix(ct, p) {
					c.Next()
					return
				}
			}

			envelope.Abort(c, http.StatusUnsupportedMediaType, "unsupported_media_type",
				"Content-Type must be "+strings.Join(prefixes, " or "), nil)
			return
		}
		c.Next()
	}
}

func RequireJSON() gin.HandlerFunc {
	return RequireContentType("application/json")
}

func RequireMultipart() gin.HandlerFunc {
	return RequireContentType("multipart/form-data")
}
