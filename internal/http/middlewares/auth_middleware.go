package middlewares

import (
	"errors"
	"net/http"
	"strings"

	"github.com/geocoder89/authhub/internal/actorctx"
	"github.com/geocoder89/authhub/internal/auth"
	"github.com/geocoder89/authhub/internal/http/envelope"
	"github.com/gin-gonic/gin"
)

// Keep this small interface so tests can fake it easily.
type TokenVerifier interface {
	VerifyAccess(token string) (*auth.Claims, error)
}

type AuthMiddleware struct {
	jwt TokenVerifier
}

func NewAuthMiddleware(jwt TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{jwt: jwt}
}

const ctxUserIDKey = "auth.userID"

func (m *AuthMiddleware) RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			envelope.Abort(c, http.StatusUnauthorized, "unauthorized", "Authorization header missing or invalid", nil)
			return
		}

		raw := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer"))
		if raw == "" {
			envelope.Abort(c, http.StatusUnauthorized, "unauthorized", "Authorization header missing or invalid", nil)
			return
		}

		claims, err := m.jwt.VerifyAccess(raw)
		if err != nil {
			msg := "Invalid or expired token"
			if errors.Is(err, auth.ErrTokenExpired) {
				msg = "Token expired"
			}
			envelope.Abort(c, http.StatusUnauthorized, "unauthorized", msg, nil)
			return
		}

		c.Set(ctxUserIDKey, claims.UserID())
		c.Request = c.Request.WithContext(actorctx.WithUserID(c.Request.Context(), claims.UserID()))

		c.Next()
	}
}

func UserIDFromContext(c *gin.Context) (string, bool) {
	v, ok := c.Get(ctxUserIDKey)
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}
