package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"nutritrack/internal/auth"
)

const ctxUserID = "userID"

func corsMiddleware(allowedOrigin string) gin.HandlerFunc {
	if allowedOrigin == "" {
		allowedOrigin = "*"
	}
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		if allowedOrigin != "*" {
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// requireAuth resolves the session token (cookie first, then bearer header),
// verifies it and stores the subject id in the request context. It never
// touches the user store. All failures produce the same 401 body; the failure
// kind is only logged.
func (h *Handler) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := h.tokenFromRequest(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
			return
		}

		subject, err := auth.Verify(token, h.secret)
		if err != nil {
			if errors.Is(err, auth.ErrTokenExpired) {
				h.logger.Debugf("expired token from %s", c.ClientIP())
			} else {
				h.logger.Warnf("invalid token from %s", c.ClientIP())
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
			return
		}

		c.Set(ctxUserID, subject)
		c.Next()
	}
}

func (h *Handler) tokenFromRequest(c *gin.Context) string {
	if cookie, err := c.Cookie(h.cookieName); err == nil && cookie != "" {
		return cookie
	}
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

func currentUserID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}
