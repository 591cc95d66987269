package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// AdminKeyHeader carries the shared admin key.
const AdminKeyHeader = "x-admin-key"

// AdminOnly restricts access to callers presenting the configured admin key.
func AdminOnly(adminKey string, logger *zap.Logger) gin.HandlerFunc {
	expected := []byte(adminKey)
	return func(c *gin.Context) {
		provided := []byte(c.GetHeader(AdminKeyHeader))
		if len(expected) == 0 || subtle.ConstantTimeCompare(provided, expected) != 1 {
			logger.Warn("Admin access denied",
				zap.String("path", c.Request.URL.Path),
				zap.String("client_ip", c.ClientIP()),
			)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Forbidden: Admin access required"})
			return
		}
		c.Next()
	}
}
