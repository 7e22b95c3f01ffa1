package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/printcraft/orderapi/internal/config"
)

// AdminAuthMiddleware authenticates admin requests against the configured
// admin key hash. The key itself is never stored; only its bcrypt hash lives
// in configuration.
func AdminAuthMiddleware(cfg *config.Config, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header format"})
			c.Abort()
			return
		}

		apiKey := strings.TrimSpace(parts[1])
		if apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing API key"})
			c.Abort()
			return
		}

		if cfg.API.AdminKeyHash == "" || !VerifyAPIKey(apiKey, cfg.API.AdminKeyHash) {
			logger.Warn("Rejected admin API key")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid API key"})
			c.Abort()
			return
		}

		c.Next()
	}
}

// VerifyAPIKey verifies an API key against a bcrypt hash
func VerifyAPIKey(apiKey, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(apiKey))
	return err == nil
}

// HashAPIKey hashes an API key using bcrypt, for provisioning tooling
func HashAPIKey(apiKey string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(apiKey), 10)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
