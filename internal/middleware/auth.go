package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cloudvps-backend/internal/services"
)

func AuthMiddleware(jwtService *services.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			// Browsers cannot set headers on websocket upgrades.
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("session_id", claims.SessionID)

		c.Next()
	}
}

// RateLimiter is satisfied by *services.RedisService.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, userID string, action string, limit int, window time.Duration) (bool, error)
}

func RateLimitMiddleware(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString("user_id")
		if userID == "" {
			c.Next()
			return
		}

		path := c.Request.URL.Path

		var action string
		var limit int
		window := time.Minute

		switch {
		case strings.Contains(path, "/tasks/"), strings.Contains(path, "/offers/"):
			action = "tasks"
			limit = services.DefaultRateLimitTasks
		case strings.Contains(path, "/instances"), strings.Contains(path, "/sessions"):
			if c.Request.Method == http.MethodGet {
				c.Next()
				return
			}
			action = "instances"
			limit = services.DefaultRateLimitInstances
		default:
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), userID, action, limit, window)
		if err != nil || !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": window.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// AdminOnly lets through only the listed user ids. An empty list closes
// the group entirely.
func AdminOnly(adminIDs []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(adminIDs))
	for _, id := range adminIDs {
		allowed[id] = true
	}

	return func(c *gin.Context) {
		if !allowed[c.GetString("user_id")] {
			c.JSON(http.StatusForbidden, gin.H{"error": "Admin access required"})
			c.Abort()
			return
		}

		c.Next()
	}
}
