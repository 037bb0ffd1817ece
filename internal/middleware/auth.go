package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"alive-keeper/internal/services"
)

// SessionGate reports whether the wallet session is signed in.
type SessionGate interface {
	Authenticated() bool
	Address() string
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, subject, action string, limit int, window time.Duration) (bool, error)
}

// AuthMiddleware rejects requests until the wallet has signed in and puts
// the player's address on the context.
func AuthMiddleware(session SessionGate) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !session.Authenticated() {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Please connect your wallet and sign in",
				"kind":  services.KindNotAuthenticated,
			})
			c.Abort()
			return
		}

		c.Set("address", session.Address())

		c.Next()
	}
}

func RateLimitMiddleware(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		address := c.GetString("address")
		if address == "" {
			address = c.ClientIP()
		}

		path := c.Request.URL.Path

		var limit int
		var window time.Duration

		switch {
		case strings.HasSuffix(path, "/auth/login"):
			limit = services.DefaultRateLimitLogin
			window = time.Minute
		case strings.HasSuffix(path, "/checkin"),
			strings.HasSuffix(path, "/claim"),
			strings.HasSuffix(path, "/reconnect"),
			strings.HasSuffix(path, "/purchase"),
			strings.HasSuffix(path, "/activate"):
			limit = services.DefaultRateLimitActions
			window = time.Minute
		default:
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), address, path, limit, window)
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
