package api

import (
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/internal/logger"
)

// LoggingMiddleware logs all HTTP requests
func LoggingMiddleware(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()

		log.Infow("HTTP request",
			"method", method,
			"path", path,
			"status", statusCode,
			"duration_ms", duration.Milliseconds(),
			"ip", c.ClientIP(),
		)
	}
}

// CORSMiddleware enables CORS for the dashboard UI
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// AuthMiddleware validates the API key on management routes. Callback
// routes are never behind auth: the target's browser cannot present a
// bearer token.
func AuthMiddleware(expectedAPIKey string, log *logger.Logger) gin.HandlerFunc {
	if expectedAPIKey == "" {
		log.Fatalw("API key cannot be empty",
			"hint", "Set FORCETRACE_SECURITY_API_KEY or configure security.api_key in config file",
		)
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Warnw("Missing Authorization header",
				"path", c.Request.URL.Path,
				"ip", c.ClientIP(),
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Missing Authorization header",
			})
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid Authorization format. Expected: Bearer <token>",
			})
			c.Abort()
			return
		}

		if parts[1] != expectedAPIKey {
			log.Warnw("Invalid API key",
				"ip", c.ClientIP(),
				"path", c.Request.URL.Path,
			)
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Invalid API key",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RateLimitMiddleware implements token bucket rate limiting per IP
func RateLimitMiddleware(cfg config.RateLimitConfig) gin.HandlerFunc {
	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu      sync.Mutex
		clients = make(map[string]*client)
		once    sync.Once
	)

	// Start cleanup goroutine ONCE (not on every middleware call)
	once.Do(func() {
		go func() {
			ticker := time.NewTicker(5 * time.Minute)
			defer ticker.Stop()

			for range ticker.C {
				mu.Lock()
				for ip, c := range clients {
					if time.Since(c.lastSeen) > 10*time.Minute {
						delete(clients, ip)
					}
				}
				mu.Unlock()
			}
		}()
	})

	return func(c *gin.Context) {
		ip := c.ClientIP()

		mu.Lock()
		cl, exists := clients[ip]
		if !exists {
			cl = &client{
				limiter: rate.NewLimiter(
					rate.Limit(cfg.RequestsPerSecond),
					cfg.BurstSize,
				),
				lastSeen: time.Now(),
			}
			clients[ip] = cl
		}
		cl.lastSeen = time.Now()
		mu.Unlock()

		if !cl.limiter.Allow() {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error": "Rate limit exceeded",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
