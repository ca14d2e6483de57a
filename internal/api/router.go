package api

import (
	"github.com/gin-gonic/gin"

	"github.com/forcetrace/forcetrace/internal/config"
	"github.com/forcetrace/forcetrace/internal/logger"
)

// Router assembles the gin engine. Callback routes stay outside the auth
// group: the exfil payload fires from a victim browser that has no
// credentials, and the token itself is the capability.
func (s *Server) Router(cfg config.SecurityConfig, log *logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggingMiddleware(log))
	router.Use(CORSMiddleware())
	router.Use(RateLimitMiddleware(cfg.RateLimit))

	router.GET("/health", s.handleHealth)

	v1 := router.Group("/api/v1")
	{
		v1.POST("/callback", s.handleCallback)
		v1.GET("/callback", s.handleCallback)

		mgmt := v1.Group("")
		if cfg.EnableAuth {
			mgmt.Use(AuthMiddleware(cfg.APIKey, log))
		}
		mgmt.POST("/scan", s.handleScan)
		mgmt.POST("/injections/process", s.handleProcessInjections)
		mgmt.GET("/targets/:id/metrics", s.handleTargetMetrics)
		mgmt.GET("/targets/:id/logs", s.handleTargetLogs)
	}

	return router
}
