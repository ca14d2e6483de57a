package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/forcetrace/forcetrace/internal/correlation"
	"github.com/forcetrace/forcetrace/internal/database"
	"github.com/forcetrace/forcetrace/internal/injector"
	"github.com/forcetrace/forcetrace/internal/logger"
	"github.com/forcetrace/forcetrace/internal/scanner"
	"github.com/forcetrace/forcetrace/pkg/types"
)

// Server wires the boundary operations onto gin.
type Server struct {
	store     *database.Store
	engine    *correlation.Engine
	scanner   *scanner.Scanner
	processor *injector.Processor
	logger    *logger.Logger
}

func NewServer(store *database.Store, engine *correlation.Engine, sc *scanner.Scanner, proc *injector.Processor, log *logger.Logger) *Server {
	return &Server{
		store:     store,
		engine:    engine,
		scanner:   sc,
		processor: proc,
		logger:    log.WithComponent("api"),
	}
}

type scanRequest struct {
	Domain    string `json:"domain" binding:"required"`
	ScanType  string `json:"scan_type"`
	SessionID string `json:"session_id"`
}

func (s *Server) handleScan(c *gin.Context) {
	var req scanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Domain is required"})
		return
	}

	result, err := s.scanner.Scan(c.Request.Context(), req.Domain, req.ScanType, req.SessionID)
	if err != nil {
		s.logger.LogError(c.Request.Context(), err, "api.handleScan", "domain", req.Domain)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"target_id":       result.TargetID,
		"session_id":      result.SessionID,
		"endpoints":       result.Endpoints,
		"critical":        result.Critical,
		"high":            result.High,
		"injections":      result.Injections,
		"salesforce_type": result.SalesforceType,
	})
}

type processRequest struct {
	BatchSize      int    `json:"batchSize"`
	VulnTypeFilter string `json:"vulnTypeFilter"`
}

func (s *Server) handleProcessInjections(c *gin.Context) {
	var req processRequest
	// Body is optional; an empty one means defaults.
	_ = c.ShouldBindJSON(&req)

	result, err := s.processor.ProcessBatch(c.Request.Context(), req.BatchSize, req.VulnTypeFilter)
	if err != nil {
		s.logger.LogError(c.Request.Context(), err, "api.handleProcessInjections")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"processed": result.Processed,
		"skipped":   result.Skipped,
		"errors":    result.Errors,
		"details":   result.Details,
	})
}

type callbackRequest struct {
	Token             string            `json:"token"`
	CallbackType      string            `json:"callback_type"`
	SourceIP          string            `json:"source_ip"`
	UserAgent         string            `json:"user_agent"`
	AdditionalContext map[string]string `json:"additional_context"`
}

// handleCallback accepts an OOB ping over HTTP. POST carries a JSON body
// from the exfil payload; GET handles the bare image/script beacon case
// with the token in the query string.
func (s *Server) handleCallback(c *gin.Context) {
	var req callbackRequest
	if c.Request.Method == http.MethodPost {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
			return
		}
	} else {
		req.Token = c.Query("token")
		req.CallbackType = c.Query("callback_type")
	}

	headers := make(map[string]string, len(c.Request.Header))
	for name := range c.Request.Header {
		headers[name] = c.GetHeader(name)
	}

	event := &correlation.RawEvent{
		Token:        req.Token,
		CallbackType: types.CallbackType(req.CallbackType),
		SourceIP:     req.SourceIP,
		UserAgent:    req.UserAgent,
		Headers:      headers,
		ReceivedAt:   time.Now().UTC(),
		Extra:        req.AdditionalContext,
	}
	if event.SourceIP == "" {
		event.SourceIP = c.ClientIP()
	}
	if event.UserAgent == "" {
		event.UserAgent = c.Request.UserAgent()
	}

	result, err := s.engine.HandleCallback(c.Request.Context(), event)
	if err != nil {
		switch {
		case errors.Is(err, correlation.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		case errors.Is(err, correlation.ErrUnknownToken):
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid token", "token": req.Token})
		default:
			s.logger.LogError(c.Request.Context(), err, "api.handleCallback", "token", req.Token)
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) handleTargetMetrics(c *gin.Context) {
	targetID := c.Param("id")

	if _, err := s.store.GetTarget(c.Request.Context(), targetID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Target not found"})
		return
	}

	metrics, err := s.store.GetTargetMetrics(c.Request.Context(), targetID)
	if err != nil {
		s.logger.LogError(c.Request.Context(), err, "api.handleTargetMetrics", "target_id", targetID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, metrics)
}

func (s *Server) handleTargetLogs(c *gin.Context) {
	targetID := c.Param("id")

	logs, err := s.store.ListLogs(c.Request.Context(), targetID, 500)
	if err != nil {
		s.logger.LogError(c.Request.Context(), err, "api.handleTargetLogs", "target_id", targetID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, logs)
}

func (s *Server) handleHealth(c *gin.Context) {
	if err := s.store.DB().PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unhealthy",
			"error":  err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
