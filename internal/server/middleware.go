package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RequestLogger logs each request once it has been handled.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("request failed", fields...)
		case status >= 400:
			logger.Warn("client error", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// APIError is the error envelope of every non-2xx response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

const (
	ErrCodeBadRequest      = "BAD_REQUEST"
	ErrCodeInvalidCount    = "INVALID_COUNT"
	ErrCodeBatchInFlight   = "BATCH_IN_FLIGHT"
	ErrCodeNoBatch         = "NO_BATCH"
	ErrCodeUnknownEntry    = "UNKNOWN_ENTRY"
	ErrCodeNothingSelected = "NOTHING_SELECTED"
	ErrCodeDeliveryFailed  = "DELIVERY_FAILED"
	ErrCodeInternalError   = "INTERNAL_ERROR"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{"error": APIError{Code: code, Message: message}})
}

func respondErrorWithDetails(c *gin.Context, status int, code, message, details string) {
	c.JSON(status, gin.H{"error": APIError{Code: code, Message: message, Details: details}})
}

func badRequest(c *gin.Context, message string) {
	respondError(c, http.StatusBadRequest, ErrCodeBadRequest, message)
}

func internalError(c *gin.Context, message string) {
	respondError(c, http.StatusInternalServerError, ErrCodeInternalError, message)
}
