// Package middleware contains Gin middleware for the admin HTTP sidecar.
package middleware

import (
	"context"

	"blokusserver/internal/logging"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// HeaderXCorrelationID is the header key carrying the request correlation ID.
const HeaderXCorrelationID = "X-Correlation-ID"

// CorrelationID assigns each admin HTTP request a correlation ID, echoing one
// supplied by the caller or minting a fresh one, and attaches it to both the
// response header and the request's context so handler logging picks it up.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := c.GetHeader(HeaderXCorrelationID)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}

		c.Header(HeaderXCorrelationID, correlationID)

		ctx := context.WithValue(c.Request.Context(), logging.CorrelationIDKey, correlationID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
