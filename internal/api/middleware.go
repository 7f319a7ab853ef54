package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nileshh/whatsapp-media-sync/internal/auth"
)

const (
	ctxKeyOwner     = "owner"
	ctxKeyRequestID = "request_id"
)

// requestID tags every request so error bodies and logs can be
// correlated.
func (s *Server) requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxKeyRequestID, id)
		c.Header("X-Request-ID", id)
		c.Next()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info(c.Request.Context(), "request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start).String(),
			"request_id", c.GetString(ctxKeyRequestID))
	}
}

// authRequired validates the bearer token and stores the owner identity
// for the handlers.
func (s *Server) authRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			abortWithError(c, http.StatusUnauthorized, "unauthorized", "missing bearer token")
			return
		}

		owner, err := auth.GetOwnerFromToken(token, s.secret)
		if err != nil || owner == "" {
			abortWithError(c, http.StatusUnauthorized, "invalid_token", "invalid or expired token")
			return
		}

		c.Set(ctxKeyOwner, owner)
		c.Next()
	}
}
