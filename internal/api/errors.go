package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nileshh/whatsapp-media-sync/internal/common"
)

// errorBody is the uniform error envelope. The id echoes the request id
// so a client report can be matched to server logs.
type errorBody struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// renderError maps sentinel errors to a status and stable kind. Unknown
// errors become an opaque internal error; the detail stays in the logs.
func (s *Server) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	kind := "internal"
	message := "internal error"

	switch {
	case errors.Is(err, common.ErrNotFound):
		status, kind, message = http.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, common.ErrCapabilityUnavailable):
		status, kind, message = http.StatusConflict, "capability_unavailable", err.Error()
	case errors.Is(err, common.ErrNotAuthenticated):
		status, kind, message = http.StatusConflict, "not_authenticated", err.Error()
	case errors.Is(err, common.ErrProbeTimeout):
		status, kind, message = http.StatusGatewayTimeout, "probe_timeout", err.Error()
	case errors.Is(err, common.ErrRetriesExhausted):
		status, kind, message = http.StatusBadGateway, "retries_exhausted", err.Error()
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken):
		status, kind, message = http.StatusUnauthorized, "unauthorized", err.Error()
	}

	if status == http.StatusInternalServerError {
		s.log.Error(c.Request.Context(), "request failed",
			"path", c.Request.URL.Path, "error", err, "request_id", c.GetString(ctxKeyRequestID))
	}

	c.AbortWithStatusJSON(status, errorBody{
		Kind:    kind,
		Message: message,
		ID:      c.GetString(ctxKeyRequestID),
	})
}

func abortWithError(c *gin.Context, status int, kind, message string) {
	c.AbortWithStatusJSON(status, errorBody{
		Kind:    kind,
		Message: message,
		ID:      c.GetString(ctxKeyRequestID),
	})
}
