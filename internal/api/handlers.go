package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/nileshh/whatsapp-media-sync/internal/auth"
	"github.com/nileshh/whatsapp-media-sync/internal/models"
)

const (
	defaultPageSize = 100
	maxPageSize     = 1000
)

type tokenRequest struct {
	Owner  string `json:"owner" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

// issueToken mints a bearer token for an owner. The caller proves
// knowledge of the shared server secret; there is no user database.
func (s *Server) issueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, "bad_request", "owner and secret are required")
		return
	}

	if subtle.ConstantTimeCompare([]byte(req.Secret), s.secret) != 1 {
		abortWithError(c, http.StatusUnauthorized, "unauthorized", "invalid secret")
		return
	}

	token, err := auth.GenerateToken(req.Owner, s.secret, s.tokenTTL)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}

func (s *Server) startSession(c *gin.Context) {
	result, err := s.pipeline.StartSession(c.Request.Context(), c.GetString(ctxKeyOwner))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (s *Server) pollSession(c *gin.Context) {
	result, err := s.pipeline.PollSession(c.Request.Context(), c.GetString(ctxKeyOwner), c.Param("id"))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) closeSession(c *gin.Context) {
	if err := s.pipeline.CloseSession(c.Request.Context(), c.GetString(ctxKeyOwner), c.Param("id")); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"closed": true})
}

func (s *Server) scan(c *gin.Context) {
	result, err := s.pipeline.Scan(c.Request.Context(), c.GetString(ctxKeyOwner))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

type syncRequest struct {
	Force []string `json:"force"`
}

func (s *Server) sync(c *gin.Context) {
	var req syncRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			abortWithError(c, http.StatusBadRequest, "bad_request", "malformed sync request")
			return
		}
	}

	stats, err := s.pipeline.Sync(c.Request.Context(), c.GetString(ctxKeyOwner), req.Force)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) verifyStorage(c *gin.Context) {
	report, err := s.pipeline.VerifyStorage(c.Request.Context(), c.GetString(ctxKeyOwner))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) listFiles(c *gin.Context) {
	filter := models.FileFilter{
		Owner:      c.GetString(ctxKeyOwner),
		SenderID:   c.Query("sender"),
		MediaType:  models.MediaType(c.Query("media_type")),
		SyncStatus: models.SyncStatus(c.Query("sync_status")),
	}

	limit := queryInt(c, "limit", defaultPageSize)
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	records, total, err := s.pipeline.ListFiles(c.Request.Context(), filter, limit, offset)
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"files":  records,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}

func (s *Server) missingFiles(c *gin.Context) {
	records, err := s.pipeline.MissingFiles(c.Request.Context(), c.GetString(ctxKeyOwner))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"files": records, "count": len(records)})
}

func (s *Server) fileStats(c *gin.Context) {
	stats, err := s.pipeline.FileStats(c.Request.Context(), c.GetString(ctxKeyOwner))
	if err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) deleteFile(c *gin.Context) {
	if err := s.pipeline.DeleteFile(c.Request.Context(), c.GetString(ctxKeyOwner), c.Param("id")); err != nil {
		s.renderError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func queryInt(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}
