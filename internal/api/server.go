// Package api exposes the pipeline over HTTP: session control, scans,
// sync passes, and file queries, all scoped to the authenticated owner.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nileshh/whatsapp-media-sync/internal/logging"
	"github.com/nileshh/whatsapp-media-sync/internal/models"
	"github.com/nileshh/whatsapp-media-sync/internal/service"
	"github.com/nileshh/whatsapp-media-sync/internal/session"
	"github.com/nileshh/whatsapp-media-sync/internal/uploader"
)

// Pipeline is the surface the handlers drive. *service.Service satisfies
// it; tests substitute a fake.
type Pipeline interface {
	StartSession(ctx context.Context, owner string) (*session.StartResult, error)
	PollSession(ctx context.Context, owner, sessionID string) (*session.PollResult, error)
	CloseSession(ctx context.Context, owner, sessionID string) error
	Scan(ctx context.Context, owner string) (*service.ScanResult, error)
	Sync(ctx context.Context, owner string, forceIDs []string) (*uploader.Stats, error)
	VerifyStorage(ctx context.Context, owner string) (*uploader.VerifyReport, error)
	ListFiles(ctx context.Context, filter models.FileFilter, limit, offset int) ([]*models.FileRecord, int64, error)
	MissingFiles(ctx context.Context, owner string) ([]*models.FileRecord, error)
	FileStats(ctx context.Context, owner string) (*models.FileStats, error)
	DeleteFile(ctx context.Context, owner, fileID string) error
}

type Server struct {
	addr     string
	pipeline Pipeline
	log      logging.Logger
	secret   []byte
	tokenTTL time.Duration
	engine   *gin.Engine
}

func NewServer(addr string, pipeline Pipeline, log logging.Logger, secret []byte, tokenTTL time.Duration) *Server {
	s := &Server{
		addr:     addr,
		pipeline: pipeline,
		log:      log.With("component", "api"),
		secret:   secret,
		tokenTTL: tokenTTL,
	}
	s.engine = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), s.requestID(), s.requestLogger())

	r.GET("/healthz", s.healthz)

	v1 := r.Group("/api/v1")
	v1.POST("/auth/token", s.issueToken)

	authed := v1.Group("")
	authed.Use(s.authRequired())
	{
		authed.POST("/whatsapp/session", s.startSession)
		authed.GET("/whatsapp/session/:id", s.pollSession)
		authed.DELETE("/whatsapp/session/:id", s.closeSession)
		authed.POST("/whatsapp/scan", s.scan)

		authed.POST("/storage/sync", s.sync)
		authed.GET("/storage/verify", s.verifyStorage)

		authed.GET("/files", s.listFiles)
		authed.GET("/files/missing", s.missingFiles)
		authed.GET("/files/stats", s.fileStats)
		authed.DELETE("/files/:id", s.deleteFile)
	}

	return r
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until the context is canceled, then drains in-flight
// requests.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
