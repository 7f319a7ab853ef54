// Package app initializes and runs the media sync server. It wires the
// database, object store, and browser factory together, runs migrations,
// handles graceful shutdown, and starts the HTTP API.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/nileshh/whatsapp-media-sync/internal/api"
	"github.com/nileshh/whatsapp-media-sync/internal/browser"
	"github.com/nileshh/whatsapp-media-sync/internal/config"
	"github.com/nileshh/whatsapp-media-sync/internal/filex"
	"github.com/nileshh/whatsapp-media-sync/internal/logging"
	"github.com/nileshh/whatsapp-media-sync/internal/objstore"
	"github.com/nileshh/whatsapp-media-sync/internal/repositories/repomanager"
	"github.com/nileshh/whatsapp-media-sync/internal/service"
)

type App struct {
	config  *config.Config
	logger  logging.Logger
	db      *sql.DB
	service *service.Service
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	var logger logging.Logger
	if cfg.LogFormat == "console" {
		logger = logging.NewConsoleLogger()
	} else {
		logger = logging.NewJSONLogger()
	}

	if _, err := filex.EnsureDir(cfg.DataDir); err != nil {
		return nil, fmt.Errorf("data dir init error: %w", err)
	}

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	store, err := objstore.NewS3Store(ctx, objstore.S3Config{
		RootUser:     cfg.S3RootUser,
		RootPassword: cfg.S3RootPassword,
		Bucket:       cfg.S3Bucket,
		Region:       cfg.S3Region,
		BaseEndpoint: cfg.S3BaseEndpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("object store init error: %w", err)
	}

	factory := &browser.ChromeFactory{UserDataDir: service.ProfileDir(cfg.DataDir)}

	svc := service.NewService(cfg, rm.Files(db), rm.Sessions(db), store, factory, logger)

	return &App{config: cfg, logger: logger, db: db, service: svc}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {
	s := api.NewServer(app.config.EndpointAddrHTTP, app.service, app.logger,
		[]byte(app.config.SecretKey), app.config.TokenValidityDuration)

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "starting media sync server", "addr", app.config.EndpointAddrHTTP)

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	shutdownCtx := context.Background()
	app.service.Shutdown(shutdownCtx)
	if err := app.db.Close(); err != nil {
		app.logger.Error(shutdownCtx, "error closing database", "error", err)
	}
	app.logger.Info(shutdownCtx, "server stopped")
}
