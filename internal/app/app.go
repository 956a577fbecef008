package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/multierr"

	"annotator/internal/config"
	"annotator/internal/logger"
	"annotator/internal/repository/sqlite"
	"annotator/internal/route"
	"annotator/internal/service"
	"annotator/internal/service/ai"
	"annotator/internal/service/storage"
	"annotator/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	db         *sqlite.DB
	imageRepo  *sqlite.ImageRepository
	detections *sqlite.DetectionRepository
	detector   *ai.DetectorService
	imageStore *storage.ImageStore
	hubService *websocket.HubService
	manager    *service.Manager
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	db, err := sqlite.New(cfg.DatabasePath)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("failed to open database: %w", err), log.Close())
	}

	imageRepo := sqlite.NewImageRepository(db)
	detectionRepo := sqlite.NewDetectionRepository(db)

	detector := ai.NewDetectorService(cfg, log)
	store := storage.NewImageStore(cfg, log, imageRepo, detectionRepo)
	hub := websocket.NewHubService(log)

	mng := service.NewManager(cfg, log, store, detector, hub, imageRepo, detectionRepo)

	return &App{
		config:     cfg,
		logger:     log,
		db:         db,
		imageRepo:  imageRepo,
		detections: detectionRepo,
		detector:   detector,
		imageStore: store,
		hubService: hub,
		manager:    mng,
	}, nil
}

// Run serves HTTP until SIGINT/SIGTERM and then shuts everything down.
func (a *App) Run() error {
	// Start background services
	go a.hubService.Run()

	// Setup routes
	router := route.SetupRoutes(a.manager, a.config, a.logger, a.imageRepo, a.detections)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("🚀 Point Annotator Server")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("📁 Images: %s", a.imageStore.Dir())
	a.logger.Info("🗄️  Database: %s", a.config.DatabasePath)
	if a.detector.Available() {
		a.logger.Info("🤖 Automatic detection enabled")
	} else {
		a.logger.Warning("⚠️  Automatic detection unavailable in this build")
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	var runErr error
	select {
	case err := <-serveErr:
		runErr = err
	case sig := <-stop:
		a.logger.Info("🛑 Received %s, shutting down", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return multierr.Combine(runErr, server.Shutdown(ctx), a.Close())
}

// Close stops workers and releases the database and log files.
func (a *App) Close() error {
	a.manager.Stop()
	a.hubService.Stop()
	return multierr.Combine(a.db.Close(), a.logger.Close())
}
